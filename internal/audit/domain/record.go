package domain

// Result is the outcome recorded on an audit record.
type Result string

const (
	ResultOK     Result = "ok"
	ResultDenied Result = "denied"
	ResultError  Result = "error"
)

// Valid reports whether r is one of the recorded outcomes.
func (r Result) Valid() bool {
	switch r {
	case ResultOK, ResultDenied, ResultError:
		return true
	}
	return false
}

// Record is one append-only audit row. Timestamp is unix seconds.
// Empty optional fields are stored as NULL. SelfDigest covers every field except ID.
type Record struct {
	ID           int64  `json:"id"`
	Timestamp    int64  `json:"ts"`
	Action       string `json:"action"`
	ActorSubject string `json:"actor_sub,omitempty"`
	ActorRole    string `json:"actor_role,omitempty"`
	ServiceID    string `json:"service_id,omitempty"`
	Result       Result `json:"result"`
	RequestID    string `json:"request_id,omitempty"`
	ActorIP      string `json:"actor_ip,omitempty"`
	DetailsJSON  string `json:"details"`
	PrevDigest   string `json:"prev_digest,omitempty"`
	SelfDigest   string `json:"self_digest"`
}
