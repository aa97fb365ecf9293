package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"customer-panel/backend/internal/audit/domain"
)

// digestInput fixes the field order hashed into a record's self digest. The row id is assigned by the
// database after sealing and is not part of it.
type digestInput struct {
	Timestamp    int64  `json:"ts"`
	Action       string `json:"action"`
	ActorSubject string `json:"actor_sub"`
	ActorRole    string `json:"actor_role"`
	ServiceID    string `json:"service_id"`
	Result       string `json:"result"`
	RequestID    string `json:"request_id"`
	ActorIP      string `json:"actor_ip"`
	Details      string `json:"details"`
	PrevDigest   string `json:"prev_digest"`
}

// Digest returns the hex SHA-256 of the record's canonical encoding.
func Digest(r *domain.Record) string {
	b, _ := json.Marshal(digestInput{
		Timestamp:    r.Timestamp,
		Action:       r.Action,
		ActorSubject: r.ActorSubject,
		ActorRole:    r.ActorRole,
		ServiceID:    r.ServiceID,
		Result:       string(r.Result),
		RequestID:    r.RequestID,
		ActorIP:      r.ActorIP,
		Details:      r.DetailsJSON,
		PrevDigest:   r.PrevDigest,
	})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Seal links r to prev and sets its self digest.
func Seal(r *domain.Record, prev string) {
	r.PrevDigest = prev
	r.SelfDigest = Digest(r)
}

// CanonicalDetails encodes details with sorted keys. A nil map encodes as "{}".
func CanonicalDetails(details map[string]any) (string, error) {
	if len(details) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("audit: encode details: %w", err)
	}
	return string(b), nil
}

// ChainError reports the first record at which the chain does not verify.
type ChainError struct {
	ID     int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at record %d: %s", e.ID, e.Reason)
}

// ChainVerifier checks records one at a time in id order, so a table can be verified without loading it
// whole. The zero value expects the first record of the chain.
type ChainVerifier struct {
	prev  string
	count int
}

// Next checks rec against its own digest and against the record before it.
func (v *ChainVerifier) Next(rec *domain.Record) error {
	if got := Digest(rec); got != rec.SelfDigest {
		return &ChainError{ID: rec.ID, Reason: "content does not match digest"}
	}
	if rec.PrevDigest != v.prev {
		if v.count == 0 {
			return &ChainError{ID: rec.ID, Reason: "first record has a predecessor"}
		}
		return &ChainError{ID: rec.ID, Reason: "predecessor digest mismatch (record removed or reordered)"}
	}
	v.prev = rec.SelfDigest
	v.count++
	return nil
}

// Verified returns how many records have passed so far.
func (v *ChainVerifier) Verified() int {
	return v.count
}

// VerifyChain checks a complete chain in id order.
func VerifyChain(records []*domain.Record) error {
	var v ChainVerifier
	for _, r := range records {
		if err := v.Next(r); err != nil {
			return err
		}
	}
	return nil
}
