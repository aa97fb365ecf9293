package sso

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BootstrapClaims is the verified content of a bootstrap token. It lives only for the duration of one
// bootstrap request; only TokenID and ExpiresAt are persisted, by the replay guard.
type BootstrapClaims struct {
	Issuer     string
	Subject    string
	Audience   []string
	ServiceID  string
	TokenID    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ReturnPath string
}

// wireClaims is the JWT payload as issued by the billing authority.
// service_id may be a string or a number; serviceId and returnPath are accepted aliases.
type wireClaims struct {
	jwt.RegisteredClaims
	ServiceID       flexString `json:"service_id,omitempty"`
	ServiceIDAlias  flexString `json:"serviceId,omitempty"`
	ReturnTo        string     `json:"return_to,omitempty"`
	ReturnPathAlias string     `json:"returnPath,omitempty"`
}

func (w *wireClaims) serviceID() string {
	if w.ServiceID != "" {
		return string(w.ServiceID)
	}
	return string(w.ServiceIDAlias)
}

func (w *wireClaims) returnPath() string {
	if w.ReturnTo != "" {
		return w.ReturnTo
	}
	return w.ReturnPathAlias
}

var errNotStringOrNumber = errors.New("claim must be a string or a number")

// flexString decodes a JSON string or number into its string form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errNotStringOrNumber
	}
	*f = flexString(n.String())
	return nil
}
