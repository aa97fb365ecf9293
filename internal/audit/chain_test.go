package audit

import (
	"errors"
	"strings"
	"testing"

	"customer-panel/backend/internal/audit/domain"
)

func buildChain(n int) []*domain.Record {
	out := make([]*domain.Record, 0, n)
	prev := ""
	for i := 0; i < n; i++ {
		r := &domain.Record{
			ID:          int64(i + 1),
			Timestamp:   int64(1000 + i),
			Action:      "billing.notification",
			ActorRole:   RoleBilling,
			ServiceID:   "svc-1",
			Result:      domain.ResultOK,
			DetailsJSON: `{"status":"active"}`,
		}
		Seal(r, prev)
		prev = r.SelfDigest
		out = append(out, r)
	}
	return out
}

func chainErr(t *testing.T, err error) *ChainError {
	t.Helper()
	var ce *ChainError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *ChainError", err)
	}
	return ce
}

func TestVerifyChain_Intact(t *testing.T) {
	if err := VerifyChain(buildChain(5)); err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if err := VerifyChain(nil); err != nil {
		t.Fatalf("empty chain: %v", err)
	}
}

func TestVerifyChain_DetectsTamper(t *testing.T) {
	recs := buildChain(5)
	recs[2].DetailsJSON = `{"status":"terminated"}`
	ce := chainErr(t, VerifyChain(recs))
	if ce.ID != 3 || !strings.Contains(ce.Reason, "digest") {
		t.Errorf("ChainError = %+v, want record 3 digest mismatch", ce)
	}
}

func TestVerifyChain_DetectsResealedTamper(t *testing.T) {
	recs := buildChain(5)
	recs[2].Result = domain.ResultDenied
	Seal(recs[2], recs[2].PrevDigest)
	ce := chainErr(t, VerifyChain(recs))
	if ce.ID != 4 {
		t.Errorf("ChainError at %d, want 4 (successor no longer links)", ce.ID)
	}
}

func TestVerifyChain_DetectsDeletion(t *testing.T) {
	recs := buildChain(5)
	recs = append(recs[:1], recs[2:]...)
	ce := chainErr(t, VerifyChain(recs))
	if ce.ID != 3 || !strings.Contains(ce.Reason, "predecessor") {
		t.Errorf("ChainError = %+v, want record 3 predecessor mismatch", ce)
	}
}

func TestVerifyChain_DetectsReorder(t *testing.T) {
	recs := buildChain(5)
	recs[1], recs[2] = recs[2], recs[1]
	ce := chainErr(t, VerifyChain(recs))
	if ce.ID != 3 {
		t.Errorf("ChainError at %d, want 3", ce.ID)
	}
}

func TestVerifyChain_DetectsTruncatedHead(t *testing.T) {
	recs := buildChain(3)
	ce := chainErr(t, VerifyChain(recs[1:]))
	if ce.ID != 2 || !strings.Contains(ce.Reason, "first record") {
		t.Errorf("ChainError = %+v", ce)
	}
}

func TestDigest_ExcludesID(t *testing.T) {
	r := buildChain(1)[0]
	before := Digest(r)
	r.ID = 999
	if Digest(r) != before {
		t.Error("digest must not depend on the row id")
	}
}

func TestDigest_EveryFieldCovered(t *testing.T) {
	base := buildChain(1)[0]
	mutations := map[string]func(r *domain.Record){
		"ts":          func(r *domain.Record) { r.Timestamp++ },
		"action":      func(r *domain.Record) { r.Action = "x" },
		"actor_sub":   func(r *domain.Record) { r.ActorSubject = "u" },
		"actor_role":  func(r *domain.Record) { r.ActorRole = "customer" },
		"service_id":  func(r *domain.Record) { r.ServiceID = "svc-2" },
		"result":      func(r *domain.Record) { r.Result = domain.ResultError },
		"request_id":  func(r *domain.Record) { r.RequestID = "r" },
		"actor_ip":    func(r *domain.Record) { r.ActorIP = "10.0.0.1" },
		"details":     func(r *domain.Record) { r.DetailsJSON = "{}" },
		"prev_digest": func(r *domain.Record) { r.PrevDigest = "p" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			r := *base
			mutate(&r)
			if Digest(&r) == base.SelfDigest {
				t.Errorf("changing %s did not change the digest", name)
			}
		})
	}
}

func TestCanonicalDetails_SortedKeys(t *testing.T) {
	got, err := CanonicalDetails(map[string]any{"zeta": 1, "alpha": "a", "mid": true})
	if err != nil {
		t.Fatalf("CanonicalDetails: %v", err)
	}
	if got != `{"alpha":"a","mid":true,"zeta":1}` {
		t.Errorf("CanonicalDetails = %s", got)
	}
	if got, _ := CanonicalDetails(nil); got != "{}" {
		t.Errorf("nil details = %s, want {}", got)
	}
	if _, err := CanonicalDetails(map[string]any{"f": func() {}}); err == nil {
		t.Error("unencodable details should error")
	}
}

func TestChainVerifier_Streaming(t *testing.T) {
	var v ChainVerifier
	for _, r := range buildChain(4) {
		if err := v.Next(r); err != nil {
			t.Fatalf("Next(%d): %v", r.ID, err)
		}
	}
	if v.Verified() != 4 {
		t.Errorf("Verified = %d, want 4", v.Verified())
	}
}
