package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	ssdomain "customer-panel/backend/internal/servicestate/domain"
)

const (
	allowQuery   = "data.panel.capabilities.allow"
	enabledQuery = "data.panel.capabilities.enabled"
)

// DefaultPolicy enables a capability exactly when the billing authority flagged it on the service.
const DefaultPolicy = `package panel.capabilities

default allow := false

allow if {
	input.service.flags[input.capability] == true
}

enabled contains name if {
	some name, on in input.service.flags
	on == true
}
`

// OPAEvaluator evaluates capability policy with OPA Rego. Queries are compiled once and are safe for
// concurrent use.
type OPAEvaluator struct {
	allow   rego.PreparedEvalQuery
	enabled rego.PreparedEvalQuery
}

// LoadPolicy returns the Rego source at path, or DefaultPolicy when path is empty.
func LoadPolicy(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("policy: read %s: %w", path, err)
	}
	return string(b), nil
}

// NewOPAEvaluator compiles source. The policy must define allow and enabled in package panel.capabilities.
func NewOPAEvaluator(ctx context.Context, source string) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"capabilities.rego": source})
	if err != nil {
		return nil, fmt.Errorf("policy: compile: %w", err)
	}
	allow, err := rego.New(rego.Query(allowQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare allow: %w", err)
	}
	enabled, err := rego.New(rego.Query(enabledQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare enabled: %w", err)
	}
	e := &OPAEvaluator{allow: allow, enabled: enabled}
	if err := e.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// HealthCheck evaluates both queries against a service with no flags. Does not touch the database.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	allowed, err := e.Allowed(ctx, ssdomain.CapabilityMail, nil)
	if err != nil {
		return err
	}
	if allowed {
		return errors.New("policy: capability allowed for a service without flags")
	}
	_, err = e.Enabled(ctx, nil)
	return err
}

func (e *OPAEvaluator) Allowed(ctx context.Context, capability string, st *ssdomain.ServiceState) (bool, error) {
	rs, err := e.allow.Eval(ctx, rego.EvalInput(buildInput(capability, st)))
	if err != nil {
		return false, fmt.Errorf("policy: eval allow: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, errors.New("policy: allow is undefined")
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy: allow is %T, want bool", rs[0].Expressions[0].Value)
	}
	return v, nil
}

func (e *OPAEvaluator) Enabled(ctx context.Context, st *ssdomain.ServiceState) ([]string, error) {
	rs, err := e.enabled.Eval(ctx, rego.EvalInput(buildInput("", st)))
	if err != nil {
		return nil, fmt.Errorf("policy: eval enabled: %w", err)
	}
	out := []string{}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return out, nil
	}
	set, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, fmt.Errorf("policy: enabled is %T, want set", rs[0].Expressions[0].Value)
	}
	for _, v := range set {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func buildInput(capability string, st *ssdomain.ServiceState) map[string]any {
	service := map[string]any{
		"id":     "",
		"status": string(ssdomain.StatusSuspended),
		"plan":   "",
		"flags":  map[string]any{},
	}
	if st != nil {
		flags := make(map[string]any)
		for k, v := range st.Features.Capabilities() {
			flags[k] = v
		}
		service["id"] = st.ServiceID
		service["status"] = string(st.Status)
		service["plan"] = st.Plan
		service["flags"] = flags
	}
	return map[string]any{
		"capability": capability,
		"service":    service,
	}
}
