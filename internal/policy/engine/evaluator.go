// Package engine evaluates which optional capabilities (mail, DNS, migration) a service may use.
package engine

import (
	"context"

	ssdomain "customer-panel/backend/internal/servicestate/domain"
)

// Evaluator decides capability access for a service.
type Evaluator interface {
	// Allowed reports whether capability is enabled for st. A nil st has no capabilities.
	Allowed(ctx context.Context, capability string, st *ssdomain.ServiceState) (bool, error)
	// Enabled lists the capabilities enabled for st in sorted order.
	Enabled(ctx context.Context, st *ssdomain.ServiceState) ([]string, error)
}
