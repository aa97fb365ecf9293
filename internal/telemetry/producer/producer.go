// Package producer publishes committed audit records to a message broker.
package producer

import (
	"customer-panel/backend/internal/telemetry"
)

// Producer is an EventEmitter backed by a broker connection that must be closed on shutdown.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
