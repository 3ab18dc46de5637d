// Package producer publishes auth events to a message broker (Kafka).
package producer

import (
	"vidtube-auth/internal/telemetry"
)

// Producer is an EventEmitter that owns a broker connection.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
