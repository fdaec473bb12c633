package chains

import (
	"github.com/defistate/defistate-router-go/engine"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Client defines the interface that routing-table consumers depend on: a
// stream of sequence-versioned route states plus a fatal error channel.
type Client interface {
	State() <-chan *engine.RouteState
	Err() <-chan error
}
