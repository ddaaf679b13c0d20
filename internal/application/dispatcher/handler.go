package dispatcher

import (
	"context"
	"time"

	"github.com/garyjia/budget-gate/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// Failure describes one handler run that returned an error or panicked
type Failure struct {
	EventType  event.Type
	EventID    string
	EntityType string
	EntityID   int64
	Handler    string
	Err        error
	At         time.Time
}
