// Package push delivers reminder notifications to registered Web Push
// endpoints.
package push

import (
	"context"
	"errors"

	"github.com/Nifargo/todo-app-server/internal/models"
)

// ErrEndpointGone marks a delivery failure meaning the endpoint is
// permanently invalid and must be pruned, as opposed to a transient
// failure worth keeping the subscription for.
var ErrEndpointGone = errors.New("push endpoint gone")

// Message is the payload shown to the user. Data carries small
// key-value hints for the client (e.g. the view to open).
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type Gateway interface {
	Send(ctx context.Context, sub models.PushSubscription, msg Message) error
}
