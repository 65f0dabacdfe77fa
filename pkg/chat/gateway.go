package chat

import (
	"context"
	"io"

	"github.com/atlasguide/atlas-go/pkg/chatwire"
)

// Gateway is the persistence collaborator the engine is constructed with.
// AddEvent submits one chat event and hands back the SSE stream the backend
// answers with (implementations without a streaming side return an empty
// body). ChatEventsInOrder returns the full ordered history for startup
// replay.
type Gateway interface {
	AddEvent(ctx context.Context, ev chatwire.ChatEvent) (io.ReadCloser, error)
	ChatEventsInOrder(ctx context.Context) ([]chatwire.ChatEvent, error)
}
