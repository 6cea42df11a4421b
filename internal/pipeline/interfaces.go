package pipeline

import (
	"context"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
)

// EntityStore is the read side of the catalog consulted per resolution
// cycle. The pipeline never mutates the catalog.
type EntityStore = catalog.Store

// ActionInvoker performs state reads and service calls against the hub.
type ActionInvoker interface {
	// InvokeService calls domain.service with the given payload and
	// returns the hub's textual acknowledgement.
	InvokeService(ctx context.Context, domain, service string, payload map[string]any) (string, error)

	// ReadState fetches one entity's live state.
	ReadState(ctx context.Context, entityID string) (StateRecord, error)

	// ReadAllStates fetches every entity's live state in one call.
	ReadAllStates(ctx context.Context) ([]StateRecord, error)

	// ReadHistory fetches state history for the given entities.
	ReadHistory(ctx context.Context, entityIDs []string, start, end time.Time) ([]StateRecord, error)
}

// AutomationSink publishes automation drafts. Publish is expected to
// validate against the hub's own error reporting and roll back a
// rejected draft before returning.
type AutomationSink interface {
	Publish(ctx context.Context, draft string) (id string, err error)
	Enable(ctx context.Context, id string) error
}

// Oracle produces structured text from prompts. The pipeline parses
// its output, never its reasoning.
type Oracle interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Notifier delivers spoken feedback. Fire-and-forget; failures are
// logged by implementations, not surfaced.
type Notifier interface {
	Speak(ctx context.Context, text string)
}

// WebSearcher answers queries outside the home-automation domain.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// MediaPlayer relays playback requests. Catalog lookup, queueing and
// audio handling stay behind this interface; the pipeline only passes
// on what the user asked to hear.
type MediaPlayer interface {
	// Play starts the requested media and returns a spoken
	// acknowledgement.
	Play(ctx context.Context, request string) (string, error)
}
