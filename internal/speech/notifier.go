// Package speech delivers assistant replies as spoken audio through the
// hub's text-to-speech services.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/config"
	"github.com/raphaelgruber/hearth-go/internal/hub"
)

// Caller invokes hub services. Satisfied by *hub.Client.
type Caller interface {
	CallService(ctx context.Context, domain, service string, payload map[string]any) ([]hub.State, error)
}

// Notifier speaks replies on a media player. A reply the user cannot
// hear is lost, so failures are logged and swallowed rather than fed
// back into the conversation.
type Notifier struct {
	caller      Caller
	service     string
	speaker     string
	voiceEntity string
	timeout     time.Duration
	logger      *slog.Logger
}

func NewNotifier(caller Caller, cfg config.Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		caller:      caller,
		service:     cfg.TTSService,
		speaker:     cfg.TTSSpeaker,
		voiceEntity: cfg.TTSVoiceEntity,
		timeout:     15 * time.Second,
		logger:      logger,
	}
}

// Speak plays text on the configured speaker. Without a speaker the
// reply goes to stdout, which keeps the terminal workflow usable.
func (n *Notifier) Speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if n.speaker == "" {
		fmt.Println(text)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	domain, service, ok := strings.Cut(n.service, ".")
	if !ok {
		n.logger.Error("invalid tts service", "service", n.service)
		fmt.Println(text)
		return
	}

	payload := map[string]any{
		"message":                text,
		"media_player_entity_id": n.speaker,
	}
	if n.voiceEntity != "" {
		payload["entity_id"] = n.voiceEntity
	}

	if _, err := n.caller.CallService(ctx, domain, service, payload); err != nil {
		n.logger.Error("tts call failed", "service", n.service, "speaker", n.speaker, "error", err)
		fmt.Println(text)
	}
}
