// Package media relays playback requests to a media player behind the
// hub. Resolving the request to an actual track or station is the
// player integration's job, not ours.
package media

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

// Player starts playback on a configured media player entity.
type Player struct {
	caller  Caller
	service string
	entity  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewPlayer(caller Caller, cfg config.Config, logger *slog.Logger) *Player {
	return &Player{
		caller:  caller,
		service: cfg.MediaService,
		entity:  cfg.MediaPlayer,
		timeout: 15 * time.Second,
		logger:  logger,
	}
}

// Play asks the player integration to put on whatever the request
// describes and returns a spoken acknowledgement. A missing player
// configuration answers politely instead of erroring; only a failed
// hub call surfaces.
func (p *Player) Play(ctx context.Context, request string) (string, error) {
	if request == "" {
		return "What would you like to hear?", nil
	}
	if p.entity == "" {
		return "I don't have a media player set up to play that on.", nil
	}

	domain, service, ok := strings.Cut(p.service, ".")
	if !ok {
		return "", fmt.Errorf("invalid media service %q", p.service)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload := map[string]any{
		"entity_id": p.entity,
		"media_id":  request,
	}
	if _, err := p.caller.CallService(ctx, domain, service, payload); err != nil {
		return "", fmt.Errorf("play %q on %s: %w", request, p.entity, err)
	}

	p.logger.Info("playback started", "request", request, "player", p.entity)
	return "Putting on " + request + ".", nil
}
