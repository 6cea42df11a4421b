package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/raphaelgruber/hearth-go/internal/config"
	"github.com/raphaelgruber/hearth-go/internal/hub"
)

type fakeCaller struct {
	domain  string
	service string
	payload map[string]any
	err     error
}

func (f *fakeCaller) CallService(_ context.Context, domain, service string, payload map[string]any) ([]hub.State, error) {
	f.domain = domain
	f.service = service
	f.payload = payload
	return nil, f.err
}

func testPlayer(caller Caller, entity string) *Player {
	cfg := config.Config{
		MediaService: "music_assistant.play_media",
		MediaPlayer:  entity,
	}
	return NewPlayer(caller, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPlay_CallsPlayerService(t *testing.T) {
	caller := &fakeCaller{}
	p := testPlayer(caller, "media_player.living_room")

	reply, err := p.Play(context.Background(), "some quiet jazz")
	if err != nil {
		t.Fatalf("Play() err = %v", err)
	}

	if caller.domain != "music_assistant" || caller.service != "play_media" {
		t.Errorf("called %s.%s, want music_assistant.play_media", caller.domain, caller.service)
	}
	if caller.payload["entity_id"] != "media_player.living_room" {
		t.Errorf("payload = %v, want the configured player", caller.payload)
	}
	if caller.payload["media_id"] != "some quiet jazz" {
		t.Errorf("payload = %v, want the request as media_id", caller.payload)
	}
	if reply == "" {
		t.Error("a started playback must be acknowledged out loud")
	}
}

func TestPlay_NoPlayerAnswersPolitely(t *testing.T) {
	caller := &fakeCaller{}
	p := testPlayer(caller, "")

	reply, err := p.Play(context.Background(), "the radio")
	if err != nil {
		t.Fatalf("Play() err = %v, missing configuration is not an error", err)
	}
	if reply == "" {
		t.Error("missing player must still answer the user")
	}
	if caller.domain != "" {
		t.Error("without a player no service call must be made")
	}
}

func TestPlay_HubFailureSurfaces(t *testing.T) {
	caller := &fakeCaller{err: fmt.Errorf("player offline")}
	p := testPlayer(caller, "media_player.living_room")

	if _, err := p.Play(context.Background(), "the news"); err == nil {
		t.Fatal("a failed hub call must surface")
	}
}
