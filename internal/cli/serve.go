package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/hearth-go/internal/hub"
)

var serveSpeak bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant as a long-lived session",
	Long: `Run the assistant until interrupted.

Utterances are read line by line from stdin. A line typed while a turn
is still running replaces any earlier unread line; only the newest one
is picked up when the current turn finishes.

While serving, hub state changes stream in over the websocket API and
keep the catalog cache fresh.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSpeak, "speak", true, "play replies on the configured speaker")
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := getDispatcher(serveSpeak)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// keep the cache in step with the hub while we serve
	go func() {
		err := hubClient.SubscribeStateChanges(ctx, func(change hub.StateChange) {
			if change.NewState == nil {
				return
			}
			err := dbClient.UpdateEntityState(ctx, change.EntityID, change.NewState.State, change.NewState.Attributes)
			if err != nil {
				logger.Warn("state refresh failed", "entity", change.EntityID, "error", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("state stream closed", "error", err)
		}
	}()

	fmt.Println("Listening. Type a request, Ctrl+C to quit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			printSnapshot(collector.Snapshot())
			return nil
		case line, ok := <-lines:
			if !ok {
				printSnapshot(collector.Snapshot())
				return nil
			}
			utterance := strings.TrimSpace(line)
			if utterance == "" {
				continue
			}
			d.HandleUserTurn(ctx, "voice", utterance)
		}
	}
}
