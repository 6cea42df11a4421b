package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	askSession string
	askSpeak   bool
	askStats   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <utterance>",
	Short: "Run a single request through the assistant",
	Long: `Run one utterance through the full pipeline and print the reply.

Without --speak the reply goes to stdout instead of a speaker, which
makes this the quickest way to test a hub setup.

Examples:
  hearth ask "turn off the office light"
  hearth ask "is the front door locked?"
  hearth ask "when the sun sets, close the blinds" --speak
  hearth ask "what was the bedroom temperature this morning?" --stats`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "cli", "session id, continue a paused conversation by reusing it")
	askCmd.Flags().BoolVar(&askSpeak, "speak", false, "play the reply on the configured speaker")
	askCmd.Flags().BoolVar(&askStats, "stats", false, "print stage timings after the turn")
}

func runAsk(cmd *cobra.Command, args []string) error {
	d, err := getDispatcher(askSpeak)
	if err != nil {
		return err
	}

	d.HandleUserTurnSync(context.Background(), askSession, args[0])

	if askStats {
		fmt.Println()
		printSnapshot(collector.Snapshot())
	}
	return nil
}
