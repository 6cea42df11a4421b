package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/hearth-go/internal/service"
)

var syncPlain bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the hub's registries into the catalog cache",
	Long: `Rebuild the local catalog cache from the hub.

Areas, devices, entities and the service catalog are fetched fresh;
the existing cache is wiped first. Run this once before the first
conversation and again whenever devices are added or moved.

Examples:
  hearth sync
  hearth sync --plain`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncPlain, "plain", false, "log progress lines instead of the interactive UI")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	syncer := service.NewSyncer(hubClient, dbClient, logger)

	if syncPlain {
		return syncer.Sync(ctx, func(p service.Progress) {
			fmt.Printf("[%s] %d/%d %s\n", p.Stage, p.Done, p.Total, p.Detail)
		})
	}
	return RunSyncProgress(ctx, syncer)
}
