package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/hearth-go/internal/metrics"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show pipeline statistics",
	Long: `Show in-memory pipeline statistics.

Statistics cover only the current process; 'hearth ask --stats' and a
finishing 'hearth serve' print the same snapshot.`,
	RunE: runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	printSnapshot(collector.Snapshot())
	return nil
}

// printSnapshot displays pipeline statistics.
func printSnapshot(snap metrics.Snapshot) {
	fmt.Printf("Pipeline Statistics (in-memory, since start)\n")
	fmt.Printf("════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	stages := []struct {
		name string
		op   *metrics.StageSnapshot
	}{
		{"Classify", snap.Classify},
		{"Resolve", snap.Resolve},
		{"Execute", snap.Execute},
		{"Evaluate", snap.Evaluate},
		{"Oracle", snap.Oracle},
		{"Hub Calls", snap.HubCall},
		{"DB Queries", snap.DBQuery},
	}

	for _, stage := range stages {
		if stage.op == nil {
			continue
		}
		fmt.Printf("\n%s:\n", stage.name)
		printOpStats(stage.op)
		printTokenStats(stage.op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.StageSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.StageSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Printf("  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgInputTokens)
	}
	fmt.Println()

	fmt.Printf("  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgOutputTokens)
	}
	fmt.Println()
}
