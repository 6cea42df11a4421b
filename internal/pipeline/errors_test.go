package pipeline

import (
	"fmt"
	"strings"
	"testing"
)

func TestApologyForNamesTheFailedCollaborator(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "catalog outage",
			err:  fmt.Errorf("list entities: %w: %w", errCatalogUnavailable, fmt.Errorf("connection reset")),
			want: "devices",
		},
		{
			name: "oracle outage",
			err:  fmt.Errorf("read resolution: %w: %w", errOracleUnavailable, fmt.Errorf("timeout")),
			want: "thinking",
		},
		{
			name: "search outage",
			err:  fmt.Errorf("web search: %w: %w", errSearchUnavailable, fmt.Errorf("bad gateway")),
			want: "search",
		},
		{
			name: "untagged errors blame the hub",
			err:  fmt.Errorf("bulk state read: %w", fmt.Errorf("connection refused")),
			want: "hub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apologyFor(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("apologyFor() = %q, want it to mention %q", got, tt.want)
			}
		})
	}
}
