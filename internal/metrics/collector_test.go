package metrics

import (
	"testing"
	"time"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpExecute, 10*time.Millisecond)
	c.RecordTiming(OpExecute, 30*time.Millisecond)

	snap := c.Snapshot()
	if snap.Execute == nil {
		t.Fatal("snapshot missing execute stage")
	}
	if snap.Execute.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.Execute.Count)
	}
	if snap.Execute.MinTimeMs != 10 || snap.Execute.MaxTimeMs != 30 {
		t.Errorf("min/max = %d/%d, want 10/30", snap.Execute.MinTimeMs, snap.Execute.MaxTimeMs)
	}
	if snap.Execute.TotalInputTokens != nil {
		t.Error("timing-only stage must carry no token stats")
	}
}

func TestCollector_RecordOracleUsage(t *testing.T) {
	c := NewCollector()
	c.RecordOracleUsage(OpOracle, 100*time.Millisecond, 500, 50)
	c.RecordOracleUsage(OpOracle, 200*time.Millisecond, 700, 70)

	snap := c.Snapshot()
	if snap.Oracle == nil {
		t.Fatal("snapshot missing oracle stage")
	}
	if snap.Oracle.TotalInputTokens == nil || *snap.Oracle.TotalInputTokens != 1200 {
		t.Errorf("input tokens = %v, want 1200", snap.Oracle.TotalInputTokens)
	}
	if snap.Oracle.AvgOutputTokens == nil || *snap.Oracle.AvgOutputTokens != 60 {
		t.Errorf("avg output tokens = %v, want 60", snap.Oracle.AvgOutputTokens)
	}
}

func TestCollector_EmptySnapshot(t *testing.T) {
	snap := NewCollector().Snapshot()
	if snap.Classify != nil || snap.Execute != nil {
		t.Error("stages without samples must be nil")
	}
}
