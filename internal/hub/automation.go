package hub

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Automation is a hub automation config entry.
type Automation struct {
	ID           string `yaml:"id,omitempty" json:"id,omitempty"`
	Alias        string `yaml:"alias" json:"alias"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	Trigger      []any  `yaml:"trigger" json:"trigger"`
	Condition    []any  `yaml:"condition,omitempty" json:"condition,omitempty"`
	Action       []any  `yaml:"action" json:"action"`
	Mode         string `yaml:"mode,omitempty" json:"mode,omitempty"`
	InitialState bool   `yaml:"initial_state" json:"initial_state"`
}

// ParseAutomation decodes a YAML automation draft. Drafts arrive from
// the model either as a single document or as a one-element list.
func ParseAutomation(draft string) (*Automation, error) {
	var auto Automation
	if err := yaml.Unmarshal([]byte(draft), &auto); err == nil && auto.Alias != "" {
		return &auto, nil
	}

	var autos []Automation
	if err := yaml.Unmarshal([]byte(draft), &autos); err != nil {
		return nil, fmt.Errorf("parse automation draft: %w", err)
	}
	if len(autos) == 0 || autos[0].Alias == "" {
		return nil, fmt.Errorf("automation draft has no alias")
	}
	return &autos[0], nil
}

// PublishAutomation installs an automation on the hub, reloads the
// automation integration, and then scans the hub error log for faults
// mentioning the automation's alias inside the grace window. A
// correlated fault rolls the automation back and is returned as an
// error. The automation is published disabled; the caller enables it
// once the user confirms.
func (c *Client) PublishAutomation(ctx context.Context, auto *Automation, grace time.Duration) (string, error) {
	auto.ID = uuid.New().String()
	auto.InitialState = false

	publishedAt := time.Now()

	path := "/api/config/automation/config/" + auto.ID
	if err := c.doJSON(ctx, http.MethodPost, path, auto, nil); err != nil {
		return "", fmt.Errorf("publish automation %q: %w", auto.Alias, err)
	}

	if err := c.ReloadAutomations(ctx); err != nil {
		c.rollbackAutomation(ctx, auto.ID)
		return "", err
	}

	// The hub logs config faults asynchronously after a reload.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(grace):
	}

	log, err := c.ErrorLog(ctx)
	if err != nil {
		c.logger.Warn("could not verify automation against error log", "alias", auto.Alias, "error", err)
		return auto.ID, nil
	}

	if faults := errorsMentioning(log, auto.Alias, publishedAt.Add(-time.Second)); len(faults) > 0 {
		c.rollbackAutomation(ctx, auto.ID)
		return "", fmt.Errorf("automation %q rejected by hub: %s", auto.Alias, strings.Join(faults, "; "))
	}

	c.logger.Info("automation published", "alias", auto.Alias, "id", auto.ID)
	return auto.ID, nil
}

// EnableAutomation turns a published automation on.
func (c *Client) EnableAutomation(ctx context.Context, id string) error {
	_, err := c.CallService(ctx, "automation", "turn_on", map[string]any{
		"entity_id": "automation." + id,
	})
	return err
}

// DeleteAutomation removes an automation config entry.
func (c *Client) DeleteAutomation(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/config/automation/config/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete automation %s: %w", id, err)
	}
	return c.ReloadAutomations(ctx)
}

func (c *Client) rollbackAutomation(ctx context.Context, id string) {
	if err := c.DeleteAutomation(ctx, id); err != nil {
		c.logger.Error("automation rollback failed", "id", id, "error", err)
	}
}

// hub log lines open with "2024-07-30 08:15:00.123 ERROR ...".
const logTimeLayout = "2006-01-02 15:04:05"

// errorsMentioning extracts error-log entries newer than since whose
// text mentions needle. Continuation lines (tracebacks) belong to the
// preceding timestamped entry.
func errorsMentioning(log, needle string, since time.Time) []string {
	var faults []string
	var current strings.Builder
	currentRecent := false

	flush := func() {
		if currentRecent && strings.Contains(current.String(), needle) {
			faults = append(faults, strings.TrimSpace(current.String()))
		}
		current.Reset()
		currentRecent = false
	}

	for _, line := range strings.Split(log, "\n") {
		if ts, ok := parseLogTime(line); ok {
			flush()
			currentRecent = !ts.Before(since)
		}
		if currentRecent {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}
	flush()

	return faults
}

func parseLogTime(line string) (time.Time, bool) {
	if len(line) < len(logTimeLayout) {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(logTimeLayout, line[:len(logTimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
