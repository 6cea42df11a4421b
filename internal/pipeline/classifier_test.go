package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
)

func TestNormalizeTypes(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "sensor pulls in binary_sensor",
			in:   []string{"sensor"},
			want: []string{"sensor", "binary_sensor"},
		},
		{
			name: "binary_sensor pulls in sensor",
			in:   []string{"binary_sensor"},
			want: []string{"binary_sensor", "sensor"},
		},
		{
			name: "switch pulls in light",
			in:   []string{"switch"},
			want: []string{"switch", "light"},
		},
		{
			name: "light pulls in switch",
			in:   []string{"light"},
			want: []string{"light", "switch"},
		},
		{
			name: "unknown tags dropped",
			in:   []string{"climate", "flux_capacitor"},
			want: []string{"climate"},
		},
		{
			name: "no duplicates when both named",
			in:   []string{"sensor", "binary_sensor"},
			want: []string{"sensor", "binary_sensor"},
		},
		{
			name: "empty stays empty",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeTypes(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeTypes(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassify_ParsesIntent(t *testing.T) {
	o := &fakeOracle{respond: func(system, user string) (string, error) {
		return fenced("json", `{"intent": "write", "areas": ["office"], "types": ["switch"]}`), nil
	}}
	store := &fakeStore{areas: []catalog.Area{{ID: "office", Name: "Office"}}}
	c := NewClassifier(o, store, testLogger())

	s := NewSession("s1")
	s.Append("user", "turn off the office light")

	intent := c.Classify(context.Background(), s)
	if intent.Kind != IntentWrite {
		t.Fatalf("Classify() kind = %s, want write", intent.Kind)
	}
	if !reflect.DeepEqual(intent.Areas, []string{"office"}) {
		t.Errorf("Classify() areas = %v", intent.Areas)
	}
	if !reflect.DeepEqual(intent.Types, []string{"switch", "light"}) {
		t.Errorf("Classify() types = %v, companionship must be enforced", intent.Types)
	}
}

func TestClassify_MediaIntent(t *testing.T) {
	o := &fakeOracle{respond: func(string, string) (string, error) {
		return fenced("json", `{"intent": "media", "query": "some quiet jazz"}`), nil
	}}
	c := NewClassifier(o, &fakeStore{}, testLogger())

	intent := c.Classify(context.Background(), NewSession("s1"))
	if intent.Kind != IntentMedia {
		t.Fatalf("Classify() kind = %s, want media", intent.Kind)
	}
	if intent.Query != "some quiet jazz" {
		t.Errorf("Classify() query = %q, want the playback request", intent.Query)
	}
}

func TestClassify_MalformedFallsBackToSmallTalk(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "no payload", response: "I am not sure what you mean."},
		{name: "unknown intent", response: fenced("json", `{"intent": "order_pizza"}`)},
		{name: "oracle error", err: fmt.Errorf("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &fakeOracle{respond: func(string, string) (string, error) {
				return tt.response, tt.err
			}}
			c := NewClassifier(o, &fakeStore{}, testLogger())

			intent := c.Classify(context.Background(), NewSession("s1"))
			if intent.Kind != IntentSmallTalk {
				t.Errorf("Classify() kind = %s, want small_talk fallback", intent.Kind)
			}
		})
	}
}

func TestClassifyResume(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     ResumeDecision
	}{
		{name: "clarify", response: fenced("json", `{"decision": "clarify"}`), want: ResumeClarify},
		{name: "new request", response: fenced("json", `{"decision": "new_request"}`), want: ResumeNewRequest},
		{name: "malformed defaults to new request", response: "eh", want: ResumeNewRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &fakeOracle{respond: func(string, string) (string, error) { return tt.response, nil }}
			c := NewClassifier(o, &fakeStore{}, testLogger())

			if got := c.ClassifyResume(context.Background(), NewSession("s1")); got != tt.want {
				t.Errorf("ClassifyResume() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyConfirm(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     bool
	}{
		{name: "confirmed", response: fenced("json", `{"confirmed": true}`), want: true},
		{name: "declined", response: fenced("json", `{"confirmed": false}`), want: false},
		{name: "malformed counts as declined", response: "sure thing", want: false},
		{name: "oracle error counts as declined", err: fmt.Errorf("offline"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &fakeOracle{respond: func(string, string) (string, error) { return tt.response, tt.err }}
			c := NewClassifier(o, &fakeStore{}, testLogger())

			if got := c.ClassifyConfirm(context.Background(), NewSession("s1")); got != tt.want {
				t.Errorf("ClassifyConfirm() = %v, want %v", got, tt.want)
			}
		})
	}
}
