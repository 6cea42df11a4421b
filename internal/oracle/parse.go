package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrNoPayload is returned when a model response contains no decodable
// payload of the requested kind.
var ErrNoPayload = fmt.Errorf("no payload found in model response")

// ExtractFenced returns the body of the first fenced code block tagged
// with lang ("json", "yaml", ...). An untagged fence is accepted as a
// fallback. Returns ErrNoPayload when no fence is present.
func ExtractFenced(raw, lang string) (string, error) {
	for _, marker := range []string{"```" + lang, "```"} {
		start := strings.Index(raw, marker)
		if start < 0 {
			continue
		}
		body := raw[start+len(marker):]
		// Skip to the end of the opening fence line.
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		end := strings.Index(body, "```")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(body[:end]), nil
	}
	return "", ErrNoPayload
}

// DecodeJSON unmarshals the JSON payload of a model response into v.
// The payload may be fenced or bare; bare responses are scanned for the
// outermost braces or brackets.
func DecodeJSON(raw string, v any) error {
	payload, err := ExtractFenced(raw, "json")
	if err != nil {
		payload = bareJSON(raw)
		if payload == "" {
			return ErrNoPayload
		}
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

// bareJSON slices the outermost JSON object or array out of free text.
func bareJSON(raw string) string {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(raw, pair[0])
		end := strings.LastIndexByte(raw, pair[1])
		if start >= 0 && end > start {
			return raw[start : end+1]
		}
	}
	return ""
}
