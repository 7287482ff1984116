package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/keyflow/internal/action"
)

// marshalAction converts an action payload to JSON TEXT for storage.
// HTML escaping is disabled so text payloads are stored as typed.
// Map keys (extras) are sorted by encoding/json.
func marshalAction(d action.Data) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("marshal action: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshalAction parses JSON TEXT from the database.
func unmarshalAction(s string) (action.Data, error) {
	var d action.Data
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return action.Data{}, fmt.Errorf("unmarshal action: %w", err)
	}
	return d, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
