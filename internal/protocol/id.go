package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a user or room id. The server sends ids as JSON numbers or as
// strings; the text is kept exactly as received.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*id = ""
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*id = ID(text)
	default:
		var number json.Number
		if err := json.Unmarshal(trimmed, &number); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(number)
	}
	return nil
}

// MarshalJSON writes numeric ids as numbers and everything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// IsNumeric reports whether the id is a JSON number literal.
func (id ID) IsNumeric() bool {
	if id == "" {
		return false
	}
	var number json.Number
	raw := []byte(id)
	if raw[0] == '"' {
		return false
	}
	return json.Unmarshal(raw, &number) == nil
}

func (id ID) String() string {
	return string(id)
}
