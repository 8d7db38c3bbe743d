package whitelist

import (
	"encoding/json"
	"fmt"
)

// Settings is a decoded settings option. Only the whitelist field is
// interpreted; every other field is carried through as raw JSON.
type Settings struct {
	field  string
	fields map[string]json.RawMessage
}

// EmptySettings returns a settings object with no fields.
func EmptySettings(field string) Settings {
	return Settings{field: field, fields: map[string]json.RawMessage{}}
}

// DecodeSettings parses raw. An empty value yields empty settings; anything
// that is not a JSON object yields ErrMalformedSettingsBlob.
func DecodeSettings(raw []byte, field string) (Settings, error) {
	s := EmptySettings(field)
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.fields); err != nil || s.fields == nil {
		return EmptySettings(field), fmt.Errorf("%w: %v", ErrMalformedSettingsBlob, err)
	}
	return s, nil
}

// Whitelist returns the whitelist text. A missing field is an empty
// whitelist; a non-string field is reported as malformed.
func (s Settings) Whitelist() (string, error) {
	raw, ok := s.fields[s.field]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("%w: field %q is not a string", ErrMalformedSettingsBlob, s.field)
	}
	return text, nil
}

// SetWhitelist replaces the whitelist text.
func (s *Settings) SetWhitelist(text string) {
	encoded, _ := json.Marshal(text)
	if s.fields == nil {
		s.fields = map[string]json.RawMessage{}
	}
	s.fields[s.field] = encoded
}

// Encode serializes the settings. Foreign field values are re-emitted
// without being interpreted.
func (s Settings) Encode() ([]byte, error) {
	return json.Marshal(s.fields)
}
