package memo

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Bytes is a binary memo field. Senders encode it either as a base64 string or
// as a JSON array of byte values; both decode to the same bytes. It always
// encodes as base64.
type Bytes []byte

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("empty bytes field")
	}

	switch trimmed[0] {
	case 'n':
		*b = nil
		return nil
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return fmt.Errorf("decode base64 field: %w", err)
		}
		*b = decoded
		return nil
	case '[':
		var values []int
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return fmt.Errorf("decode byte array field: %w", err)
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return fmt.Errorf("byte array value %d out of range", v)
			}
			out[i] = byte(v)
		}
		*b = out
		return nil
	default:
		return fmt.Errorf("unsupported bytes encoding %q", trimmed[0])
	}
}

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(b))
}
