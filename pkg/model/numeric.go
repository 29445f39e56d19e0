package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Uint64Flex is an integer monetary field that tolerates both JSON numbers
// and JSON strings on input. Marshaling direction is chosen per value with
// Project; the zero behaviour is a plain number.
type Uint64Flex uint64

func (v Uint64Flex) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(v), 10)), nil
}

func (v *Uint64Flex) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty numeric field")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		*v = Uint64Flex(u)
		return nil
	}
	u, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("numeric field %s: %w", b, err)
	}
	*v = Uint64Flex(u)
	return nil
}

// Project renders v as a JSON number or a JSON string per the client's
// declared preference. The stored representation is always the integer.
func (v Uint64Flex) Project(asString bool) json.RawMessage {
	s := strconv.FormatUint(uint64(v), 10)
	if asString {
		return json.RawMessage(`"` + s + `"`)
	}
	return json.RawMessage(s)
}
