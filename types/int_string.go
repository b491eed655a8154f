package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// IntString is an integer that may arrive as a JSON string or number.
// Hedger endpoints report quote ids both ways, including negative
// temporary ids such as "-17".
type IntString int64

// UnmarshalJSON implements json.Unmarshaler for IntString
func (i *IntString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*i = 0
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			*i = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*i = IntString(v)
		return nil
	}

	var v json.Number
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n, err := v.Int64()
	if err != nil {
		return err
	}
	*i = IntString(n)
	return nil
}

func (i IntString) String() string {
	return strconv.FormatInt(int64(i), 10)
}

func (i IntString) Raw() int64 {
	return int64(i)
}
