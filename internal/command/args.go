package command

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Args is the free-form argument map of a command, stored as JSON.
type Args map[string]any

// Value implements driver.Valuer.
func (a Args) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *Args) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Args{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), a)
	case []byte:
		return json.Unmarshal(v, a)
	default:
		return fmt.Errorf("args: cannot scan %T", src)
	}
}

// Int reads an integer argument, accepting the float64 that JSON decoding
// produces.
func (a Args) Int(key string) (int64, bool) {
	switch v := a[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float reads a numeric argument.
func (a Args) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// String reads a string argument.
func (a Args) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}
