package tournament

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Result is the outcome of a hole or a nine from slot 0's point of view.
// The zero value is Unset, which is distinct from a loss.
type Result uint8

const (
	Unset Result = iota
	Loss
	Halved
	Win
)

// ParseResult converts the wire value (0, 0.5 or 1) into a Result.
func ParseResult(v float64) (Result, error) {
	switch v {
	case 0:
		return Loss, nil
	case 0.5:
		return Halved, nil
	case 1:
		return Win, nil
	}
	return Unset, fmt.Errorf("%w: %v", ErrInvalidResult, v)
}

// Value returns the point value awarded to slot 0 and false when unset.
func (r Result) Value() (float64, bool) {
	switch r {
	case Loss:
		return 0, true
	case Halved:
		return 0.5, true
	case Win:
		return 1, true
	}
	return 0, false
}

func (r Result) IsSet() bool {
	return r != Unset
}

// Flip returns the same result from slot 1's point of view.
func (r Result) Flip() Result {
	switch r {
	case Loss:
		return Win
	case Win:
		return Loss
	}
	return r
}

func (r Result) String() string {
	if v, ok := r.Value(); ok {
		return fmt.Sprint(v)
	}
	return "-"
}

func (r Result) MarshalJSON() ([]byte, error) {
	v, ok := r.Value()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Unset
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidResult, data)
	}
	parsed, err := ParseResult(v)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
