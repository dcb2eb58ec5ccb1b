package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration stored as a Go duration string ("25s").
// Bare JSON numbers are read as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			*d = 0

			return nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)

		return nil
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds: %s", raw)
	}
	*d = Duration(secs * float64(time.Second))

	return nil
}
