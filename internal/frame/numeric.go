package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// numeric accepts a JSON string ("0.52"), a JSON number (0.52), "" or null.
type numeric struct {
	decimal.Decimal
	set bool
}

func (n *numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	n.Decimal = d
	n.set = true
	return nil
}

// unixTime accepts seconds or milliseconds, as a string or a number.
type unixTime struct {
	time.Time
}

// msThreshold separates millisecond from second timestamps (2001-09-09 in ms).
const msThreshold = 1_000_000_000_000

func (t *unixTime) UnmarshalJSON(data []byte) error {
	var n numeric
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	if !n.set {
		return nil
	}

	v := n.IntPart()
	if v >= msThreshold {
		t.Time = time.UnixMilli(v).UTC()
	} else {
		t.Time = time.Unix(v, 0).UTC()
	}
	return nil
}
