package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Layouts accepted for backend timestamps. The backend emits zone-less
// local date-times; RFC 3339 is accepted as well.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// TimestampLayout is the layout timestamps are written in
const TimestampLayout = "2006-01-02T15:04:05"

// DateLayout is the wire layout of calendar dates
const DateLayout = "2006-01-02"

// Timestamp is a point in time as sent by the backend
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts null, zone-less local date-times and RFC 3339
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("models.Timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimestamp parses s in any accepted layout. "" is the zero Timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: parsed}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("models.Timestamp: unrecognized time %q", s)
}

// MarshalJSON writes the backend's zone-less layout
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(TimestampLayout))
}

// Date is a calendar date without time of day
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.Local)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return d.Format(DateLayout)
}

// UnmarshalJSON accepts YYYY-MM-DD and full timestamps
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("models.Date: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("models.Date: %w", err)
	}
	*d = parsed
	return nil
}

// MarshalJSON writes YYYY-MM-DD
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// ActivityStat is one row of the activity statistics endpoint,
// which the backend sends as a two-element array.
type ActivityStat struct {
	Type  ActivityType
	Count int64
}

// UnmarshalJSON decodes ["TASK_CREATED", 4]
func (s *ActivityStat) UnmarshalJSON(data []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("models.ActivityStat: %w", err)
	}
	if len(row) != 2 {
		return fmt.Errorf("models.ActivityStat: expected 2 columns, got %d", len(row))
	}
	var typ string
	if err := json.Unmarshal(row[0], &typ); err != nil {
		return fmt.Errorf("models.ActivityStat: type: %w", err)
	}
	var count int64
	if err := json.Unmarshal(row[1], &count); err != nil {
		return fmt.Errorf("models.ActivityStat: count: %w", err)
	}
	s.Type = ActivityType(typ)
	s.Count = count
	return nil
}
