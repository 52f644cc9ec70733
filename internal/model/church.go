package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Church is a directory entry for a congregation.  It corresponds to a row
// in the `churches` table.  Latitude and Longitude are required for
// location search; SourceRef identifies the row of an external import.
type Church struct {
	ID                uint64    `json:"id"`
	SourceRef         *string   `json:"source_ref,omitempty"`
	Name              string    `json:"name"`
	Denomination      string    `json:"denomination"`
	Street            string    `json:"street"`
	City              string    `json:"city"`
	State             string    `json:"state"`
	PostalCode        string    `json:"postal_code"`
	Country           string    `json:"country"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Phone             string    `json:"phone,omitempty"`
	Email             string    `json:"email,omitempty"`
	Website           string    `json:"website,omitempty"`
	Description       string    `json:"description"`
	FoundedYear       *uint16   `json:"founded_year,omitempty"`
	AverageAttendance *uint32   `json:"average_attendance,omitempty"`
	Schedule          Schedule  `json:"schedule"`
	Languages         Languages `json:"languages"`
	ImageURL          string    `json:"image_url,omitempty"`
	Verified          bool      `json:"verified"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Weekdays lists the schedule keys in calendar order.
var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// IsWeekday reports whether s names a day of the week (case-insensitive).
func IsWeekday(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Weekdays {
		if d == s {
			return true
		}
	}
	return false
}

// Schedule maps a lower-case weekday to its service time labels,
// e.g. {"sunday": ["9:00 AM", "11:00 AM"]}.  Stored as JSON.
type Schedule map[string][]string

// ErrUnknownWeekday is returned by Normalize for keys that are not weekdays.
var ErrUnknownWeekday = errors.New("unknown weekday")

// Normalize lower-cases keys, trims labels, drops empty and duplicate
// labels and removes days left without services.
func (s Schedule) Normalize() (Schedule, error) {
	out := make(Schedule, len(s))
	for day, labels := range s {
		key := strings.ToLower(strings.TrimSpace(day))
		if !IsWeekday(key) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownWeekday, day)
		}
		for _, v := range labels {
			v = strings.TrimSpace(v)
			if v == "" || contains(out[key], v) {
				continue
			}
			out[key] = append(out[key], v)
		}
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (s Schedule) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Schedule) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil {
		return err
	}
	m := Schedule{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("scan schedule: %w", err)
		}
	}
	*s = m
	return nil
}

// Languages is the set of languages services are held in.  Stored as a
// JSON array, lower-cased and sorted.
type Languages []string

// Normalize lower-cases, trims, de-duplicates and sorts the set.
func (l Languages) Normalize() Languages {
	seen := map[string]bool{}
	out := Languages{}
	for _, v := range l {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Value implements driver.Valuer.
func (l Languages) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner.
func (l *Languages) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil {
		return err
	}
	out := Languages{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return fmt.Errorf("scan languages: %w", err)
		}
	}
	*l = out
	return nil
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("unsupported JSON column type %T", src)
}

// ChurchSummary is the list representation of a church.  DistanceKm is set
// only when the query carried a reference point.
type ChurchSummary struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Denomination string    `json:"denomination"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Schedule     Schedule  `json:"schedule"`
	Languages    Languages `json:"languages"`
	ImageURL     string    `json:"image_url,omitempty"`
	Verified     bool      `json:"verified"`
	DistanceKm   *float64  `json:"distance_km,omitempty"`
}
