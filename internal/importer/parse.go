// Package importer loads church listings from delimited text files.
package importer

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iliyamo/churchfinder/internal/model"
)

// aliases maps accepted header names to the canonical column.
var aliases = map[string]string{
	"source_ref": "source_ref", "id": "source_ref", "external_id": "source_ref",
	"name": "name",
	"denomination": "denomination",
	"street": "street", "address": "street",
	"city": "city",
	"state": "state",
	"postal_code": "postal_code", "zip": "postal_code", "zipcode": "postal_code",
	"country": "country",
	"latitude": "latitude", "lat": "latitude",
	"longitude": "longitude", "lng": "longitude", "lon": "longitude",
	"phone": "phone",
	"email": "email",
	"website": "website", "url": "website",
	"description": "description",
	"founded_year": "founded_year", "founded": "founded_year",
	"average_attendance": "average_attendance", "attendance": "average_attendance",
	"schedule": "schedule",
	"languages": "languages",
	"image_url": "image_url",
}

// RowError is a data row that could not be imported.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Reason) }

// Reader yields churches from a delimited file with a header row.  The
// delimiter is a tab when the header contains one, a comma otherwise.
type Reader struct {
	r    *csv.Reader
	cols map[string]int
	line int
}

// NewReader reads the header and prepares column lookup.  The header must
// name at least source_ref, name, latitude and longitude.
func NewReader(in io.Reader) (*Reader, error) {
	br := bufio.NewReader(in)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	first, _, _ := strings.Cut(string(head), "\n")

	r := csv.NewReader(br)
	if strings.Contains(first, "\t") {
		r.Comma = '\t'
		r.LazyQuotes = true
	}
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		if canon, ok := aliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[canon]; !dup {
				cols[canon] = i
			}
		}
	}
	for _, need := range []string{"source_ref", "name", "latitude", "longitude"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("header: missing column %q", need)
		}
	}
	return &Reader{r: r, cols: cols, line: 1}, nil
}

// Next returns the next church.  A malformed row yields a RowError and
// reading may continue; io.EOF marks the end of input.
func (r *Reader) Next() (*model.Church, error) {
	for {
		rec, err := r.r.Read()
		r.line++
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, RowError{Line: r.line, Reason: pe.Err.Error()}
			}
			return nil, err
		}
		if blank(rec) {
			continue
		}
		c, err := r.church(rec)
		if err != nil {
			return nil, RowError{Line: r.line, Reason: err.Error()}
		}
		return c, nil
	}
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (r *Reader) get(rec []string, col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// church converts one record and normalizes it.
func (r *Reader) church(rec []string) (*model.Church, error) {
	ref := r.get(rec, "source_ref")
	if ref == "" {
		return nil, errors.New("source_ref is required")
	}
	lat, err := strconv.ParseFloat(r.get(rec, "latitude"), 64)
	if err != nil {
		return nil, errors.New("latitude: not a number")
	}
	lng, err := strconv.ParseFloat(r.get(rec, "longitude"), 64)
	if err != nil {
		return nil, errors.New("longitude: not a number")
	}

	c := &model.Church{
		SourceRef:    &ref,
		Name:         r.get(rec, "name"),
		Denomination: r.get(rec, "denomination"),
		Street:       r.get(rec, "street"),
		City:         r.get(rec, "city"),
		State:        r.get(rec, "state"),
		PostalCode:   r.get(rec, "postal_code"),
		Country:      r.get(rec, "country"),
		Latitude:     lat,
		Longitude:    lng,
		Phone:        r.get(rec, "phone"),
		Email:        r.get(rec, "email"),
		Website:      r.get(rec, "website"),
		Description:  r.get(rec, "description"),
		ImageURL:     r.get(rec, "image_url"),
		Languages:    ParseLanguages(r.get(rec, "languages")),
	}
	if s := r.get(rec, "founded_year"); s != "" {
		y, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, errors.New("founded_year: not a year")
		}
		v := uint16(y)
		c.FoundedYear = &v
	}
	if s := r.get(rec, "average_attendance"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, errors.New("average_attendance: not a count")
		}
		v := uint32(n)
		c.AverageAttendance = &v
	}
	if c.Schedule, err = ParseSchedule(r.get(rec, "schedule")); err != nil {
		return nil, err
	}
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseSchedule accepts either a JSON object or the compact form
// "sunday=9:00 AM|11:00 AM; wednesday=7:00 PM".
func ParseSchedule(s string) (model.Schedule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "{") {
		var out model.Schedule
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, errors.New("schedule: invalid JSON")
		}
		return out, nil
	}
	out := model.Schedule{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, times, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("schedule: %q lacks day=times", part)
		}
		day = strings.TrimSpace(day)
		out[day] = append(out[day], strings.Split(times, "|")...)
	}
	return out, nil
}

// ParseLanguages splits on semicolons or pipes.
func ParseLanguages(s string) model.Languages {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	return model.Languages(parts)
}
