package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/churchfinder/internal/geo"
	"github.com/iliyamo/churchfinder/internal/utils"
)

// FieldError reports an invalid church field.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Msg }

// column widths of the churches table
var maxLen = map[string]int{
	"name": 255, "denomination": 120, "street": 255, "city": 120, "state": 64,
	"postal_code": 20, "phone": 40, "email": 255, "website": 255, "image_url": 512,
	"source_ref": 64,
}

// MaxDescriptionBytes is the capacity of the TEXT description column.
const MaxDescriptionBytes = 65535

// Normalize trims and validates every field in place.  Description is
// reduced to plain text.  The first problem found is returned as a
// *FieldError.
func (c *Church) Normalize() error {
	fields := []struct {
		name string
		v    *string
	}{
		{"name", &c.Name}, {"denomination", &c.Denomination}, {"street", &c.Street},
		{"city", &c.City}, {"state", &c.State}, {"postal_code", &c.PostalCode},
		{"phone", &c.Phone}, {"email", &c.Email}, {"website", &c.Website}, {"image_url", &c.ImageURL},
	}
	for _, f := range fields {
		*f.v = strings.TrimSpace(*f.v)
		if utf8.RuneCountInString(*f.v) > maxLen[f.name] {
			return &FieldError{f.name, fmt.Sprintf("at most %d characters", maxLen[f.name])}
		}
	}
	if c.Name == "" {
		return &FieldError{"name", "required"}
	}
	if c.Email != "" && !utils.IsValidEmail(c.Email) {
		return &FieldError{"email", "invalid address"}
	}

	c.Country = strings.ToUpper(strings.TrimSpace(c.Country))
	if c.Country == "" {
		c.Country = "US"
	}
	if len(c.Country) != 2 {
		return &FieldError{"country", "must be an ISO 3166 alpha-2 code"}
	}

	switch err := (geo.Point{Lat: c.Latitude, Lng: c.Longitude}).Validate(); {
	case errors.Is(err, geo.ErrLatitude):
		return &FieldError{"latitude", err.Error()}
	case errors.Is(err, geo.ErrLongitude):
		return &FieldError{"longitude", err.Error()}
	}

	if c.FoundedYear != nil && int(*c.FoundedYear) > time.Now().UTC().Year() {
		return &FieldError{"founded_year", "must not be in the future"}
	}

	c.Description = utils.PlainText(c.Description)
	if len(c.Description) > MaxDescriptionBytes {
		return &FieldError{"description", fmt.Sprintf("at most %d bytes", MaxDescriptionBytes)}
	}

	sched, err := c.Schedule.Normalize()
	if err != nil {
		return &FieldError{"schedule", err.Error()}
	}
	c.Schedule = sched
	c.Languages = c.Languages.Normalize()
	if c.SourceRef != nil {
		ref := strings.TrimSpace(*c.SourceRef)
		switch {
		case ref == "":
			c.SourceRef = nil
		case utf8.RuneCountInString(ref) > maxLen["source_ref"]:
			return &FieldError{"source_ref", fmt.Sprintf("at most %d characters", maxLen["source_ref"])}
		default:
			c.SourceRef = &ref
		}
	}
	return nil
}
