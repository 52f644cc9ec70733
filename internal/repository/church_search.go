package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/churchfinder/internal/geo"
	"github.com/iliyamo/churchfinder/internal/model"
)

// ChurchQuery defines filters & pagination for listing churches.  When
// Point is set, results are restricted to RadiusKm around it and ordered by
// distance; otherwise they are ordered by name.  Both orders end with id so
// consecutive pages never overlap.
type ChurchQuery struct {
	Point        *geo.Point
	RadiusKm     float64
	State        string
	City         string
	Denomination string
	Language     string
	Day          string // lower-case weekday that must have a service
	Verified     *bool
	Terms        []string // every term must match name, denomination, city or description
	Page         Page
}

// distanceExpr yields metres between the stored location and a bound point.
const distanceExpr = "ST_Distance_Sphere(location, " + pointExpr + ")"

// SearchTerms splits free text into lower-case search terms.
func SearchTerms(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// escapeLike escapes the LIKE wildcards so terms match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// where renders the WHERE condition and its arguments.
func (q ChurchQuery) where() (string, []any) {
	where := []string{}
	args := []any{}

	if q.Point != nil {
		box := geo.BoundingBox(*q.Point, q.RadiusKm)
		where = append(where, "latitude BETWEEN ? AND ?", "longitude BETWEEN ? AND ?",
			distanceExpr+" <= ?")
		args = append(args, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
			q.Point.Lat, q.Point.Lng, q.RadiusKm*1000)
	}
	if q.State != "" {
		where = append(where, "LOWER(state) = ?")
		args = append(args, strings.ToLower(q.State))
	}
	if q.City != "" {
		where = append(where, "LOWER(city) = ?")
		args = append(args, strings.ToLower(q.City))
	}
	if q.Denomination != "" {
		where = append(where, "LOWER(denomination) = ?")
		args = append(args, strings.ToLower(q.Denomination))
	}
	if q.Language != "" {
		where = append(where, "JSON_CONTAINS(languages, JSON_QUOTE(?))")
		args = append(args, strings.ToLower(q.Language))
	}
	if q.Day != "" && model.IsWeekday(q.Day) {
		// the path is built from a validated weekday, never from raw input
		where = append(where, "JSON_CONTAINS_PATH(schedule, 'one', '$."+strings.ToLower(q.Day)+"')")
	}
	if q.Verified != nil {
		where = append(where, "verified = ?")
		args = append(args, *q.Verified)
	}
	for _, t := range q.Terms {
		like := "%" + escapeLike(t) + "%"
		where = append(where,
			"(LOWER(name) LIKE ? OR LOWER(denomination) LIKE ? OR LOWER(city) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, like, like, like, like)
	}

	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

// List returns one page of churches matching q plus the total number of
// matches.
func (r *ChurchRepo) List(ctx context.Context, q ChurchQuery) ([]model.ChurchSummary, int64, error) {
	cond, args := q.where()

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM churches WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.summaries(ctx, q, cond, args)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Nearby returns up to limit churches within radiusKm of p, nearest first.
func (r *ChurchRepo) Nearby(ctx context.Context, p geo.Point, radiusKm float64, limit int) ([]model.ChurchSummary, error) {
	q := ChurchQuery{Point: &p, RadiusKm: radiusKm, Page: Page{Number: 1, Size: limit}}
	cond, args := q.where()
	return r.summaries(ctx, q, cond, args)
}

func (r *ChurchRepo) summaries(ctx context.Context, q ChurchQuery, cond string, args []any) ([]model.ChurchSummary, error) {
	selectArgs := []any{}
	distance := "NULL"
	order := "name ASC, id ASC"
	if q.Point != nil {
		distance = distanceExpr + " / 1000"
		selectArgs = append(selectArgs, q.Point.Lat, q.Point.Lng)
		order = "distance_km ASC, id ASC"
	}

	dataSQL := `SELECT id, name, denomination, city, state, latitude, longitude,
			schedule, languages, image_url, verified, ` + distance + ` AS distance_km
		FROM churches
		WHERE ` + cond + `
		ORDER BY ` + order + `
		LIMIT ? OFFSET ?`

	argsData := append(append(selectArgs, args...), q.Page.Limit(), q.Page.Offset())

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.ChurchSummary, 0, q.Page.Limit())
	for rows.Next() {
		var (
			d    model.ChurchSummary
			dist *float64
		)
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Denomination,
			&d.City,
			&d.State,
			&d.Latitude,
			&d.Longitude,
			&d.Schedule,
			&d.Languages,
			&d.ImageURL,
			&d.Verified,
			&dist,
		); err != nil {
			return nil, err
		}
		d.DistanceKm = dist
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
