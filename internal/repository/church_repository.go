package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/churchfinder/internal/model"
)

// ChurchRepo encapsulates all database queries related to churches.
type ChurchRepo struct {
	db *sql.DB
}

// NewChurchRepo constructs a ChurchRepo with the provided DB handle.
func NewChurchRepo(db *sql.DB) *ChurchRepo {
	return &ChurchRepo{db: db}
}

const churchColumns = `id, source_ref, name, denomination, street, city, state, postal_code, country,
	latitude, longitude, phone, email, website, description, founded_year, average_attendance,
	schedule, languages, image_url, verified, created_at, updated_at`

// pointExpr builds the SRID 4326 point for the location column.  MySQL
// takes geographic coordinates latitude first for this SRID.
const pointExpr = "ST_SRID(POINT(?, ?), 4326)"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChurch(row rowScanner) (*model.Church, error) {
	var (
		c          model.Church
		sourceRef  sql.NullString
		founded    sql.NullInt32
		attendance sql.NullInt64
	)
	err := row.Scan(&c.ID, &sourceRef, &c.Name, &c.Denomination, &c.Street, &c.City, &c.State,
		&c.PostalCode, &c.Country, &c.Latitude, &c.Longitude, &c.Phone, &c.Email, &c.Website,
		&c.Description, &founded, &attendance, &c.Schedule, &c.Languages, &c.ImageURL,
		&c.Verified, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sourceRef.Valid {
		s := sourceRef.String
		c.SourceRef = &s
	}
	if founded.Valid {
		y := uint16(founded.Int32)
		c.FoundedYear = &y
	}
	if attendance.Valid {
		a := uint32(attendance.Int64)
		c.AverageAttendance = &a
	}
	return &c, nil
}

// editableArgs returns the values of every column an admin may set, in the
// order used by the INSERT and UPDATE statements below.
func editableArgs(c *model.Church) []any {
	return []any{
		c.Name, c.Denomination, c.Street, c.City, c.State, c.PostalCode, c.Country,
		c.Latitude, c.Longitude, c.Latitude, c.Longitude,
		c.Phone, c.Email, c.Website, c.Description, c.FoundedYear, c.AverageAttendance,
		c.Schedule, c.Languages, c.ImageURL,
	}
}

const editableSet = `name = ?, denomination = ?, street = ?, city = ?, state = ?, postal_code = ?, country = ?,
	latitude = ?, longitude = ?, location = ` + pointExpr + `,
	phone = ?, email = ?, website = ?, description = ?, founded_year = ?, average_attendance = ?,
	schedule = ?, languages = ?, image_url = ?`

// Create inserts a new church.  On success c is reloaded so that ID and
// the timestamp columns are populated.
func (r *ChurchRepo) Create(ctx context.Context, c *model.Church) error {
	q := "INSERT INTO churches SET source_ref = ?, verified = ?, " + editableSet
	args := append([]any{c.SourceRef, c.Verified}, editableArgs(c)...)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isDuplicate(err) {
			return ErrSourceRefExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return r.reload(ctx, uint64(id), c)
}

// GetByID fetches a church by its ID.  It returns ErrChurchNotFound if no
// row matches.
func (r *ChurchRepo) GetByID(ctx context.Context, id uint64) (*model.Church, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+churchColumns+" FROM churches WHERE id = ?", id)
	c, err := scanChurch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChurchNotFound
		}
		return nil, err
	}
	return c, nil
}

// Exists reports whether a church with the given id is stored.
func (r *ChurchRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM churches WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Update replaces the editable fields of the church identified by c.ID and
// reloads c.  Verified and SourceRef are left untouched.
func (r *ChurchRepo) Update(ctx context.Context, c *model.Church) error {
	q := "UPDATE churches SET " + editableSet + " WHERE id = ?"
	args := append(editableArgs(c), c.ID)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChurchNotFound
	}
	return r.reload(ctx, c.ID, c)
}

// SetVerified sets the verified flag.
func (r *ChurchRepo) SetVerified(ctx context.Context, id uint64, verified bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE churches SET verified = ? WHERE id = ?", verified, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChurchNotFound
	}
	return nil
}

// UpsertBySourceRef inserts c or, when a row with the same source_ref
// exists, overwrites its editable fields.  c.SourceRef must be set.  The id
// of the affected row is returned.
func (r *ChurchRepo) UpsertBySourceRef(ctx context.Context, c *model.Church) (uint64, error) {
	if c.SourceRef == nil || *c.SourceRef == "" {
		return 0, errors.New("upsert: source_ref required")
	}
	// LAST_INSERT_ID(id) makes LastInsertId report the existing row on update.
	q := "INSERT INTO churches SET source_ref = ?, " + editableSet +
		" ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), " + editableSet
	args := []any{c.SourceRef}
	args = append(args, editableArgs(c)...)
	args = append(args, editableArgs(c)...)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListAfter returns up to limit churches with id > afterID in id order.
// Callers page through the whole table by passing the last id seen.
func (r *ChurchRepo) ListAfter(ctx context.Context, afterID uint64, limit int) ([]model.Church, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+churchColumns+" FROM churches WHERE id > ? ORDER BY id LIMIT ?", afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Church, 0, limit)
	for rows.Next() {
		c, err := scanChurch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ChurchRepo) reload(ctx context.Context, id uint64, c *model.Church) error {
	fresh, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*c = *fresh
	return nil
}
