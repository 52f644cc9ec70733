package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/churchfinder/internal/model"
)

// FavoriteRepo stores the churches users saved.
type FavoriteRepo struct {
	db *sql.DB
}

func NewFavoriteRepo(db *sql.DB) *FavoriteRepo { return &FavoriteRepo{db: db} }

// Add saves churchID for userID.  The unique (user_id, church_id) index
// turns a second save into ErrAlreadyFavorited; an unknown church fails the
// foreign key and yields ErrChurchNotFound, an unknown user ErrUserNotFound.
func (r *FavoriteRepo) Add(ctx context.Context, userID, churchID uint64) (*model.Favorite, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO favorites (user_id, church_id) VALUES (?, ?)", userID, churchID)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrAlreadyFavorited
		}
		if perr := missingParent(err); perr != nil {
			return nil, perr
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	f := &model.Favorite{ID: uint64(id), UserID: userID, ChurchID: churchID}
	if err := r.db.QueryRowContext(ctx,
		"SELECT created_at FROM favorites WHERE id = ?", f.ID).Scan(&f.CreatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

// Remove deletes the favorite.  ErrNotFound is returned when the pair was
// not saved.
func (r *FavoriteRepo) Remove(ctx context.Context, userID, churchID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = ? AND church_id = ?", userID, churchID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns one page of the user's favorites, newest first, and
// the total count.
func (r *FavoriteRepo) ListByUser(ctx context.Context, userID uint64, p Page) ([]model.FavoriteChurch, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM favorites WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT c.id, c.name, c.denomination, c.city, c.state,
			c.latitude, c.longitude, c.schedule, c.languages, c.image_url, c.verified, f.created_at
		FROM favorites f
		JOIN churches c ON c.id = f.church_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT ? OFFSET ?`, userID, p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.FavoriteChurch, 0, p.Limit())
	for rows.Next() {
		var fc model.FavoriteChurch
		c := &fc.Church
		if err := rows.Scan(&c.ID, &c.Name, &c.Denomination, &c.City, &c.State,
			&c.Latitude, &c.Longitude, &c.Schedule, &c.Languages, &c.ImageURL, &c.Verified,
			&fc.SavedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
