package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/churchfinder/internal/model"
)

// CheckInRepo records church visits.
type CheckInRepo struct {
	db *sql.DB
}

func NewCheckInRepo(db *sql.DB) *CheckInRepo { return &CheckInRepo{db: db} }

// Create records that userID visited churchID on visitedOn (date part only).
func (r *CheckInRepo) Create(ctx context.Context, userID, churchID uint64, visitedOn time.Time) (*model.CheckIn, error) {
	day := visitedOn.UTC().Format(model.DateLayout)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO check_ins (user_id, church_id, visited_on) VALUES (?, ?, ?)", userID, churchID, day)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrAlreadyCheckedIn
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
	ci := &model.CheckIn{ID: uint64(id), UserID: userID, ChurchID: churchID}
	if err := r.db.QueryRowContext(ctx,
		"SELECT visited_on, created_at FROM check_ins WHERE id = ?", ci.ID).Scan(&ci.VisitedOn, &ci.CreatedAt); err != nil {
		return nil, err
	}
	return ci, nil
}

// CountForChurch returns how many visits were recorded for the church.
func (r *CheckInRepo) CountForChurch(ctx context.Context, churchID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM check_ins WHERE church_id = ?", churchID).Scan(&n)
	return n, err
}

// ListByUser returns one page of the user's visits, most recent visit
// first, and the total count.
func (r *CheckInRepo) ListByUser(ctx context.Context, userID uint64, p Page) ([]model.CheckInEntry, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM check_ins WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT ci.id, ci.church_id, c.name, c.city, c.state,
			DATE_FORMAT(ci.visited_on, '%Y-%m-%d')
		FROM check_ins ci
		JOIN churches c ON c.id = ci.church_id
		WHERE ci.user_id = ?
		ORDER BY ci.visited_on DESC, ci.id DESC
		LIMIT ? OFFSET ?`, userID, p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.CheckInEntry, 0, p.Limit())
	for rows.Next() {
		var e model.CheckInEntry
		if err := rows.Scan(&e.ID, &e.ChurchID, &e.ChurchName, &e.City, &e.State, &e.VisitedOn); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
