package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/churchfinder/internal/model"
)

// ClaimRepo stores requests to manage a church listing.
type ClaimRepo struct {
	db *sql.DB
}

func NewClaimRepo(db *sql.DB) *ClaimRepo { return &ClaimRepo{db: db} }

// Create records a pending claim and fills in ID, Status and CreatedAt.
// The generated pending_key column allows one pending claim per user and
// church; a second one yields ErrClaimPending.
func (r *ClaimRepo) Create(ctx context.Context, cl *model.ChurchClaim) error {
	cl.Status = model.ClaimPending
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO church_claims (church_id, user_id, contact_name, contact_role, message, status) VALUES (?, ?, ?, ?, ?, ?)",
		cl.ChurchID, cl.UserID, cl.ContactName, cl.ContactRole, cl.Message, cl.Status)
	if err != nil {
		if isDuplicate(err) {
			return ErrClaimPending
		}
		if perr := missingParent(err); perr != nil {
			return perr
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	cl.ID = uint64(id)
	return r.db.QueryRowContext(ctx,
		"SELECT created_at FROM church_claims WHERE id = ?", cl.ID).Scan(&cl.CreatedAt)
}
