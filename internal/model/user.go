package model

import "time"

// Role names carried in the users.role column and the JWT role claim.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  HomeLatitude and HomeLongitude are either both set or
// both nil.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Email         – unique, lower-cased email address.
//  PasswordHash  – bcrypt hashed password.
//  DisplayName   – name shown next to favorites and check-ins.
//  HomeLatitude  – optional home location used as the default search point.
//  HomeLongitude – see HomeLatitude.
//  Role          – USER or ADMIN.
//  IsActive      – whether the account may log in.
type User struct {
	ID            uint64    // users.id
	Email         string    // users.email
	PasswordHash  string    // users.password_hash
	DisplayName   string    // users.display_name
	HomeLatitude  *float64  // users.home_latitude (nullable)
	HomeLongitude *float64  // users.home_longitude (nullable)
	Role          string    // users.role
	IsActive      bool      // users.is_active
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
