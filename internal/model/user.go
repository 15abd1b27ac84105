package model

// Roles carried in the access token's "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table. PasswordHash never leaves the server.
type User struct {
	ID           uint64    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     *string   `db:"full_name" json:"full_name"`
	Phone        *string   `db:"phone" json:"phone"`
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    Timestamp `db:"created_at" json:"created_at"`
	UpdatedAt    Timestamp `db:"updated_at" json:"updated_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt Timestamp  `db:"expires_at"`
	RevokedAt *Timestamp `db:"revoked_at"`
	CreatedAt Timestamp  `db:"created_at"`
}
