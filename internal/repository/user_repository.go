package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/game-rental-reservation/internal/database"
	"github.com/iliyamo/game-rental-reservation/internal/model"
	"github.com/iliyamo/game-rental-reservation/internal/utils"
)

type UserRepo struct{ db *database.DB }

func NewUserRepo(db *database.DB) *UserRepo { return &UserRepo{db: db} }

// NewUser is the input to Create. Password is plain text; it is hashed here.
type NewUser struct {
	Username string  // unique, stored trimmed
	Email    string  // unique, stored lower-cased
	Password string  // plain text; only the bcrypt hash is stored
	FullName *string // optional
	Phone    *string // optional
	Role     string  // model.RoleCustomer or model.RoleAdmin
}

const userCols = `id, username, email, password_hash, full_name, phone, role, is_active, created_at, updated_at`

// Create inserts user and returns its ID. A taken username or email yields
// ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u NewUser, cost int) (uint64, error) {
	// hash the password before touching the table
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return 0, err
	}
	now := model.NewTimestamp(time.Now())
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, full_name, phone, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		strings.TrimSpace(u.Username), normalizeEmail(u.Email), hash, u.FullName, u.Phone, u.Role, now, now)
	if err != nil {
		// map the driver's unique-key violation to the shared sentinel
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, `SELECT `+userCols+` FROM users WHERE email = ? LIMIT 1`, normalizeEmail(email))
}

// GetByLogin accepts either an email or a username.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return r.GetByEmail(ctx, login)
	}
	return r.getOne(ctx, `SELECT `+userCols+` FROM users WHERE username = ? LIMIT 1`, login)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, `SELECT `+userCols+` FROM users WHERE id = ? LIMIT 1`, id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (model.User, error) {
	var u model.User
	if err := r.db.GetContext(ctx, &u, q, arg); err != nil {
		return model.User{}, notFound(err)
	}
	return u, nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
