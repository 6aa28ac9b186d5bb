package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/secure-auth-service/internal/model"
	"github.com/iliyamo/secure-auth-service/internal/token"
	"github.com/iliyamo/secure-auth-service/internal/utils"
)

const userColumns = "id,name,login,password_hash,role,permissions,enabled,created_at,updated_at"

// UserRepo persists account records. Token verification never goes through
// here; only the login, registration and profile-management flows do.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password and inserts the user, assigning a fresh UUID.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Login = strings.ToLower(strings.TrimSpace(u.Login))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	u.ID = uuid.New()
	u.PasswordHash = hash
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, name, login, password_hash, role, permissions, enabled) VALUES (?,?,?,?,?,?,?)",
		u.ID.String(), u.Name, u.Login, u.PasswordHash, string(u.Role), joinPermissions(u.Permissions), u.Enabled)
	if err != nil {
		// 1062 = MySQL duplicate entry, unique index on login
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrLoginExists
		}
		return err
	}
	return nil
}

// GetByLogin fetches a user by normalized login.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE login=? LIMIT 1", login))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id.String()))
}

// Update replaces name, role and permission set. Login and password are
// changed through their dedicated operations only.
func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, name string, role token.Role, perms []token.Permission) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, role=?, permissions=? WHERE id=?",
		name, string(role), joinPermissions(perms), id.String())
	return rowsAffectedErr(res, err)
}

// UpdatePassword stores a new bcrypt hash for the user.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, id.String())
	return rowsAffectedErr(res, err)
}

// SetEnabled toggles the account's enabled flag.
func (r *UserRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET enabled=? WHERE id=?", enabled, id.String())
	return rowsAffectedErr(res, err)
}

// Delete removes the account record.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id.String())
	return rowsAffectedErr(res, err)
}

// SearchFilter narrows and pages a user listing. Zero values mean "no
// filter". Page is zero-based.
type SearchFilter struct {
	Name      string
	Login     string
	Role      token.Role
	Page      int
	Size      int
	Sort      string // name | login | created_at
	Ascending bool
}

// Search lists users matching the filter with pagination, plus the total
// match count for page math.
func (r *UserRepo) Search(ctx context.Context, f SearchFilter) ([]model.User, int, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if f.Name != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+f.Name+"%")
	}
	if f.Login != "" {
		where = append(where, "login LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Login)+"%")
	}
	if f.Role != "" {
		where = append(where, "role=?")
		args = append(args, string(f.Role))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Sort column is whitelisted; it never comes from the query verbatim.
	sortCol := "name"
	switch f.Sort {
	case "login", "created_at":
		sortCol = f.Sort
	}
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	size := f.Size
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := f.Page * size

	query := fmt.Sprintf("SELECT %s FROM users%s ORDER BY %s %s LIMIT ? OFFSET ?",
		userColumns, cond, sortCol, dir)
	rows, err := r.DB.QueryContext(ctx, query, append(args, size, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u       model.User
		id      string
		role    string
		permCSV string
	)
	err := row.Scan(&id, &u.Name, &u.Login, &u.PasswordHash, &role, &permCSV,
		&u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.ID, err = uuid.Parse(id)
	if err != nil {
		return model.User{}, fmt.Errorf("malformed user id %q: %w", id, err)
	}
	u.Role, err = token.ParseRole(role)
	if err != nil {
		return model.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	u.Permissions, err = splitPermissions(permCSV)
	if err != nil {
		return model.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

func joinPermissions(perms []token.Permission) string {
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func splitPermissions(csv string) ([]token.Permission, error) {
	if csv == "" {
		return nil, nil
	}
	return token.ParsePermissions(strings.Split(csv, ","))
}

func rowsAffectedErr(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
