package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/secure-auth-service/internal/token"
)

// User represents an account record as stored in the `users` table. It is
// only read by the registration and profile-management flows; token
// verification reconstructs principals purely from claims and never touches
// this record.
//
// Fields:
//
//	ID           – UUID primary key.
//	Name         – display name, embedded into identity tokens.
//	Login        – unique email address, the token subject.
//	PasswordHash – bcrypt hash; the plain password is never stored.
//	Role         – single-valued role (ADMIN, MODERATOR, USER).
//	Permissions  – fine-grained permission set, stored comma-joined.
//	Enabled      – disabled accounts cannot log in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uuid.UUID
	Name         string
	Login        string
	PasswordHash string
	Role         token.Role
	Permissions  []token.Permission
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal builds the token-facing identity for this account. Called at
// login time; afterwards the principal travels only inside signed claims.
func (u *User) Principal() *token.Principal {
	perms := make([]token.Permission, len(u.Permissions))
	copy(perms, u.Permissions)
	return &token.Principal{
		ID:          u.ID,
		Login:       u.Login,
		Name:        u.Name,
		Role:        u.Role,
		Permissions: perms,
	}
}
