// Package repository implements MySQL persistence for account records.
// Sentinel errors let handlers distinguish failure scenarios without
// inspecting driver-specific error strings at the call site.
package repository

import "errors"

// ErrLoginExists is returned when registration hits the unique login
// constraint. Handlers translate it into an HTTP 409 response.
var ErrLoginExists = errors.New("login already exists")

// ErrNotFound is returned when an account lookup by id or login matches no
// row. Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("user not found")
