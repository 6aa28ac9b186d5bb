package auth

import "errors"

// Guard errors. The transport layer translates these uniformly: no principal
// maps to 401, an authenticated principal with insufficient role or
// permission maps to 403. Raw token-verification errors never surface here;
// they are swallowed into an anonymous result during authentication.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)
