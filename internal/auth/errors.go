package auth

import "errors"

var (
	// ErrTokenMalformed indicates the credential failed structural or
	// signature validation.
	ErrTokenMalformed = errors.New("auth: malformed credential")
	// ErrTokenExpired indicates the credential is past its expiry.
	ErrTokenExpired = errors.New("auth: expired credential")
	// ErrForbidden indicates the authenticated principal lacks the role or
	// department scope for the operation.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvalidInput indicates a caller-supplied value failed validation.
	ErrInvalidInput = errors.New("auth: invalid input")
)
