package errs

import "net/http"

// Error codes. 1xxx are caller mistakes, 5xxx are server/store trouble.
const (
	ValidationError     = 1001 // malformed or missing input
	RecordNotFoundError = 1002 // entity absent or not visible to the caller
	AuthorizationError  = 1003 // caller is not a participant/owner
	TokenError          = 1004 // missing/expired/invalid token
	ConflictError       = 1005 // concurrent modification, retryable

	ServerInternalError = 5000 // unexpected, logged with stack
	StoreError          = 5001 // durable or fast store unavailable, retryable
	InvariantError      = 5002 // data that transactions should make impossible
)

var (
	ErrValidation     = NewCodeError(ValidationError, "invalid argument")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")
	ErrNoPermission   = NewCodeError(AuthorizationError, "no permission")
	ErrToken          = NewCodeError(TokenError, "token invalid or expired")
	ErrConflict       = NewCodeError(ConflictError, "conflict, retry")

	ErrInternal  = NewCodeError(ServerInternalError, "server internal error")
	ErrStore     = NewCodeError(StoreError, "store unavailable")
	ErrInvariant = NewCodeError(InvariantError, "invariant violation")
)

// HTTPStatus maps an error chain to the HTTP status handlers respond with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case ValidationError:
		return http.StatusBadRequest
	case RecordNotFoundError:
		return http.StatusNotFound
	case AuthorizationError:
		return http.StatusForbidden
	case TokenError:
		return http.StatusUnauthorized
	case ConflictError:
		return http.StatusConflict
	case StoreError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
