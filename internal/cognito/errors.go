package cognito

import "errors"

// Sentinel errors for Cognito Identity operations.
var (
	ErrNotAuthorized    = errors.New("not authorized")
	ErrPoolNotFound     = errors.New("identity pool not found")
	ErrTooManyRequests  = errors.New("too many requests")
	ErrLimitExceeded    = errors.New("limit exceeded")
	ErrExternalService  = errors.New("external service failure")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorInfo maps a sentinel error to its HTTP status and error code.
type ErrorInfo struct {
	Status int
	Code   string
}

var errorMap = map[error]ErrorInfo{
	ErrNotAuthorized:    {Status: 401, Code: "NOT_AUTHORIZED"},
	ErrPoolNotFound:     {Status: 503, Code: "IDENTITY_POOL_UNAVAILABLE"},
	ErrTooManyRequests:  {Status: 429, Code: "TOO_MANY_REQUESTS"},
	ErrLimitExceeded:    {Status: 429, Code: "LIMIT_EXCEEDED"},
	ErrExternalService:  {Status: 502, Code: "EXTERNAL_SERVICE_ERROR"},
	ErrInvalidParameter: {Status: 500, Code: "INVALID_PARAMETER"},
}

// LookupError checks if the given error matches any known Cognito sentinel error
// and returns the corresponding ErrorInfo. Returns false if no match.
func LookupError(err error) (ErrorInfo, bool) {
	for sentinel, info := range errorMap {
		if errors.Is(err, sentinel) {
			return info, true
		}
	}
	return ErrorInfo{}, false
}
