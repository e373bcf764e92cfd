package errs

import "net/http"

// 错误码与 HTTP 状态码一一对应，便于 handler 直接回写
const (
	ArgsError           = 400
	UnauthenticatedErr  = 401
	NoPermissionError   = 403
	RecordNotFoundError = 404
	ConflictError       = 409
	ServerInternalError = 500
	UpstreamError       = 502
)

var (
	ErrArgs            = NewCodeError(ArgsError, "ArgsError")
	ErrUnauthenticated = NewCodeError(UnauthenticatedErr, "Unauthenticated")
	ErrNoPermission    = NewCodeError(NoPermissionError, "NoPermissionError")
	ErrRecordNotFound  = NewCodeError(RecordNotFoundError, "RecordNotFoundError")
	ErrConflict        = NewCodeError(ConflictError, "ConflictError")
	ErrInternalServer  = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrUpstream        = NewCodeError(UpstreamError, "UpstreamError")

	ErrTokenExpired = NewCodeError(UnauthenticatedErr, "token missing or expired")
)

// HTTPStatus maps an error chain to the status code a handler should answer with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	ce, ok := AsCode(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if ce.Code >= 400 && ce.Code < 600 {
		return ce.Code
	}
	return http.StatusInternalServerError
}

// PublicMessage is what clients get to see. Internal failures are collapsed
// into a generic message so driver errors never leak.
func PublicMessage(err error) string {
	ce, ok := AsCode(err)
	if !ok || ce.Code >= 500 {
		return "internal server error"
	}
	if ce.Detail != "" {
		return ce.Detail
	}
	return ce.Msg
}
