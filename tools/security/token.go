package security

import (
	"net/http"
	"strings"
)

const (
	HeaderToken = "authorization"
	QueryToken  = "token"
)

// TokenFromRequest reads the bearer credential from the Authorization
// header, and from the "token" query parameter when allowQuery is set
// (browsers cannot add headers to a WebSocket handshake).
func TokenFromRequest(r *http.Request, allowQuery bool) string {
	if authz := strings.TrimSpace(r.Header.Get(HeaderToken)); authz != "" {
		// 兼容 Authorization: Bearer xxx
		if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
			return strings.TrimSpace(authz[7:])
		}
		return authz
	}
	if allowQuery {
		return strings.TrimSpace(r.URL.Query().Get(QueryToken))
	}
	return ""
}
