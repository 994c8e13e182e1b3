package middlewares

// gin context keys
const (
	CtxRequestID   = "request_id"
	ctxIdentityKey = "auth.identity"
)

// SessionCookie carries the signed session token.
const SessionCookie = "token"
