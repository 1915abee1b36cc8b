package constants

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// Context Keys for request tracking and metadata
const (
	CtxKeyRequestID ContextKey = "request_id"
	CtxKeyAccountID ContextKey = "account_id"
	CtxKeyPersonas  ContextKey = "personas"
	CtxKeyClientIP  ContextKey = "client_ip"
	CtxKeyUserAgent ContextKey = "user_agent"
	CtxKeyStartTime ContextKey = "start_time"
	CtxKeyModule    ContextKey = "module"
	CtxKeyFunction  ContextKey = "function"
)

// Gin context keys set by middleware.
const (
	GinKeyRequestID = "request_id"
	GinKeyAccountID = "account_id"
	GinKeyPersonas  = "personas"
)

// GinKeyBody holds the request body bound by the validation middleware.
const GinKeyBody = "validated_body"
