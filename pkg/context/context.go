package ctxutil

import (
	"context"
	"net/http"
	"time"

	"github.com/Payphone-Digital/identity/internal/constants"
	"github.com/google/uuid"
)

// Re-export ContextKey type
type ContextKey = constants.ContextKey

// Re-export context keys
const (
	RequestIDKey = constants.CtxKeyRequestID
	AccountIDKey = constants.CtxKeyAccountID
	PersonasKey  = constants.CtxKeyPersonas
	ClientIPKey  = constants.CtxKeyClientIP
	UserAgentKey = constants.CtxKeyUserAgent
	StartTimeKey = constants.CtxKeyStartTime
	ModuleKey    = constants.CtxKeyModule
	FunctionKey  = constants.CtxKeyFunction
)

// WithAccountID adds the authenticated account ID to context
func WithAccountID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, AccountIDKey, id)
}

// WithRequestMeta stores request id, client ip and user agent.
func WithRequestMeta(ctx context.Context, requestID, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	ctx = context.WithValue(ctx, ClientIPKey, clientIP)
	return context.WithValue(ctx, UserAgentKey, userAgent)
}

// WithFunction tags ctx for the context logger.
func WithFunction(ctx context.Context, module, function string) context.Context {
	ctx = context.WithValue(ctx, ModuleKey, module)
	return context.WithValue(ctx, FunctionKey, function)
}

// Detach returns a context that keeps ctx's values but not its deadline or
// cancellation.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Getter functions
func GetRequestID(ctx context.Context) string {
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		return val
	}
	return ""
}

func GetClientIP(ctx context.Context) string {
	if val, ok := ctx.Value(ClientIPKey).(string); ok {
		return val
	}
	return ""
}

func GetUserAgent(ctx context.Context) string {
	if val, ok := ctx.Value(UserAgentKey).(string); ok {
		return val
	}
	return ""
}

func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	if val, ok := ctx.Value(AccountIDKey).(uuid.UUID); ok {
		return val, true
	}
	return uuid.Nil, false
}

func GetStartTime(ctx context.Context) time.Time {
	if val, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return val
	}
	return time.Time{}
}

func GetModule(ctx context.Context) string {
	if val, ok := ctx.Value(ModuleKey).(string); ok {
		return val
	}
	return ""
}

func GetFunction(ctx context.Context) string {
	if val, ok := ctx.Value(FunctionKey).(string); ok {
		return val
	}
	return ""
}

// GetDuration calculates duration from start time
func GetDuration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	if !startTime.IsZero() {
		return time.Since(startTime)
	}
	return 0
}

// NewContextWithRequest creates context with HTTP request information
func NewContextWithRequest(ctx context.Context, req *http.Request, module, function string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx = WithFunction(ctx, module, function)

	if req != nil && GetUserAgent(ctx) == "" {
		ctx = context.WithValue(ctx, UserAgentKey, req.UserAgent())
	}

	// Set start time if not already set
	if GetStartTime(ctx).IsZero() {
		ctx = context.WithValue(ctx, StartTimeKey, time.Now())
	}

	return ctx
}

// ContextToMap converts context to map for logging
func ContextToMap(ctx context.Context) map[string]interface{} {
	result := make(map[string]interface{})

	if requestID := GetRequestID(ctx); requestID != "" {
		result["request_id"] = requestID
	}
	if clientIP := GetClientIP(ctx); clientIP != "" {
		result["client_ip"] = clientIP
	}
	if userAgent := GetUserAgent(ctx); userAgent != "" {
		result["user_agent"] = userAgent
	}
	if module := GetModule(ctx); module != "" {
		result["module"] = module
	}
	if function := GetFunction(ctx); function != "" {
		result["function"] = function
	}
	if accountID, ok := GetAccountID(ctx); ok {
		result["account_id"] = accountID.String()
	}
	if duration := GetDuration(ctx); duration > 0 {
		result["duration"] = duration
	}

	return result
}
