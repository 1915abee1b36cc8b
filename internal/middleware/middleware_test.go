package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Payphone-Digital/identity/internal/constants"
	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/Payphone-Digital/identity/internal/service"
	"github.com/Payphone-Digital/identity/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	token     string
	principal *service.Principal
	err       error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (*service.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token != s.token {
		return nil, domainErrors.ErrUnauthorized
	}
	return s.principal, nil
}

func protectedEngine(auth Authenticator) *gin.Engine {
	r := gin.New()
	r.GET("/me", RequireAuth(auth), func(c *gin.Context) {
		id, ok := AccountID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":      id.String(),
			"isAdmin": Personas(c).Has(model.PersonaAdmin),
		})
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	id := uuid.New()
	auth := &stubAuthenticator{
		token:     "good",
		principal: &service.Principal{AccountID: id, Personas: model.NewPersonaSet(model.PersonaAdmin)},
	}
	r := protectedEngine(auth)

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"cookie", func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: constants.CookieAccessToken, Value: "good"})
		}, http.StatusOK},
		{"bearer", func(req *http.Request) {
			req.Header.Set(constants.HeaderAuthorization, "Bearer good")
		}, http.StatusOK},
		{"lowercase scheme", func(req *http.Request) {
			req.Header.Set(constants.HeaderAuthorization, "bearer good")
		}, http.StatusOK},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong token", func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: constants.CookieAccessToken, Value: "bad"})
		}, http.StatusUnauthorized},
		{"basic scheme", func(req *http.Request) {
			req.Header.Set(constants.HeaderAuthorization, "Basic good")
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, id.String(), body["id"])
				assert.Equal(t, true, body["isAdmin"])
			}
		})
	}
}

func TestRequireAuthDisabledAccount(t *testing.T) {
	r := protectedEngine(&stubAuthenticator{err: domainErrors.ErrAccountDisabled})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(constants.HeaderAuthorization, "Bearer any")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), domainErrors.CodeAccountDisabled)
}

type signup struct {
	Email string `json:"email" binding:"required,email"`
}

func TestValidateJSON(t *testing.T) {
	r := gin.New()
	r.POST("/signup", ValidateJSON[signup](), func(c *gin.Context) {
		c.String(http.StatusOK, Body[signup](c).Email)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"a@x.com"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"nope"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domainErrors.CodeValidation, body[constants.ResponseFieldCode])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/ping", RateLimit(ratelimit.NewMemoryLimiter(2, time.Minute), ClientIPKey), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get(constants.HeaderRateLimitLimit))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(constants.HeaderRetryAfter))
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := gin.New()
	r.GET("/ping", RateLimit(brokenLimiter{}, ClientIPKey), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContextMiddlewareRequestID(t *testing.T) {
	r := gin.New()
	r.Use(ContextMiddleware("http"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(constants.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(constants.HeaderXRequestID))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	_, err := uuid.Parse(rec.Header().Get(constants.HeaderXRequestID))
	assert.NoError(t, err)
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), domainErrors.CodeInternal)
}
