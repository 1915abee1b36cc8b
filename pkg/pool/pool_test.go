package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGetHTTPClientReusesClient(t *testing.T) {
	p := NewConnectionPool(DefaultPoolConfig(), zap.NewNop())

	first := p.GetHTTPClient("google_jwks", 3*time.Second)
	second := p.GetHTTPClient("google_jwks", time.Minute)

	assert.Same(t, first, second)
	assert.Equal(t, 3*time.Second, first.Timeout)
	assert.Equal(t, 1, p.Stats()["http_clients"])
}

func TestGetHTTPClientDefaultTimeout(t *testing.T) {
	cfg := DefaultPoolConfig()
	p := NewConnectionPool(cfg, nil)

	client := p.GetHTTPClient("other", 0)
	assert.Equal(t, cfg.RequestTimeout, client.Timeout)

	p.Close()
}
