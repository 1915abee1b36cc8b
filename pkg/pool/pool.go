// Package pool hands out shared HTTP clients for outbound calls so each
// upstream reuses one tuned transport.
package pool

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolConfig defines connection pool configuration
type PoolConfig struct {
	ConnectionTimeout   time.Duration `json:"connection_timeout"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	IdleTimeout         time.Duration `json:"idle_timeout"`
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
}

// DefaultPoolConfig returns sensible defaults
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConnectionTimeout:   5 * time.Second,
		RequestTimeout:      10 * time.Second,
		IdleTimeout:         90 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
	}
}

// ConnectionPool caches one client per upstream name.
type ConnectionPool struct {
	mu          sync.RWMutex
	httpClients map[string]*http.Client
	config      PoolConfig
	logger      *zap.Logger
}

// NewConnectionPool creates a new connection pool
func NewConnectionPool(config PoolConfig, logger *zap.Logger) *ConnectionPool {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConnectionPool{
		httpClients: make(map[string]*http.Client),
		config:      config,
		logger:      logger,
	}
}

// GetHTTPClient returns the client for name, creating it with timeout on
// first use. A zero timeout uses the pool default.
func (p *ConnectionPool) GetHTTPClient(name string, timeout time.Duration) *http.Client {
	p.mu.RLock()
	client, exists := p.httpClients[name]
	p.mu.RUnlock()

	if exists {
		return client
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists = p.httpClients[name]; exists {
		return client
	}

	if timeout <= 0 {
		timeout = p.config.RequestTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   p.config.ConnectionTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          p.config.MaxIdleConns,
		MaxIdleConnsPerHost:   p.config.MaxIdleConnsPerHost,
		IdleConnTimeout:       p.config.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	client = &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	p.httpClients[name] = client

	p.logger.Info("Created new HTTP client",
		zap.String("name", name),
		zap.Duration("timeout", timeout),
	)

	return client
}

// Close releases idle connections of every client.
func (p *ConnectionPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, client := range p.httpClients {
		client.CloseIdleConnections()
	}
}

// Stats returns pool statistics
func (p *ConnectionPool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.httpClients))
	for name := range p.httpClients {
		names = append(names, name)
	}
	return map[string]interface{}{
		"http_clients": len(p.httpClients),
		"names":        names,
	}
}
