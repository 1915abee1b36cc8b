package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status represents health check status
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
	StatusDegraded
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusDegraded:
		return "degraded"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Status       Status        `json:"status"`
	Critical     bool          `json:"critical"`
	Latency      time.Duration `json:"latency_ns"`
	LastCheck    time.Time     `json:"last_check"`
	Message      string        `json:"message,omitempty"`
	CheckCount   int           `json:"check_count"`
	FailureCount int           `json:"failure_count"`
}

// Checker interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// PingChecker wraps a ping function such as a database or Redis ping.
// A nil Ping reports the dependency as disabled.
type PingChecker struct {
	Ping func(ctx context.Context) error
}

func (c PingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{LastCheck: start}
	if c.Ping == nil {
		result.Status = StatusDisabled
		return result
	}

	err := c.Ping(ctx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		return result
	}
	result.Status = StatusHealthy
	return result
}

// HTTPChecker checks HTTP endpoint health
type HTTPChecker struct {
	URL    string
	Client *http.Client
}

// Check performs HTTP health check
func (c *HTTPChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{LastCheck: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		result.Latency = time.Since(start)
		return result
	}

	resp, err := c.Client.Do(req)
	result.Latency = time.Since(start)

	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		return result
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Status = StatusHealthy
	case resp.StatusCode >= 500:
		result.Status = StatusUnhealthy
		result.Message = resp.Status
	default:
		result.Status = StatusDegraded
		result.Message = resp.Status
	}

	return result
}

type registration struct {
	checker  Checker
	critical bool
}

// Monitor runs named dependency checks on demand and on an interval.
type Monitor struct {
	mu       sync.RWMutex
	checkers map[string]registration
	results  map[string]*CheckResult
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	done     chan struct{}
}

// NewMonitor creates a new health monitor
func NewMonitor(interval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		checkers: make(map[string]registration),
		results:  make(map[string]*CheckResult),
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Register adds a checker. A failing critical checker makes the service
// unhealthy; a failing non-critical one only degrades it.
func (m *Monitor) Register(name string, checker Checker, critical bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkers[name] = registration{checker: checker, critical: critical}
	m.logger.Info("Registered health checker",
		zap.String("name", name),
		zap.Bool("critical", critical),
	)
}

// Start runs checks every interval until Stop.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.runChecks()
}

// Stop stops the health monitor
func (m *Monitor) Stop() {
	m.mu.Lock()
	wasRunning := m.running
	m.running = false
	m.mu.Unlock()

	m.cancel()
	if wasRunning {
		<-m.done
	}
}

func (m *Monitor) runChecks() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckAll(m.ctx)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(m.ctx)
		}
	}
}

// CheckAll runs every checker concurrently and returns the fresh results
// with the overall status.
func (m *Monitor) CheckAll(ctx context.Context) (Status, map[string]CheckResult) {
	m.mu.RLock()
	checkers := make(map[string]registration, len(m.checkers))
	for name, reg := range m.checkers {
		checkers[name] = reg
	}
	m.mu.RUnlock()

	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	fresh := make(map[string]CheckResult, len(checkers))
	for name, reg := range checkers {
		wg.Add(1)
		go func(name string, reg registration) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			result := reg.checker.Check(checkCtx)
			result.Critical = reg.critical

			rmu.Lock()
			fresh[name] = result
			rmu.Unlock()
		}(name, reg)
	}
	wg.Wait()

	m.mu.Lock()
	for name, result := range fresh {
		if existing, ok := m.results[name]; ok {
			result.CheckCount = existing.CheckCount + 1
			result.FailureCount = existing.FailureCount
		} else {
			result.CheckCount = 1
		}
		if result.Status == StatusUnhealthy {
			result.FailureCount++
		}
		stored := result
		m.results[name] = &stored
		fresh[name] = result
	}
	m.mu.Unlock()

	for name, result := range fresh {
		if result.Status == StatusUnhealthy || result.Status == StatusDegraded {
			m.logger.Warn("Health check failed",
				zap.String("name", name),
				zap.String("status", result.Status.String()),
				zap.Duration("latency", result.Latency),
				zap.String("message", result.Message),
			)
		}
	}

	return Overall(fresh), fresh
}

// Overall folds individual results into one status.
func Overall(results map[string]CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy, StatusUnknown:
			if r.Critical {
				return StatusUnhealthy
			}
			status = StatusDegraded
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// GetResult gets the last result for a checker
func (m *Monitor) GetResult(name string) (*CheckResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, exists := m.results[name]
	if !exists {
		return nil, false
	}
	resultCopy := *result
	return &resultCopy, true
}
