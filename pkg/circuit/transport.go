package circuit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is recorded against the breaker for 5xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.StatusCode)
}

type transport struct {
	breaker *Breaker
	next    http.RoundTripper
}

// Transport runs every request through b. Transport errors and 5xx
// responses count as failures; while the circuit is open requests fail with
// ErrCircuitOpen without reaching next. A nil next uses
// http.DefaultTransport.
func Transport(b *Breaker, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &transport{breaker: b, next: next}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.breaker.Do(req.Context(), func(context.Context) error {
		var err error
		resp, err = t.next.RoundTrip(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &StatusError{StatusCode: resp.StatusCode}
		}
		return nil
	})

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Guard returns a copy of client whose requests go through b.
func Guard(client *http.Client, b *Breaker) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	guarded := *client
	guarded.Transport = Transport(b, client.Transport)
	return &guarded
}
