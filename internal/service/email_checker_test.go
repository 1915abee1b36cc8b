package service

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/pkg/cache"
	"github.com/stretchr/testify/assert"
)

type fakeResolver map[string][]*net.MX

func (f fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	records, ok := f[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

func TestEmailChecker(t *testing.T) {
	resolver := fakeResolver{
		"example.com": {{Host: "mx1.example.com.", Pref: 10}},
		"nullmx.com":  {{Host: ".", Pref: 0}},
		"empty.com":   {},
	}
	checker := NewEmailChecker(resolver, []string{"Burner.io"}, true)

	tests := []struct {
		email string
		want  error
	}{
		{"al@example.com", nil},
		{"not-an-email", domainErrors.ErrValidation},
		{"", domainErrors.ErrValidation},
		{"x@mailinator.com", domainErrors.ErrEmailUndeliverable},
		{"x@inbox.mailinator.com", domainErrors.ErrEmailUndeliverable},
		{"x@burner.io", domainErrors.ErrEmailUndeliverable},
		{"x@nowhere.test", domainErrors.ErrEmailUndeliverable},
		{"x@nullmx.com", domainErrors.ErrEmailUndeliverable},
		{"x@empty.com", domainErrors.ErrEmailUndeliverable},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := checker.Check(context.Background(), tt.email)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEmailCheckerWithoutMX(t *testing.T) {
	checker := NewEmailChecker(fakeResolver{}, nil, false)
	assert.NoError(t, checker.Check(context.Background(), "al@anything.test"))
	assert.Error(t, checker.Check(context.Background(), "al@yopmail.com"))
}

type countingResolver struct {
	fakeResolver
	lookups int
}

func (c *countingResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	c.lookups++
	return c.fakeResolver.LookupMX(ctx, name)
}

func TestEmailCheckerCachesUsableMX(t *testing.T) {
	resolver := &countingResolver{fakeResolver: fakeResolver{"example.com": {{Host: "mx1.example.com.", Pref: 10}}}}
	mx := cache.New[bool](0)
	checker := NewEmailChecker(resolver, nil, true).WithMXCache(mx, time.Hour)

	assert.NoError(t, checker.Check(context.Background(), "a@example.com"))
	assert.NoError(t, checker.Check(context.Background(), "b@Example.com"))
	assert.Equal(t, 1, resolver.lookups)

	assert.Error(t, checker.Check(context.Background(), "a@nowhere.test"))
	assert.Error(t, checker.Check(context.Background(), "b@nowhere.test"))
	assert.Equal(t, 3, resolver.lookups, "failed lookups are retried")
}
