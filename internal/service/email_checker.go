package service

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/pkg/cache"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/go-playground/validator/v10"
)

const mxLookupTimeout = 3 * time.Second

var builtinDisposableDomains = []string{
	"10minutemail.com", "dispostable.com", "fakeinbox.com", "getnada.com",
	"guerrillamail.com", "maildrop.cc", "mailinator.com", "mintemail.com",
	"sharklasers.com", "temp-mail.org", "tempmail.com", "throwawaymail.com",
	"trashmail.com", "yopmail.com",
}

// MXResolver is satisfied by *net.Resolver.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// EmailChecker rejects addresses that cannot plausibly receive mail before
// any account state is written.
type EmailChecker struct {
	validate   *validator.Validate
	disposable map[string]struct{}
	resolver   MXResolver
	checkMX    bool
	mxCache    *cache.Cache[bool]
	mxTTL      time.Duration
}

func NewEmailChecker(resolver MXResolver, extraDisposable []string, checkMX bool) *EmailChecker {
	disposable := make(map[string]struct{}, len(builtinDisposableDomains)+len(extraDisposable))
	for _, d := range append(builtinDisposableDomains, extraDisposable...) {
		disposable[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &EmailChecker{
		validate:   validator.New(),
		disposable: disposable,
		resolver:   resolver,
		checkMX:    checkMX,
	}
}

// WithMXCache remembers domains that resolved to a usable MX for ttl.
// Failed lookups are not cached.
func (c *EmailChecker) WithMXCache(mx *cache.Cache[bool], ttl time.Duration) *EmailChecker {
	c.mxCache = mx
	c.mxTTL = ttl
	return c
}

// Check returns ErrValidation for malformed input and ErrEmailUndeliverable
// for disposable or MX-less domains.
func (c *EmailChecker) Check(ctx context.Context, email string) error {
	if err := c.validate.Var(email, "required,email"); err != nil {
		return domainErrors.WrapError(domainErrors.ErrValidation, err)
	}

	at := strings.LastIndexByte(email, '@')
	domain := strings.ToLower(email[at+1:])

	if c.isDisposable(domain) {
		return domainErrors.WrapError(domainErrors.ErrEmailUndeliverable, fmt.Errorf("disposable domain %q", domain))
	}
	if !c.checkMX {
		return nil
	}
	if c.mxCache != nil {
		if ok, found := c.mxCache.Get(domain); found && ok {
			return nil
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, mxLookupTimeout)
	defer cancel()

	records, err := c.resolver.LookupMX(lookupCtx, domain)
	if err != nil {
		logger.WarnWithContext(ctx, "MX lookup failed").
			String("domain", domain).
			Err(err).
			Log()
		return domainErrors.WrapError(domainErrors.ErrEmailUndeliverable, err)
	}
	if !hasUsableMX(records) {
		return domainErrors.WrapError(domainErrors.ErrEmailUndeliverable, fmt.Errorf("no MX records for %q", domain))
	}
	if c.mxCache != nil {
		c.mxCache.Set(domain, true, c.mxTTL)
	}
	return nil
}

// isDisposable also matches subdomains of listed domains.
func (c *EmailChecker) isDisposable(domain string) bool {
	for d := domain; d != ""; {
		if _, ok := c.disposable[d]; ok {
			return true
		}
		dot := strings.IndexByte(d, '.')
		if dot < 0 {
			break
		}
		d = d[dot+1:]
	}
	return false
}

// hasUsableMX treats a lone "." host (null MX) as no mail service.
func hasUsableMX(records []*net.MX) bool {
	for _, mx := range records {
		if mx != nil && strings.TrimSuffix(mx.Host, ".") != "" {
			return true
		}
	}
	return false
}
