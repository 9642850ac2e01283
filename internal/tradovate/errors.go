package tradovate

import (
	"errors"
	"fmt"
	"time"
)

// InvalidCredentialsError is returned when the upstream explicitly rejects
// the credentials. It is fatal for the current token: callers must not
// retry blindly with the same credentials.
type InvalidCredentialsError struct {
	Reason string
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("tradovate rejected credentials: %s", e.Reason)
}

// CaptchaError is returned when the upstream rate-limits authentication and
// demands a captcha round-trip. It must not be auto-retried; the ticket and
// retry-after duration are surfaced so an operator can intervene.
type CaptchaError struct {
	Ticket          string
	RetryAfter      time.Duration
	CaptchaRequired bool
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("tradovate auth rate-limited: ticket=%s retry_after=%s captcha=%t",
		e.Ticket, e.RetryAfter, e.CaptchaRequired)
}

// ErrNotAuthenticated is returned by token reads before the session has
// completed its first successful acquisition.
var ErrNotAuthenticated = errors.New("tradovate session not authenticated")

// ErrSessionExpired is returned by token reads after the upstream rejected
// the session or the held token passed its expiration time. The token is
// dead; callers must wait for a successful re-authentication.
var ErrSessionExpired = errors.New("tradovate session expired")
