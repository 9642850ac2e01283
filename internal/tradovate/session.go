package tradovate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tradehook/internal/config"
)

const (
	demoBaseURL = "https://demo.tradovateapi.com/v1"
	liveBaseURL = "https://live.tradovateapi.com/v1"

	// A cached token below the low watermark is too close to expiry to
	// trust a renewal round-trip; between low and high it is renewed;
	// above high it is adopted without any network call.
	lowWatermark  = 60 * time.Second
	highWatermark = 120 * time.Second

	// The background task renews this long before the token expires.
	defaultRenewMargin = 10 * time.Minute

	requestTimeout = 30 * time.Second
)

// State is the session lifecycle state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRenewing
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRenewing:
		return "renewing"
	case StateExpired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// Token is one authenticated credential pair plus its expiry.
type Token struct {
	AccessToken   string
	MDAccessToken string
	ExpirationAt  time.Time
}

// Remaining returns the token lifetime left.
func (t Token) Remaining() time.Duration {
	return time.Until(t.ExpirationAt)
}

// TokenCache is the durable storage boundary for the token payload.
// Implemented by store.TokenCache (Redis).
type TokenCache interface {
	Load(ctx context.Context) (json.RawMessage, error)
	Store(ctx context.Context, payload json.RawMessage) error
}

// Session owns the authenticated-session lifecycle for the Tradovate API:
// initial acquisition, proactive renewal and crash-safe caching. One
// Session exists per process; handlers read tokens from it concurrently.
//
// Locking: authMu serializes acquisition/renewal so at most one auth call
// is in flight. mu guards the token and state; readers never block on the
// renewal network call, they keep seeing the current (stale-but-valid)
// token until the renewal path swaps it.
type Session struct {
	cfg         config.TradovateConfig
	cache       TokenCache
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	renewMargin time.Duration

	mu    sync.RWMutex
	token *Token
	state State

	authMu sync.Mutex

	renewCancel context.CancelFunc
	renewDone   chan struct{}
	closeOnce   sync.Once
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithBaseURL overrides the upstream base URL (tests).
func WithBaseURL(url string) SessionOption {
	return func(s *Session) { s.baseURL = url }
}

// WithHTTPClient overrides the HTTP client used for auth calls.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) { s.httpClient = c }
}

// WithRenewMargin overrides how long before expiry the background task
// renews the token.
func WithRenewMargin(d time.Duration) SessionOption {
	return func(s *Session) { s.renewMargin = d }
}

// NewSession builds an unauthenticated session. Call Start to run the
// startup algorithm and begin background renewal.
func NewSession(cfg config.TradovateConfig, cache TokenCache, logger *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		cfg:         cfg,
		cache:       cache,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger,
		baseURL:     demoBaseURL,
		renewMargin: defaultRenewMargin,
		state:       StateUnauthenticated,
	}
	if cfg.Environment == "live" {
		s.baseURL = liveBaseURL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the startup algorithm against the durable cache, then launches
// the background renewal task:
//
//   - no cached token, or remaining lifetime under the low watermark →
//     fresh acquisition
//   - remaining lifetime between the watermarks → renewal using the cached
//     token (renewal and fresh acquisition are different upstream calls
//     with different failure semantics)
//   - ample remaining lifetime → adopt the cached token, no network call
func (s *Session) Start(ctx context.Context) error {
	cached, err := s.loadCachedToken(ctx)
	if err != nil {
		s.logger.Warn("token cache read failed, acquiring fresh token", "error", err)
	}

	switch {
	case cached == nil || cached.Remaining() < lowWatermark:
		if err := s.authenticate(ctx); err != nil {
			return err
		}

	case cached.Remaining() < highWatermark:
		if err := s.renewWith(ctx, cached.AccessToken); err != nil {
			var invalid *InvalidCredentialsError
			if !errors.As(err, &invalid) {
				return err
			}
			// Cached token no longer honored upstream; fall back to a
			// fresh acquisition.
			s.logger.Warn("cached token rejected on renewal, acquiring fresh token", "error", err)
			if err := s.authenticate(ctx); err != nil {
				return err
			}
		}

	default:
		s.mu.Lock()
		s.token = cached
		s.state = StateAuthenticated
		s.mu.Unlock()
		s.logger.Info("session restored from token cache",
			"expires_in", cached.Remaining().Round(time.Second).String(),
		)
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	s.renewCancel = cancel
	s.renewDone = make(chan struct{})
	go s.renewLoop(renewCtx)

	return nil
}

// AccessToken returns the current bearer token. It never blocks on an
// in-flight renewal. Once the upstream has rejected the session or the
// token is past its expiration it is no longer served: a dead bearer on
// an order call would only produce a confusing upstream 401.
func (s *Session) AccessToken() (string, error) {
	token, err := s.currentToken()
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// MDAccessToken returns the current market-data token.
func (s *Session) MDAccessToken() (string, error) {
	token, err := s.currentToken()
	if err != nil {
		return "", err
	}
	return token.MDAccessToken, nil
}

func (s *Session) currentToken() (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, ErrNotAuthenticated
	}
	if s.state == StateExpired || s.token.Remaining() <= 0 {
		return nil, ErrSessionExpired
	}
	return s.token, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated reports whether a live token is currently held.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil && s.token.Remaining() > 0 &&
		(s.state == StateAuthenticated || s.state == StateRenewing)
}

// BaseURL returns the upstream REST base URL for this environment.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// Close cancels the pending renewal wait and releases the network client.
// An in-flight auth call is allowed to finish on its own timeout rather
// than being aborted mid-request.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.renewCancel != nil {
			s.renewCancel()
			<-s.renewDone
		}
		s.httpClient.CloseIdleConnections()
		s.mu.Lock()
		s.state = StateUnauthenticated
		s.token = nil
		s.mu.Unlock()
		s.logger.Info("session closed")
	})
}

func (s *Session) loadCachedToken(ctx context.Context) (*Token, error) {
	payload, err := s.cache.Load(ctx)
	if err != nil || payload == nil {
		return nil, err
	}
	var ar authResponse
	if err := json.Unmarshal(payload, &ar); err != nil {
		return nil, fmt.Errorf("parsing cached token: %w", err)
	}
	if ar.AccessToken == "" || ar.ExpirationTime.IsZero() {
		return nil, fmt.Errorf("cached token payload incomplete")
	}
	return &Token{
		AccessToken:   ar.AccessToken,
		MDAccessToken: ar.MDAccessToken,
		ExpirationAt:  ar.ExpirationTime,
	}, nil
}

// authenticate performs a fresh token acquisition.
func (s *Session) authenticate(ctx context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	s.setState(StateAuthenticating)
	s.logger.Debug("session event", "event", "request")

	body := map[string]any{
		"name":       s.cfg.Username,
		"password":   s.cfg.Password,
		"appId":      s.cfg.AppID,
		"appVersion": s.cfg.AppVersion,
		"cid":        s.cfg.CID,
		"sec":        s.cfg.Secret,
		"deviceId":   s.cfg.DeviceID,
	}
	payload, err := s.authPost(ctx, "/auth/accesstokenrequest", body, "")
	if err != nil {
		s.setState(StateUnauthenticated)
		return fmt.Errorf("requesting access token: %w", err)
	}

	_, err = s.updateAuthorization(ctx, payload)
	return err
}

// renewWith performs a renewal using the given still-valid token.
func (s *Session) renewWith(ctx context.Context, accessToken string) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	s.setState(StateRenewing)
	s.logger.Debug("session event", "event", "renew")

	payload, err := s.authPost(ctx, "/auth/renewaccesstoken", nil, accessToken)
	if err != nil {
		// Network failure, not an upstream rejection: the current token
		// stays valid until its real expiry.
		s.setStateIfToken(StateAuthenticated, StateUnauthenticated)
		return fmt.Errorf("renewing access token: %w", err)
	}

	_, err = s.updateAuthorization(ctx, payload)
	return err
}

// authPost sends one auth-endpoint request and returns the raw response body.
func (s *Session) authPost(ctx context.Context, path string, body any, bearer string) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling auth request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading auth response: %w", err)
	}
	return data, nil
}

// authResponse mirrors the upstream token endpoint payload.
// https://api.tradovate.com/#tag/Authentication/operation/accessTokenRequest
type authResponse struct {
	AccessToken    string    `json:"accessToken"`
	MDAccessToken  string    `json:"mdAccessToken"`
	ExpirationTime time.Time `json:"expirationTime"`
	UserID         int64     `json:"userId"`
	Name           string    `json:"name"`
	ErrorText      string    `json:"errorText"`
	PTicket        string    `json:"p-ticket"`
	PTime          int       `json:"p-time"`
	PCaptcha       bool      `json:"p-captcha"`
}

// updateAuthorization applies one upstream auth response: rejections move
// the session to Expired and surface a typed error; success writes the
// payload through to the durable cache before the token is adopted, so a
// crash immediately after still recovers the new token on restart.
func (s *Session) updateAuthorization(ctx context.Context, payload json.RawMessage) (*Token, error) {
	var ar authResponse
	if err := json.Unmarshal(payload, &ar); err != nil {
		s.setStateIfToken(StateAuthenticated, StateUnauthenticated)
		return nil, fmt.Errorf("parsing auth response: %w", err)
	}

	if ar.ErrorText != "" {
		s.setState(StateExpired)
		return nil, &InvalidCredentialsError{Reason: ar.ErrorText}
	}
	if ar.PTicket != "" {
		s.setState(StateExpired)
		return nil, &CaptchaError{
			Ticket:          ar.PTicket,
			RetryAfter:      time.Duration(ar.PTime) * time.Second,
			CaptchaRequired: ar.PCaptcha,
		}
	}
	if ar.AccessToken == "" || ar.ExpirationTime.IsZero() {
		s.setStateIfToken(StateAuthenticated, StateUnauthenticated)
		return nil, fmt.Errorf("auth response missing token fields")
	}

	if err := s.cache.Store(ctx, payload); err != nil {
		s.setStateIfToken(StateAuthenticated, StateUnauthenticated)
		return nil, fmt.Errorf("persisting token: %w", err)
	}

	token := &Token{
		AccessToken:   ar.AccessToken,
		MDAccessToken: ar.MDAccessToken,
		ExpirationAt:  ar.ExpirationTime,
	}
	s.mu.Lock()
	s.token = token
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.logger.Debug("session event", "event", "authorized",
		"expires_in", token.Remaining().Round(time.Second).String(),
	)
	return token, nil
}

// renewLoop sleeps until the renew margin before expiry, renews, and
// reschedules from the new expiry. Cancelled via Close. The auth HTTP
// calls run under their own timeout so an in-flight renewal finishes
// naturally instead of being aborted by shutdown.
func (s *Session) renewLoop(ctx context.Context) {
	defer close(s.renewDone)

	for {
		s.mu.RLock()
		token := s.token
		s.mu.RUnlock()
		if token == nil {
			return
		}

		delay := time.Until(token.ExpirationAt.Add(-s.renewMargin))
		if delay < time.Second {
			delay = time.Second
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		current, err := s.AccessToken()
		if err != nil {
			return
		}
		// Detach from the loop context: shutdown should cancel the wait
		// above, not abort a renewal already on the wire.
		err = s.renewWith(context.WithoutCancel(ctx), current)
		switch {
		case err == nil:
			continue

		case isCaptcha(err):
			// Not retried automatically; requires operator intervention.
			s.logger.Error("token renewal rate-limited, stopping renewal loop", "error", err)
			return

		case isInvalidCredentials(err):
			s.logger.Warn("token rejected on renewal, acquiring fresh token", "error", err)
			if err := s.authenticate(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("re-authentication failed, stopping renewal loop", "error", err)
				return
			}

		default:
			// Transient failure. The current token is still valid for a
			// while; retry shortly instead of waiting for expiry.
			s.logger.Warn("token renewal failed, will retry", "error", err)
			timer := time.NewTimer(30 * time.Second)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// setStateIfToken sets withToken when a token is held, otherwise without.
func (s *Session) setStateIfToken(withToken, without State) {
	s.mu.Lock()
	if s.token != nil {
		s.state = withToken
	} else {
		s.state = without
	}
	s.mu.Unlock()
}

func isCaptcha(err error) bool {
	var ce *CaptchaError
	return errors.As(err, &ce)
}

func isInvalidCredentials(err error) bool {
	var ie *InvalidCredentialsError
	return errors.As(err, &ie)
}
