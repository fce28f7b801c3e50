package encar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/lym-afla/Encar/utils"
)

// ErrAuthenticationFailed means no usable credential could be harvested and
// the whole cycle must abort.
var ErrAuthenticationFailed = errors.New("authentication failed")

// SessionState is the explicit lifecycle of the authenticated session.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticating
	StateValid
	StateExpired
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// Credentials is the ephemeral authenticated handle required by the feed
// endpoint: harvested cookies plus the header set a real browser would send.
type Credentials struct {
	Cookies    map[string]string
	Headers    map[string]string
	ValidUntil time.Time
}

// CookieHeader renders the cookies as a single Cookie header value.
func (c *Credentials) CookieHeader() string {
	pairs := make([]string, 0, len(c.Cookies))
	for name, value := range c.Cookies {
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, "; ")
}

// ExpiredAt reports whether the credential has passed its validity window.
func (c *Credentials) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ValidUntil)
}

// Handshaker performs the browser handshake that yields fresh credentials.
type Handshaker interface {
	Handshake(ctx context.Context) (*Credentials, error)
}

// SessionManager owns the session lifecycle. At most one handshake is in
// flight at a time; concurrent callers block on it instead of starting
// their own.
type SessionManager struct {
	handshaker Handshaker
	validity   time.Duration
	logger     *utils.Logger
	now        func() time.Time

	mu       sync.Mutex
	state    SessionState
	creds    *Credentials
	inflight chan struct{}
}

// NewSessionManager creates a manager in the Unauthenticated state.
func NewSessionManager(h Handshaker, validity time.Duration, logger *utils.Logger) *SessionManager {
	return &SessionManager{
		handshaker: h,
		validity:   validity,
		logger:     logger,
		now:        time.Now,
		state:      StateUnauthenticated,
	}
}

// State returns the current lifecycle state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateValid && m.creds.ExpiredAt(m.now()) {
		return StateExpired
	}
	return m.state
}

// GetCredentials returns the current credentials, re-authenticating first if
// the session is missing, expired, or was invalidated. A stale credential is
// never returned.
func (m *SessionManager) GetCredentials(ctx context.Context) (*Credentials, error) {
	for {
		m.mu.Lock()

		if m.state == StateValid {
			if !m.creds.ExpiredAt(m.now()) {
				creds := m.creds
				m.mu.Unlock()
				return creds, nil
			}
			m.state = StateExpired
			m.creds = nil
		}

		if m.state == StateAuthenticating {
			wait := m.inflight
			m.mu.Unlock()
			select {
			case <-wait:
				continue // re-check the outcome under the lock
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// This caller performs the handshake.
		m.state = StateAuthenticating
		done := make(chan struct{})
		m.inflight = done
		m.mu.Unlock()

		m.logger.Info("[session] Acquiring authenticated session...")
		creds, err := m.handshaker.Handshake(ctx)

		m.mu.Lock()
		close(done)
		m.inflight = nil

		if err != nil {
			m.state = StateUnauthenticated
			m.mu.Unlock()
			if errors.Is(err, ErrAuthenticationFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}
		if creds == nil || len(creds.Cookies) == 0 {
			m.state = StateUnauthenticated
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: handshake yielded no cookies", ErrAuthenticationFailed)
		}

		creds.ValidUntil = m.now().Add(m.validity)
		m.creds = creds
		m.state = StateValid
		m.mu.Unlock()

		m.logger.Info("[session] Session valid until %s (%d cookies)",
			creds.ValidUntil.Format("15:04:05"), len(creds.Cookies))
		return creds, nil
	}
}

// Invalidate forces the session to Expired, pre-empting the validity timer.
// Callers receiving an authentication-rejection response must report it here
// before retrying.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateValid {
		m.logger.Warn("[session] Session invalidated by downstream rejection")
		m.state = StateExpired
		m.creds = nil
	}
}

// BrowserHandshaker drives a headless browser through the feed's search page
// and harvests the session cookies and browser identity the API requires.
type BrowserHandshaker struct {
	SearchURL string
	Timeout   time.Duration
	Logger    *utils.Logger
}

// Handshake loads the search page and collects cookies plus the exact
// User-Agent so API requests are indistinguishable from the browser's own.
func (b *BrowserHandshaker) Handshake(ctx context.Context) (*Credentials, error) {
	allocCtx, cancelAlloc := newAllocator(ctx)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.Timeout)
	defer cancelTimeout()

	var userAgent string
	var cookies []*network.Cookie

	err := chromedp.Run(tabCtx,
		chromedp.Navigate(b.SearchURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(`navigator.userAgent`, &userAgent),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("handshake navigation: %w", err)
	}

	cookieMap := make(map[string]string, len(cookies))
	for _, c := range cookies {
		cookieMap[c.Name] = c.Value
	}
	if len(cookieMap) == 0 {
		return nil, fmt.Errorf("%w: no cookies on %s", ErrAuthenticationFailed, b.SearchURL)
	}

	b.Logger.Debug("[session] Harvested %d cookies, UA %q", len(cookieMap), userAgent)

	return &Credentials{
		Cookies: cookieMap,
		Headers: apiHeaders(userAgent, b.SearchURL),
	}, nil
}

// apiHeaders builds the header set the feed API expects from an in-browser
// XHR caller.
func apiHeaders(userAgent, referer string) map[string]string {
	return map[string]string{
		"User-Agent":       userAgent,
		"Accept":           "application/json, text/plain, */*",
		"Accept-Language":  "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		"Referer":          referer,
		"Origin":           "http://www.encar.com",
		"X-Requested-With": "XMLHttpRequest",
		"Cache-Control":    "no-cache",
		"Pragma":           "no-cache",
	}
}
