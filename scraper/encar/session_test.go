package encar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lym-afla/Encar/utils"
)

// fakeHandshaker counts handshake invocations and serves canned results.
type fakeHandshaker struct {
	calls int32
	delay time.Duration
	err   error
	empty bool
}

func (f *fakeHandshaker) Handshake(ctx context.Context) (*Credentials, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return &Credentials{Cookies: map[string]string{}}, nil
	}
	return &Credentials{
		Cookies: map[string]string{"session": string(rune('a' + n - 1))},
		Headers: map[string]string{"User-Agent": "test"},
	}, nil
}

func testLogger() *utils.Logger {
	return utils.NewLogger(false)
}

func TestGetCredentialsAuthenticatesOnce(t *testing.T) {
	h := &fakeHandshaker{}
	m := NewSessionManager(h, time.Hour, testLogger())

	ctx := context.Background()
	first, err := m.GetCredentials(ctx)
	if err != nil {
		t.Fatalf("first GetCredentials: %v", err)
	}
	second, err := m.GetCredentials(ctx)
	if err != nil {
		t.Fatalf("second GetCredentials: %v", err)
	}

	if got := atomic.LoadInt32(&h.calls); got != 1 {
		t.Errorf("handshake calls = %d; want 1", got)
	}
	if first != second {
		t.Error("expected the cached credential on the second call")
	}
	if m.State() != StateValid {
		t.Errorf("state = %v; want valid", m.State())
	}
}

func TestGetCredentialsRefreshesExpired(t *testing.T) {
	h := &fakeHandshaker{}
	m := NewSessionManager(h, 30*time.Minute, testLogger())

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	current := base
	m.now = func() time.Time { return current }

	ctx := context.Background()
	first, err := m.GetCredentials(ctx)
	if err != nil {
		t.Fatalf("GetCredentials: %v", err)
	}

	// Past the validity window the stale credential must never come back.
	current = base.Add(31 * time.Minute)
	if m.State() != StateExpired {
		t.Errorf("state = %v; want expired", m.State())
	}

	second, err := m.GetCredentials(ctx)
	if err != nil {
		t.Fatalf("GetCredentials after expiry: %v", err)
	}
	if second == first {
		t.Error("got the stale credential back after expiry")
	}
	if got := atomic.LoadInt32(&h.calls); got != 2 {
		t.Errorf("handshake calls = %d; want 2", got)
	}
	if want := current.Add(30 * time.Minute); !second.ValidUntil.Equal(want) {
		t.Errorf("ValidUntil = %v; want %v", second.ValidUntil, want)
	}
}

func TestGetCredentialsSingleFlight(t *testing.T) {
	h := &fakeHandshaker{delay: 50 * time.Millisecond}
	m := NewSessionManager(h, time.Hour, testLogger())

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.GetCredentials(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&h.calls); got != 1 {
		t.Errorf("handshake calls = %d; want 1 for concurrent callers", got)
	}
}

func TestGetCredentialsAfterInvalidate(t *testing.T) {
	h := &fakeHandshaker{}
	m := NewSessionManager(h, time.Hour, testLogger())

	ctx := context.Background()
	if _, err := m.GetCredentials(ctx); err != nil {
		t.Fatalf("GetCredentials: %v", err)
	}

	m.Invalidate()
	if m.State() != StateExpired {
		t.Errorf("state = %v; want expired after Invalidate", m.State())
	}

	if _, err := m.GetCredentials(ctx); err != nil {
		t.Fatalf("GetCredentials after Invalidate: %v", err)
	}
	if got := atomic.LoadInt32(&h.calls); got != 2 {
		t.Errorf("handshake calls = %d; want 2", got)
	}
}

func TestGetCredentialsHandshakeFailure(t *testing.T) {
	h := &fakeHandshaker{err: errors.New("browser crashed")}
	m := NewSessionManager(h, time.Hour, testLogger())

	_, err := m.GetCredentials(context.Background())
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("error = %v; want ErrAuthenticationFailed", err)
	}
	if m.State() != StateUnauthenticated {
		t.Errorf("state = %v; want unauthenticated after failure", m.State())
	}
}

func TestGetCredentialsNoCookies(t *testing.T) {
	h := &fakeHandshaker{empty: true}
	m := NewSessionManager(h, time.Hour, testLogger())

	_, err := m.GetCredentials(context.Background())
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("error = %v; want ErrAuthenticationFailed for empty cookie jar", err)
	}

	// A failed handshake must not wedge the manager; the next call retries.
	h.empty = false
	if _, err := m.GetCredentials(context.Background()); err != nil {
		t.Errorf("retry after empty handshake: %v", err)
	}
}

func TestGetCredentialsContextCancelled(t *testing.T) {
	h := &fakeHandshaker{delay: time.Second}
	m := NewSessionManager(h, time.Hour, testLogger())

	// First caller owns the handshake; the second waits on it and must
	// unblock on its own context.
	go m.GetCredentials(context.Background())
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.GetCredentials(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v; want context.DeadlineExceeded", err)
	}
}

func TestCookieHeader(t *testing.T) {
	c := &Credentials{Cookies: map[string]string{"a": "1"}}
	if got := c.CookieHeader(); got != "a=1" {
		t.Errorf("CookieHeader() = %q; want %q", got, "a=1")
	}
}
