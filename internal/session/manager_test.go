package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time { return c.current }

func newTestManager(t *testing.T) (*Manager, *fixedClock) {
	t.Helper()
	clock := &fixedClock{current: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		CookieName:  "test_session",
		HashKey:     []byte("12345678901234567890123456789012"),
		BlockKey:    []byte("abcdefghijklmnopqrstuv0123456789"),
		IdleTimeout: 10 * time.Minute,
		Lifetime:    2 * time.Hour,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return mgr, clock
}

func roundTrip(t *testing.T, mgr *Manager, sess *Session) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	return req
}

func TestNewManagerValidatesKeys(t *testing.T) {
	if _, err := NewManager(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without hash key, got %v", err)
	}
	if _, err := NewManager(Config{HashKey: GenerateKey(32), BlockKey: []byte("short")}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for bad block key, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)

	sess := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if sess.ID() == "" || !sess.Dirty() {
		t.Fatalf("expected fresh dirty session")
	}
	sess.SetLocale("ar")
	sess.SetFunnel("urban-hoodie", "01HZX")

	loaded := mgr.Load(roundTrip(t, mgr, sess))
	if loaded.ID() != sess.ID() {
		t.Fatalf("expected same session id")
	}
	if loaded.Dirty() {
		t.Fatalf("loaded session must start clean")
	}
	if loaded.Locale() != "ar" {
		t.Fatalf("expected locale ar, got %q", loaded.Locale())
	}
	if id, ok := loaded.FunnelFor("urban-hoodie"); !ok || id != "01HZX" {
		t.Fatalf("expected funnel id, got %q %v", id, ok)
	}
	if !loaded.Owns("01HZX") || loaded.Owns("other") || loaded.Owns("") {
		t.Fatalf("unexpected ownership result")
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	mgr, _ := newTestManager(t)
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := rec.Result().Cookies()[0]
	if cookie.Name != "test_session" || !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}
	if cookie.MaxAge != int((2 * time.Hour).Seconds()) {
		t.Fatalf("unexpected max age %d", cookie.MaxAge)
	}
}

func TestTamperedCookieStartsFresh(t *testing.T) {
	mgr, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "garbage"})
	sess := mgr.Load(req)
	if sess.ID() == "" || !sess.Dirty() {
		t.Fatalf("expected fresh session")
	}
}

func TestIdleSessionExpires(t *testing.T) {
	mgr, clock := newTestManager(t)
	sess := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	sess.SetFunnel("zen-mug", "01A")
	req := roundTrip(t, mgr, sess)

	clock.current = clock.current.Add(11 * time.Minute)
	loaded := mgr.Load(req)
	if loaded.ID() == sess.ID() {
		t.Fatalf("expected idle session to be replaced")
	}
	if loaded.Owns("01A") {
		t.Fatalf("fresh session must not own old funnels")
	}
}

func TestSetFunnelCapsEntries(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	for i := 0; i < maxFunnelsPerVisit+3; i++ {
		sess.SetFunnel(string(rune('a'+i)), string(rune('A'+i)))
	}
	if len(sess.data.Funnels) != maxFunnelsPerVisit {
		t.Fatalf("expected %d funnels, got %d", maxFunnelsPerVisit, len(sess.data.Funnels))
	}
	if sess.Owns("A") {
		t.Fatalf("expected oldest funnel to be dropped")
	}

	sess.ForgetFunnel("d")
	if _, ok := sess.FunnelFor("d"); ok {
		t.Fatalf("expected funnel to be forgotten")
	}
}

func TestDestroyExpiresCookie(t *testing.T) {
	mgr, _ := newTestManager(t)
	rec := httptest.NewRecorder()
	mgr.Destroy(rec)
	if c := rec.Result().Cookies()[0]; c.MaxAge >= 0 || c.Value != "" {
		t.Fatalf("expected expired cookie, got %+v", c)
	}
}
