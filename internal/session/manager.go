package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/ulid/v2"
)

const (
	defaultCookieName  = "funnel_session"
	defaultCookiePath  = "/"
	defaultLifetime    = 24 * time.Hour
	defaultIdleTimeout = 30 * time.Minute
	maxFunnelsPerVisit = 32
)

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Data is the payload persisted in the session cookie.
type Data struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"createdAt"`
	LastActive time.Time         `json:"lastActive"`
	Locale     string            `json:"locale,omitempty"`
	Funnels    map[string]string `json:"funnels,omitempty"`
}

// Session holds the visitor state for the current request.
type Session struct {
	data  Data
	dirty bool
}

// Config controls cookie encoding and lifecycle limits for the session manager.
type Config struct {
	CookieName     string
	HashKey        []byte
	BlockKey       []byte
	CookiePath     string
	CookieSecure   bool
	CookieSameSite http.SameSite

	IdleTimeout time.Duration
	Lifetime    time.Duration
	Now         func() time.Time
}

// Manager decodes and persists sessions via signed, optionally encrypted,
// cookies.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager constructs a Manager using the provided configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &Manager{cfg: cfg, codec: codec, now: nowFn}, nil
}

// GenerateKey returns a random key suitable for HashKey or BlockKey.
func GenerateKey(length int) []byte {
	return securecookie.GenerateRandomKey(length)
}

// Load retrieves the session from the request. Missing, tampered and idle
// sessions are replaced by a fresh one.
func (m *Manager) Load(r *http.Request) *Session {
	now := m.now()
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.newSession(now)
	}
	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return m.newSession(now)
	}
	if stored.ID == "" || m.isExpired(stored, now) {
		return m.newSession(now)
	}
	if stored.Funnels == nil {
		stored.Funnels = make(map[string]string)
	}
	return &Session{data: stored}
}

// Save writes the session back to the response as a cookie.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return errors.New("session: nil session")
	}
	sess.data.LastActive = m.now().UTC()

	encoded, err := m.codec.Encode(m.cfg.CookieName, sess.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
		MaxAge:   int(m.cfg.Lifetime.Seconds()),
	})
	sess.dirty = false
	return nil
}

// Destroy clears the session cookie.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Path:     m.cfg.CookiePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	})
}

func (m *Manager) newSession(now time.Time) *Session {
	return &Session{
		data: Data{
			ID:         ulid.Make().String(),
			CreatedAt:  now.UTC(),
			LastActive: now.UTC(),
			Funnels:    make(map[string]string),
		},
		dirty: true,
	}
}

func (m *Manager) isExpired(d Data, now time.Time) bool {
	now = now.UTC()
	if !d.CreatedAt.IsZero() && now.Sub(d.CreatedAt) > m.cfg.Lifetime {
		return true
	}
	last := d.LastActive
	if last.IsZero() {
		last = d.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) > m.cfg.IdleTimeout
}

// ID returns the stable session identifier.
func (s *Session) ID() string { return s.data.ID }

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

// Locale returns the stored language preference.
func (s *Session) Locale() string { return s.data.Locale }

// SetLocale stores the language preference.
func (s *Session) SetLocale(lang string) {
	if s.data.Locale == lang {
		return
	}
	s.data.Locale = lang
	s.dirty = true
}

// FunnelFor returns the funnel id the visitor holds for a product.
func (s *Session) FunnelFor(slug string) (string, bool) {
	id, ok := s.data.Funnels[slug]
	return id, ok
}

// SetFunnel records the funnel id for a product. The oldest entries are
// dropped once the visitor holds too many.
func (s *Session) SetFunnel(slug, id string) {
	if s.data.Funnels == nil {
		s.data.Funnels = make(map[string]string)
	}
	if s.data.Funnels[slug] == id {
		return
	}
	s.data.Funnels[slug] = id
	for len(s.data.Funnels) > maxFunnelsPerVisit {
		// ULIDs sort by creation time
		oldestSlug, oldestID := "", ""
		for k, v := range s.data.Funnels {
			if oldestID == "" || v < oldestID {
				oldestSlug, oldestID = k, v
			}
		}
		delete(s.data.Funnels, oldestSlug)
	}
	s.dirty = true
}

// ForgetFunnel drops the funnel held for a product.
func (s *Session) ForgetFunnel(slug string) {
	if _, ok := s.data.Funnels[slug]; !ok {
		return
	}
	delete(s.data.Funnels, slug)
	s.dirty = true
}

// Owns reports whether the session holds funnel id.
func (s *Session) Owns(id string) bool {
	if id == "" {
		return false
	}
	for _, v := range s.data.Funnels {
		if v == id {
			return true
		}
	}
	return false
}
