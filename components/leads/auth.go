package leads

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"
)

// Session is the signed-in admin as persisted on the client.
type Session struct {
	Token  string `yaml:"token" json:"-"`
	Role   string `yaml:"role,omitempty" json:"role,omitempty"`
	UserID string `yaml:"user_id,omitempty" json:"user_id,omitempty"`
}

// SessionSource reads the current session. Implementations read fresh on every call so a
// sign-in or sign-out elsewhere is picked up by the next request.
type SessionSource interface {
	Session(ctx context.Context) (Session, error)
}

// StaticSession serves a fixed session.
type StaticSession Session

func (s StaticSession) Session(context.Context) (Session, error) {
	return Session(s), nil
}

// AuthContext is the single typed accessor for credentials and role used by stores and
// clients.
type AuthContext struct {
	source SessionSource
	now    func() time.Time
}

// NewAuthContext wraps a session source. A nil source means "never signed in".
func NewAuthContext(source SessionSource) *AuthContext {
	return &AuthContext{source: source, now: time.Now}
}

// WithClock overrides the clock used for token expiry checks.
func (a *AuthContext) WithClock(now func() time.Time) *AuthContext {
	if a != nil && now != nil {
		a.now = now
	}
	return a
}

// Token returns the bearer token or an unauthenticated error when it is absent or, for JWTs,
// already expired.
func (a *AuthContext) Token(ctx context.Context) (string, error) {
	session, err := a.session(ctx)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(session.Token)
	if token == "" {
		return "", NewUnauthenticatedError("authenticate", "Unauthorized: no session token, sign in to continue")
	}
	if expiry, ok := tokenExpiry(token); ok && !a.now().Before(expiry) {
		return "", NewUnauthenticatedError("authenticate", "Unauthorized: session expired, sign in again")
	}
	return token, nil
}

// OptionalToken returns the token when one is usable and "" otherwise.
func (a *AuthContext) OptionalToken(ctx context.Context) string {
	token, err := a.Token(ctx)
	if err != nil {
		return ""
	}
	return token
}

// Role returns the persisted role, empty when signed out.
func (a *AuthContext) Role(ctx context.Context) string {
	session, err := a.session(ctx)
	if err != nil {
		return ""
	}
	return session.Role
}

// UserID returns the persisted user id, empty when signed out.
func (a *AuthContext) UserID(ctx context.Context) string {
	session, err := a.session(ctx)
	if err != nil {
		return ""
	}
	return session.UserID
}

func (a *AuthContext) session(ctx context.Context) (Session, error) {
	if a == nil || a.source == nil {
		return Session{}, NewUnauthenticatedError("authenticate", "")
	}
	session, err := a.source.Session(ctx)
	if err != nil {
		return Session{}, &Error{Kind: KindUnauthenticated, Op: "read session", Message: "Unauthorized: unable to read session", Err: err}
	}
	return session, nil
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature; the server does
// the verification, this only avoids sending a token that is known to be stale.
func tokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// FileSessionStore is the client-persisted key/value storage holding sessions, one YAML
// document mapping application keys to sessions.
type FileSessionStore struct {
	path string
	key  string
	mu   sync.Mutex
}

// NewFileSessionStore stores sessions under key in the YAML file at path.
func NewFileSessionStore(path, key string) *FileSessionStore {
	if key == "" {
		key = DefaultSessionKey
	}
	return &FileSessionStore{path: path, key: key}
}

// DefaultSessionKey is the application key sessions are stored under.
const DefaultSessionKey = "leadboard"

// Session reads the session for the configured key. A missing file or key is an empty
// session, not an error.
func (s *FileSessionStore) Session(context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return Session{}, err
	}
	return doc[s.key], nil
}

// Save persists the session for the configured key, keeping other keys intact.
func (s *FileSessionStore) Save(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[s.key] = session
	return s.write(doc)
}

// Clear removes the session for the configured key.
func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	delete(doc, s.key)
	return s.write(doc)
}

func (s *FileSessionStore) read() (map[string]Session, error) {
	doc := map[string]Session{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("leads: read session file %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("leads: parse session file %s: %w", s.path, err)
	}
	if doc == nil {
		doc = map[string]Session{}
	}
	return doc, nil
}

func (s *FileSessionStore) write(doc map[string]Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("leads: create session dir: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("leads: encode session file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("leads: write session file %s: %w", s.path, err)
	}
	return nil
}
