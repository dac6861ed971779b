package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// TokenSource is one candidate place a bearer token may live
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// TokenStore keeps the bearer token of each browser session
type TokenStore interface {
	LoadToken(ctx context.Context, sid string) (string, error)
	SaveToken(ctx context.Context, sid, token string) error
	ClearToken(ctx context.Context, sid string) error
}

// CookieSource reads the token cookie out of a raw Cookie header
type CookieSource string

// Token implements TokenSource
func (c CookieSource) Token(context.Context) (string, bool) {
	tok := TokenFromCookieHeader(string(c))
	return tok, tok != ""
}

// TokenFromCookieHeader returns the percent-decoded token cookie value. A
// literal "+" stays a "+". Malformed pairs are skipped.
func TokenFromCookieHeader(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		idx := strings.Index(part, "=")
		if idx == -1 {
			continue
		}
		key, err := url.PathUnescape(part[:idx])
		if err != nil || key != TokenCookieName {
			continue
		}
		val, err := url.PathUnescape(part[idx+1:])
		if err != nil {
			continue
		}
		return val
	}
	return ""
}

// StoreSource reads the token kept for one browser session. Store errors
// count as no token.
type StoreSource struct {
	Store TokenStore
	SID   string
}

// Token implements TokenSource
func (s StoreSource) Token(ctx context.Context) (string, bool) {
	if s.Store == nil || s.SID == "" {
		return "", false
	}
	tok, err := s.Store.LoadToken(ctx, s.SID)
	if err != nil || tok == "" {
		return "", false
	}
	return tok, true
}

// MemoryStore is an in-process TokenStore
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore creates an empty in-process token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (m *MemoryStore) LoadToken(_ context.Context, sid string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[sid], nil
}

func (m *MemoryStore) SaveToken(_ context.Context, sid, token string) error {
	m.mu.Lock()
	m.tokens[sid] = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ClearToken(_ context.Context, sid string) error {
	m.mu.Lock()
	delete(m.tokens, sid)
	m.mu.Unlock()
	return nil
}

// LoginCookie is the token cookie set after a successful login
func LoginCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}

// ExpiredCookie expires the token cookie immediately
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:   TokenCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}
}
