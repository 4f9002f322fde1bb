package security

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const remoteCacheTTL = 30 * time.Second

// RemoteVerifier asks the backend auth endpoint who owns the token. Successful lookups
// are cached briefly, keyed by the token digest, and never past the token's exp.
type RemoteVerifier struct {
	client *resty.Client

	mu    sync.Mutex
	cache map[string]cachedIdentity
	now   func() time.Time
}

type cachedIdentity struct {
	id      Identity
	expires time.Time
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewRemoteVerifier(baseURL, anonKey string, timeout time.Duration) *RemoteVerifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("apikey", anonKey).
		SetHeader("Accept", "application/json")

	return &RemoteVerifier{
		client: client,
		cache:  make(map[string]cachedIdentity),
		now:    time.Now,
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	key := SHA256HexOfString(token)
	if id, ok := v.cached(key); ok {
		return &id, nil
	}

	var user remoteUser
	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.IsError():
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}

	uid, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, ErrInvalidSubject
	}
	id := Identity{UserID: uid.String(), Email: user.Email, Role: user.Role}
	v.store(key, id, tokenExpiry(token))
	return &id, nil
}

func (v *RemoteVerifier) cached(key string) (Identity, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.cache[key]
	if !ok {
		return Identity{}, false
	}
	if v.now().After(c.expires) {
		delete(v.cache, key)
		return Identity{}, false
	}
	return c.id, true
}

func (v *RemoteVerifier) store(key string, id Identity, exp time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	for k, c := range v.cache {
		if now.After(c.expires) {
			delete(v.cache, k)
		}
	}
	expires := now.Add(remoteCacheTTL)
	if !exp.IsZero() && exp.Before(expires) {
		expires = exp
	}
	if !now.Before(expires) {
		return
	}
	v.cache[key] = cachedIdentity{id: id, expires: expires}
}

// tokenExpiry reads exp from the token without checking the signature; the backend has
// already vouched for the token. Zero when the token carries no readable exp.
func tokenExpiry(token string) time.Time {
	claims := &AccessClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil || claims.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(claims.ExpiresAt, 0)
}
