package security

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// TokenVerifier turns a backend access token into an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// AccessClaims mirrors the claims the backend auth service puts in its access tokens.
type AccessClaims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// JWTVerifier checks HS256 tokens locally with the backend's JWT secret.
type JWTVerifier struct {
	secret    []byte
	clockSkew time.Duration
	now       func() time.Time
}

func NewJWTVerifier(secret string, clockSkew time.Duration) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), clockSkew: clockSkew, now: time.Now}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims := &AccessClaims{}
	parser := &jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	// exp is mandatory, nbf optional; both get the configured skew
	now := v.now()
	if claims.ExpiresAt == 0 || now.After(time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return nil, ErrInvalidToken
	}

	id, err := SubjectAsUserID(claims)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: id, Email: claims.Email, Role: claims.Role}, nil
}

// SignAccessToken issues a token the verifier accepts. Used by tooling and tests.
func (v *JWTVerifier) SignAccessToken(userID, email string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			Audience:  "authenticated",
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		Email: email,
		Role:  "authenticated",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// SubjectAsUserID validates that sub is a UUID and returns it in canonical form.
func SubjectAsUserID(claims *AccessClaims) (string, error) {
	if claims == nil || claims.Subject == "" {
		return "", ErrInvalidSubject
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", ErrInvalidSubject
	}
	return id.String(), nil
}
