// Package identity resolves the caller of a request from a bearer token
// issued by the external identity service. Requests without a token are
// served as the anonymous user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"medquiz-service/internal/domain"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by identity tokens. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Verifier checks HS256 tokens.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier returns a verifier for secret. An empty issuer accepts any iss.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Enabled reports whether tokens can be verified at all.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Issue signs a token for u. It is used by tooling and tests; production
// tokens come from the identity service.
func (v *Verifier) Issue(u domain.User, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", errors.New("identity: no signing secret configured")
	}
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: u.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses token and returns the user it names.
func (v *Verifier) Verify(token string) (domain.User, error) {
	if !v.Enabled() {
		return domain.User{}, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return domain.User{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return domain.User{ID: claims.Subject, Name: name}, nil
}

// Anonymous is the identity of unauthenticated callers.
func Anonymous() domain.User {
	return domain.User{Name: domain.AnonymousName, Anonymous: true}
}

// Authenticate resolves the caller of r. The token is read from the
// Authorization header, or from the access_token query parameter for
// websocket upgrades that cannot set headers. No token yields Anonymous;
// a bad token yields ErrInvalidToken.
func (v *Verifier) Authenticate(r *http.Request) (domain.User, error) {
	token := bearerToken(r)
	if token == "" || !v.Enabled() {
		return Anonymous(), nil
	}
	return v.Verify(token)
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

type contextKey struct{}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the user attached by Middleware, or Anonymous.
func FromContext(ctx context.Context) domain.User {
	if u, ok := ctx.Value(contextKey{}).(domain.User); ok {
		return u
	}
	return Anonymous()
}

// Middleware authenticates every request and stores the user in its
// context. onError writes the response for invalid tokens.
func Middleware(v *Verifier, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := v.Authenticate(r)
			if err != nil {
				if onError != nil {
					onError(w, r, err)
				} else {
					http.Error(w, err.Error(), http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
