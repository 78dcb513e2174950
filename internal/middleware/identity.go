package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clipstream/internal/logging"
)

type identityKey struct{}

// ErrNoIdentity is returned when a token carries no subject.
var ErrNoIdentity = errors.New("token has no subject")

// IdentityConfig configures the Identity middleware.
type IdentityConfig struct {
	Secret []byte
	// Leeway allowed on exp and nbf.
	Leeway time.Duration
}

// Identity requires a valid "Authorization: Bearer <jwt>" header signed with
// HS256. The token's sub claim is the uploader reference, stored verbatim
// and available to handlers through UploaderFromContext.
func Identity(config IdentityConfig) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(config.Leeway),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uploader, err := verify(parser, config.Secret, r.Header.Get("Authorization"))
			if err != nil {
				logging.Debug("Rejected identity for %s %s: %v", r.Method, sanitizeLogField(r.URL.Path), err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="clipstream"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "A valid identity token is required"})
				return
			}
			recordUploader(w, uploader)
			next.ServeHTTP(w, r.WithContext(WithUploader(r.Context(), uploader)))
		})
	}
}

func verify(parser *jwt.Parser, secret []byte, header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errors.New("missing bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrNoIdentity
	}
	return claims.Subject, nil
}

// recordUploader passes uploader to the access log through any wrapping
// response writers.
func recordUploader(w http.ResponseWriter, uploader string) {
	for w != nil {
		if rec, ok := w.(interface{ SetUploader(string) }); ok {
			rec.SetUploader(uploader)
			return
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return
		}
		w = u.Unwrap()
	}
}

// IssueToken signs an identity token for uploader. A zero ttl gives a token
// without expiry.
func IssueToken(secret []byte, uploader string, ttl time.Duration) (string, error) {
	if uploader == "" {
		return "", ErrNoIdentity
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  uploader,
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   "clipstream",
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// WithUploader returns a context carrying uploader.
func WithUploader(ctx context.Context, uploader string) context.Context {
	return context.WithValue(ctx, identityKey{}, uploader)
}

// UploaderFromContext returns the uploader set by Identity.
func UploaderFromContext(ctx context.Context) (string, bool) {
	uploader, ok := ctx.Value(identityKey{}).(string)
	return uploader, ok && uploader != ""
}
