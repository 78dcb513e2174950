package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIdentity(t *testing.T) {
	secret := []byte("s3cret")

	valid, err := IssueToken(secret, "user-7", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, err := IssueToken([]byte("other"), "user-7", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "x"}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "user-7"}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUser string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "user-7"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + otherKey, http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized, ""},
		{"other algorithm", "Bearer " + hs512, http.StatusUnauthorized, ""},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = UploaderFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Identity(IdentityConfig{Secret: secret})(handler).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if gotUser != tt.wantUser {
				t.Errorf("uploader = %q, want %q", gotUser, tt.wantUser)
			}
			if tt.wantCode == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected WWW-Authenticate header on 401")
			}
		})
	}
}

func TestIssueToken_RequiresUploader(t *testing.T) {
	if _, err := IssueToken([]byte("k"), "", 0); err != ErrNoIdentity {
		t.Errorf("IssueToken() error = %v, want ErrNoIdentity", err)
	}
}

func TestUploaderFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if _, ok := UploaderFromContext(req.Context()); ok {
		t.Error("Expected no uploader on a bare request")
	}
}
