package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipstream/internal/database"
	"clipstream/internal/handlers"
	"clipstream/internal/middleware"
	"clipstream/internal/startup"
)

func newTestRouter(t *testing.T, secret []byte) http.Handler {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := handlers.New(handlers.Options{
		Catalog:   db,
		AssetsDir: t.TempDir(),
		UploadDir: t.TempDir(),
	})
	return setupRouter(h, middleware.Identity(middleware.IdentityConfig{Secret: secret}))
}

func TestSetupRouter(t *testing.T) {
	router := newTestRouter(t, []byte("secret"))

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/livez", http.StatusOK},
		{http.MethodHead, "/livez", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/api/videos", http.StatusOK},
		{http.MethodGet, "/api/videos/2f0e9c2e-8a61-4b55-9a8e-3c1a4f1b7d10", http.StatusNotFound},
		{http.MethodGet, "/static/hls/missing/index.m3u8", http.StatusNotFound},
		{http.MethodPost, "/api/videos/upload", http.StatusUnauthorized},
		{http.MethodGet, "/api/jobs/abc", http.StatusUnauthorized},
		{http.MethodDelete, "/api/videos", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestSetupRouter_TokenReachesJobRoute(t *testing.T) {
	secret := []byte("secret")
	router := newTestRouter(t, secret)

	token, err := middleware.IssueToken(secret, "alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// No tracker is configured, so an authenticated lookup is a plain 404.
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestRoutesAreLogged(t *testing.T) {
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	router := setupRouter(handlers.New(handlers.Options{Catalog: db}), middleware.Identity(middleware.IdentityConfig{}))
	routes, err := startup.GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	var upload bool
	for _, r := range routes {
		if r.Method == http.MethodPost && strings.HasSuffix(r.Path, "/videos/upload") {
			upload = true
		}
	}
	if !upload {
		t.Error("Expected the upload route to be registered")
	}
}

func TestShutdownTimeout(t *testing.T) {
	if shutdownTimeout < 10*time.Second {
		t.Errorf("shutdownTimeout = %v, jobs need time to clean up", shutdownTimeout)
	}
}
