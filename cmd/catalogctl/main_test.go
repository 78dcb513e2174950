package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clipstream/internal/database"
	"clipstream/internal/layout"
)

const testID = "6f1c7a52-3b0e-4f43-9d7a-2c5e8b1a9f04"

func setupTestCatalog(t *testing.T) (*database.Database, *layout.Manager) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create test catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	entry := &database.Entry{
		ID:            testID,
		Title:         "Harbour at dusk",
		UploaderID:    "alice",
		DurationSec:   42,
		HLSPath:       "hls/" + testID + "/index.m3u8",
		ThumbnailPath: "thumbs/" + testID + ".jpg",
		IsPublic:      true,
		CreatedAt:     time.Now(),
	}
	if err := db.Publish(context.Background(), entry); err != nil {
		t.Fatal(err)
	}

	assets := layout.New(filepath.Join(dir, "assets"))
	paths, err := assets.ForID(testID)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(paths.SegmentDir, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(paths.Manifest, []byte("#EXTM3U\n"), 0o644)
	os.MkdirAll(filepath.Dir(paths.Thumbnail), 0o755)
	os.WriteFile(paths.Thumbnail, []byte("jpeg"), 0o644)

	return db, assets
}

func TestPrintUsage(t *testing.T) {
	var out bytes.Buffer
	printUsage(&out)

	for _, cmd := range []string{"status", "list", "hide", "show", "describe", "delete", "vacuum", "token"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("Usage should mention %q", cmd)
		}
	}
}

func TestRunCommands(t *testing.T) {
	db, assets := setupTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		command string
		args    []string
		ok      bool
		output  string
	}{
		{command: "status", ok: true, output: "1 public, 0 hidden"},
		{command: "list", ok: true, output: "Harbour at dusk"},
		{command: "list", args: []string{"bob"}, ok: true, output: "TITLE"},
		{command: "hide", args: []string{testID}, ok: true, output: "hidden"},
		{command: "status", ok: true, output: "0 public, 1 hidden"},
		{command: "list", ok: true, output: "hidden"},
		{command: "show", args: []string{testID}, ok: true, output: "public"},
		{command: "describe", args: []string{testID, "Boats", "coming", "in"}, ok: true, output: "updated"},
		{command: "vacuum", ok: true, output: "vacuumed"},
		{command: "hide", ok: false},
		{command: "hide", args: []string{"f0f0f0f0-0000-4000-8000-000000000000"}, ok: false},
		{command: "describe", args: []string{testID}, ok: false},
		{command: "bogus", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.command+" "+strings.Join(tt.args, " "), func(t *testing.T) {
			var out bytes.Buffer
			if got := run(ctx, &out, db, assets, tt.command, tt.args); got != tt.ok {
				t.Fatalf("run() = %v, want %v", got, tt.ok)
			}
			if tt.output != "" && !strings.Contains(out.String(), tt.output) {
				t.Errorf("output %q should contain %q", out.String(), tt.output)
			}
		})
	}

	entry, err := db.GetByID(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Description != "Boats coming in" {
		t.Errorf("Description = %q", entry.Description)
	}
}

func TestDeleteRemovesAssets(t *testing.T) {
	db, assets := setupTestCatalog(t)
	ctx := context.Background()
	paths, _ := assets.ForID(testID)

	var out bytes.Buffer
	if !run(ctx, &out, db, assets, "delete", []string{testID}) {
		t.Fatal("delete failed")
	}

	if _, err := db.GetByID(ctx, testID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	for _, p := range []string{paths.SegmentDir, paths.Thumbnail} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", p)
		}
	}

	if run(ctx, &out, db, assets, "delete", []string{testID}) {
		t.Error("Deleting a missing entry should fail")
	}
	if run(ctx, &out, db, assets, "delete", []string{"../../etc"}) {
		t.Error("Deleting a malformed id should fail")
	}
}

func TestIssueToken(t *testing.T) {
	var out bytes.Buffer
	if !issueToken(&out, "s3cret", []string{"alice", "1h"}) {
		t.Fatal("issueToken failed")
	}

	raw := strings.TrimSpace(out.String())
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want alice", claims.Subject)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl <= 0 || ttl > time.Hour+time.Minute {
		t.Errorf("Unexpected expiry in %v", ttl)
	}
}

func TestIssueToken_Errors(t *testing.T) {
	orig := readSecret
	t.Cleanup(func() { readSecret = orig })
	readSecret = func() ([]byte, error) { return nil, nil }

	tests := []struct {
		name   string
		secret string
		args   []string
	}{
		{name: "no uploader", secret: "s", args: nil},
		{name: "blank uploader", secret: "s", args: []string{"  "}},
		{name: "bad ttl", secret: "s", args: []string{"alice", "forever"}},
		{name: "negative ttl", secret: "s", args: []string{"alice", "-1h"}},
		{name: "empty secret", secret: "", args: []string{"alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if issueToken(&out, tt.secret, tt.args) {
				t.Error("issueToken should fail")
			}
			if out.Len() != 0 {
				t.Errorf("No token should be printed, got %q", out.String())
			}
		})
	}
}

func TestIssueToken_PromptsForSecret(t *testing.T) {
	orig := readSecret
	t.Cleanup(func() { readSecret = orig })

	var prompted bool
	readSecret = func() ([]byte, error) {
		prompted = true
		return []byte("typed"), nil
	}

	var out bytes.Buffer
	if !issueToken(&out, "", []string{"bob"}) {
		t.Fatal("issueToken failed")
	}
	if !prompted {
		t.Error("Expected the secret to be read from the terminal")
	}
}

func TestIsCatalogCommand(t *testing.T) {
	for _, cmd := range []string{"status", "list", "hide", "show", "describe", "delete", "vacuum"} {
		if !isCatalogCommand(cmd) {
			t.Errorf("isCatalogCommand(%q) = false", cmd)
		}
	}
	for _, cmd := range []string{"token", "reset", ""} {
		if isCatalogCommand(cmd) {
			t.Errorf("isCatalogCommand(%q) = true", cmd)
		}
	}
}

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"status", "status"},
		{"hide-all_2", "hide-all_2"},
		{"rm -rf /", "rm_-rf__"},
		{"\x1b[31mred", "__31mred"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeCommand(tt.in); got != tt.want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
