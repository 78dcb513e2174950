package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"clipstream/internal/database"
	"clipstream/internal/layout"
	"clipstream/internal/middleware"

	"golang.org/x/term"
)

const (
	// Default timeout for catalog operations
	defaultTimeout = 30 * time.Second
	// Default token lifetime
	defaultTokenTTL = 24 * time.Hour

	defaultDatabaseDir = "./data"
	defaultAssetsDir   = "./assets"
)

// readSecret prompts for the signing secret without echo.
var readSecret = func() ([]byte, error) {
	fmt.Fprint(os.Stderr, "Signing secret: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return secret, err
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	if command == "token" {
		if !issueToken(os.Stdout, os.Getenv("JWT_SECRET"), args) {
			os.Exit(1)
		}
		return
	}
	if !isCatalogCommand(command) {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command)) //nolint:gosec // G705 - sanitized via allowlist
		printUsage(os.Stdout)
		os.Exit(1)
	}

	catalog, err := openCatalog(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := catalog.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close catalog: %v\n", err)
		}
	}()

	assets := layout.New(getEnv("ASSETS_DIR", defaultAssetsDir))
	if !run(ctx, os.Stdout, catalog, assets, command, args) {
		os.Exit(1)
	}
}

func isCatalogCommand(command string) bool {
	switch command {
	case "status", "list", "hide", "show", "describe", "delete", "vacuum":
		return true
	}
	return false
}

func openCatalog(ctx context.Context) (database.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	driver := strings.ToLower(getEnv("CATALOG_DRIVER", database.DriverSQLite))
	target := filepath.Join(getEnv("DATABASE_DIR", defaultDatabaseDir), "catalog.db")
	if driver == database.DriverPostgres {
		target = os.Getenv("DATABASE_URL")
	}
	return database.Open(ctx, driver, target)
}

// run executes a catalog command and reports whether it succeeded.
func run(ctx context.Context, out io.Writer, catalog database.Catalog, assets *layout.Manager, command string, args []string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var err error
	switch command {
	case "status":
		err = showStatus(ctx, out, catalog)
	case "list":
		uploader := ""
		if len(args) > 0 {
			uploader = args[0]
		}
		err = listEntries(ctx, out, catalog, uploader)
	case "hide", "show":
		if len(args) != 1 {
			err = fmt.Errorf("usage: %s <id>", command)
			break
		}
		err = catalog.SetVisibility(ctx, args[0], command == "show")
		if err == nil {
			fmt.Fprintf(out, "Entry %s is now %s.\n", args[0], visibility(command == "show"))
		}
	case "describe":
		if len(args) < 2 {
			err = errors.New("usage: describe <id> <text>")
			break
		}
		err = catalog.UpdateDescription(ctx, args[0], strings.Join(args[1:], " "))
		if err == nil {
			fmt.Fprintf(out, "Description of %s updated.\n", args[0])
		}
	case "delete":
		if len(args) != 1 {
			err = errors.New("usage: delete <id>")
			break
		}
		err = deleteEntry(ctx, out, catalog, assets, args[0])
	case "vacuum":
		err = catalog.Vacuum(ctx)
		if err == nil {
			fmt.Fprintln(out, "Catalog vacuumed.")
		}
	default:
		err = fmt.Errorf("unknown command %s", sanitizeCommand(command))
	}

	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "Error: No such entry")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return false
	}
	return true
}

func showStatus(ctx context.Context, out io.Writer, catalog database.Catalog) error {
	counts, err := catalog.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Entries: %d (%d public, %d hidden)\n", counts.Total(), counts.Public, counts.Hidden)
	return nil
}

func listEntries(ctx context.Context, out io.Writer, catalog database.Catalog, uploader string) error {
	entries, err := catalog.List(ctx, database.ListOptions{
		Limit:         500,
		IncludeHidden: true,
		UploaderID:    uploader,
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tVISIBILITY\tUPLOADER\tTITLE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.CreatedAt.Format(time.RFC3339), visibility(e.IsPublic), e.UploaderID, e.Title)
	}
	return tw.Flush()
}

// deleteEntry removes the catalog row first so the entry disappears from
// listings before its files do.
func deleteEntry(ctx context.Context, out io.Writer, catalog database.Catalog, assets *layout.Manager, id string) error {
	paths, err := assets.ForID(id)
	if err != nil {
		return err
	}
	if err := catalog.Delete(ctx, id); err != nil {
		return err
	}
	if err := assets.Remove(paths); err != nil {
		return fmt.Errorf("entry deleted but assets remain: %w", err)
	}
	fmt.Fprintf(out, "Entry %s deleted.\n", id)
	return nil
}

func issueToken(out io.Writer, secret string, args []string) bool {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(os.Stderr, "Error: usage: token <uploader> [ttl]")
		return false
	}

	ttl := defaultTokenTTL
	if len(args) > 1 {
		parsed, err := time.ParseDuration(args[1])
		if err != nil || parsed <= 0 {
			fmt.Fprintf(os.Stderr, "Error: invalid ttl %q\n", args[1])
			return false
		}
		ttl = parsed
	}

	key := []byte(secret)
	if len(key) == 0 {
		var err error
		key, err = readSecret()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading secret: %v\n", err)
			return false
		}
	}
	if len(key) == 0 {
		fmt.Fprintln(os.Stderr, "Error: Signing secret must not be empty")
		return false
	}

	token, err := middleware.IssueToken(key, args[0], ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	fmt.Fprintln(out, token)
	return true
}

func visibility(public bool) string {
	if public {
		return "public"
	}
	return "hidden"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Clipstream Catalog Administration")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Usage: catalogctl <command> [arguments]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  status                  - Show entry counts")
	fmt.Fprintln(out, "  list [uploader]         - List all entries")
	fmt.Fprintln(out, "  hide <id>               - Hide an entry from public listings")
	fmt.Fprintln(out, "  show <id>               - Make an entry public")
	fmt.Fprintln(out, "  describe <id> <text>    - Replace an entry's description")
	fmt.Fprintln(out, "  delete <id>             - Delete an entry and its assets")
	fmt.Fprintln(out, "  vacuum                  - Reclaim space after deletes")
	fmt.Fprintln(out, "  token <uploader> [ttl]  - Mint an uploader token")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Environment:")
	fmt.Fprintf(out, "  CATALOG_DRIVER, DATABASE_DIR (default: %s), DATABASE_URL\n", defaultDatabaseDir)
	fmt.Fprintf(out, "  ASSETS_DIR (default: %s), JWT_SECRET\n", defaultAssetsDir)
}
