// Command catalogctl administers a clipstream catalog from the shell.
//
// Usage:
//
//	catalogctl <command> [arguments]
//
// Commands:
//
//	status                    Print entry counts.
//	list [uploader]           List entries, hidden ones included.
//	hide <id>                 Remove an entry from public listings.
//	show <id>                 Make a hidden entry public again.
//	describe <id> <text>      Replace an entry's description.
//	delete <id>               Delete an entry and its published assets.
//	vacuum                    Reclaim space left by deleted entries.
//	token <uploader> [ttl]    Mint an uploader identity token (default ttl 24h).
//
// Environment:
//
//	CATALOG_DRIVER - sqlite (default) or postgres
//	DATABASE_DIR   - SQLite directory (default: ./data)
//	DATABASE_URL   - Postgres connection string
//	ASSETS_DIR     - Asset root used by delete (default: ./assets)
//	JWT_SECRET     - Token signing secret; read from the terminal when unset
package main
