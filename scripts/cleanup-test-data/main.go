// cleanup-test-data removes test-like work orders and entry rows from the database.
//
// Test patterns matched (case-insensitive):
// - ^test (starts with "test")
// - test$ (ends with "test")
// - ^debug (debug prefix)
// - ^todo (todo prefix)
// - ^fixme (fixme prefix)
// - ^dummy (dummy prefix)
// - ^sample (sample prefix)
// - ^example (example prefix)
//
// Work orders are matched on their code; production and quality entries are
// matched on product_code. Holds referencing a deleted work order cascade.
//
// Usage: go run ./scripts/cleanup-test-data <client-id>
//
// Database connection: Uses standard PG* environment variables
//
// Flags:
//
//	-dry-run   Show what would be deleted without actually deleting (default: true)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// testCodePatterns defines regex patterns to identify test rows.
// These patterns are used with PostgreSQL's ~* (case-insensitive regex) operator.
var testCodePatterns = []string{
	`^test`,    // Starts with "test"
	`test$`,    // Ends with "test"
	`^debug`,   // Debug prefix
	`^todo`,    // Todo prefix
	`^fixme`,   // Fixme prefix
	`^dummy`,   // Dummy prefix
	`^sample`,  // Sample prefix
	`^example`, // Example prefix
}

func main() {
	dryRun := flag.Bool("dry-run", true, "Show what would be deleted without actually deleting")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-dry-run=false] <client-id>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		fmt.Fprintf(os.Stderr, "  -dry-run  Show what would be deleted without deleting (default: true)\n")
		os.Exit(1)
	}

	clientID, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid client ID: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to actually delete rows")
		fmt.Println()
	}

	totalDeleted := 0
	for _, pattern := range testCodePatterns {
		count, err := cleanupTestWorkOrders(ctx, conn, clientID, pattern, *dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error cleaning work orders for pattern %q: %v\n", pattern, err)
			os.Exit(1)
		}
		totalDeleted += count

		for _, table := range []string{"engine_production_entries", "engine_quality_entries"} {
			count, err := cleanupTestEntries(ctx, conn, table, clientID, pattern, *dryRun)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error cleaning %s for pattern %q: %v\n", table, pattern, err)
				os.Exit(1)
			}
			totalDeleted += count
		}
	}

	if *dryRun {
		fmt.Printf("\nTotal rows that would be deleted: %d\n", totalDeleted)
	} else {
		fmt.Printf("\nTotal rows deleted: %d\n", totalDeleted)
	}
}

// cleanupTestWorkOrders deletes work orders whose code matches the given regex
// pattern. If dryRun is true, it only shows what would be deleted without
// making changes.
func cleanupTestWorkOrders(ctx context.Context, conn *pgx.Conn, clientID uuid.UUID, pattern string, dryRun bool) (int, error) {
	if dryRun {
		rows, err := conn.Query(ctx, `
			SELECT code, product_code, quantity
			FROM engine_work_orders
			WHERE client_id = $1
			  AND code ~* $2
		`, clientID, pattern)
		if err != nil {
			return 0, fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		var count int
		for rows.Next() {
			var code, productCode string
			var quantity int
			if err := rows.Scan(&code, &productCode, &quantity); err != nil {
				return 0, fmt.Errorf("scan failed: %w", err)
			}
			count++
			fmt.Printf("  [%s] work order %q - product %s, qty %d\n", pattern, code, productCode, quantity)
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("rows iteration failed: %w", err)
		}

		if count == 0 {
			fmt.Printf("  [%s] No matching work orders\n", pattern)
		}
		return count, nil
	}

	result, err := conn.Exec(ctx, `
		DELETE FROM engine_work_orders
		WHERE client_id = $1
		  AND code ~* $2
	`, clientID, pattern)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	count := int(result.RowsAffected())
	fmt.Printf("Deleted %d work orders matching pattern: %s\n", count, pattern)
	return count, nil
}

// cleanupTestEntries deletes rows from the given entry table whose
// product_code matches the given regex pattern.
func cleanupTestEntries(ctx context.Context, conn *pgx.Conn, table string, clientID uuid.UUID, pattern string, dryRun bool) (int, error) {
	if dryRun {
		var count int
		err := conn.QueryRow(ctx, fmt.Sprintf(`
			SELECT COUNT(*)
			FROM %s
			WHERE client_id = $1
			  AND product_code ~* $2
		`, table), clientID, pattern).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("count failed: %w", err)
		}
		if count > 0 {
			fmt.Printf("  [%s] %d rows in %s\n", pattern, count, table)
		}
		return count, nil
	}

	result, err := conn.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE client_id = $1
		  AND product_code ~* $2
	`, table), clientID, pattern)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	count := int(result.RowsAffected())
	if count > 0 {
		fmt.Printf("Deleted %d rows from %s matching pattern: %s\n", count, table, pattern)
	}
	return count, nil
}

func buildConnString() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "postgres")
	password := os.Getenv("PGPASSWORD")
	dbname := getEnvOrDefault("PGDATABASE", "opsline_engine")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		connStr += fmt.Sprintf(" password=%s", password)
	}
	return connStr
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
