// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// These are integration tests that require a running PostgreSQL instance.
package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "designdrip")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "designdrip")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

// migratedDB connects and migrates, skipping when PostgreSQL is absent.
func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Connect(ctx, testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestConnectSetsPoolAndApplicationName(t *testing.T) {
	db := migratedDB(t)

	if got := db.Stats().MaxOpenConnections; got != maxOpenConns {
		t.Errorf("max open conns = %d, want %d", got, maxOpenConns)
	}
	var app string
	if err := db.QueryRow("SELECT current_setting('application_name')").Scan(&app); err != nil {
		t.Fatal(err)
	}
	if app != applicationName {
		t.Errorf("application_name = %q, want %q", app, applicationName)
	}
}

func TestConnectFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for name, dsn := range map[string]string{
		"unparsable":  "postgres://%zz",
		"unreachable": "postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
	} {
		if _, err := Connect(ctx, dsn); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestMigrateCreatesSchemaAndIsIdempotent(t *testing.T) {
	db := migratedDB(t)

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	for _, table := range []string{"garments", "color_variants", "garment_views", "designs", "design_templates", "assets"} {
		var exists bool
		err := db.QueryRow(
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table,
		).Scan(&exists)
		if err != nil || !exists {
			t.Errorf("table %s missing after migration (err %v)", table, err)
		}
	}
}
