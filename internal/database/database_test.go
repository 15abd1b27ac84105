package database

import (
	"context"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestDialectClauses(t *testing.T) {
	if MySQL.LockClause() != " FOR UPDATE" || SQLite.LockClause() != "" {
		t.Fatal("unexpected lock clauses")
	}
	if MySQL.TxOptions() == nil || SQLite.TxOptions() != nil {
		t.Fatal("unexpected tx options")
	}
}

func TestSplitStatements(t *testing.T) {
	src := "-- header\nCREATE TABLE a (\n  id INT\n);\n\nCREATE INDEX i ON a (id);\n"
	got := splitStatements(src)
	if len(got) != 2 {
		t.Fatalf("got %d statements: %q", len(got), got)
	}
	if strings.HasSuffix(got[0], ";") || !strings.HasPrefix(got[1], "CREATE INDEX") {
		t.Fatalf("statements = %q", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSeedDefaultCatalog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cat, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	n, err := Seed(ctx, db, cat)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(cat.Games) || n == 0 {
		t.Fatalf("seeded %d games, catalog has %d", n, len(cat.Games))
	}
	// second run updates in place
	if _, err := Seed(ctx, db, cat); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	var games, images int
	if err := db.GetContext(ctx, &games, "SELECT COUNT(*) FROM games"); err != nil {
		t.Fatal(err)
	}
	if err := db.GetContext(ctx, &images, "SELECT COUNT(*) FROM game_images"); err != nil {
		t.Fatal(err)
	}
	wantImages := 0
	for _, g := range cat.Games {
		wantImages += len(g.Images)
	}
	if games != len(cat.Games) || images != wantImages {
		t.Fatalf("games=%d images=%d, want %d/%d", games, images, len(cat.Games), wantImages)
	}

	var available bool
	if err := db.GetContext(ctx, &available, "SELECT available FROM games WHERE name = ?", "Azul"); err != nil {
		t.Fatal(err)
	}
	if available {
		t.Fatal("Azul should be seeded as unavailable")
	}
}

func TestParseCatalogValidation(t *testing.T) {
	cases := map[string]string{
		"missing name":   "games:\n  - price: \"10\"\n",
		"bad price":      "games:\n  - name: X\n    price: free\n",
		"zero price":     "games:\n  - name: X\n    price: \"0\"\n",
		"negative stock": "games:\n  - name: X\n    price: \"5\"\n    stock: -1\n",
		"duplicate":      "games:\n  - name: X\n    price: \"5\"\n  - name: X\n    price: \"6\"\n",
	}
	for name, doc := range cases {
		if _, err := ParseCatalog([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
