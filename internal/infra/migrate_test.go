package infra

import "testing"

func TestMigrationURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/kolo?sslmode=disable": "pgx5://u:p@db:5432/kolo?sslmode=disable",
		"postgresql://db/kolo":                        "pgx5://db/kolo",
		"pgx5://db/kolo":                              "pgx5://db/kolo",
	}
	for in, want := range tests {
		if got := migrationURL(in); got != want {
			t.Errorf("migrationURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 || len(entries)%2 != 0 {
		t.Fatalf("expected paired up/down migrations, got %d files", len(entries))
	}
}
