package config

import (
	"testing"

	"periodqc/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Catalog.Path != "final_comp_rel_df.csv" {
		t.Fatalf("catalog path: got %s", cfg.Catalog.Path)
	}
	if cfg.Catalog.TrueColumn != "Prot" || cfg.Catalog.MeasuredColumn != "prot_tess" || cfg.Catalog.StatusColumn != "status" {
		t.Fatalf("unexpected column config: %+v", cfg.Catalog)
	}
	if cfg.Catalog.PeriodMin != 0.2 || cfg.Catalog.PeriodMax != 20.0 {
		t.Fatalf("unexpected period range: %g..%g", cfg.Catalog.PeriodMin, cfg.Catalog.PeriodMax)
	}
	if cfg.Batch.Workers != 4 {
		t.Fatalf("workers: got %d", cfg.Batch.Workers)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("port: got %s", cfg.Server.Port)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CATALOG_FILE", "alt.csv")
	t.Setenv("CATALOG_MEASURED_COLUMN", "p_meas")
	t.Setenv("CATALOG_PERIOD_MAX", "30")
	t.Setenv("BATCH_WORKERS", "8")
	t.Setenv("DATABASE_URL", "postgres://localhost/stars")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Catalog.Path != "alt.csv" {
		t.Fatalf("catalog path: got %s", cfg.Catalog.Path)
	}
	if cfg.Catalog.MeasuredColumn != "p_meas" {
		t.Fatalf("measured column: got %s", cfg.Catalog.MeasuredColumn)
	}
	if cfg.Catalog.PeriodMax != 30 {
		t.Fatalf("period max: got %g", cfg.Catalog.PeriodMax)
	}
	if cfg.Batch.Workers != 8 {
		t.Fatalf("workers: got %d", cfg.Batch.Workers)
	}
	if cfg.Database.URL != "postgres://localhost/stars" {
		t.Fatalf("database url: got %s", cfg.Database.URL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero workers", key: "BATCH_WORKERS", value: "0"},
		{name: "inverted period range", key: "CATALOG_PERIOD_MIN", value: "25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if errors.GetCode(err) != errors.CodeConfigInvalid {
				t.Fatalf("got code %s, want %s", errors.GetCode(err), errors.CodeConfigInvalid)
			}
		})
	}
}

func TestUnparseableEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Batch.Workers != 4 {
		t.Fatalf("workers: got %d, want default 4", cfg.Batch.Workers)
	}
}
