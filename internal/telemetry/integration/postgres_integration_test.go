package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	telemetry "solaris-cloud/internal/telemetry/domain"
	telemetrypostgres "solaris-cloud/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const testTable = "solar_samples_it"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func resetTestTable(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+testTable+` (
	id TEXT PRIMARY KEY,
	temperature DOUBLE PRECISION,
	humidity DOUBLE PRECISION,
	dust_voltage DOUBLE PRECISION,
	dust_density DOUBLE PRECISION,
	light_raw DOUBLE PRECISION,
	light_pct DOUBLE PRECISION,
	tilt_angle DOUBLE PRECISION,
	voltage DOUBLE PRECISION,
	current DOUBLE PRECISION,
	power DOUBLE PRECISION,
	recorded_at TIMESTAMPTZ NOT NULL
)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM `+testTable); err != nil {
		t.Fatalf("truncate table: %v", err)
	}
}

func TestSampleRepositoryAppendAndQuery(t *testing.T) {
	db := openTestDB(t)
	resetTestTable(t, db)

	ctx := context.Background()
	repo := telemetrypostgres.NewSampleRepository(db, telemetrypostgres.WithTable(testTable))

	for i := 0; i < 5; i++ {
		sample := telemetry.Sample{
			Temperature: telemetry.Float(30 + float64(i)),
			Humidity:    telemetry.Float(60),
			DustDensity: telemetry.Float(float64(40 + 10*i)),
			LightPct:    telemetry.Float(80),
			Voltage:     telemetry.Float(12),
			Current:     telemetry.Float(0.5 + float64(i)*0.1),
			Power:       telemetry.Float(12 * (0.5 + float64(i)*0.1)),
		}
		id, err := repo.Append(ctx, &sample)
		if err != nil {
			t.Fatalf("append sample %d: %v", i, err)
		}
		if id == "" || sample.ID != id {
			t.Fatalf("append did not assign id: %q vs %q", id, sample.ID)
		}
		if sample.RecordedAt.IsZero() {
			t.Fatal("append did not assign recorded_at")
		}
	}

	samples, err := repo.Query(ctx, telemetry.Filter{SortBy: "recorded_at", Desc: false})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].RecordedAt.Before(samples[i-1].RecordedAt) {
			t.Fatal("expected ascending recorded_at order")
		}
	}

	byDust, err := repo.Query(ctx, telemetry.Filter{SortBy: "dust_density", Desc: true, Limit: 2})
	if err != nil {
		t.Fatalf("query by dust: %v", err)
	}
	if len(byDust) != 2 {
		t.Fatalf("expected limit 2, got %d", len(byDust))
	}
	if telemetry.Value(byDust[0].DustDensity, 0) != 80 {
		t.Fatalf("expected highest dust 80 first, got %v", telemetry.Value(byDust[0].DustDensity, 0))
	}

	cutoff := time.Now().UTC().Add(time.Minute)
	windowed, err := repo.Query(ctx, telemetry.Filter{From: cutoff})
	if err != nil {
		t.Fatalf("query window: %v", err)
	}
	if len(windowed) != 0 {
		t.Fatalf("expected no samples after cutoff, got %d", len(windowed))
	}
}

func TestSampleRepositoryRejectsUnknownSortColumn(t *testing.T) {
	db := openTestDB(t)
	resetTestTable(t, db)

	repo := telemetrypostgres.NewSampleRepository(db, telemetrypostgres.WithTable(testTable))
	if _, err := repo.Query(context.Background(), telemetry.Filter{SortBy: "id; DROP TABLE"}); err == nil {
		t.Fatal("expected error for unknown sort column")
	}
}
