// Package postgres persists telemetry samples in a Postgres table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	telemetry "solaris-cloud/internal/telemetry/domain"
)

const defaultSampleTable = "solar_samples"

// SampleRepository is the Postgres implementation of the telemetry store.
type SampleRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*SampleRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *SampleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewSampleRepository constructs a repository with the default table name.
func NewSampleRepository(db *sql.DB, opts ...RepositoryOption) *SampleRepository {
	repo := &SampleRepository{db: db, table: defaultSampleTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Append inserts one sample, assigning its durable id and RecordedAt.
func (r *SampleRepository) Append(ctx context.Context, sample *telemetry.Sample) (string, error) {
	if r == nil || r.db == nil {
		return "", errors.New("sample repo: nil db")
	}
	if sample == nil {
		return "", errors.New("sample repo: nil sample")
	}

	id := "sample-" + uuid.NewString()
	recordedAt := time.Now().UTC()

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	temperature,
	humidity,
	dust_voltage,
	dust_density,
	light_raw,
	light_pct,
	tilt_angle,
	voltage,
	current,
	power,
	recorded_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
)`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		id,
		nullable(sample.Temperature),
		nullable(sample.Humidity),
		nullable(sample.DustVoltage),
		nullable(sample.DustDensity),
		nullable(sample.LightRaw),
		nullable(sample.LightPct),
		nullable(sample.TiltAngle),
		nullable(sample.Voltage),
		nullable(sample.Current),
		nullable(sample.Power),
		recordedAt,
	)
	if err != nil {
		return "", err
	}

	sample.ID = id
	sample.RecordedAt = recordedAt
	return id, nil
}

// Query loads samples matching the filter, most useful for the report API.
func (r *SampleRepository) Query(ctx context.Context, filter telemetry.Filter) ([]telemetry.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sample repo: nil db")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `
SELECT id, temperature, humidity, dust_voltage, dust_density, light_raw,
	light_pct, tilt_angle, voltage, current, power, recorded_at
FROM %s`, r.table)

	args := make([]any, 0, 2)
	conds := make([]string, 0, 2)
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		conds = append(conds, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		conds = append(conds, fmt.Sprintf("recorded_at < $%d", len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "recorded_at"
	}
	if _, ok := telemetry.SortColumns[sortBy]; !ok {
		return nil, fmt.Errorf("sample repo: unsupported sort column %q", filter.SortBy)
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s", sortBy, direction)
	if filter.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []telemetry.Sample
	for rows.Next() {
		var (
			sample                                        telemetry.Sample
			temperature, humidity, dustVoltage, dust      sql.NullFloat64
			lightRaw, lightPct, tilt, voltage, current, p sql.NullFloat64
		)
		if err := rows.Scan(
			&sample.ID,
			&temperature,
			&humidity,
			&dustVoltage,
			&dust,
			&lightRaw,
			&lightPct,
			&tilt,
			&voltage,
			&current,
			&p,
			&sample.RecordedAt,
		); err != nil {
			return nil, err
		}
		sample.Temperature = fromNull(temperature)
		sample.Humidity = fromNull(humidity)
		sample.DustVoltage = fromNull(dustVoltage)
		sample.DustDensity = fromNull(dust)
		sample.LightRaw = fromNull(lightRaw)
		sample.LightPct = fromNull(lightPct)
		sample.TiltAngle = fromNull(tilt)
		sample.Voltage = fromNull(voltage)
		sample.Current = fromNull(current)
		sample.Power = fromNull(p)
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func nullable(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func fromNull(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
