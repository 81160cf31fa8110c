package telemetry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no sample matches a lookup.
var ErrNotFound = errors.New("telemetry: sample not found")

// Sample is one canonical device reading. Optional fields are nil when the
// device omitted them or sent a non-numeric value.
type Sample struct {
	ID          string    `json:"id"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	DustVoltage *float64  `json:"dustVoltage,omitempty"`
	DustDensity *float64  `json:"dustDensity,omitempty"`
	LightRaw    *float64  `json:"lightRaw,omitempty"`
	LightPct    *float64  `json:"lightPercent,omitempty"`
	TiltAngle   *float64  `json:"tiltAngle,omitempty"`
	Voltage     *float64  `json:"voltage,omitempty"`
	Current     *float64  `json:"current,omitempty"`
	Power       *float64  `json:"power,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// Filter narrows a sample query. Zero From/To mean unbounded; To is exclusive.
type Filter struct {
	From   time.Time
	To     time.Time
	SortBy string
	Desc   bool
	Limit  int
}

// SortColumns lists the fields a query may sort on.
var SortColumns = map[string]struct{}{
	"recorded_at":  {},
	"temperature":  {},
	"humidity":     {},
	"dust_density": {},
	"light_pct":    {},
	"power":        {},
}

// Appender persists samples. Append assigns the durable id and RecordedAt.
type Appender interface {
	Append(ctx context.Context, sample *Sample) (string, error)
}

// Querier reads persisted samples for the report endpoints.
type Querier interface {
	Query(ctx context.Context, filter Filter) ([]Sample, error)
}

// Store combines the write and read contracts of the telemetry store.
type Store interface {
	Appender
	Querier
}

// Float returns a pointer to v; convenience for building samples.
func Float(v float64) *float64 { return &v }

// Value dereferences p, returning fallback when p is nil.
func Value(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
