// Package memory is an in-memory telemetry store for demo/testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	telemetry "solaris-cloud/internal/telemetry/domain"
)

// SampleRepository keeps samples in memory, in append order.
type SampleRepository struct {
	mu      sync.RWMutex
	samples []telemetry.Sample

	failNext error
}

// NewSampleRepository constructs an empty repository.
func NewSampleRepository() *SampleRepository {
	return &SampleRepository{}
}

// FailNextAppend makes the next Append return err; used by tests to
// exercise the store-failure path.
func (r *SampleRepository) FailNextAppend(err error) {
	r.mu.Lock()
	r.failNext = err
	r.mu.Unlock()
}

// Append stores one sample, assigning its id and RecordedAt.
func (r *SampleRepository) Append(ctx context.Context, sample *telemetry.Sample) (string, error) {
	_ = ctx
	if sample == nil {
		return "", errors.New("memory sample repo: nil sample")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return "", err
	}
	sample.ID = "sample-" + uuid.NewString()
	sample.RecordedAt = time.Now().UTC()
	r.samples = append(r.samples, *sample)
	return sample.ID, nil
}

// Query returns samples matching the filter.
func (r *SampleRepository) Query(ctx context.Context, filter telemetry.Filter) ([]telemetry.Sample, error) {
	_ = ctx
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "recorded_at"
	}
	if _, ok := telemetry.SortColumns[sortBy]; !ok {
		return nil, fmt.Errorf("memory sample repo: unsupported sort column %q", filter.SortBy)
	}

	r.mu.RLock()
	matched := make([]telemetry.Sample, 0, len(r.samples))
	for _, sample := range r.samples {
		if !filter.From.IsZero() && sample.RecordedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sample.RecordedAt.Before(filter.To) {
			continue
		}
		matched = append(matched, sample)
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		less := sortLess(matched[i], matched[j], sortBy)
		if filter.Desc {
			return !less
		}
		return less
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Len reports the number of stored samples.
func (r *SampleRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.samples)
}

func sortLess(a, b telemetry.Sample, column string) bool {
	switch column {
	case "temperature":
		return telemetry.Value(a.Temperature, 0) < telemetry.Value(b.Temperature, 0)
	case "humidity":
		return telemetry.Value(a.Humidity, 0) < telemetry.Value(b.Humidity, 0)
	case "dust_density":
		return telemetry.Value(a.DustDensity, 0) < telemetry.Value(b.DustDensity, 0)
	case "light_pct":
		return telemetry.Value(a.LightPct, 0) < telemetry.Value(b.LightPct, 0)
	case "power":
		return telemetry.Value(a.Power, 0) < telemetry.Value(b.Power, 0)
	default:
		return a.RecordedAt.Before(b.RecordedAt)
	}
}
