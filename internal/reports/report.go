// Package reports serves the read-side query and report endpoints over the
// telemetry store.
package reports

import (
	"sort"
	"time"

	telemetry "solaris-cloud/internal/telemetry/domain"
)

// MetricSummary aggregates one measurement across a sample set. Samples
// counts only readings where the device reported the field.
type MetricSummary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
	Samples int     `json:"samples"`
}

// DeviceReport is the summary produced by the devicereport endpoint.
type DeviceReport struct {
	GeneratedAt     time.Time      `json:"generatedAt"`
	From            *time.Time     `json:"from,omitempty"`
	To              *time.Time     `json:"to,omitempty"`
	SampleCount     int            `json:"sampleCount"`
	FirstRecordedAt time.Time      `json:"firstRecordedAt,omitempty"`
	LastRecordedAt  time.Time      `json:"lastRecordedAt,omitempty"`
	Temperature     *MetricSummary `json:"temperature,omitempty"`
	Humidity        *MetricSummary `json:"humidity,omitempty"`
	DustDensity     *MetricSummary `json:"dustDensity,omitempty"`
	LightPct        *MetricSummary `json:"lightPercent,omitempty"`
	Power           *MetricSummary `json:"power,omitempty"`
}

// EfficiencyBucket is one time bucket of the efficiency report.
type EfficiencyBucket struct {
	Bucket         time.Time `json:"bucket"`
	AvgPower       float64   `json:"avgPower"`
	AvgLightPct    float64   `json:"avgLightPercent"`
	AvgTemperature float64   `json:"avgTemperature"`
	Samples        int       `json:"samples"`
}

// EfficiencyReport summarizes panel output over a period. Efficiency is the
// ratio of average power to peak power; zero when no power readings exist.
type EfficiencyReport struct {
	Period       string             `json:"period"`
	From         time.Time          `json:"from"`
	To           time.Time          `json:"to"`
	AveragePower float64            `json:"averagePower"`
	PeakPower    float64            `json:"peakPower"`
	Efficiency   float64            `json:"efficiency"`
	Buckets      []EfficiencyBucket `json:"buckets"`
}

func summarize(samples []telemetry.Sample, pick func(telemetry.Sample) *float64) *MetricSummary {
	var summary MetricSummary
	var sum float64
	for _, sample := range samples {
		value := pick(sample)
		if value == nil {
			continue
		}
		if summary.Samples == 0 || *value < summary.Min {
			summary.Min = *value
		}
		if summary.Samples == 0 || *value > summary.Max {
			summary.Max = *value
		}
		sum += *value
		summary.Samples++
	}
	if summary.Samples == 0 {
		return nil
	}
	summary.Avg = sum / float64(summary.Samples)
	return &summary
}

func buildDeviceReport(samples []telemetry.Sample, from, to *time.Time, now time.Time) DeviceReport {
	report := DeviceReport{
		GeneratedAt: now.UTC(),
		From:        from,
		To:          to,
		SampleCount: len(samples),
	}
	for _, sample := range samples {
		if report.FirstRecordedAt.IsZero() || sample.RecordedAt.Before(report.FirstRecordedAt) {
			report.FirstRecordedAt = sample.RecordedAt
		}
		if sample.RecordedAt.After(report.LastRecordedAt) {
			report.LastRecordedAt = sample.RecordedAt
		}
	}
	report.Temperature = summarize(samples, func(s telemetry.Sample) *float64 { return s.Temperature })
	report.Humidity = summarize(samples, func(s telemetry.Sample) *float64 { return s.Humidity })
	report.DustDensity = summarize(samples, func(s telemetry.Sample) *float64 { return s.DustDensity })
	report.LightPct = summarize(samples, func(s telemetry.Sample) *float64 { return s.LightPct })
	report.Power = summarize(samples, func(s telemetry.Sample) *float64 { return s.Power })
	return report
}

func buildEfficiencyReport(period string, samples []telemetry.Sample, from, to time.Time, bucket time.Duration) EfficiencyReport {
	report := EfficiencyReport{
		Period: period,
		From:   from,
		To:     to,
	}

	type accumulator struct {
		power, light, temperature    float64
		powerN, lightN, temperatureN int
	}
	buckets := make(map[time.Time]*accumulator)

	var powerSum float64
	var powerN int
	for _, sample := range samples {
		key := sample.RecordedAt.UTC().Truncate(bucket)
		acc := buckets[key]
		if acc == nil {
			acc = &accumulator{}
			buckets[key] = acc
		}
		if sample.Power != nil {
			acc.power += *sample.Power
			acc.powerN++
			powerSum += *sample.Power
			powerN++
			if *sample.Power > report.PeakPower {
				report.PeakPower = *sample.Power
			}
		}
		if sample.LightPct != nil {
			acc.light += *sample.LightPct
			acc.lightN++
		}
		if sample.Temperature != nil {
			acc.temperature += *sample.Temperature
			acc.temperatureN++
		}
	}

	if powerN > 0 {
		report.AveragePower = powerSum / float64(powerN)
	}
	if report.PeakPower > 0 {
		report.Efficiency = report.AveragePower / report.PeakPower
	}

	keys := make([]time.Time, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	for _, key := range keys {
		acc := buckets[key]
		entry := EfficiencyBucket{Bucket: key}
		if acc.powerN > 0 {
			entry.AvgPower = acc.power / float64(acc.powerN)
			entry.Samples = acc.powerN
		}
		if acc.lightN > 0 {
			entry.AvgLightPct = acc.light / float64(acc.lightN)
			if acc.lightN > entry.Samples {
				entry.Samples = acc.lightN
			}
		}
		if acc.temperatureN > 0 {
			entry.AvgTemperature = acc.temperature / float64(acc.temperatureN)
			if acc.temperatureN > entry.Samples {
				entry.Samples = acc.temperatureN
			}
		}
		report.Buckets = append(report.Buckets, entry)
	}
	return report
}
