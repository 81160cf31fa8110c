// Package alerts evaluates threshold rules against telemetry samples and
// gates the resulting alerts through a per-kind cooldown.
package alerts

import "time"

// Kind identifies an alert rule. The set is open; new rules add new kinds.
type Kind string

const (
	KindDust           Kind = "DUST"
	KindLowPower       Kind = "LOW_POWER"
	KindOverheat       Kind = "OVERHEAT"
	KindEfficiencyDrop Kind = "EFFICIENCY_DROP"
)

// Severity grades an alert.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is one admitted alert, ready for broadcast. Alerts are events, not
// persisted entities; cooldown state is tracked separately by the Registry.
type Alert struct {
	Kind        Kind           `json:"kind"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context"`
	GeneratedAt time.Time      `json:"generatedAt"`
}
