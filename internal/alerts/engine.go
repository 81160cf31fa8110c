package alerts

import (
	"context"
	"errors"
	"time"

	"solaris-cloud/internal/observability/metrics"
	"solaris-cloud/internal/scoring"
	telemetry "solaris-cloud/internal/telemetry/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Engine evaluates every rule against each persisted sample and returns the
// alerts admitted by the cooldown registry. Rules are independent; one
// sample may fire several kinds at once.
type Engine struct {
	cfg       Config
	cooldown  *Registry
	scorer    scoring.Scorer
	humanizer Humanizer
	clock     Clock
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithClock overrides the default clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithHumanizer assigns an external message humanizer.
func WithHumanizer(humanizer Humanizer) EngineOption {
	return func(e *Engine) {
		e.humanizer = humanizer
	}
}

// NewEngine constructs an alert engine. The scorer is mandatory by contract;
// pass scoring.Disabled() when no model is deployed and the prediction rule
// degrades to a no-op.
func NewEngine(cfg Config, cooldown *Registry, scorer scoring.Scorer, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cooldown == nil {
		return nil, errors.New("alerts: nil cooldown registry")
	}
	if scorer == nil {
		return nil, errors.New("alerts: nil scorer")
	}
	engine := &Engine{
		cfg:      cfg,
		cooldown: cooldown,
		scorer:   scorer,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

type candidate struct {
	kind     Kind
	severity Severity
	context  map[string]any
}

// Evaluate runs all rules against one sample and returns the admitted
// alerts, each with its message resolved. It never returns an error: rule
// evaluation failures (scorer outages included) degrade silently.
func (e *Engine) Evaluate(ctx context.Context, sample telemetry.Sample) []Alert {
	if e == nil {
		return nil
	}

	var admitted []Alert
	for _, cand := range e.candidates(ctx, sample) {
		now := e.clock.Now().UTC()
		if !e.cooldown.Admit(cand.kind, now) {
			metrics.IncAlertSuppressed(string(cand.kind))
			continue
		}
		alert := Alert{
			Kind:        cand.kind,
			Severity:    cand.severity,
			Message:     e.message(ctx, cand),
			Context:     cand.context,
			GeneratedAt: now,
		}
		metrics.IncAlert(string(alert.Kind), string(alert.Severity))
		admitted = append(admitted, alert)
	}
	return admitted
}

func (e *Engine) candidates(ctx context.Context, sample telemetry.Sample) []candidate {
	candidates := make([]candidate, 0, 3)

	if sample.DustDensity != nil && *sample.DustDensity > e.cfg.DustThreshold {
		candidates = append(candidates, candidate{
			kind:     KindDust,
			severity: escalate(*sample.DustDensity, e.cfg.DustThreshold),
			context: map[string]any{
				"dustDensity": *sample.DustDensity,
				"threshold":   e.cfg.DustThreshold,
			},
		})
	}

	if sample.Power != nil && sample.LightPct != nil &&
		*sample.Power < e.cfg.LowPowerThreshold && *sample.LightPct > e.cfg.DaylightThreshold {
		candidates = append(candidates, candidate{
			kind:     KindLowPower,
			severity: SeverityWarning,
			context: map[string]any{
				"power":        *sample.Power,
				"lightPercent": *sample.LightPct,
				"threshold":    e.cfg.LowPowerThreshold,
			},
		})
	}

	if sample.Temperature != nil && *sample.Temperature > e.cfg.OverheatThreshold {
		candidates = append(candidates, candidate{
			kind:     KindOverheat,
			severity: escalate(*sample.Temperature, e.cfg.OverheatThreshold),
			context: map[string]any{
				"temperature": *sample.Temperature,
				"threshold":   e.cfg.OverheatThreshold,
			},
		})
	}

	if cand, ok := e.efficiencyDrop(ctx, sample); ok {
		candidates = append(candidates, cand)
	}
	return candidates
}

// efficiencyDrop compares measured power against the scorer's prediction.
// Any scorer failure means the rule simply does not fire.
func (e *Engine) efficiencyDrop(ctx context.Context, sample telemetry.Sample) (candidate, bool) {
	if sample.Power == nil {
		return candidate{}, false
	}
	features := []float64{
		telemetry.Value(sample.Temperature, 0),
		telemetry.Value(sample.Humidity, 0),
		telemetry.Value(sample.DustDensity, 0),
		telemetry.Value(sample.LightPct, 0),
		telemetry.Value(sample.TiltAngle, 0),
	}
	predicted, err := e.scorer.Score(ctx, features)
	if err != nil {
		if !errors.Is(err, scoring.ErrUnavailable) {
			metrics.IncScorerFailure()
		}
		return candidate{}, false
	}
	if predicted <= 0 {
		return candidate{}, false
	}

	drop := predicted - *sample.Power
	if drop <= e.cfg.EfficiencyDropAbs || drop/predicted <= e.cfg.EfficiencyDropPct {
		return candidate{}, false
	}
	return candidate{
		kind:     KindEfficiencyDrop,
		severity: SeverityWarning,
		context: map[string]any{
			"power":          *sample.Power,
			"predictedPower": predicted,
		},
	}, true
}

func (e *Engine) message(ctx context.Context, cand candidate) string {
	if e.humanizer != nil {
		if message, err := e.humanizer.Humanize(ctx, cand.kind, cand.context); err == nil && message != "" {
			return message
		}
	}
	return FallbackMessage(cand.kind, cand.context)
}

func escalate(value, threshold float64) Severity {
	if threshold > 0 && value >= 1.5*threshold {
		return SeverityCritical
	}
	return SeverityWarning
}
