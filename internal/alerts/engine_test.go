package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"solaris-cloud/internal/scoring"
	telemetry "solaris-cloud/internal/telemetry/domain"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type stubScorer struct {
	prediction float64
	err        error
}

func (s stubScorer) Score(_ context.Context, _ []float64) (float64, error) {
	return s.prediction, s.err
}

func testConfig() Config {
	return Config{
		DustThreshold:     100,
		LowPowerThreshold: 10,
		DaylightThreshold: 60,
		OverheatThreshold: 50,
		EfficiencyDropAbs: 5,
		EfficiencyDropPct: 0.25,
		CooldownWindow:    time.Minute,
	}
}

func newTestEngine(t *testing.T, scorer scoring.Scorer, clock Clock, opts ...EngineOption) *Engine {
	t.Helper()
	cfg := testConfig()
	opts = append([]EngineOption{WithClock(clock)}, opts...)
	engine, err := NewEngine(cfg, NewRegistry(cfg.CooldownWindow), scorer, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestEngineDustRule(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, scoring.Disabled(), clock)

	alerts := engine.Evaluate(context.Background(), telemetry.Sample{DustDensity: telemetry.Float(150)})
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.Kind != KindDust {
		t.Fatalf("expected DUST, got %s", alert.Kind)
	}
	if alert.Severity != SeverityCritical {
		t.Fatalf("expected CRITICAL at 1.5x threshold, got %s", alert.Severity)
	}
	if alert.Context["dustDensity"] != 150.0 {
		t.Fatalf("expected dustDensity 150 in context, got %v", alert.Context["dustDensity"])
	}
	if !alert.GeneratedAt.Equal(clock.now) {
		t.Fatalf("expected generatedAt %v, got %v", clock.now, alert.GeneratedAt)
	}
}

func TestEngineDustBelowThresholdSilent(t *testing.T) {
	engine := newTestEngine(t, scoring.Disabled(), &fixedClock{now: time.Now()})
	alerts := engine.Evaluate(context.Background(), telemetry.Sample{DustDensity: telemetry.Float(50)})
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %d", len(alerts))
	}
}

func TestEngineOverheatWarning(t *testing.T) {
	engine := newTestEngine(t, scoring.Disabled(), &fixedClock{now: time.Now()})

	alerts := engine.Evaluate(context.Background(), telemetry.Sample{Temperature: telemetry.Float(55)})
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	if alerts[0].Kind != KindOverheat || alerts[0].Severity != SeverityWarning {
		t.Fatalf("expected OVERHEAT WARNING, got %s %s", alerts[0].Kind, alerts[0].Severity)
	}
	if alerts[0].Context["temperature"] != 55.0 {
		t.Fatalf("expected temperature 55 in context, got %v", alerts[0].Context["temperature"])
	}
}

func TestEngineLowPowerRequiresDaylight(t *testing.T) {
	engine := newTestEngine(t, scoring.Disabled(), &fixedClock{now: time.Now()})

	// Low power at night: no alert.
	night := telemetry.Sample{Power: telemetry.Float(2), LightPct: telemetry.Float(10)}
	if alerts := engine.Evaluate(context.Background(), night); len(alerts) != 0 {
		t.Fatalf("expected no alert at night, got %d", len(alerts))
	}

	// Unknown light information: no alert.
	unknown := telemetry.Sample{Power: telemetry.Float(2)}
	if alerts := engine.Evaluate(context.Background(), unknown); len(alerts) != 0 {
		t.Fatalf("expected no alert without light info, got %d", len(alerts))
	}

	day := telemetry.Sample{Power: telemetry.Float(2), LightPct: telemetry.Float(80)}
	alerts := engine.Evaluate(context.Background(), day)
	if len(alerts) != 1 || alerts[0].Kind != KindLowPower {
		t.Fatalf("expected LOW_POWER in daylight, got %v", alerts)
	}
}

func TestEngineMultipleKindsOneSample(t *testing.T) {
	engine := newTestEngine(t, scoring.Disabled(), &fixedClock{now: time.Now()})

	sample := telemetry.Sample{
		DustDensity: telemetry.Float(120),
		Temperature: telemetry.Float(60),
		Power:       telemetry.Float(1),
		LightPct:    telemetry.Float(90),
	}
	alerts := engine.Evaluate(context.Background(), sample)
	if len(alerts) != 3 {
		t.Fatalf("expected three alerts, got %d", len(alerts))
	}
	kinds := map[Kind]bool{}
	for _, alert := range alerts {
		kinds[alert.Kind] = true
	}
	for _, want := range []Kind{KindDust, KindLowPower, KindOverheat} {
		if !kinds[want] {
			t.Fatalf("expected %s among alerts, got %v", want, kinds)
		}
	}
}

func TestEngineCooldownSuppressesAndRecovers(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, scoring.Disabled(), clock)
	sample := telemetry.Sample{DustDensity: telemetry.Float(150)}

	if alerts := engine.Evaluate(context.Background(), sample); len(alerts) != 1 {
		t.Fatalf("expected first evaluation to fire, got %d", len(alerts))
	}
	clock.now = clock.now.Add(30 * time.Second)
	if alerts := engine.Evaluate(context.Background(), sample); len(alerts) != 0 {
		t.Fatalf("expected suppression within window, got %d", len(alerts))
	}
	clock.now = clock.now.Add(time.Minute)
	if alerts := engine.Evaluate(context.Background(), sample); len(alerts) != 1 {
		t.Fatalf("expected fire after window elapsed, got %d", len(alerts))
	}
}

func TestEngineEfficiencyDrop(t *testing.T) {
	engine := newTestEngine(t, stubScorer{prediction: 20}, &fixedClock{now: time.Now()})

	// Measured 10 vs predicted 20: drop 10 > abs 5 and 50% > 25%.
	sample := telemetry.Sample{Power: telemetry.Float(10)}
	alerts := engine.Evaluate(context.Background(), sample)
	if len(alerts) != 1 || alerts[0].Kind != KindEfficiencyDrop {
		t.Fatalf("expected EFFICIENCY_DROP, got %v", alerts)
	}
	if alerts[0].Context["predictedPower"] != 20.0 {
		t.Fatalf("expected predictedPower 20, got %v", alerts[0].Context["predictedPower"])
	}
}

func TestEngineEfficiencyDropNeedsBothThresholds(t *testing.T) {
	// Drop of 6 exceeds abs threshold but is 6/100 = 6% < 25%.
	engine := newTestEngine(t, stubScorer{prediction: 100}, &fixedClock{now: time.Now()})
	sample := telemetry.Sample{Power: telemetry.Float(94)}
	if alerts := engine.Evaluate(context.Background(), sample); len(alerts) != 0 {
		t.Fatalf("expected no alert below relative threshold, got %d", len(alerts))
	}
}

func TestEngineScorerFailureDegradesSilently(t *testing.T) {
	engine := newTestEngine(t, stubScorer{err: errors.New("model offline")}, &fixedClock{now: time.Now()})
	sample := telemetry.Sample{Power: telemetry.Float(1)}
	if alerts := engine.Evaluate(context.Background(), sample); len(alerts) != 0 {
		t.Fatalf("expected scorer failure to suppress rule, got %d", len(alerts))
	}
}

type stubHumanizer struct {
	message string
	err     error
}

func (h stubHumanizer) Humanize(_ context.Context, _ Kind, _ map[string]any) (string, error) {
	return h.message, h.err
}

func TestEngineHumanizerMessage(t *testing.T) {
	engine := newTestEngine(t, scoring.Disabled(), &fixedClock{now: time.Now()},
		WithHumanizer(stubHumanizer{message: "dust is piling up on the panel"}))

	alerts := engine.Evaluate(context.Background(), telemetry.Sample{DustDensity: telemetry.Float(150)})
	if len(alerts) != 1 || alerts[0].Message != "dust is piling up on the panel" {
		t.Fatalf("expected humanized message, got %v", alerts)
	}
}

func TestEngineHumanizerFailureFallsBack(t *testing.T) {
	engine := newTestEngine(t, scoring.Disabled(), &fixedClock{now: time.Now()},
		WithHumanizer(stubHumanizer{err: errors.New("service down")}))

	alerts := engine.Evaluate(context.Background(), telemetry.Sample{DustDensity: telemetry.Float(150)})
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	if !strings.Contains(alerts[0].Message, "Dust density above threshold") {
		t.Fatalf("expected fallback message, got %q", alerts[0].Message)
	}
}
