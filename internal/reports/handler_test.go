package reports

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	telemetry "solaris-cloud/internal/telemetry/domain"
)

type stubStore struct {
	samples    []telemetry.Sample
	err        error
	lastFilter telemetry.Filter
}

func (s *stubStore) Query(_ context.Context, filter telemetry.Filter) ([]telemetry.Sample, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.samples, nil
}

func newTestHandler(t *testing.T, store *stubStore, dustThreshold float64, now time.Time) *Handler {
	t.Helper()
	logger := log.New(&strings.Builder{}, "", 0)
	h, err := NewHandler(store, dustThreshold, logger, WithNow(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func sampleAt(t time.Time, power, light, temperature float64) telemetry.Sample {
	return telemetry.Sample{
		Temperature: telemetry.Float(temperature),
		LightPct:    telemetry.Float(light),
		Power:       telemetry.Float(power),
		RecordedAt:  t,
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestDataDefaults(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := &stubStore{samples: []telemetry.Sample{
		sampleAt(now.Add(-time.Minute), 10, 80, 30),
		sampleAt(now.Add(-2*time.Minute), 12, 70, 29),
	}}
	h := newTestHandler(t, store, 100, now)

	rec := httptest.NewRecorder()
	h.handleData(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success true, got %v", body["success"])
	}
	if body["count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", body["count"])
	}
	if store.lastFilter.SortBy != "recorded_at" || !store.lastFilter.Desc {
		t.Fatalf("expected default sort recorded_at desc, got %+v", store.lastFilter)
	}
	if store.lastFilter.Limit != defaultLimit {
		t.Fatalf("expected default limit %d, got %d", defaultLimit, store.lastFilter.Limit)
	}
}

func TestDataDateRangeIncludesEndDay(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := &stubStore{}
	h := newTestHandler(t, store, 100, now)

	rec := httptest.NewRecorder()
	h.handleData(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data?startDate=2026-08-01&endDate=2026-08-02", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	wantFrom := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	if !store.lastFilter.From.Equal(wantFrom) {
		t.Fatalf("expected From %v, got %v", wantFrom, store.lastFilter.From)
	}
	if !store.lastFilter.To.Equal(wantTo) {
		t.Fatalf("expected To %v (end day inclusive), got %v", wantTo, store.lastFilter.To)
	}
}

func TestDataRejectsUnknownSortColumn(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	h := newTestHandler(t, &stubStore{}, 100, now)

	rec := httptest.NewRecorder()
	h.handleData(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data?sortBy=voltage_drop", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Fatalf("expected success false, got %v", body["success"])
	}
}

func TestEfficiencyDaily(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := &stubStore{samples: []telemetry.Sample{
		sampleAt(now.Add(-2*time.Hour), 10, 80, 30),
		sampleAt(now.Add(-2*time.Hour+10*time.Minute), 30, 90, 31),
		sampleAt(now.Add(-time.Hour), 20, 85, 32),
	}}
	h := newTestHandler(t, store, 100, now)

	rec := httptest.NewRecorder()
	h.handleEfficiency(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data/efficiency/daily", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Success bool             `json:"success"`
		Report  EfficiencyReport `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success {
		t.Fatal("expected success true")
	}
	if body.Report.Period != "daily" {
		t.Fatalf("expected period daily, got %q", body.Report.Period)
	}
	if body.Report.PeakPower != 30 {
		t.Fatalf("expected peak power 30, got %v", body.Report.PeakPower)
	}
	if body.Report.AveragePower != 20 {
		t.Fatalf("expected average power 20, got %v", body.Report.AveragePower)
	}
	if got, want := body.Report.Efficiency, 20.0/30.0; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("expected efficiency %v, got %v", want, got)
	}
	if len(body.Report.Buckets) != 2 {
		t.Fatalf("expected 2 hourly buckets, got %d", len(body.Report.Buckets))
	}
	if body.Report.Buckets[0].AvgPower != 20 {
		t.Fatalf("expected first bucket avg power 20, got %v", body.Report.Buckets[0].AvgPower)
	}
}

func TestEfficiencyRejectsUnknownPeriod(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	h := newTestHandler(t, &stubStore{}, 100, now)

	rec := httptest.NewRecorder()
	h.handleEfficiency(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data/efficiency/hourly", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeviceReportJSON(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := &stubStore{samples: []telemetry.Sample{
		sampleAt(now.Add(-2*time.Hour), 10, 80, 30),
		sampleAt(now.Add(-time.Hour), 20, 90, 34),
	}}
	h := newTestHandler(t, store, 100, now)

	rec := httptest.NewRecorder()
	h.handleDeviceReport(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data/devicereport", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Success bool         `json:"success"`
		Report  DeviceReport `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Report.SampleCount != 2 {
		t.Fatalf("expected 2 samples, got %d", body.Report.SampleCount)
	}
	if body.Report.Power == nil {
		t.Fatal("expected power summary")
	}
	if body.Report.Power.Min != 10 || body.Report.Power.Max != 20 || body.Report.Power.Avg != 15 {
		t.Fatalf("unexpected power summary: %+v", body.Report.Power)
	}
	if body.Report.Temperature.Max != 34 {
		t.Fatalf("expected max temperature 34, got %v", body.Report.Temperature.Max)
	}
	if body.Report.DustDensity != nil {
		t.Fatal("expected no dust summary for samples without dust")
	}
	if !body.Report.FirstRecordedAt.Equal(now.Add(-2 * time.Hour)) {
		t.Fatalf("unexpected first reading time: %v", body.Report.FirstRecordedAt)
	}
}

func TestDeviceReportExports(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := &stubStore{samples: []telemetry.Sample{
		sampleAt(now.Add(-time.Hour), 20, 90, 34),
	}}
	h := newTestHandler(t, store, 100, now)

	rec := httptest.NewRecorder()
	h.handleDeviceReport(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data/devicereport?format=xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx: expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("xlsx: expected non-empty document")
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Fatalf("xlsx: unexpected content type %q", got)
	}

	rec = httptest.NewRecorder()
	h.handleDeviceReport(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data/devicereport?format=pdf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf: expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatal("pdf: expected PDF magic bytes")
	}

	rec = httptest.NewRecorder()
	h.handleDeviceReport(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data/devicereport?format=docx", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestDustLatestReading(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	noDust := sampleAt(now.Add(-time.Minute), 20, 90, 34)
	withDust := sampleAt(now.Add(-2*time.Minute), 18, 88, 33)
	withDust.DustDensity = telemetry.Float(50)
	store := &stubStore{samples: []telemetry.Sample{noDust, withDust}}
	h := newTestHandler(t, store, 100, now)

	rec := httptest.NewRecorder()
	h.handleDust(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data/dust", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["dustDensity"] != float64(50) {
		t.Fatalf("expected dustDensity 50, got %v", body["dustDensity"])
	}
	if body["percentOfThreshold"] != float64(50) {
		t.Fatalf("expected percentOfThreshold 50, got %v", body["percentOfThreshold"])
	}
	if !store.lastFilter.Desc || store.lastFilter.SortBy != "recorded_at" {
		t.Fatalf("expected newest-first query, got %+v", store.lastFilter)
	}
}

func TestDustNoReadingAvailable(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	h := newTestHandler(t, &stubStore{}, 100, now)

	rec := httptest.NewRecorder()
	h.handleDust(rec, httptest.NewRequest(http.MethodGet, "/api/v1/data/dust", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
