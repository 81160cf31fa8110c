package reports

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	telemetry "solaris-cloud/internal/telemetry/domain"
)

const (
	dateLayout    = "2006-01-02"
	defaultLimit  = 1000
	maxLimit      = 10000
	periodDaily   = "daily"
	periodWeekly  = "weekly"
	periodMonthly = "monthly"
)

// Handler serves the data query and report endpoints.
type Handler struct {
	store         telemetry.Querier
	dustThreshold float64
	logger        *log.Logger
	now           func() time.Time
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithNow overrides the time source.
func WithNow(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a report handler over the telemetry store.
func NewHandler(store telemetry.Querier, dustThreshold float64, logger *log.Logger, opts ...HandlerOption) (*Handler, error) {
	if store == nil {
		return nil, errors.New("reports: store is required")
	}
	if logger == nil {
		return nil, errors.New("reports: logger is required")
	}
	h := &Handler{
		store:         store,
		dustThreshold: dustThreshold,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the report routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/data", h.handleData)
	mux.HandleFunc("/api/v1/data/efficiency/", h.handleEfficiency)
	mux.HandleFunc("/api/v1/data/devicereport", h.handleDeviceReport)
	mux.HandleFunc("/api/v1/data/dust", h.handleDust)
}

// handleData serves GET /api/v1/data.
func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := h.store.Query(r.Context(), filter)
	if err != nil {
		h.logger.Printf("reports: query data: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(samples),
		"data":    samples,
	})
}

// handleEfficiency serves GET /api/v1/data/efficiency/{daily|weekly|monthly}.
func (h *Handler) handleEfficiency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	period := strings.TrimPrefix(r.URL.Path, "/api/v1/data/efficiency/")
	var window, bucket time.Duration
	switch period {
	case periodDaily:
		window, bucket = 24*time.Hour, time.Hour
	case periodWeekly:
		window, bucket = 7*24*time.Hour, 24*time.Hour
	case periodMonthly:
		window, bucket = 30*24*time.Hour, 24*time.Hour
	default:
		writeError(w, http.StatusBadRequest, "period must be daily, weekly or monthly")
		return
	}

	to := h.now().UTC()
	from := to.Add(-window)
	samples, err := h.store.Query(r.Context(), telemetry.Filter{
		From:   from,
		To:     to,
		SortBy: "recorded_at",
	})
	if err != nil {
		h.logger.Printf("reports: query efficiency: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	report := buildEfficiencyReport(period, samples, from, to, bucket)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report":  report,
	})
}

// handleDeviceReport serves GET /api/v1/data/devicereport. The format query
// parameter selects json (default), xlsx or pdf.
func (h *Handler) handleDeviceReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.SortBy = "recorded_at"
	filter.Desc = false

	samples, err := h.store.Query(r.Context(), filter)
	if err != nil {
		h.logger.Printf("reports: query devicereport: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	var from, to *time.Time
	if !filter.From.IsZero() {
		from = &filter.From
	}
	if !filter.To.IsZero() {
		to = &filter.To
	}
	report := buildDeviceReport(samples, from, to, h.now())

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"report":  report,
		})
	case "xlsx":
		payload, err := BuildDeviceReportXLSX(report)
		if err != nil {
			h.logger.Printf("reports: build xlsx: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="device-report.xlsx"`)
		_, _ = w.Write(payload)
	case "pdf":
		payload, err := BuildDeviceReportPDF(report)
		if err != nil {
			h.logger.Printf("reports: build pdf: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="device-report.pdf"`)
		_, _ = w.Write(payload)
	default:
		writeError(w, http.StatusBadRequest, "format must be json, xlsx or pdf")
	}
}

// handleDust serves GET /api/v1/data/dust with the latest dust reading.
func (h *Handler) handleDust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	samples, err := h.store.Query(r.Context(), telemetry.Filter{
		SortBy: "recorded_at",
		Desc:   true,
		Limit:  50,
	})
	if err != nil {
		h.logger.Printf("reports: query dust: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	for _, sample := range samples {
		if sample.DustDensity == nil {
			continue
		}
		body := map[string]any{
			"success":     true,
			"dustDensity": *sample.DustDensity,
			"threshold":   h.dustThreshold,
			"recordedAt":  sample.RecordedAt,
		}
		if h.dustThreshold > 0 {
			body["percentOfThreshold"] = *sample.DustDensity / h.dustThreshold * 100
		}
		writeJSON(w, http.StatusOK, body)
		return
	}

	writeError(w, http.StatusNotFound, "no dust reading available")
}

// parseFilter reads startDate, endDate, sortBy, order and limit query
// parameters. endDate is inclusive of the whole day.
func parseFilter(r *http.Request) (telemetry.Filter, error) {
	var filter telemetry.Filter
	query := r.URL.Query()

	if raw := query.Get("startDate"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return filter, errors.New("startDate must be YYYY-MM-DD or RFC3339")
		}
		filter.From = parsed
	}
	if raw := query.Get("endDate"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return filter, errors.New("endDate must be YYYY-MM-DD or RFC3339")
		}
		filter.To = parsed.Add(24 * time.Hour)
	}

	filter.SortBy = "recorded_at"
	filter.Desc = true
	if sortBy := query.Get("sortBy"); sortBy != "" {
		if _, ok := telemetry.SortColumns[sortBy]; !ok {
			return filter, errors.New("sortBy is not a sortable column")
		}
		filter.SortBy = sortBy
		filter.Desc = false
	}
	switch query.Get("order") {
	case "":
	case "asc":
		filter.Desc = false
	case "desc":
		filter.Desc = true
	default:
		return filter, errors.New("order must be asc or desc")
	}

	filter.Limit = defaultLimit
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		filter.Limit = limit
	}
	return filter, nil
}

func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
