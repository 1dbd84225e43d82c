// Package api exposes the focusforge HTTP surface: classification, time updates and dashboard queries.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"example.com/focusforge/internal/aggregate"
	"example.com/focusforge/internal/auth"
	"example.com/focusforge/internal/classify"
	"example.com/focusforge/internal/domain"
	"example.com/focusforge/internal/persistence"
)

// maxBodyBytes bounds request bodies; screenshots arrive inline as base64.
const maxBodyBytes = 12 << 20

// Handler coordinates HTTP requests with the classification and aggregation services.
type Handler struct {
	classifier *classify.Service
	aggregator *aggregate.Service
	logger     *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(classifier *classify.Service, aggregator *aggregate.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{classifier: classifier, aggregator: aggregator, logger: logger}
}

// RegisterRoutes mounts the authenticated /v1 endpoints. Callers wrap r with the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requireScope(auth.ScopeActivityWrite))
		r.Post("/classify", h.classify)
		r.Post("/time/update-time", h.updateTime)
		r.Post("/time/productive", h.legacyIncrement(true))
		r.Post("/time/unproductive", h.legacyIncrement(false))
	})
	r.Group(func(r chi.Router) {
		r.Use(requireScope(auth.ScopeActivityRead, auth.ScopeActivityWrite))
		r.Get("/time/today", h.today)
		r.Get("/time/week", h.week)
		r.Get("/time/month", h.month)
		r.Get("/time/year", h.year)
		r.Get("/time/heatmap", h.heatmap)
		r.Get("/time/hours", h.hours)
		r.Get("/time/weekly-hours", h.weeklyHours)
		r.Get("/time/categories", h.categories)
		r.Get("/time/streak", h.streak)
		r.Get("/time/history", h.history)
		r.Get("/screenshots/today", h.screenshotsToday)
	})
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.classifier.Classify(r.Context(), domain.ClassificationInput{
		Text:        req.Text,
		ImageBase64: req.ImageBase64,
		URL:         req.URL,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{
		Label:        string(result.Label),
		Score:        result.Score,
		ActivityType: result.ActivityType,
		StoredData:   result.StoredData,
		DataType:     string(result.DataType),
	})
}

func (h *Handler) updateTime(w http.ResponseWriter, r *http.Request) {
	var req UpdateTimeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Seconds == nil || req.IsProductive == nil {
		writeError(w, http.StatusBadRequest, string(domain.CodeInvalidInput), "seconds and isProductive are required")
		return
	}

	h.record(w, r, aggregate.UpdateInput{
		UserID:       userID(r),
		Seconds:      *req.Seconds,
		IsProductive: *req.IsProductive,
		ActivityType: req.ActivityType,
		URL:          req.URL,
		Text:         req.Text,
		ImageBase64:  req.ImageBase64,
		Score:        req.Score,
	})
}

func (h *Handler) legacyIncrement(productive bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IncrementRequest
		if !h.decode(w, r, &req) {
			return
		}
		h.record(w, r, aggregate.UpdateInput{
			UserID:       userID(r),
			Seconds:      req.Seconds,
			IsProductive: productive,
		})
	}
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request, input aggregate.UpdateInput) {
	summary, err := h.aggregator.RecordActivity(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryView(*summary))
}

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	summary, err := h.aggregator.TodaySummary(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryView(*summary))
}

func (h *Handler) week(w http.ResponseWriter, r *http.Request) {
	rollup, err := h.aggregator.Week(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupView(*rollup))
}

func (h *Handler) month(w http.ResponseWriter, r *http.Request) {
	rollup, err := h.aggregator.Month(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupView(*rollup))
}

func (h *Handler) year(w http.ResponseWriter, r *http.Request) {
	rollup, err := h.aggregator.Year(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupView(*rollup))
}

func (h *Handler) heatmap(w http.ResponseWriter, r *http.Request) {
	cells, err := h.aggregator.Heatmap(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]HeatmapCellView, 0, len(cells))
	for _, cell := range cells {
		out = append(out, HeatmapCellView{Date: domain.FormatDay(cell.Date), Count: cell.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) hours(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.aggregator.HourlyToday(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHourViews(buckets))
}

func (h *Handler) weeklyHours(w http.ResponseWriter, r *http.Request) {
	days, err := h.aggregator.WeeklyHours(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]DayHoursView, 0, len(days))
	for _, day := range days {
		out = append(out, DayHoursView{Date: domain.FormatDay(day.Date), Hourly: toHourViews(day.Hourly)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	totals, err := h.aggregator.Categories(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]CategoryView, 0, len(totals))
	for _, total := range totals {
		out = append(out, CategoryView{Category: total.Category, Seconds: total.Seconds})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) streak(w http.ResponseWriter, r *http.Request) {
	days, err := h.aggregator.Streak(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StreakView{Streak: days})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, string(domain.CodeInvalidInput), "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	entries, next, err := h.aggregator.History(r.Context(), userID(r), cursor, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := HistoryResponse{
		Items:      make([]HistoryEntryView, 0, len(entries)),
		NextCursor: persistence.EncodeCursor(next),
	}
	for _, entry := range entries {
		resp.Items = append(resp.Items, toHistoryView(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) screenshotsToday(w http.ResponseWriter, r *http.Request) {
	shots, err := h.aggregator.ScreenshotsToday(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := ScreenshotsResponse{Items: make([]ScreenshotView, 0, len(shots))}
	for _, shot := range shots {
		resp.Items = append(resp.Items, ScreenshotView{
			ID:          shot.ID,
			URL:         shot.URL,
			ImageBase64: shot.ImageBase64,
			CapturedAt:  shot.CapturedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into dst. Type mismatches and malformed bodies are rejected with 400.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		detail := "unable to parse body"
		var typeErr *json.UnmarshalTypeError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &typeErr):
			detail = "field " + typeErr.Field + " must be a " + typeErr.Type.String()
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, string(domain.CodeInvalidInput), "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, string(domain.CodeInvalidInput), detail)
		return false
	}
	return true
}

// fail maps a service error onto the status table of the API.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)
	detail := err.Error()
	if status >= http.StatusInternalServerError && code == domain.CodeInternal {
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		detail = "internal error"
	}
	writeError(w, status, string(code), detail)
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeNoValidSignal:
		return http.StatusUnprocessableEntity
	case domain.CodeUpstreamUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// requireScope rejects requests whose claims hold none of scopes.
func requireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, string(domain.CodeUnauthorized), "missing bearer token")
				return
			}
			if !claims.HasAnyScope(scopes...) {
				writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userID(r *http.Request) string {
	claims, _ := auth.FromContext(r.Context())
	if claims == nil {
		return ""
	}
	return claims.Subject
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
