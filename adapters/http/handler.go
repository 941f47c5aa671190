// Package http provides the HTTP transport of orderdesk: the intake webhook,
// health and version endpoints, metrics and the API documentation.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eurekapx/orderdesk/adapters/metrics"
	"github.com/eurekapx/orderdesk/app"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// maxBodyBytes bounds the size of an intake request body.
const maxBodyBytes = 1 << 20

// IntakeRequest is the JSON body posted by the order form.
type IntakeRequest struct {
	FirstName     string `json:"firstName" example:"Amani"`
	LastName      string `json:"lastName" example:"Kabila"`
	Email         string `json:"email" example:"amani@example.cd"`
	Phone         string `json:"phone" example:"+243810000000"`
	Company       string `json:"company,omitempty"`
	PaymentPlan   string `json:"paymentPlan" example:"4weeks"`
	PaymentMethod string `json:"paymentMethod" example:"airtel"`
	Currency      string `json:"currency" example:"usd"`
	Reference     string `json:"reference" example:"EPX-2025-0042"`
}

// Submission converts the request into a domain submission.
func (r IntakeRequest) Submission() order.Submission {
	return order.Submission{
		Reference: r.Reference,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Company:   r.Company,
		Plan:      r.PaymentPlan,
		Method:    r.PaymentMethod,
		Currency:  r.Currency,
	}
}

// IntakeResponse is returned once the order is recorded.
type IntakeResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// WebhookError is the error body of the intake webhook.
type WebhookError struct {
	Error string `json:"error"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
	Service string `json:"service" example:"orderdesk"`
}

// Submitter records order submissions.
type Submitter interface {
	Submit(ctx context.Context, sub order.Submission) (app.IntakeResult, error)
}

// IntakeHandler serves the order intake webhook.
type IntakeHandler struct {
	intake Submitter
	logger zerolog.Logger
}

// NewIntakeHandler creates the webhook handler.
func NewIntakeHandler(intake Submitter, logger zerolog.Logger) *IntakeHandler {
	return &IntakeHandler{intake: intake, logger: logger}
}

// ServeHTTP records a submitted order.
//
//	@Summary		Submit an order
//	@Description	Records an installment order and queues the invoice and reminders
//	@Tags			Intake
//	@Accept			json
//	@Produce		json
//	@Param			request	body		IntakeRequest	true	"Order form"
//	@Success		200		{object}	IntakeResponse
//	@Failure		400		{object}	WebhookError	"Invalid submission"
//	@Failure		500		{object}	WebhookError	"Ledger failure"
//	@Router			/webhook [post]
//	@Router			/api/orders [post]
func (h *IntakeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to read intake body")
		writeWebhookError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req IntakeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeWebhookError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.intake.Submit(r.Context(), req.Submission())
	if err != nil {
		if errors.Is(err, order.ErrValidation) {
			writeWebhookError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeWebhookError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, IntakeResponse{
		Success:   true,
		Reference: result.Order.Reference,
		Message:   "Commande enregistrée",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeWebhookError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, WebhookError{Error: msg})
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db Pinger
}

// Pinger checks that the ledger database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness returns a simple liveness check.
//
//	@Summary	Liveness check
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	map[string]string	"status: ok"
//	@Router		/health [get]
//	@Router		/health/live [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports whether the ledger database is reachable.
//
//	@Summary	Readiness check
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	map[string]string	"status: ok"
//	@Failure	503	{object}	map[string]string	"status: unhealthy"
//	@Router		/health/ready [get]
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionHandler returns the handler of /version.
func VersionHandler(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "orderdesk"})
	}
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // defaults to promhttp.Handler() when Metrics is set
	EnableOpenAPI  bool
	AdminHandler   http.Handler // mounted at /admin when set
	CORSOrigins    []string     // origins allowed to post to the webhook
	Version        string
	RequestTimeout time.Duration
}

// NewRouter creates the main HTTP router.
func NewRouter(intake *IntakeHandler, health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", VersionHandler(cfg.Version))

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	if cfg.EnableOpenAPI {
		r.Get("/.well-known/openapi.json", ServeOpenAPI)
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/.well-known/openapi.json"),
		))
	}

	// The order form posts cross-origin from the marketing site.
	r.Group(func(r chi.Router) {
		r.Use(NewCORSMiddleware(cfg.CORSOrigins))
		for _, path := range []string{"/webhook", "/api/orders"} {
			r.Method(http.MethodPost, path, intake)
			r.Options(path, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		}
	})

	if cfg.AdminHandler != nil {
		r.Mount("/admin", cfg.AdminHandler)
	}

	return r
}

// NewCORSMiddleware answers preflight requests and sets CORS headers for the
// configured origins. "*" allows any origin; an empty list disables CORS.
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	var origins []string
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	// cors treats an empty list as "*".
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:     origins,
		AllowedMethods:     []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type"},
		MaxAge:             600,
		OptionsPassthrough: true, // the router answers OPTIONS with 204
	})
}

// NewMetricsMiddleware creates middleware that records request metrics.
// Requests are labelled by chi route pattern to keep cardinality bounded.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipInstrumentation(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					path = p
				}
			}
			status := statusLabel(ww.Status())

			m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

func skipInstrumentation(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics" ||
		strings.HasPrefix(path, "/swagger") || strings.HasPrefix(path, "/.well-known")
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware logs every request except health checks and scrapes.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			event := logger.Debug()
			if ww.Status() >= 500 {
				event = logger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
