package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"treasure-map/internal/domain/pending"
	"treasure-map/internal/domain/rating"
	jwtpkg "treasure-map/internal/platform/jwt"
	"treasure-map/internal/worker"
)

// Deleter removes links and summaries the viewer submitted.
type Deleter interface {
	DeleteLink(ctx context.Context, token, linkID string) error
	DeleteSummary(ctx context.Context, token, summaryID string) error
}

// StatsSource reports confirmed mutations per rating kind.
type StatsSource interface {
	Snapshot() map[rating.Kind]worker.Tally
}

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Ratings *rating.Service
	Pending *pending.Service
	Items   Deleter
	Stats   StatsSource
	JWT     *jwtpkg.Manager

	// Checks are pinged by /ready, keyed by store name.
	Checks map[string]HealthCheck

	LoginPath    string
	CookieSecure bool

	// Mutation rate limit per client IP. Zero means one request every six
	// seconds with a burst of 5.
	MutationRate  rate.Limit
	MutationBurst int
}

type Handler struct {
	ratings   *rating.Service
	pending   *pending.Service
	items     Deleter
	stats     StatsSource
	checks    map[string]HealthCheck
	loginPath string
	secure    bool
}

func NewRouter(d Deps) http.Handler {
	if d.LoginPath == "" {
		d.LoginPath = "/login"
	}
	if d.MutationRate == 0 {
		d.MutationRate = rate.Every(time.Minute / 10)
	}
	if d.MutationBurst == 0 {
		d.MutationBurst = 5
	}

	h := &Handler{
		ratings:   d.Ratings,
		pending:   d.Pending,
		items:     d.Items,
		stats:     d.Stats,
		checks:    d.Checks,
		loginPath: d.LoginPath,
		secure:    d.CookieSecure,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/stats", h.handleStats)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(d.JWT, d.LoginPath, d.CookieSecure))
		r.Use(ReplayMiddleware(d.Pending, d.LoginPath, d.CookieSecure))

		r.Get("/session", h.handleSession)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMutations(d.MutationRate, d.MutationBurst))

			r.Post("/links/{id}/{kind}", h.handleRateLink)
			r.Post("/summaries/{id}/like", h.handleLikeSummary)
			r.Delete("/links/{id}", h.handleDeleteLink)
			r.Delete("/summaries/{id}", h.handleDeleteSummary)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type sessionResponse struct {
	LoginName     string `json:"login_name,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Replayed      string `json:"replayed,omitempty"`
}

// @Summary     Current session
// @Description Reports the signed-in viewer. The first request after login also replays any deferred action.
// @Tags        session
// @Produce     json
// @Success     200  {object}  sessionResponse
// @Failure     302  "invalid session, redirected to login"
// @Router      /session [get]
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	name := loginNameFromCtx(r)
	writeJSON(w, http.StatusOK, sessionResponse{
		LoginName:     name,
		Authenticated: name != "",
		Replayed:      replayedFromCtx(r),
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":   name + "_unavailable",
				"message": name + " not ready",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleStats reports confirmed adds, removes and edits per rating kind
// since startup.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := map[rating.Kind]worker.Tally{}
	if h.stats != nil {
		snap = h.stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}
