package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"treasure-map/internal/domain/pending"
	"treasure-map/internal/metrics"
	jwtpkg "treasure-map/internal/platform/jwt"
)

type ctxKey string

const (
	ctxKeyLoginName ctxKey = "login_name"
	ctxKeyToken     ctxKey = "token"
	ctxKeyReplayed  ctxKey = "replayed"
)

const (
	cookieToken      = "token"
	cookieUser       = "user"
	cookieVisitor    = "visitor_id"
	cookieRedirectTo = "redirect_to"
)

var slogLogger = slog.Default()

func SetLogger(l *slog.Logger) {
	if l != nil {
		slogLogger = l
	}
}

// SessionMiddleware resolves the viewer from the token cookie, or from a
// bearer header for API clients. Requests without a session pass through
// anonymously; a session that does not verify is cleared and the browser
// is sent to the login page.
func SessionMiddleware(jm *jwtpkg.Manager, loginPath string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			_, userErr := r.Cookie(cookieUser)
			hasUser := userErr == nil

			if token == "" {
				if hasUser {
					clearCookie(w, cookieUser, "/", secure)
					http.Redirect(w, r, loginPath, http.StatusFound)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := jm.Parse(token)
			if err != nil {
				slogLogger.Info("invalid session", "error", err)
				clearCookie(w, cookieToken, "/", secure)
				clearCookie(w, cookieUser, "/", secure)
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyLoginName, claims.LoginName)
			ctx = context.WithValue(ctx, ctxKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ReplayMiddleware finishes an action the viewer started before signing in.
// It runs on the first request after login that still carries the
// visitor cookie, and drops the action if the viewer came back unsigned.
// Requests made from the login page itself leave the action alone.
func ReplayMiddleware(svc *pending.Service, loginPath string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fromLoginPage(r, loginPath) {
				next.ServeHTTP(w, r)
				return
			}
			c, err := r.Cookie(cookieVisitor)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := tokenFromCtx(r)
			if token == "" {
				if err := svc.Discard(r.Context(), c.Value); err != nil {
					slogLogger.Warn("discard pending action", "error", err)
				}
				clearCookie(w, cookieVisitor, "/", secure)
				next.ServeHTTP(w, r)
				return
			}

			a, err := svc.Replay(r.Context(), c.Value, token)
			switch {
			case err == nil:
				clearCookie(w, cookieVisitor, "/", secure)
				r = r.WithContext(context.WithValue(r.Context(), ctxKeyReplayed, a.String()))
			case errors.Is(err, pending.ErrNotFound):
				clearCookie(w, cookieVisitor, "/", secure)
			}
			// on a failed replay the action and cookie stay for the next try
			next.ServeHTTP(w, r)
		})
	}
}

// fromLoginPage reports whether the request was sent by the login page.
// The gateway only serves the API, so the page is recognised by the
// Referer the browser attaches to same-origin calls.
func fromLoginPage(r *http.Request, loginPath string) bool {
	ref := r.Referer()
	if ref == "" {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Path == loginPath
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(cookieToken); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func tokenFromCtx(r *http.Request) string {
	v, _ := r.Context().Value(ctxKeyToken).(string)
	return v
}

func loginNameFromCtx(r *http.Request) string {
	v, _ := r.Context().Value(ctxKeyLoginName).(string)
	return v
}

func replayedFromCtx(r *http.Request) string {
	v, _ := r.Context().Value(ctxKeyReplayed).(string)
	return v
}

func clearCookie(w http.ResponseWriter, name, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RateLimitMutations(r rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := newIPRateLimiter(r, burst, 10*time.Minute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.allow(ip) {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":       "rate_limited",
					"message":     "too many requests",
					"redirect_to": "/rate-limit",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)

		status := rw.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		metrics.IncRequest(r.Method, route, status)

		slogLogger.Info("request",
			"method", r.Method,
			"path", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	limit    rate.Limit
	burst    int
	entryTTL time.Duration
}

func newIPRateLimiter(limit rate.Limit, burst int, entryTTL time.Duration) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		limit:    limit,
		burst:    burst,
		entryTTL: entryTTL,
	}
}

func (l *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, ts := range l.lastSeen {
		if now.Sub(ts) > l.entryTTL {
			delete(l.limiters, key)
			delete(l.lastSeen, key)
		}
	}

	if limiter, ok := l.limiters[ip]; ok {
		l.lastSeen[ip] = now
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters[ip] = limiter
	l.lastSeen[ip] = now
	return limiter
}

func (l *ipRateLimiter) allow(ip string) bool {
	return l.getLimiter(ip).Allow()
}

func clientIP(r *http.Request) string {
	if xfwd := r.Header.Get("X-Forwarded-For"); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
