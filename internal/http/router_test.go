package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"treasure-map/internal/client"
	"treasure-map/internal/domain/pending"
	"treasure-map/internal/domain/rating"
	jwtpkg "treasure-map/internal/platform/jwt"
	"treasure-map/internal/repository/memory"
	"treasure-map/internal/worker"
)

type upstreamCall struct {
	Method string
	Path   string
	Auth   string
}

type fakeUpstream struct {
	mu     sync.Mutex
	calls  []upstreamCall
	status int
	body   string
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.calls = append(u.calls, upstreamCall{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")})
	status, body := u.status, u.body
	u.mu.Unlock()

	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (u *fakeUpstream) respond(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status, u.body = status, body
}

func (u *fakeUpstream) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func (u *fakeUpstream) lastCall() upstreamCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.calls) == 0 {
		return upstreamCall{}
	}
	return u.calls[len(u.calls)-1]
}

type testEnv struct {
	server   *httptest.Server
	upstream *fakeUpstream
	store    *memory.PendingStore
	jwt      *jwtpkg.Manager
	stats    *worker.StatsWorker
	http     *http.Client
}

func setupServer(t *testing.T, checks map[string]HealthCheck) *testEnv {
	t.Helper()

	upstream := &fakeUpstream{status: http.StatusNoContent}
	upstreamSrv := httptest.NewServer(upstream)
	t.Cleanup(upstreamSrv.Close)

	api := client.New(upstreamSrv.URL, time.Second)
	store := memory.NewPendingStore(100, pending.DefaultTTL)
	jwtMgr := jwtpkg.NewManager("secret", "")

	events := make(chan rating.Event, 16)
	stats := worker.NewStatsWorker(events, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go stats.Run(ctx)

	router := NewRouter(Deps{
		Ratings:       rating.NewService(rating.NewAggregator(10, 3), api, events),
		Pending:       pending.NewService(store, api, nil),
		Items:         api,
		Stats:         stats,
		JWT:           jwtMgr,
		Checks:        checks,
		LoginPath:     "/login",
		MutationBurst: 100,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		server:   server,
		upstream: upstream,
		store:    store,
		jwt:      jwtMgr,
		stats:    stats,
		http: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}},
	}
}

func (e *testEnv) token(t *testing.T, loginName string) string {
	t.Helper()
	tok, err := e.jwt.Generate(loginName, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, e.server.URL+path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeRating(t *testing.T, resp *http.Response) ratingResponse {
	t.Helper()
	var payload ratingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode rating response: %v", err)
	}
	return payload
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func tokenCookie(tok string) *http.Cookie {
	return &http.Cookie{Name: cookieToken, Value: tok}
}

func TestStarEditUpdatesAggregate(t *testing.T) {
	env := setupServer(t, nil)
	tok := env.token(t, "bob")

	resp := env.do(t, http.MethodPost, "/api/v1/links/12/stars", ratingRequest{
		State: rating.State{YourValue: 1, AggregateValue: 2, ContributorCount: 2, EarliestContributors: []string{"alice", "bob"}},
		Value: 3,
	}, tokenCookie(tok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	got := decodeRating(t, resp)
	if got.Operation != rating.OpEdit || got.State.AggregateValue != 3 || got.State.YourValue != 3 {
		t.Fatalf("unexpected result %+v", got)
	}
	call := env.upstream.lastCall()
	if call.Method != http.MethodPost || call.Path != "/links/star" || call.Auth != "Bearer "+tok {
		t.Fatalf("unexpected upstream call %+v", call)
	}
}

func TestUpstreamRejectionRevertsState(t *testing.T) {
	env := setupServer(t, nil)
	env.upstream.respond(http.StatusBadRequest, `{"error":"rate limited"}`)

	before := rating.State{AggregateValue: 2, ContributorCount: 1, EarliestContributors: []string{"alice"}}
	resp := env.do(t, http.MethodPost, "/api/v1/links/12/like", ratingRequest{
		State: before,
		Value: 1,
	}, tokenCookie(env.token(t, "bob")))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	got := decodeRating(t, resp)
	if got.Message != "rate limited" || got.Error != "upstream_rejected" {
		t.Fatalf("unexpected error payload %+v", got)
	}
	if got.State.ContributorCount != 1 || got.State.YourValue != 0 || len(got.State.EarliestContributors) != 1 {
		t.Fatalf("expected reverted state, got %+v", got.State)
	}
}

func TestUpstreamStatusRedirects(t *testing.T) {
	env := setupServer(t, nil)
	tok := env.token(t, "bob")

	cases := []struct {
		status   int
		want     int
		redirect string
	}{
		{http.StatusTooManyRequests, http.StatusTooManyRequests, "/rate-limit"},
		{http.StatusNotFound, http.StatusNotFound, "/404"},
		{http.StatusInternalServerError, http.StatusBadGateway, "/500"},
	}
	for _, tc := range cases {
		env.upstream.respond(tc.status, "")
		resp := env.do(t, http.MethodPost, "/api/v1/links/3/copy", ratingRequest{Value: 1}, tokenCookie(tok))
		if resp.StatusCode != tc.want {
			t.Fatalf("upstream %d: expected %d, got %d", tc.status, tc.want, resp.StatusCode)
		}
		if got := decodeRating(t, resp); got.RedirectTo != tc.redirect {
			t.Fatalf("upstream %d: expected redirect %q, got %q", tc.status, tc.redirect, got.RedirectTo)
		}
	}
}

func TestAnonymousLikeIsDeferredAndReplayedAfterLogin(t *testing.T) {
	env := setupServer(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/summaries/78/like", ratingRequest{Value: 1, ReturnTo: "/u/alice"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	got := decodeRating(t, resp)
	if got.Error != "login_required" || got.RedirectTo != "/login" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if env.upstream.callCount() != 0 {
		t.Fatalf("anonymous mutation must not reach upstream")
	}

	visitor := findCookie(resp, cookieVisitor)
	if visitor == nil || visitor.Value == "" {
		t.Fatalf("expected visitor cookie")
	}
	redirect := findCookie(resp, cookieRedirectTo)
	if redirect == nil || redirect.Value != "/u/alice" || redirect.Path != "/login" || redirect.MaxAge != 300 {
		t.Fatalf("unexpected redirect cookie %+v", redirect)
	}
	if env.store.Len() != 1 {
		t.Fatalf("expected one pending action, got %d", env.store.Len())
	}

	env.upstream.respond(http.StatusOK, "")
	tok := env.token(t, "alice")
	sessionResp := env.do(t, http.MethodGet, "/api/v1/session", nil, tokenCookie(tok), &http.Cookie{Name: cookieVisitor, Value: visitor.Value})
	if sessionResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", sessionResp.StatusCode)
	}
	var session sessionResponse
	if err := json.NewDecoder(sessionResp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Replayed != "like summary 78" || session.LoginName != "alice" {
		t.Fatalf("unexpected session %+v", session)
	}
	call := env.upstream.lastCall()
	if call.Method != http.MethodPost || call.Path != "/summaries/78/like" || call.Auth != "Bearer "+tok {
		t.Fatalf("unexpected replay call %+v", call)
	}

	// the visitor cookie is cleared and the action is gone
	if c := findCookie(sessionResp, cookieVisitor); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected visitor cookie to be cleared, got %+v", c)
	}
	again := env.do(t, http.MethodGet, "/api/v1/session", nil, tokenCookie(tok), &http.Cookie{Name: cookieVisitor, Value: visitor.Value})
	var second sessionResponse
	_ = json.NewDecoder(again.Body).Decode(&second)
	if second.Replayed != "" || env.upstream.callCount() != 1 {
		t.Fatalf("action replayed twice")
	}
}

func TestAnonymousStarsAreNotDeferred(t *testing.T) {
	env := setupServer(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/links/12/stars", ratingRequest{Value: 2})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if findCookie(resp, cookieVisitor) != nil || env.store.Len() != 0 {
		t.Fatalf("star ratings must not be deferred")
	}
}

func TestAbandonedLoginDiscardsAction(t *testing.T) {
	env := setupServer(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/links/9/copy", ratingRequest{Value: 1})
	visitor := findCookie(resp, cookieVisitor)
	if visitor == nil {
		t.Fatalf("expected visitor cookie")
	}

	env.do(t, http.MethodGet, "/api/v1/session", nil, &http.Cookie{Name: cookieVisitor, Value: visitor.Value})

	if _, err := env.store.Take(context.Background(), visitor.Value); !errors.Is(err, pending.ErrNotFound) {
		t.Fatalf("expected action to be discarded, got %v", err)
	}
}

func TestInvalidSessionRedirectsToLogin(t *testing.T) {
	env := setupServer(t, nil)
	forged := jwtpkg.NewManager("other-secret", "")
	tok, _ := forged.Generate("mallory", time.Hour)

	resp := env.do(t, http.MethodGet, "/api/v1/session", nil, tokenCookie(tok), &http.Cookie{Name: cookieUser, Value: "mallory"})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %q", loc)
	}
	for _, name := range []string{cookieToken, cookieUser} {
		if c := findCookie(resp, name); c == nil || c.MaxAge >= 0 {
			t.Fatalf("expected %s cookie to be cleared", name)
		}
	}
}

func TestUserCookieWithoutTokenRedirects(t *testing.T) {
	env := setupServer(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/session", nil, &http.Cookie{Name: cookieUser, Value: "bob"})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
}

func TestBearerHeaderIsAccepted(t *testing.T) {
	env := setupServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "carol"))
	resp, err := env.http.Do(req)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer resp.Body.Close()

	var session sessionResponse
	_ = json.NewDecoder(resp.Body).Decode(&session)
	if !session.Authenticated || session.LoginName != "carol" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestInvalidInputs(t *testing.T) {
	env := setupServer(t, nil)
	tok := tokenCookie(env.token(t, "bob"))

	resp := env.do(t, http.MethodPost, "/api/v1/links/1/stars", ratingRequest{Value: 4}, tok)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range stars, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/links/1/hearts", ratingRequest{Value: 1}, tok)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/links/1/like", ratingRequest{
		State: rating.State{ContributorCount: -1},
		Value: 1,
	}, tok)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid state, got %d", resp.StatusCode)
	}
	if env.upstream.callCount() != 0 {
		t.Fatalf("invalid input must not reach upstream")
	}
}

func TestDeleteLinkOwnership(t *testing.T) {
	env := setupServer(t, nil)
	tok := tokenCookie(env.token(t, "bob"))

	resp := env.do(t, http.MethodDelete, "/api/v1/links/33", deleteRequest{SubmittedBy: "alice"}, tok)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if env.upstream.callCount() != 0 {
		t.Fatalf("forbidden delete must not reach upstream")
	}

	env.upstream.respond(http.StatusResetContent, "")
	resp = env.do(t, http.MethodDelete, "/api/v1/links/33", deleteRequest{SubmittedBy: "bob"}, tok)
	if resp.StatusCode != http.StatusResetContent {
		t.Fatalf("expected 205, got %d", resp.StatusCode)
	}
	if call := env.upstream.lastCall(); call.Method != http.MethodDelete || call.Path != "/links" {
		t.Fatalf("unexpected upstream call %+v", call)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/links/33", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
	}
}

func TestDeleteSummary(t *testing.T) {
	env := setupServer(t, nil)
	tok := tokenCookie(env.token(t, "bob"))

	resp := env.do(t, http.MethodDelete, "/api/v1/summaries/78", deleteRequest{SubmittedBy: "alice"}, tok)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	env.upstream.respond(http.StatusResetContent, "")
	resp = env.do(t, http.MethodDelete, "/api/v1/summaries/78", nil, tok)
	if resp.StatusCode != http.StatusResetContent {
		t.Fatalf("expected 205, got %d", resp.StatusCode)
	}
	if call := env.upstream.lastCall(); call.Method != http.MethodDelete || call.Path != "/summaries" {
		t.Fatalf("unexpected upstream call %+v", call)
	}

	env.upstream.respond(http.StatusUnauthorized, "")
	resp = env.do(t, http.MethodDelete, "/api/v1/summaries/78", nil, tok)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on upstream rejection, got %d", resp.StatusCode)
	}
}

func TestMutationRateLimit(t *testing.T) {
	upstream := httptest.NewServer(&fakeUpstream{status: http.StatusNoContent})
	defer upstream.Close()
	api := client.New(upstream.URL, time.Second)

	router := NewRouter(Deps{
		Ratings:       rating.NewService(rating.NewAggregator(10, 3), api, nil),
		Pending:       pending.NewService(memory.NewPendingStore(10, time.Minute), api, nil),
		Items:         api,
		JWT:           jwtpkg.NewManager("secret", ""),
		MutationBurst: 1,
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/links/1/like", bytes.NewReader([]byte(`{"value":1}`)))
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	env := setupServer(t, map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	resp := env.do(t, http.MethodGet, "/ready", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var payload map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload["error"] != "redis_unavailable" {
		t.Fatalf("unexpected payload %v", payload)
	}

	healthy := setupServer(t, nil)
	if resp := healthy.do(t, http.MethodGet, "/ready", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with no checks, got %d", resp.StatusCode)
	}
}

func TestUpstreamUnauthorizedKeepsActionForNextLogin(t *testing.T) {
	env := setupServer(t, nil)
	stale := env.token(t, "alice")
	env.upstream.respond(http.StatusUnauthorized, "")

	resp := env.do(t, http.MethodPost, "/api/v1/links/12/like", ratingRequest{Value: 1}, tokenCookie(stale))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if c := findCookie(resp, cookieToken); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected token cookie to be cleared, got %+v", c)
	}
	visitor := findCookie(resp, cookieVisitor)
	if visitor == nil || env.store.Len() != 1 {
		t.Fatalf("expected the like to be deferred")
	}

	// upstream still rejects the token, so the replay fails and the action stays
	resp = env.do(t, http.MethodGet, "/api/v1/session", nil, tokenCookie(stale), &http.Cookie{Name: cookieVisitor, Value: visitor.Value})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if env.store.Len() != 1 {
		t.Fatalf("failed replay must keep the action")
	}
	if c := findCookie(resp, cookieVisitor); c != nil && c.MaxAge < 0 {
		t.Fatalf("failed replay must keep the visitor cookie")
	}

	env.upstream.respond(http.StatusOK, "")
	resp = env.do(t, http.MethodGet, "/api/v1/session", nil, tokenCookie(env.token(t, "alice")), &http.Cookie{Name: cookieVisitor, Value: visitor.Value})
	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Replayed != "like link 12" || env.store.Len() != 0 {
		t.Fatalf("expected replay after fresh login, got %+v", session)
	}
}

func TestLoginPageKeepsPendingAction(t *testing.T) {
	env := setupServer(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/links/9/like", ratingRequest{Value: 1})
	visitor := findCookie(resp, cookieVisitor)
	if visitor == nil {
		t.Fatalf("expected visitor cookie")
	}

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/session", nil)
	req.Header.Set("Referer", env.server.URL+"/login?next=%2Fu%2Falice")
	req.AddCookie(&http.Cookie{Name: cookieVisitor, Value: visitor.Value})
	resp, err := env.http.Do(req)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer resp.Body.Close()

	if env.store.Len() != 1 {
		t.Fatalf("login page request must keep the action")
	}
	if c := findCookie(resp, cookieVisitor); c != nil && c.MaxAge < 0 {
		t.Fatalf("login page request must keep the visitor cookie")
	}
}

func TestStatsCountsConfirmedMutations(t *testing.T) {
	env := setupServer(t, nil)
	tok := tokenCookie(env.token(t, "bob"))

	resp := env.do(t, http.MethodPost, "/api/v1/links/5/like", ratingRequest{Value: 1}, tok)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.stats.Snapshot()[rating.KindLike].Adds != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("like never reached the stats worker")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp = env.do(t, http.MethodGet, "/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload map[rating.Kind]worker.Tally
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if payload[rating.KindLike].Adds != 1 || payload[rating.KindStars] != (worker.Tally{}) {
		t.Fatalf("unexpected stats %+v", payload)
	}
}
