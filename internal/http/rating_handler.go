package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"treasure-map/internal/client"
	"treasure-map/internal/domain/pending"
	"treasure-map/internal/domain/rating"
	"treasure-map/internal/platform/apperr"
)

// redirectCookieMaxAge bounds the login round trip, in seconds.
const redirectCookieMaxAge = 300

type ratingRequest struct {
	State    rating.State `json:"state"`
	Value    int          `json:"value"`
	ReturnTo string       `json:"return_to,omitempty"`
}

type ratingResponse struct {
	State      rating.State     `json:"state"`
	Operation  rating.Operation `json:"operation,omitempty"`
	Error      string           `json:"error,omitempty"`
	Message    string           `json:"message,omitempty"`
	RedirectTo string           `json:"redirect_to,omitempty"`
}

// @Summary     Rate, like or copy a link
// @Description Applies the viewer's new value to the rendered aggregate and sends the change upstream. On failure the unchanged state is returned.
// @Tags        ratings
// @Accept      json
// @Produce     json
// @Param       id       path      string         true  "Link ID"
// @Param       kind     path      string         true  "stars, like or copy"
// @Param       request  body      ratingRequest  true  "Rendered state and new value"
// @Success     200      {object}  ratingResponse
// @Failure     400      {object}  ratingResponse  "invalid value or state"
// @Failure     401      {object}  ratingResponse  "login required"
// @Failure     409      {object}  ratingResponse  "change already in flight"
// @Failure     429      {object}  ratingResponse  "rate limited"
// @Failure     502      {object}  ratingResponse  "upstream failed"
// @Router      /links/{id}/{kind} [post]
func (h *Handler) handleRateLink(w http.ResponseWriter, r *http.Request) {
	kind, ok := rating.ParseKind(chi.URLParam(r, "kind"))
	if !ok || kind == rating.KindSummaryLike {
		h.errorResponse(w, apperr.NotFound("unknown_kind", "unknown rating kind", nil))
		return
	}
	h.applyRating(w, r, kind)
}

// @Summary     Like a summary
// @Tags        ratings
// @Accept      json
// @Produce     json
// @Param       id       path      string         true  "Summary ID"
// @Param       request  body      ratingRequest  true  "Rendered state and new value"
// @Success     200      {object}  ratingResponse
// @Failure     401      {object}  ratingResponse  "login required"
// @Failure     502      {object}  ratingResponse  "upstream failed"
// @Router      /summaries/{id}/like [post]
func (h *Handler) handleLikeSummary(w http.ResponseWriter, r *http.Request) {
	h.applyRating(w, r, rating.KindSummaryLike)
}

func (h *Handler) applyRating(w http.ResponseWriter, r *http.Request, kind rating.Kind) {
	targetID := chi.URLParam(r, "id")
	if targetID == "" || strings.ContainsAny(targetID, " /?#") {
		h.errorResponse(w, apperr.BadRequest("invalid_input", "invalid id", nil))
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	if tokenFromCtx(r) == "" {
		h.loginRequired(w, r, kind, targetID, req)
		return
	}

	res, err := h.ratings.Apply(r.Context(), rating.Change{
		Kind:     kind,
		TargetID: targetID,
		Viewer:   loginNameFromCtx(r),
		Token:    tokenFromCtx(r),
		State:    req.State,
		Value:    req.Value,
	})
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			// upstream no longer accepts the token, so the next request
			// must not replay with it
			clearCookie(w, cookieToken, "/", h.secure)
			clearCookie(w, cookieUser, "/", h.secure)
			h.loginRequired(w, r, kind, targetID, req)
			return
		}
		appErr := mapError(err, h.loginPath)
		writeJSON(w, appErr.StatusCode(), ratingResponse{
			State:      res.State,
			Operation:  res.Operation,
			Error:      appErr.Code,
			Message:    appErr.Message,
			RedirectTo: appErr.RedirectTo,
		})
		return
	}

	writeJSON(w, http.StatusOK, ratingResponse{State: res.State, Operation: res.Operation})
}

// loginRequired answers an anonymous mutation. Adding a like or copy is
// remembered so it can be finished once the viewer has signed in.
func (h *Handler) loginRequired(w http.ResponseWriter, r *http.Request, kind rating.Kind, targetID string, req ratingRequest) {
	if a, ok := deferrable(kind, targetID, req); ok {
		visitorID := uuid.NewString()
		if c, err := r.Cookie(cookieVisitor); err == nil && c.Value != "" {
			visitorID = c.Value
		}

		if err := h.pending.Defer(r.Context(), visitorID, a); err != nil {
			slogLogger.Warn("defer action", "action", a.String(), "error", err)
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:     cookieVisitor,
				Value:    visitorID,
				Path:     "/",
				MaxAge:   redirectCookieMaxAge,
				HttpOnly: true,
				Secure:   h.secure,
				SameSite: http.SameSiteStrictMode,
			})
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieRedirectTo,
		Value:    returnPath(req.ReturnTo),
		Path:     h.loginPath,
		MaxAge:   redirectCookieMaxAge,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusUnauthorized, ratingResponse{
		State:      req.State,
		Error:      "login_required",
		Message:    "sign in to continue",
		RedirectTo: h.loginPath,
	})
}

// deferrable maps an anonymous add of a boolean kind to a pending action.
// Star ratings and removals are not remembered.
func deferrable(kind rating.Kind, targetID string, req ratingRequest) (pending.Action, bool) {
	if kind.Averaged() || req.Value == 0 || req.State.YourValue != 0 {
		return pending.Action{}, false
	}

	a := pending.Action{Verb: pending.VerbLike, Target: pending.TargetLink, TargetID: targetID}
	switch kind {
	case rating.KindCopy:
		a.Verb = pending.VerbCopy
	case rating.KindSummaryLike:
		a.Target = pending.TargetSummary
	}
	return a, a.Validate() == nil
}

// returnPath keeps the post-login redirect on this site.
func returnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return "/"
	}
	return p
}
