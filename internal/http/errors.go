package api

import (
	"errors"
	"net/http"

	"treasure-map/internal/client"
	"treasure-map/internal/domain/pending"
	"treasure-map/internal/domain/rating"
	"treasure-map/internal/platform/apperr"
)

func (h *Handler) errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err, h.loginPath)
	writeJSON(w, appErr.StatusCode(), appErr)
}

// mapError turns domain and upstream errors into API errors. Sign-in
// redirects point at loginPath.
func mapError(err error, loginPath string) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var upstream *client.APIError
	if errors.As(err, &upstream) {
		status := upstream.Status
		if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		return apperr.New(status, "upstream_rejected", upstream.Message, err)
	}

	switch {
	case errors.Is(err, rating.ErrValueOutOfRange):
		return apperr.BadRequest("value_out_of_range", "rating value out of range", err)
	case errors.Is(err, rating.ErrInvalidState):
		return apperr.BadRequest("invalid_state", "rating state is inconsistent", err)
	case errors.Is(err, rating.ErrUnknownKind):
		return apperr.BadRequest("unknown_kind", "unknown rating kind", err)
	case errors.Is(err, rating.ErrMissingViewer):
		return apperr.Unauthorized("login_required", "sign in to continue", err).WithRedirect(loginPath)
	case errors.Is(err, rating.ErrMutationInFlight):
		return apperr.Conflict("in_flight", "a change for this item is already in progress", err)
	case errors.Is(err, pending.ErrInvalidAction):
		return apperr.BadRequest("invalid_action", "action cannot be deferred", err)
	case errors.Is(err, pending.ErrNotFound):
		return apperr.NotFound("no_pending_action", "nothing to replay", err)
	case errors.Is(err, client.ErrUnauthorized):
		return apperr.Unauthorized("login_required", "sign in to continue", err).WithRedirect(loginPath)
	case errors.Is(err, client.ErrNotFound):
		return apperr.NotFound("not_found", "item not found", err).WithRedirect(client.RedirectFor(err))
	case errors.Is(err, client.ErrRateLimited):
		return apperr.TooManyRequests("rate_limited", "too many requests", err).WithRedirect(client.RedirectFor(err))
	case errors.Is(err, client.ErrServer):
		return apperr.BadGateway("upstream_error", "the Treasure Map API failed", err).WithRedirect(client.RedirectFor(err))
	case errors.Is(err, client.ErrTransport):
		return apperr.BadGateway("upstream_unreachable", "the Treasure Map API is unreachable", err).WithRedirect(client.RedirectFor(err))
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
