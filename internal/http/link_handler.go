package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"treasure-map/internal/platform/apperr"
)

type deleteRequest struct {
	SubmittedBy string `json:"submitted_by,omitempty"`
}

// @Summary     Delete a link
// @Description Deletes a link the viewer submitted.
// @Tags        links
// @Accept      json
// @Param       id       path  string         true   "Link ID"
// @Param       request  body  deleteRequest  false  "Submitter shown on the page"
// @Success     205
// @Failure     401  {object}  apperr.AppError  "login required"
// @Failure     403  {object}  apperr.AppError  "not the submitter"
// @Failure     404  {object}  apperr.AppError  "not found"
// @Failure     502  {object}  apperr.AppError  "upstream failed"
// @Router      /links/{id} [delete]
func (h *Handler) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, "link", h.items.DeleteLink)
}

// @Summary     Delete a summary
// @Description Deletes a summary the viewer wrote.
// @Tags        summaries
// @Accept      json
// @Param       id       path  string         true   "Summary ID"
// @Param       request  body  deleteRequest  false  "Author shown on the page"
// @Success     205
// @Failure     401  {object}  apperr.AppError  "login required"
// @Failure     403  {object}  apperr.AppError  "not the author"
// @Failure     404  {object}  apperr.AppError  "not found"
// @Failure     502  {object}  apperr.AppError  "upstream failed"
// @Router      /summaries/{id} [delete]
func (h *Handler) handleDeleteSummary(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, "summary", h.items.DeleteSummary)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request, noun string, del func(ctx context.Context, token, id string) error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.errorResponse(w, apperr.BadRequest("invalid_input", "invalid "+noun+" id", nil))
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	token := tokenFromCtx(r)
	if token == "" {
		h.errorResponse(w, apperr.Unauthorized("login_required", "sign in to continue", nil).WithRedirect(h.loginPath))
		return
	}
	if req.SubmittedBy != "" && req.SubmittedBy != loginNameFromCtx(r) {
		h.errorResponse(w, apperr.Forbidden("forbidden", "only the submitter can delete a "+noun, nil))
		return
	}

	if err := del(r.Context(), token, id); err != nil {
		h.errorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusResetContent)
}
