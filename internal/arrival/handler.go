package arrival

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pressmill-erp/pressmill-erp/internal/palox"
	"github.com/pressmill-erp/pressmill-erp/internal/platform/httpx"
	"github.com/pressmill-erp/pressmill-erp/internal/shared"
)

// Handler wires the arrival ledger HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers arrival routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Post("/{id}/weighted", h.weighted)
	r.Post("/{id}/validate", h.validateArrival)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/back-to-draft", h.backToDraft)
	r.Post("/{id}/recompute", h.recompute)
	r.Delete("/{id}", h.unlink)
	r.Delete("/{id}/lines/{lineID}", h.unlinkLine)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	a, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, arrivalResponse(a, lines))
}

func (h *Handler) weighted(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	warnings, err := h.service.Weighted(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"state":    StateWeighted,
		"warnings": warningsPayload(warnings),
	})
}

type validateRequest struct {
	BypassWarnings bool `json:"bypass_warnings"`
}

func (h *Handler) validateArrival(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req validateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.service.Validate(r.Context(), id, req.BypassWarnings); err != nil {
		var we *shared.WarningsError
		if errors.As(err, &we) {
			httpx.JSON(w, http.StatusConflict, map[string]any{
				"error":    "warnings require confirmation",
				"warnings": warningsPayload(we.Warnings),
			})
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"state": StateDone})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel, StateCancel)
}

func (h *Handler) backToDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.BackToDraft, StateDraft)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.RecomputeRollups(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "recomputed"})
}

func (h *Handler) unlink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Unlink(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unlinkLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	lineID, err := pathID(r, "lineID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Line ID", err.Error())
		return
	}
	if err := h.service.UnlinkLine(r.Context(), id, lineID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, int64) error, next State) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"state": next})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoLines),
		errors.Is(err, ErrBadState),
		errors.Is(err, ErrZeroFruitQty),
		errors.Is(err, ErrCultureMismatch),
		errors.Is(err, ErrMixWithoutQty),
		errors.Is(err, ErrPaloxOverweight),
		errors.Is(err, ErrHarvestAfterDate),
		errors.Is(err, ErrCaseOverReturn),
		errors.Is(err, ErrLineAttached),
		errors.Is(err, ErrLineHasFruit),
		errors.Is(err, ErrLineDone),
		errors.Is(err, ErrAllLinesAttached),
		errors.Is(err, ErrNegativeQty),
		errors.Is(err, palox.ErrJuiceTypeLocked):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Arrival Conflict", err.Error())
	default:
		h.logger.Error("arrival handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func warningsPayload(warnings shared.Warnings) []map[string]string {
	out := make([]map[string]string, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, map[string]string{
			"code":    warning.Code,
			"message": warning.Message,
		})
	}
	return out
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
