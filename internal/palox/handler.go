package palox

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pressmill-erp/pressmill-erp/internal/platform/httpx"
)

// Handler wires the palox tracker HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers palox routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/lend", h.lend)
	r.Post("/{id}/return", h.returnBorrowed)
	r.Get("/{id}/content", h.content)
	r.Get("/{id}/borrow-history", h.borrowHistory)
	r.Get("/borrowed-by/{farmerID}", h.borrowedBy)
}

type lendRequest struct {
	FarmerID int64 `json:"farmer_id" validate:"required,gt=0"`
}

func (h *Handler) lend(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req lendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Lend(r.Context(), id, req.FarmerID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "lent"})
}

func (h *Handler) returnBorrowed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.ReturnBorrowed(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "returned"})
}

func (h *Handler) content(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	content, err := h.service.OpenContent(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"weight":       content.Weight,
		"destination":  content.Destination,
		"farmers":      content.Farmers,
		"arrival_date": content.ArrivalDate,
	})
}

func (h *Handler) borrowHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	history, err := h.service.BorrowHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) borrowedBy(w http.ResponseWriter, r *http.Request) {
	farmerID, err := strconv.ParseInt(chi.URLParam(r, "farmerID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	paloxes, err := h.service.BorrowedBy(r.Context(), farmerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, paloxes)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBorrowerSubContact),
		errors.Is(err, ErrNotBorrowed),
		errors.Is(err, ErrNoBorrowedDate),
		errors.Is(err, ErrBorrowerDateState),
		errors.Is(err, ErrJuiceTypeLocked):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Palox Conflict", err.Error())
	default:
		h.logger.Error("palox handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
