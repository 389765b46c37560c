package production

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/arrival"
	"github.com/pressmill-erp/pressmill-erp/internal/mill"
	"github.com/pressmill-erp/pressmill-erp/internal/palox"
	"github.com/pressmill-erp/pressmill-erp/internal/platform/httpx"
)

// Handler wires the pressing batch HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers batch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Post("/{id}/attach", h.attach)
	r.Post("/{id}/compensation", h.setCompensation)
	r.Post("/{id}/result", h.enterResult)
	r.Post("/{id}/ratio-to-force", h.ratioToForce)
	r.Post("/{id}/force", h.forceRatio)
	r.Post("/{id}/force-to-pack", h.forceToPack)
	r.Post("/{id}/pack-to-check", h.packToCheck)
	r.Post("/{id}/finalize", h.finalize)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/back-to-draft", h.backToDraft)
	r.Post("/{id}/detach", h.detach)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batchResponse(p))
}

func (h *Handler) attach(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.AttachLines)
}

type compensationRequest struct {
	Type           string          `json:"type" validate:"required,oneof=none first last"`
	TankLocationID int64           `json:"tank_location_id"`
	LastFruitQty   decimal.Decimal `json:"last_fruit_qty"`
	Ratio          decimal.Decimal `json:"ratio"`
}

func (h *Handler) setCompensation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req compensationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err = h.service.SetCompensation(r.Context(), id,
		mill.CompensationType(req.Type), req.TankLocationID, req.LastFruitQty, req.Ratio)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type resultRequest struct {
	MeasuredKg decimal.Decimal `json:"measured_kg"`
}

func (h *Handler) enterResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req resultRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if !req.MeasuredKg.IsPositive() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "measured_kg must be positive")
		return
	}
	if err := h.service.EnterResult(r.Context(), id, req.MeasuredKg); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) ratioToForce(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.RatioToForce)
}

type forceRequest struct {
	LineID int64           `json:"line_id" validate:"required,gt=0"`
	Ratio  decimal.Decimal `json:"ratio"`
}

func (h *Handler) forceRatio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req forceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ForceRatio(r.Context(), id, req.LineID, req.Ratio); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) forceToPack(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ForceToPack)
}

func (h *Handler) packToCheck(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.PackToCheck)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Finalize)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *Handler) backToDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.BackToDraft)
}

func (h *Handler) detach(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.DetachLines)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, int64) error) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batchResponse(p))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, arrival.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBadState),
		errors.Is(err, ErrAlreadyDone),
		errors.Is(err, ErrPaloxEmpty),
		errors.Is(err, ErrDraftLinesOnPalox),
		errors.Is(err, ErrMixedJuiceTypes),
		errors.Is(err, ErrMixedSeasons),
		errors.Is(err, ErrLineWithoutFruit),
		errors.Is(err, ErrCompTankUnset),
		errors.Is(err, ErrCompTankNotEmpty),
		errors.Is(err, ErrCompTankEmpty),
		errors.Is(err, ErrCompQtyNotPositive),
		errors.Is(err, ErrRatioOutOfBand),
		errors.Is(err, ErrForcedExceedsTotal),
		errors.Is(err, ErrForcedLineUnknown),
		errors.Is(err, ErrNoJuiceQty),
		errors.Is(err, ErrSaleTankUnset),
		errors.Is(err, ErrShrinkageTankUnset),
		errors.Is(err, ErrShrinkageLotMissing),
		errors.Is(err, ErrTrackedExtra),
		errors.Is(err, palox.ErrJuiceTypeLocked):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Batch Conflict", err.Error())
	default:
		h.logger.Error("production handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func batchResponse(p Production) map[string]any {
	out := map[string]any{
		"id":                  p.ID,
		"name":                p.Name,
		"season_id":           p.SeasonID,
		"warehouse_id":        p.WarehouseID,
		"palox_id":            p.PaloxID,
		"date":                p.Date,
		"state":               p.State,
		"juice_product_id":    p.JuiceProductID,
		"destination":         p.Destination,
		"fruit_qty":           p.FruitQty,
		"juice_qty_kg":        p.JuiceQtyKg,
		"juice_qty":           p.JuiceQty,
		"ratio":               p.Ratio,
		"compensation_type":   p.CompensationType,
		"compensation_qty":    p.CompensationQty,
		"to_sale_tank_qty":    p.ToSaleTankQty,
		"to_comp_sale_qty":    p.ToCompSaleTankQty,
		"farmer_list":         p.FarmerList,
		"needs_analysis":      p.NeedsAnalysis,
		"lot_id":              p.LotID,
	}
	if p.DoneAt != nil {
		out["done_at"] = p.DoneAt
	}
	return out
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
