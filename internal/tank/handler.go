package tank

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/platform/httpx"
	"github.com/pressmill-erp/pressmill-erp/internal/stock"
)

// Handler wires the tank transfer HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	tanks    Repository
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, engine *Engine, tanks Repository) *Handler {
	return &Handler{logger: logger, engine: engine, tanks: tanks, validate: validator.New()}
}

// MountRoutes registers tank routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transfer", h.transfer)
	r.Get("/{id}", h.get)
	r.Get("/{id}/quantity", h.quantity)
}

type transferRequest struct {
	SrcLocationID int64           `json:"src_location_id" validate:"required,gt=0"`
	DstLocationID int64           `json:"dst_location_id" validate:"required,gt=0"`
	Mode          string          `json:"mode" validate:"required,oneof=full partial"`
	WarehouseID   int64           `json:"warehouse_id"`
	Qty           decimal.Decimal `json:"qty"`
	DestFarmerID  int64           `json:"dest_farmer_id"`
	AutoValidate  bool            `json:"auto_validate"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ids, err := h.engine.Transfer(r.Context(), TransferInput{
		SrcLocationID: req.SrcLocationID,
		DstLocationID: req.DstLocationID,
		Mode:          TransferMode(req.Mode),
		WarehouseID:   req.WarehouseID,
		Qty:           req.Qty,
		DestFarmerID:  req.DestFarmerID,
		Origin:        "api/tank-transfer",
		AutoValidate:  req.AutoValidate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movement_ids": ids})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathLocationID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	t, err := h.tanks.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	qty, err := h.engine.Quantity(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"location_id":      t.LocationID,
		"name":             t.Name,
		"tank_type":        t.Type,
		"juice_product_id": t.JuiceProductID,
		"season_id":        t.SeasonID,
		"quantity":         qty,
	})
}

func (h *Handler) quantity(w http.ResponseWriter, r *http.Request) {
	id, err := pathLocationID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	qty, err := h.engine.Quantity(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"location_id": id, "quantity": qty})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotATank),
		errors.Is(err, ErrTankEmpty),
		errors.Is(err, ErrMixedProducts),
		errors.Is(err, ErrProductMismatch),
		errors.Is(err, ErrProductNotBound),
		errors.Is(err, ErrSeasonMismatch),
		errors.Is(err, ErrReservedQuantity),
		errors.Is(err, ErrInvalidPartialQty),
		errors.Is(err, stock.ErrInsufficientQty),
		errors.Is(err, stock.ErrReservedQuant):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Transfer Conflict", err.Error())
	default:
		h.logger.Error("tank handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathLocationID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
