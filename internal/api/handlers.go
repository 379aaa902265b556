package api

import (
	"context"
	stderrors "errors"
	"net/http"

	"sjsage522/dealrefresher/internal/crawler"
	"sjsage522/dealrefresher/internal/deals"
	"sjsage522/dealrefresher/internal/pdp"
	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/services/cache"

	"github.com/gin-gonic/gin"
)

// DealsService is the query side used by the handlers.
type DealsService interface {
	ListDeals(ctx context.Context) (*deals.Response, error)
	PromoLabels(ctx context.Context, productIDs []string) (map[string]*string, error)
	Bundles(ctx context.Context, productID string) ([]pdp.BundleOption, error)
}

// Refresher runs one refresh under the run lock.
type Refresher interface {
	RunOnce(ctx context.Context) (crawler.RunSummary, error)
}

type DealsHandler struct {
	service   DealsService
	refresher Refresher
	log       *logger.Logger
}

func NewDealsHandler(service DealsService, refresher Refresher) *DealsHandler {
	return &DealsHandler{
		service:   service,
		refresher: refresher,
		log:       logger.ForAPI(),
	}
}

func (h *DealsHandler) ListDeals(c *gin.Context) {
	resp, err := h.service.ListDeals(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list deals")
		RespondError(c, http.StatusInternalServerError, codeFor(err), err)
		return
	}
	RespondOK(c, resp)
}

func (h *DealsHandler) Refresh(c *gin.Context) {
	if h.refresher == nil {
		RespondError(c, http.StatusServiceUnavailable, "configuration", stderrors.New("refresh is not configured"))
		return
	}

	// a client hanging up must not abort a refresh mid-run
	summary, err := h.refresher.RunOnce(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		if stderrors.Is(err, cache.ErrLocked) {
			RespondError(c, http.StatusConflict, "refresh_running", err)
			return
		}
		h.log.Error().Err(err).Msg("Refresh failed")
		RespondError(c, http.StatusInternalServerError, codeFor(err), err)
		return
	}
	RespondOK(c, summary)
}

type promosRequest struct {
	ProductIDs []string `json:"product_ids"`
}

func (h *DealsHandler) PromoLabels(c *gin.Context) {
	var req promosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	promos, err := h.service.PromoLabels(c.Request.Context(), req.ProductIDs)
	if err != nil {
		RespondError(c, statusFor(err), codeFor(err), err)
		return
	}
	RespondOK(c, gin.H{"promos": promos})
}

type bundlesRequest struct {
	ProductID string `json:"product_id"`
}

func (h *DealsHandler) Bundles(c *gin.Context) {
	var req bundlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if req.ProductID == "" {
		RespondError(c, http.StatusBadRequest, "validation", stderrors.New("product_id is required"))
		return
	}

	bundles, err := h.service.Bundles(c.Request.Context(), req.ProductID)
	if err != nil {
		RespondError(c, statusFor(err), codeFor(err), err)
		return
	}
	RespondOK(c, gin.H{"bundles": bundles})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
