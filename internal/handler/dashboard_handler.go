package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mozilla/clouseau/internal/common"
	"github.com/mozilla/clouseau/internal/domain"
	"github.com/mozilla/clouseau/internal/middleware"
	"github.com/mozilla/clouseau/internal/service"
	"github.com/mozilla/clouseau/pkg/ginutil"
)

// EventRequest is a user navigation event
type EventRequest struct {
	Kind  string `json:"kind" binding:"required,oneof=select_product select_date select_signature" example:"select_date"`
	Value string `json:"value" example:"2016-08-15"`
}

// DashboardHandler serves the dashboard page and its JSON API
type DashboardHandler struct {
	service service.DashboardService
	refresh time.Duration
}

// NewDashboardHandler creates a new DashboardHandler. refresh is the reload
// interval of a page rendered while data is still loading.
func NewDashboardHandler(service service.DashboardService, refresh time.Duration) *DashboardHandler {
	if refresh < time.Second {
		refresh = time.Second
	}
	return &DashboardHandler{service: service, refresh: refresh}
}

// Page renders the dashboard, applying product, date and signature deep links
func (h *DashboardHandler) Page(c *gin.Context) {
	link := service.DeepLink{
		Product: ginutil.QueryTrimmed(c, "product"),
		Date:    ginutil.QueryTrimmed(c, "date"),
	}
	link.Signature, link.HasSignature = c.GetQuery("signature")

	page, err := h.service.Open(c.Request.Context(), middleware.SessionID(c), link)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.LoadingKey, page.Loading)
	if ginutil.WantsJSON(c) {
		common.SuccessResponse(c, page, pageMeta(page))
		return
	}

	data, err := newPageData(page, int(h.refresh.Seconds()))
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to render page", err)
		return
	}
	c.HTML(http.StatusOK, PageTemplateName, data)
}

// View godoc
// @Summary      Current view
// @Description  Returns the rendered view tree and navigation state of the caller's session
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  common.APIResponse{data=service.Page}
// @Failure      404  {object}  common.APIResponse
// @Router       /view [get]
func (h *DashboardHandler) View(c *gin.Context) {
	page, err := h.service.View(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.LoadingKey, page.Loading)
	common.SuccessResponse(c, page, pageMeta(page))
}

// Dispatch godoc
// @Summary      Dispatch a navigation event
// @Description  Applies select_product, select_date or select_signature to the caller's session and returns the new view
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        request  body      EventRequest  true  "Navigation event"
// @Success      200  {object}  common.APIResponse{data=service.Page}
// @Failure      400  {object}  common.APIResponse
// @Failure      404  {object}  common.APIResponse
// @Router       /events [post]
func (h *DashboardHandler) Dispatch(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid event", err)
		return
	}

	page, err := h.service.Dispatch(c.Request.Context(), middleware.SessionID(c), req.Kind, req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.LoadingKey, page.Loading)
	common.SuccessResponse(c, page, pageMeta(page))
}

// Catalog godoc
// @Summary      Navigation catalog
// @Description  Returns the products and dates offered for navigation
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  common.APIResponse{data=domain.Catalog}
// @Failure      404  {object}  common.APIResponse
// @Router       /catalog [get]
func (h *DashboardHandler) Catalog(c *gin.Context) {
	catalog, err := h.service.Catalog(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, catalogOrEmpty(catalog), nil)
}

func (h *DashboardHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, common.ErrUnknownEvent), errors.Is(err, common.ErrInvalidInput):
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid event", err)
	case errors.Is(err, common.ErrSessionNotFound), errors.Is(err, common.ErrSessionClosed):
		common.ErrorResponse(c, http.StatusNotFound, "No dashboard session, open the page first", err)
	case errors.Is(err, context.DeadlineExceeded):
		common.ErrorResponse(c, http.StatusGatewayTimeout, "Timed out waiting for data", err)
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to render dashboard", err)
	}
}

func pageMeta(page *service.Page) *common.Meta {
	return &common.Meta{
		Product:   page.State.Product,
		Channel:   page.State.Channel,
		Date:      page.State.Date,
		Signature: page.State.Signature,
		Loading:   page.Loading,
	}
}

func catalogOrEmpty(c domain.Catalog) domain.Catalog {
	if c.Products == nil {
		c.Products = []string{}
	}
	if c.Dates == nil {
		c.Dates = []string{}
	}
	return c
}
