package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"salesops_backend/internal/customers/service"
	"salesops_backend/internal/customers/transport"
	"salesops_backend/internal/directory"
	"salesops_backend/internal/http/middleware"
	"salesops_backend/platform/httpkit"
	"salesops_backend/platform/validator"
)

// Handler handles HTTP requests for customers and their edit requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid customer ID"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	customers := rg.Group("/customers")
	{
		customers.GET("/search", middleware.RequirePermission("customer.view"), h.Search)
		customers.GET("/:id", middleware.RequirePermission("customer.view"), h.Show)
		customers.PATCH("/:id", middleware.RequirePermission("customer.update"), h.RequestEdit)
	}

	requests := rg.Group("/change-requests", middleware.RequirePermission("customer.review"))
	{
		requests.GET("", h.ListEditRequests)
		requests.GET("/:id", h.ShowEditRequest)
		requests.POST("/:id/approve", h.Approve)
		requests.POST("/:id/reject", h.Reject)
	}
}

// Search matches customers by mobile number or partial name.
// GET /api/v1/customers/search?mobile=...&name=...
func (h *Handler) Search(c *gin.Context) {
	result, err := h.svc.Search(c.Request.Context(), c.Query("mobile"), c.Query("name"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Show returns one customer with its categories.
// GET /api/v1/customers/:id
func (h *Handler) Show(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// RequestEdit files an edit request; the customer row stays untouched until
// a reviewer approves.
// PATCH /api/v1/customers/:id
func (h *Handler) RequestEdit(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.RequestEdit(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, result)
}

// ListEditRequests lists edit requests, optionally filtered by status.
// GET /api/v1/change-requests?status=pending&page=1
func (h *Handler) ListEditRequests(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	result, err := h.svc.ListEditRequests(c.Request.Context(), c.Query("status"), page)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ShowEditRequest returns one edit request with its field diff.
// GET /api/v1/change-requests/:id
func (h *Handler) ShowEditRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid change request ID", nil)
		return
	}

	result, err := h.svc.GetEditRequest(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Approve applies the requested changes to the customer.
// POST /api/v1/change-requests/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, h.svc.Approve)
}

// Reject closes the request without applying anything.
// POST /api/v1/change-requests/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	h.decide(c, h.svc.Reject)
}

type decideFn func(ctx context.Context, actor *directory.Actor, id uuid.UUID, note *string) (transport.EditRequestResponse, error)

func (h *Handler) decide(c *gin.Context, fn decideFn) {
	actor := middleware.MustGetActor(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid change request ID", nil)
		return
	}

	var req transport.DecisionRequest
	// An empty body is a decision without a note.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := fn(c.Request.Context(), actor, id, req.Note)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
