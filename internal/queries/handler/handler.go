package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"salesops_backend/internal/http/middleware"
	"salesops_backend/internal/queries/service"
	"salesops_backend/internal/queries/transport"
	"salesops_backend/platform/httpkit"
	"salesops_backend/platform/validator"
)

// Handler handles HTTP requests for queries, query items, and queues.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid ID"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the query engine routes. The group is expected to
// already carry authentication and actor loading.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	queries := rg.Group("/queries")
	{
		queries.GET("/intake/search", middleware.RequirePermission("query.view"), h.IntakeSearch)
		queries.POST("", middleware.RequirePermission("query.create"), h.Store)
		queries.GET("/:id", h.Show)
		queries.PATCH("/:id/status", middleware.RequirePermission("query.change_status"), h.UpdateStatus)
	}

	items := rg.Group("/query-items")
	{
		items.PATCH("/:id/status", h.UpdateItemStatus)
		items.POST("/:id/assign-to-me", h.AssignToMe)
		items.POST("/:id/assign-to-user", h.AssignToUser)
		items.POST("/:id/reassign", h.Reassign)

		items.GET("/team-queue", h.TeamQueue)
		items.GET("/team-queue/counters", h.TeamQueueCounters)
		items.GET("/self-queue", h.SelfQueue)
		items.GET("/self-queue/counters", h.SelfQueueCounters)
		items.GET("/notification-badges", h.Badges)
	}
}

// IntakeSearch looks a customer up by mobile number or name before intake.
// GET /api/v1/queries/intake/search?mobile=...&name=...
func (h *Handler) IntakeSearch(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	result, err := h.svc.IntakeSearch(c.Request.Context(), actor, c.Query("mobile"), c.Query("name"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Store creates a query and fans it out into per-service items.
// POST /api/v1/queries
func (h *Handler) Store(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	var req transport.StoreQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Create(c.Request.Context(), actor, req)
	if err != nil {
		var conflict *service.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, gin.H{
				"error":                conflict.Message,
				"running_queries":      conflict.RunningQueries,
				"duplicate_candidates": conflict.DuplicateCandidates,
			})
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Show returns the query detail read model.
// GET /api/v1/queries/:id
func (h *Handler) Show(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Detail(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateStatus sets the query's aggregate status.
// PATCH /api/v1/queries/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateQueryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	if httpkit.HandleError(c, h.svc.UpdateQueryStatus(c.Request.Context(), actor, id, req.QueryStatus)) {
		return
	}
	httpkit.OK(c, gin.H{"message": "query status updated"})
}

// UpdateItemStatus advances one item through the workflow.
// PATCH /api/v1/query-items/:id/status
func (h *Handler) UpdateItemStatus(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.UpdateItemStatus(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AssignToMe pulls a queue item onto the caller's own desk.
// POST /api/v1/query-items/:id/assign-to-me
func (h *Handler) AssignToMe(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.AssignToMe(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AssignToUser hands a queue item to a team member.
// POST /api/v1/query-items/:id/assign-to-user
func (h *Handler) AssignToUser(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.AssignToUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.AssignToUser(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Reassign moves an assigned item to another team member.
// POST /api/v1/query-items/:id/reassign
func (h *Handler) Reassign(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Reassign(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// TeamQueue lists team queue items.
// GET /api/v1/query-items/team-queue
func (h *Handler) TeamQueue(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	params, ok := parseTeamQueueParams(c)
	if !ok {
		return
	}

	result, err := h.svc.TeamQueue(c.Request.Context(), actor, params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// TeamQueueCounters returns the per-state totals for the team queue tabs.
// GET /api/v1/query-items/team-queue/counters
func (h *Handler) TeamQueueCounters(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	params, ok := parseTeamQueueParams(c)
	if !ok {
		return
	}

	result, err := h.svc.TeamQueueCounters(c.Request.Context(), actor, params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SelfQueue lists the caller's own items.
// GET /api/v1/query-items/self-queue
func (h *Handler) SelfQueue(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	serviceID, ok := optionalUUIDQuery(c, "service_id")
	if !ok {
		return
	}
	result, err := h.svc.SelfQueue(c.Request.Context(), actor, service.SelfQueueParams{
		ServiceID:      serviceID,
		WorkflowStatus: c.Query("workflow_status"),
		Page:           intQuery(c, "page", 1),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SelfQueueCounters returns the per-state totals for the caller's own queue.
// GET /api/v1/query-items/self-queue/counters
func (h *Handler) SelfQueueCounters(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	serviceID, ok := optionalUUIDQuery(c, "service_id")
	if !ok {
		return
	}
	result, err := h.svc.SelfQueueCounters(c.Request.Context(), actor, serviceID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Badges returns the attention counters for the navigation bar.
// GET /api/v1/query-items/notification-badges
func (h *Handler) Badges(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	result, err := h.svc.Badges(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func parseTeamQueueParams(c *gin.Context) (service.TeamQueueParams, bool) {
	serviceID, ok := optionalUUIDQuery(c, "service_id")
	if !ok {
		return service.TeamQueueParams{}, false
	}
	teamID, ok := optionalUUIDQuery(c, "team_id")
	if !ok {
		return service.TeamQueueParams{}, false
	}
	return service.TeamQueueParams{
		ServiceID:      serviceID,
		TeamID:         teamID,
		QueueState:     c.Query("queue_state"),
		WorkflowStatus: c.Query("workflow_status"),
		Page:           intQuery(c, "page", 1),
	}, true
}

func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+name, nil)
		return nil, false
	}
	return &id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
