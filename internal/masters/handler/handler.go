package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"salesops_backend/internal/http/middleware"
	"salesops_backend/internal/masters/service"
	"salesops_backend/internal/masters/transport"
	"salesops_backend/platform/httpkit"
	"salesops_backend/platform/validator"
)

// Handler handles HTTP requests for the routing topology masters.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	masters := rg.Group("/masters")
	{
		queueAdmin := middleware.RequirePermission("query_authorization.manage")
		masters.GET("/service-queues", queueAdmin, h.ListServiceQueues)
		masters.PUT("/service-queues", queueAdmin, h.UpsertServiceQueue)
		masters.GET("/queue-authorizations", queueAdmin, h.ListQueueAuthorizations)
		masters.PUT("/queue-authorizations", queueAdmin, h.UpsertQueueAuthorization)

		teamAdmin := middleware.RequirePermission("team_authorization.manage")
		masters.GET("/team-roles", teamAdmin, h.ListTeamRoles)
		masters.PUT("/team-roles", teamAdmin, h.UpsertTeamRole)
	}
}

// UpsertServiceQueue maps a service onto a team queue.
// PUT /api/v1/masters/service-queues
func (h *Handler) UpsertServiceQueue(c *gin.Context) {
	var req transport.UpsertServiceQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.UpsertServiceQueue(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListServiceQueues lists queue mappings.
// GET /api/v1/masters/service-queues?service_id=...&team_id=...
func (h *Handler) ListServiceQueues(c *gin.Context) {
	serviceID, ok := optionalUUIDQuery(c, "service_id")
	if !ok {
		return
	}
	teamID, ok := optionalUUIDQuery(c, "team_id")
	if !ok {
		return
	}

	result, err := h.svc.ListServiceQueues(c.Request.Context(), serviceID, teamID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpsertQueueAuthorization grants per-user rights on one queue.
// PUT /api/v1/masters/queue-authorizations
func (h *Handler) UpsertQueueAuthorization(c *gin.Context) {
	var req transport.UpsertQueueAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.UpsertQueueAuthorization(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListQueueAuthorizations lists explicit queue grants.
// GET /api/v1/masters/queue-authorizations
func (h *Handler) ListQueueAuthorizations(c *gin.Context) {
	serviceID, ok := optionalUUIDQuery(c, "service_id")
	if !ok {
		return
	}
	teamID, ok := optionalUUIDQuery(c, "team_id")
	if !ok {
		return
	}
	userID, ok := optionalUUIDQuery(c, "user_id")
	if !ok {
		return
	}

	result, err := h.svc.ListQueueAuthorizations(c.Request.Context(), serviceID, teamID, userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpsertTeamRole assigns a head, delegate head, or member role.
// PUT /api/v1/masters/team-roles
func (h *Handler) UpsertTeamRole(c *gin.Context) {
	var req transport.UpsertTeamRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.UpsertTeamRole(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListTeamRoles lists team role assignments.
// GET /api/v1/masters/team-roles?team_id=...
func (h *Handler) ListTeamRoles(c *gin.Context) {
	teamID, ok := optionalUUIDQuery(c, "team_id")
	if !ok {
		return
	}

	result, err := h.svc.ListTeamRoles(c.Request.Context(), teamID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
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
