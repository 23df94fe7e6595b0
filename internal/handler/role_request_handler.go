package handler

import (
	"net/http"

	"nexus/internal/middleware"
	"nexus/internal/service"
	"nexus/pkg/pagination"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RoleRequestHandler struct {
	requestService service.RoleRequestService
	auth           *middleware.Auth
	log            *zap.Logger
}

func NewRoleRequestHandler(requestService service.RoleRequestService, auth *middleware.Auth, log *zap.Logger) *RoleRequestHandler {
	return &RoleRequestHandler{requestService: requestService, auth: auth, log: orNop(log)}
}

func (h *RoleRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/role-requests")
	{
		requests.POST("", h.auth.Authenticate(), h.Submit)
		requests.GET("/mine", h.auth.Authenticate(), h.ListMine)

		requests.GET("", h.auth.RequireAdmin(), h.List)
		requests.POST("/:id/review", h.auth.RequireAdmin(), h.Review)
		requests.PUT("/:id/notes", h.auth.RequireAdmin(), h.UpdateNotes)
	}
}

// Submit files a role request for the current user
// @Summary      Request a role
// @Description  Creates a pending request; the role is granted only after review
// @Tags         role-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubmitRoleRequest  true  "Requested role"
// @Success      201      {object}  response.Response{data=service.RoleRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/role-requests [post]
func (h *RoleRequestHandler) Submit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.SubmitRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	created, err := h.requestService.Submit(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// ListMine returns the current user's requests, newest first
// @Summary      My role requests
// @Tags         role-requests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.RoleRequestResponse}
// @Router       /api/role-requests/mine [get]
func (h *RoleRequestHandler) ListMine(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.requestService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, requests))
}

// List returns role requests for reviewers
// @Summary      List role requests
// @Tags         role-requests
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending, approved or rejected"
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Success      200     {object}  response.Response{data=[]service.RoleRequestResponse}
// @Failure      403     {object}  response.Response
// @Router       /api/role-requests [get]
func (h *RoleRequestHandler) List(c *gin.Context) {
	p := pagination.Parse(c)

	requests, total, err := h.requestService.List(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, requests, p.Page, p.Limit, total))
}

// Review approves or rejects a pending request
// @Summary      Review role request
// @Tags         role-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Request ID"
// @Param        payload  body      service.ReviewRoleRequest  true  "Decision"
// @Success      200      {object}  response.Response{data=service.RoleRequestResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/role-requests/{id}/review [post]
func (h *RoleRequestHandler) Review(c *gin.Context) {
	reviewerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.ReviewRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reviewed, err := h.requestService.Review(c.Request.Context(), reviewerID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reviewed))
}

// UpdateNotes edits the admin notes of a request
// @Summary      Update admin notes
// @Tags         role-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Request ID"
// @Param        payload  body      service.UpdateAdminNotesRequest  true  "Notes"
// @Success      200      {object}  response.Response{data=service.RoleRequestResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/role-requests/{id}/notes [put]
func (h *RoleRequestHandler) UpdateNotes(c *gin.Context) {
	var req service.UpdateAdminNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updated, err := h.requestService.UpdateNotes(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}
