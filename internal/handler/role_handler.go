package handler

import (
	"net/http"

	"nexus/internal/access"
	"nexus/internal/middleware"
	"nexus/internal/service"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RoleHandler struct {
	roleService service.RoleService
	auth        *middleware.Auth
	log         *zap.Logger
}

func NewRoleHandler(roleService service.RoleService, auth *middleware.Auth, log *zap.Logger) *RoleHandler {
	return &RoleHandler{roleService: roleService, auth: auth, log: orNop(log)}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/api/users/:id/roles", h.auth.RequireAdmin())
	{
		users.GET("", h.ListUserRoles)
		users.POST("", h.AssignRole)
		users.DELETE("/:role", h.RevokeRole)
	}

	defs := router.Group("/api/role-definitions")
	{
		defs.GET("", h.auth.RequireFeature(access.FeatureRoleManagement), h.ListDefinitions)
		defs.GET("/:role", h.auth.RequireFeature(access.FeatureRoleManagement), h.GetDefinition)
		defs.PUT("/:role", h.auth.RequireAdmin(), h.UpsertDefinition)
		defs.DELETE("/:role", h.auth.RequireAdmin(), h.DeleteDefinition)
	}
}

// ListUserRoles returns every role assigned to a user
// @Summary      List user roles
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=[]service.UserRoleResponse}
// @Router       /api/users/{id}/roles [get]
func (h *RoleHandler) ListUserRoles(c *gin.Context) {
	roles, err := h.roleService.ListUserRoles(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// AssignRole grants a role to a user
// @Summary      Assign role
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "User ID"
// @Param        payload  body      object  true  "{\"role\": \"pmo\"}"
// @Success      201      {object}  response.Response{data=service.UserRoleResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/users/{id}/roles [post]
func (h *RoleHandler) AssignRole(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	assigned, err := h.roleService.Assign(c.Request.Context(), actorID, service.AssignRoleRequest{
		UserID: c.Param("id"),
		Role:   body.Role,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, assigned))
}

// RevokeRole removes a role from a user
// @Summary      Revoke role
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      string  true  "User ID"
// @Param        role  path      string  true  "Role"
// @Success      200   {object}  response.Response
// @Failure      403   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /api/users/{id}/roles/{role} [delete]
func (h *RoleHandler) RevokeRole(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.roleService.Revoke(c.Request.Context(), actorID, c.Param("id"), c.Param("role")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Role revoked"}))
}

// ListDefinitions returns every role with its default and effective features
// @Summary      List role definitions
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.RoleDefinitionResponse}
// @Router       /api/role-definitions [get]
func (h *RoleHandler) ListDefinitions(c *gin.Context) {
	defs, err := h.roleService.ListDefinitions(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, defs))
}

// GetDefinition returns one role with its default and effective features
// @Summary      Get role definition
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        role  path      string  true  "Role"
// @Success      200   {object}  response.Response{data=service.RoleDefinitionResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/role-definitions/{role} [get]
func (h *RoleHandler) GetDefinition(c *gin.Context) {
	def, err := h.roleService.GetDefinition(c.Request.Context(), c.Param("role"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, def))
}

// UpsertDefinition overrides the features of a role
// @Summary      Save role definition
// @Description  An empty permission list keeps the role's default features
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        role     path      string                               true  "Role"
// @Param        payload  body      service.UpsertRoleDefinitionRequest  true  "Definition"
// @Success      200      {object}  response.Response{data=service.RoleDefinitionResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/role-definitions/{role} [put]
func (h *RoleHandler) UpsertDefinition(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.UpsertRoleDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	def, err := h.roleService.UpsertDefinition(c.Request.Context(), actorID, c.Param("role"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, def))
}

// DeleteDefinition restores a role's default features
// @Summary      Delete role definition
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        role  path      string  true  "Role"
// @Success      200   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /api/role-definitions/{role} [delete]
func (h *RoleHandler) DeleteDefinition(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.roleService.DeleteDefinition(c.Request.Context(), actorID, c.Param("role")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Role definition removed"}))
}
