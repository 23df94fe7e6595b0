package handler

import (
	"net/http"

	"nexus/internal/access"
	"nexus/internal/middleware"
	"nexus/internal/service"
	"nexus/pkg/pagination"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProfileHandler struct {
	profileService service.ProfileService
	auth           *middleware.Auth
	log            *zap.Logger
}

// NewProfileHandler sets up the routing dependencies for profile endpoints
func NewProfileHandler(profileService service.ProfileService, auth *middleware.Auth, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, auth: auth, log: orNop(log)}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ProfileHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
	}

	me := router.Group("/api/me", h.auth.Authenticate())
	{
		me.GET("", h.GetMe)
		me.PUT("", h.UpdateMe)
	}

	router.GET("/api/profiles", h.auth.RequireFeature(access.FeatureTeam), h.ListProfiles)
}

// currentUser returns the authenticated user id or answers 401.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Unauthorized"))
	}
	return id, ok
}

// Register creates a dashboard account
// @Summary      Register
// @Description  Creates a profile holding the baseline user role
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterProfileRequest  true  "Registration payload"
// @Success      201      {object}  response.Response{data=service.ProfileResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/auth/register [post]
func (h *ProfileHandler) Register(c *gin.Context) {
	var req service.RegisterProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := h.profileService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, profile))
}

// Login authenticates by email and password
// @Summary      Login
// @Description  Authenticates a user and returns a JWT, also set as an HttpOnly cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *ProfileHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	tokenRes, err := h.profileService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	middleware.SetTokenCookie(c, tokenRes.Token, int(tokenRes.ExpiresIn))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Logout clears the token cookie
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *ProfileHandler) Logout(c *gin.Context) {
	middleware.ClearTokenCookie(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out"}))
}

// GetMe returns the current user with their roles
// @Summary      Get current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.ProfileResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/me [get]
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.profileService.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, profile))
}

// UpdateMe edits the current user's profile
// @Summary      Update current user
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.UpdateProfileRequest  true  "Profile fields"
// @Success      200      {object}  response.Response{data=service.ProfileResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/me [put]
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := h.profileService.UpdateMe(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, profile))
}

// ListProfiles returns team members
// @Summary      List profiles
// @Tags         team
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        search  query     string  false  "Search by username, email or name"
// @Success      200     {object}  response.Response{data=[]service.ProfileResponse}
// @Failure      403     {object}  response.Response
// @Router       /api/profiles [get]
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	p := pagination.Parse(c)

	profiles, total, err := h.profileService.List(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, profiles, p.Page, p.Limit, total))
}
