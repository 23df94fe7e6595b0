package handler

import (
	"net/http"

	"nexus/internal/access"
	"nexus/internal/middleware"
	"nexus/internal/service"
	"nexus/pkg/pagination"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AIOutputHandler struct {
	outputService service.AIOutputService
	auth          *middleware.Auth
	log           *zap.Logger
}

func NewAIOutputHandler(outputService service.AIOutputService, auth *middleware.Auth, log *zap.Logger) *AIOutputHandler {
	return &AIOutputHandler{outputService: outputService, auth: auth, log: orNop(log)}
}

func (h *AIOutputHandler) RegisterRoutes(router *gin.RouterGroup) {
	outputs := router.Group("/api/ai-outputs")
	{
		outputs.GET("", h.auth.RequireFeature(access.FeatureAIAssistant), h.List)
		outputs.POST("", h.auth.RequireFeature(access.FeatureAIAssistant), h.Register)
		outputs.GET("/:type/:name", h.auth.RequireFeature(access.FeatureAIAssistant), h.Get)
		outputs.POST("/:type/:name/advance", h.auth.RequireFeature(access.FeatureReports), h.Advance)
		outputs.GET("/:type/:name/history", h.auth.RequireFeature(access.FeatureAuditLogs), h.History)
	}
}

// List returns tracked AI outputs
// @Summary      List AI outputs
// @Tags         ai-outputs
// @Security     BearerAuth
// @Produce      json
// @Param        report_type  query     string  false  "Report type"
// @Param        status       query     string  false  "draft, reviewed, approved or published"
// @Param        page         query     int     false  "Page number (default: 1)"
// @Param        limit        query     int     false  "Items per page (default: 20)"
// @Success      200          {object}  response.Response{data=[]service.OutputResponse}
// @Router       /api/ai-outputs [get]
func (h *AIOutputHandler) List(c *gin.Context) {
	p := pagination.Parse(c)

	outputs, total, err := h.outputService.List(c.Request.Context(), c.Query("report_type"), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, outputs, p.Page, p.Limit, total))
}

// Register starts tracking a generated report in draft
// @Summary      Register AI output
// @Tags         ai-outputs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterOutputRequest  true  "Report identity"
// @Success      201      {object}  response.Response{data=service.OutputResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/ai-outputs [post]
func (h *AIOutputHandler) Register(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.RegisterOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	output, err := h.outputService.Register(c.Request.Context(), actorID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, output))
}

// Get returns one AI output
// @Summary      Get AI output
// @Tags         ai-outputs
// @Security     BearerAuth
// @Produce      json
// @Param        type  path      string  true  "Report type"
// @Param        name  path      string  true  "Report name"
// @Success      200   {object}  response.Response{data=service.OutputResponse}
// @Failure      404   {object}  response.Response
// @Router       /api/ai-outputs/{type}/{name} [get]
func (h *AIOutputHandler) Get(c *gin.Context) {
	output, err := h.outputService.Get(c.Request.Context(), c.Param("type"), c.Param("name"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, output))
}

// Advance moves an output to its next status
// @Summary      Advance AI output status
// @Description  draft -> reviewed -> approved -> published, one step at a time. audit_logged=false means the status changed but its audit entry was not written.
// @Tags         ai-outputs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        type     path      string                        true  "Report type"
// @Param        name     path      string                        true  "Report name"
// @Param        payload  body      service.AdvanceOutputRequest  false  "Optional target status and notes"
// @Success      200      {object}  response.Response{data=service.AdvanceResult}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/ai-outputs/{type}/{name}/advance [post]
func (h *AIOutputHandler) Advance(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.AdvanceOutputRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	result, err := h.outputService.Advance(c.Request.Context(), actorID, c.Param("type"), c.Param("name"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// History returns an output's audit trail
// @Summary      AI output history
// @Tags         ai-outputs
// @Security     BearerAuth
// @Produce      json
// @Param        type  path      string  true  "Report type"
// @Param        name  path      string  true  "Report name"
// @Success      200   {object}  response.Response{data=service.OutputHistory}
// @Failure      404   {object}  response.Response
// @Router       /api/ai-outputs/{type}/{name}/history [get]
func (h *AIOutputHandler) History(c *gin.Context) {
	history, err := h.outputService.History(c.Request.Context(), c.Param("type"), c.Param("name"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}
