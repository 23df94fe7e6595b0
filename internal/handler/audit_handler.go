package handler

import (
	"net/http"

	"nexus/internal/access"
	"nexus/internal/middleware"
	"nexus/internal/repository"
	"nexus/internal/service"
	"nexus/pkg/pagination"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
	log          *zap.Logger
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth, log *zap.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth, log: orNop(log)}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.auth.RequireFeature(access.FeatureAuditLogs))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs lists AI output status changes, newest first
// @Summary      Get audit logs
// @Description  Status changes of AI outputs with the acting user
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        report_type  query     string  false  "Filter by report type"
// @Param        report_name  query     string  false  "Filter by report name"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 50, max 500)"
// @Success      200          {object}  response.Response{data=[]service.AuditEntryResponse}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Audit.Parse(c)
	filter := repository.AuditFilter{
		ReportType: c.Query("report_type"),
		ReportName: c.Query("report_name"),
	}

	logs, total, err := h.auditService.List(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, logs, p.Page, p.Limit, total))
}
