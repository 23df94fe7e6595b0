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

type ProjectHandler struct {
	projectService service.ProjectService
	auth           *middleware.Auth
	log            *zap.Logger
}

func NewProjectHandler(projectService service.ProjectService, auth *middleware.Auth, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, auth: auth, log: orNop(log)}
}

func (h *ProjectHandler) RegisterRoutes(router *gin.RouterGroup) {
	projects := router.Group("/api/projects", h.auth.RequireFeature(access.FeatureProjects))
	{
		projects.GET("", h.ListProjects)
		projects.POST("", h.CreateProject)
		projects.GET("/:id", h.GetProject)
		projects.PUT("/:id", h.UpdateProject)
		projects.DELETE("/:id", h.auth.RequireMinRole(access.RoleSeniorProjectManager), h.DeleteProject)
		projects.POST("/:id/tasks", h.CreateTask)
	}

	tasks := router.Group("/api/tasks", h.auth.RequireFeature(access.FeatureTasks))
	{
		tasks.GET("", h.ListTasks)
		tasks.PUT("/:id", h.UpdateTask)
		tasks.DELETE("/:id", h.auth.RequireMinRole(access.RoleProjectManager), h.DeleteTask)
	}
}

// ListProjects returns paginated projects with optional status/search filter
// @Summary      List projects
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        status  query     string  false  "planning, active, on_hold, completed, cancelled"
// @Param        search  query     string  false  "Search by name or description"
// @Success      200     {object}  response.Response{data=[]service.ProjectResponse}
// @Router       /api/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	p := pagination.Parse(c)

	projects, total, err := h.projectService.ListProjects(c.Request.Context(), c.Query("status"), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, projects, p.Page, p.Limit, total))
}

// CreateProject creates a new project
// @Summary      Create project
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProjectRequest  true  "Project payload"
// @Success      201      {object}  response.Response{data=service.ProjectResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), actorID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, project))
}

// GetProject returns one project
// @Summary      Get project
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  response.Response{data=service.ProjectResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projectService.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, project))
}

// UpdateProject updates an existing project
// @Summary      Update project
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Project ID"
// @Param        payload  body      service.UpdateProjectRequest  true  "Project fields"
// @Success      200      {object}  response.Response{data=service.ProjectResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, project))
}

// DeleteProject deletes a project and its tasks
// @Summary      Delete project
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), actorID, c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Project deleted"}))
}

// CreateTask adds a task to a project
// @Summary      Create task
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Project ID"
// @Param        payload  body      service.CreateTaskRequest  true  "Task payload"
// @Success      201      {object}  response.Response{data=service.TaskResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/projects/{id}/tasks [post]
func (h *ProjectHandler) CreateTask(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.projectService.CreateTask(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, task))
}

// ListTasks returns tasks filtered by project, assignee or status
// @Summary      List tasks
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        project_id   query     string  false  "Project ID"
// @Param        assignee_id  query     string  false  "Assignee ID, or \"me\""
// @Param        status       query     string  false  "todo, in_progress, review, done"
// @Param        page         query     int     false  "Page number (default: 1)"
// @Param        limit        query     int     false  "Items per page (default: 20)"
// @Success      200          {object}  response.Response{data=[]service.TaskResponse}
// @Router       /api/tasks [get]
func (h *ProjectHandler) ListTasks(c *gin.Context) {
	p := pagination.Parse(c)
	query := service.TaskQuery{
		ProjectID:  c.Query("project_id"),
		AssigneeID: c.Query("assignee_id"),
		Status:     c.Query("status"),
	}
	if query.AssigneeID == "me" {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		query.AssigneeID = userID.String()
	}

	tasks, total, err := h.projectService.ListTasks(c.Request.Context(), query, p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, tasks, p.Page, p.Limit, total))
}

// UpdateTask updates a task
// @Summary      Update task
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Task ID"
// @Param        payload  body      service.UpdateTaskRequest  true  "Task fields"
// @Success      200      {object}  response.Response{data=service.TaskResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/tasks/{id} [put]
func (h *ProjectHandler) UpdateTask(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.projectService.UpdateTask(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}

// DeleteTask deletes a task
// @Summary      Delete task
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/tasks/{id} [delete]
func (h *ProjectHandler) DeleteTask(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.projectService.DeleteTask(c.Request.Context(), actorID, c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Task deleted"}))
}
