package service

import (
	"context"
	"fmt"
	"time"

	"nexus/internal/model"
	"nexus/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateProjectRequest struct {
	Name        string          `json:"name" binding:"required,max=255"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Budget      decimal.Decimal `json:"budget"`
	OwnerID     *string         `json:"owner_id" binding:"omitempty,uuid"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
}

type UpdateProjectRequest struct {
	Name        *string          `json:"name" binding:"omitempty,max=255"`
	Description *string          `json:"description"`
	Status      *string          `json:"status"`
	Budget      *decimal.Decimal `json:"budget"`
	OwnerID     *string          `json:"owner_id" binding:"omitempty,uuid"`
	StartDate   *time.Time       `json:"start_date"`
	EndDate     *time.Time       `json:"end_date"`
}

type ProjectResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Budget      decimal.Decimal `json:"budget"`
	OwnerID     *string         `json:"owner_id"`
	OwnerName   string          `json:"owner_name,omitempty"`
	StartDate   *string         `json:"start_date"`
	EndDate     *string         `json:"end_date"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,max=255"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority" binding:"min=0,max=5"`
	AssigneeID  *string    `json:"assignee_id" binding:"omitempty,uuid"`
	DueDate     *time.Time `json:"due_date"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=255"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *int       `json:"priority" binding:"omitempty,min=0,max=5"`
	AssigneeID  *string    `json:"assignee_id" binding:"omitempty,uuid"`
	DueDate     *time.Time `json:"due_date"`
}

type TaskResponse struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Status       string  `json:"status"`
	Priority     int     `json:"priority"`
	AssigneeID   *string `json:"assignee_id"`
	AssigneeName string  `json:"assignee_name,omitempty"`
	DueDate      *string `json:"due_date"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type TaskQuery struct {
	ProjectID  string
	AssigneeID string
	Status     string
}

// --- Interface ---

type ProjectService interface {
	CreateProject(ctx context.Context, actorID uuid.UUID, req CreateProjectRequest) (*ProjectResponse, error)
	GetProject(ctx context.Context, id string) (*ProjectResponse, error)
	ListProjects(ctx context.Context, status, search string, page, limit int) ([]ProjectResponse, int64, error)
	UpdateProject(ctx context.Context, actorID uuid.UUID, id string, req UpdateProjectRequest) (*ProjectResponse, error)
	DeleteProject(ctx context.Context, actorID uuid.UUID, id string) error

	CreateTask(ctx context.Context, actorID uuid.UUID, projectID string, req CreateTaskRequest) (*TaskResponse, error)
	ListTasks(ctx context.Context, query TaskQuery, page, limit int) ([]TaskResponse, int64, error)
	UpdateTask(ctx context.Context, actorID uuid.UUID, id string, req UpdateTaskRequest) (*TaskResponse, error)
	DeleteTask(ctx context.Context, actorID uuid.UUID, id string) error
}

type projectService struct {
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	activity ActivityPublisher
}

func NewProjectService(projects repository.ProjectRepository, tasks repository.TaskRepository, activity ActivityPublisher) ProjectService {
	if activity == nil {
		activity = nopPublisher{}
	}
	return &projectService{projects: projects, tasks: tasks, activity: activity}
}

var (
	projectStatuses = map[string]bool{
		model.ProjectStatusPlanning:  true,
		model.ProjectStatusActive:    true,
		model.ProjectStatusOnHold:    true,
		model.ProjectStatusCompleted: true,
		model.ProjectStatusCancelled: true,
	}
	taskStatuses = map[string]bool{
		model.TaskStatusTodo:       true,
		model.TaskStatusInProgress: true,
		model.TaskStatusReview:     true,
		model.TaskStatusDone:       true,
	}
)

func toProjectResponse(p *model.Project) ProjectResponse {
	res := ProjectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Budget:      p.Budget,
		OwnerID:     uuidPtrString(p.OwnerID),
		StartDate:   formatTimePtr(p.StartDate),
		EndDate:     formatTimePtr(p.EndDate),
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
	if p.Owner != nil {
		res.OwnerName = p.Owner.Username
	}
	return res
}

func toTaskResponse(t *model.Task) TaskResponse {
	res := TaskResponse{
		ID:          t.ID.String(),
		ProjectID:   t.ProjectID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		AssigneeID:  uuidPtrString(t.AssigneeID),
		DueDate:     formatTimePtr(t.DueDate),
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if t.Assignee != nil {
		res.AssigneeName = t.Assignee.Username
	}
	return res
}

func parseOptionalID(id *string) (*uuid.UUID, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	parsed, err := parseID(*id)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func validateSchedule(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: end date is before start date", ErrInvalidInput)
	}
	return nil
}

// --- Projects ---

func (s *projectService) CreateProject(ctx context.Context, actorID uuid.UUID, req CreateProjectRequest) (*ProjectResponse, error) {
	status := req.Status
	if status == "" {
		status = model.ProjectStatusPlanning
	}
	if !projectStatuses[status] {
		return nil, fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, status)
	}
	if req.Budget.IsNegative() {
		return nil, fmt.Errorf("%w: budget must not be negative", ErrInvalidInput)
	}
	if err := validateSchedule(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	ownerID, err := parseOptionalID(req.OwnerID)
	if err != nil {
		return nil, err
	}
	if ownerID == nil {
		ownerID = &actorID
	}

	project := &model.Project{
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		Budget:      req.Budget.Round(2),
		OwnerID:     ownerID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	publishActivity(s.activity, Activity{Action: ActivityProjectChanged, ActorID: actorID, Subject: project.ID.String(), Detail: "created"})
	res := toProjectResponse(project)
	return &res, nil
}

func (s *projectService) GetProject(ctx context.Context, id string) (*ProjectResponse, error) {
	projectID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, notFound("project", err)
	}
	res := toProjectResponse(project)
	return &res, nil
}

func (s *projectService) ListProjects(ctx context.Context, status, search string, page, limit int) ([]ProjectResponse, int64, error) {
	if status != "" && !projectStatuses[status] {
		return nil, 0, fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, status)
	}
	projects, total, err := s.projects.List(ctx, status, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch projects: %w", err)
	}

	res := make([]ProjectResponse, 0, len(projects))
	for i := range projects {
		res = append(res, toProjectResponse(&projects[i]))
	}
	return res, total, nil
}

func (s *projectService) UpdateProject(ctx context.Context, actorID uuid.UUID, id string, req UpdateProjectRequest) (*ProjectResponse, error) {
	projectID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, notFound("project", err)
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		if !projectStatuses[*req.Status] {
			return nil, fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, *req.Status)
		}
		project.Status = *req.Status
	}
	if req.Budget != nil {
		if req.Budget.IsNegative() {
			return nil, fmt.Errorf("%w: budget must not be negative", ErrInvalidInput)
		}
		project.Budget = req.Budget.Round(2)
	}
	if req.OwnerID != nil {
		ownerID, err := parseOptionalID(req.OwnerID)
		if err != nil {
			return nil, err
		}
		project.OwnerID = ownerID
		project.Owner = nil
	}
	if req.StartDate != nil {
		project.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		project.EndDate = req.EndDate
	}
	if err := validateSchedule(project.StartDate, project.EndDate); err != nil {
		return nil, err
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	publishActivity(s.activity, Activity{Action: ActivityProjectChanged, ActorID: actorID, Subject: project.ID.String(), Detail: "updated"})
	res := toProjectResponse(project)
	return &res, nil
}

func (s *projectService) DeleteProject(ctx context.Context, actorID uuid.UUID, id string) error {
	projectID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return notFound("project", err)
	}
	publishActivity(s.activity, Activity{Action: ActivityProjectChanged, ActorID: actorID, Subject: projectID.String(), Detail: "deleted"})
	return nil
}

// --- Tasks ---

func (s *projectService) CreateTask(ctx context.Context, actorID uuid.UUID, projectID string, req CreateTaskRequest) (*TaskResponse, error) {
	pid, err := parseID(projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.FindByID(ctx, pid); err != nil {
		return nil, notFound("project", err)
	}

	status := req.Status
	if status == "" {
		status = model.TaskStatusTodo
	}
	if !taskStatuses[status] {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, status)
	}
	assigneeID, err := parseOptionalID(req.AssigneeID)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		ProjectID:   pid,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    req.Priority,
		AssigneeID:  assigneeID,
		DueDate:     req.DueDate,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	publishActivity(s.activity, Activity{Action: ActivityTaskChanged, ActorID: actorID, Subject: task.ID.String(), Detail: "created"})
	res := toTaskResponse(task)
	return &res, nil
}

func (s *projectService) ListTasks(ctx context.Context, query TaskQuery, page, limit int) ([]TaskResponse, int64, error) {
	var filter repository.TaskFilter
	if query.ProjectID != "" {
		pid, err := parseID(query.ProjectID)
		if err != nil {
			return nil, 0, err
		}
		filter.ProjectID = &pid
	}
	if query.AssigneeID != "" {
		aid, err := parseID(query.AssigneeID)
		if err != nil {
			return nil, 0, err
		}
		filter.AssigneeID = &aid
	}
	if query.Status != "" {
		if !taskStatuses[query.Status] {
			return nil, 0, fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, query.Status)
		}
		filter.Status = query.Status
	}

	tasks, total, err := s.tasks.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	res := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		res = append(res, toTaskResponse(&tasks[i]))
	}
	return res, total, nil
}

func (s *projectService) UpdateTask(ctx context.Context, actorID uuid.UUID, id string, req UpdateTaskRequest) (*TaskResponse, error) {
	taskID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound("task", err)
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		if !taskStatuses[*req.Status] {
			return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, *req.Status)
		}
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.AssigneeID != nil {
		assigneeID, err := parseOptionalID(req.AssigneeID)
		if err != nil {
			return nil, err
		}
		task.AssigneeID = assigneeID
		task.Assignee = nil
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	publishActivity(s.activity, Activity{Action: ActivityTaskChanged, ActorID: actorID, Subject: task.ID.String(), Detail: task.Status})
	res := toTaskResponse(task)
	return &res, nil
}

func (s *projectService) DeleteTask(ctx context.Context, actorID uuid.UUID, id string) error {
	taskID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return notFound("task", err)
	}
	publishActivity(s.activity, Activity{Action: ActivityTaskChanged, ActorID: actorID, Subject: taskID.String(), Detail: "deleted"})
	return nil
}
