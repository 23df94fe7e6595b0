package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"nexus/internal/access"
	"nexus/internal/model"
	"nexus/internal/notify"
	"nexus/internal/repository"
	"nexus/internal/websocket"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// clock hands out strictly increasing timestamps so ordering is stable.
type clock struct {
	mu  sync.Mutex
	seq int
}

func (c *clock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return epoch.Add(time.Duration(c.seq) * time.Second)
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type fakeTx struct{ calls int }

func (f *fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

func (f *fakeTx) RunInSavepoint(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- roles ---

type fakeRoleRepo struct {
	mu      sync.Mutex
	clock   *clock
	roles   []model.UserRole
	defs    map[string]model.RoleDefinition
	listErr error
}

func newFakeRoleRepo(c *clock) *fakeRoleRepo {
	return &fakeRoleRepo{clock: c, defs: map[string]model.RoleDefinition{}}
}

func (f *fakeRoleRepo) assign(userID uuid.UUID, roles ...access.Role) {
	for _, r := range roles {
		_ = f.Grant(context.Background(), &model.UserRole{UserID: userID, Role: r.String()})
	}
}

func (f *fakeRoleRepo) ListUserRoles(_ context.Context, userID uuid.UUID) ([]model.UserRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.UserRole
	for _, r := range f.roles {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRoleRepo) ListUsersWithRole(_ context.Context, role string) ([]model.UserRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserRole
	for _, r := range f.roles {
		if r.Role == role {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRoleRepo) Grant(_ context.Context, a *model.UserRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.UserID == a.UserID && r.Role == a.Role {
			return gorm.ErrDuplicatedKey
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = f.clock.next()
	f.roles = append(f.roles, *a)
	return nil
}

func (f *fakeRoleRepo) Revoke(_ context.Context, userID uuid.UUID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.roles {
		if r.UserID == userID && r.Role == role {
			f.roles = append(f.roles[:i], f.roles[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRoleRepo) ListDefinitions(_ context.Context) ([]model.RoleDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.RoleDefinition, 0, len(f.defs))
	for _, d := range f.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

func (f *fakeRoleRepo) GetDefinition(_ context.Context, role string) (*model.RoleDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.defs[role]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &d, nil
}

func (f *fakeRoleRepo) UpsertDefinition(_ context.Context, def *model.RoleDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.next()
	if existing, ok := f.defs[def.Role]; ok {
		def.CreatedAt = existing.CreatedAt
	} else {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	f.defs[def.Role] = *def
	return nil
}

func (f *fakeRoleRepo) DeleteDefinition(_ context.Context, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.defs[role]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.defs, role)
	return nil
}

func (f *fakeRoleRepo) ListRoleOverrides(ctx context.Context) ([]access.OverrideRecord, error) {
	defs, err := f.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]access.OverrideRecord, 0, len(defs))
	for _, d := range defs {
		out = append(out, access.OverrideRecord{Role: d.Role, Permissions: d.Permissions})
	}
	return out, nil
}

// --- role requests ---

type fakeRequestRepo struct {
	mu       sync.Mutex
	clock    *clock
	requests []model.RoleRequest
	profiles *fakeProfileRepo
	// staleReads hides existing rows from ListByUser, as a concurrent
	// submit would see them.
	staleReads bool
}

func (f *fakeRequestRepo) withProfiles(r model.RoleRequest) model.RoleRequest {
	if f.profiles == nil {
		return r
	}
	if p, ok := f.profiles.byID(r.UserID); ok {
		r.Requester = &p
	}
	if r.ReviewedBy != nil {
		if p, ok := f.profiles.byID(*r.ReviewedBy); ok {
			r.Reviewer = &p
		}
	}
	return r
}

func (f *fakeRequestRepo) Create(_ context.Context, req *model.RoleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.UserID == req.UserID && r.RequestedRole == req.RequestedRole &&
			r.Status == model.RoleRequestPending && req.Status == model.RoleRequestPending {
			return gorm.ErrDuplicatedKey
		}
	}
	req.ID = uuid.New()
	req.CreatedAt = f.clock.next()
	req.UpdatedAt = req.CreatedAt
	f.requests = append(f.requests, *req)
	return nil
}

func (f *fakeRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*model.RoleRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ID == id {
			out := f.withProfiles(r)
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRequestRepo) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*model.RoleRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRequestRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.RoleRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.staleReads {
		return nil, nil
	}
	var out []model.RoleRequest
	for _, r := range f.requests {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRequestRepo) List(_ context.Context, status string, page, limit int) ([]model.RoleRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.RoleRequest
	for _, r := range f.requests {
		if status == "" || r.Status == status {
			out = append(out, f.withProfiles(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page, limit), int64(len(out)), nil
}

func (f *fakeRequestRepo) Update(_ context.Context, req *model.RoleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.requests {
		if r.ID == req.ID {
			updated := *req
			updated.Requester, updated.Reviewer = nil, nil
			updated.UpdatedAt = f.clock.next()
			f.requests[i] = updated
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRequestRepo) UpdateNotes(_ context.Context, id uuid.UUID, notes *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.requests {
		if r.ID == id {
			f.requests[i].AdminNotes = notes
			f.requests[i].UpdatedAt = f.clock.next()
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// --- ai outputs and audit ---

type fakeOutputRepo struct {
	mu      sync.Mutex
	clock   *clock
	outputs []model.AIOutput
}

func (f *fakeOutputRepo) Create(_ context.Context, o *model.AIOutput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.outputs {
		if existing.ReportType == o.ReportType && existing.ReportName == o.ReportName {
			return gorm.ErrDuplicatedKey
		}
	}
	o.ID = uuid.New()
	o.CreatedAt = f.clock.next()
	o.UpdatedAt = o.CreatedAt
	f.outputs = append(f.outputs, *o)
	return nil
}

func (f *fakeOutputRepo) find(reportType, reportName string) (*model.AIOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.outputs {
		if o.ReportType == reportType && o.ReportName == reportName {
			out := o
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOutputRepo) FindByReport(_ context.Context, reportType, reportName string) (*model.AIOutput, error) {
	return f.find(reportType, reportName)
}

func (f *fakeOutputRepo) FindByReportForUpdate(_ context.Context, reportType, reportName string) (*model.AIOutput, error) {
	return f.find(reportType, reportName)
}

func (f *fakeOutputRepo) List(_ context.Context, reportType, status string, page, limit int) ([]model.AIOutput, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AIOutput
	for _, o := range f.outputs {
		if (reportType == "" || o.ReportType == reportType) && (status == "" || o.Status == status) {
			out = append(out, o)
		}
	}
	return paginate(out, page, limit), int64(len(out)), nil
}

func (f *fakeOutputRepo) Update(_ context.Context, o *model.AIOutput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.outputs {
		if existing.ID == o.ID {
			o.UpdatedAt = f.clock.next()
			f.outputs[i] = *o
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	clock   *clock
	entries []model.AuditLog
	logErr  error
}

func (f *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return f.logErr
	}
	entry.ID = uuid.New()
	entry.CreatedAt = f.clock.next()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, filter repository.AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditLog
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if (filter.ReportType == "" || e.ReportType == filter.ReportType) &&
			(filter.ReportName == "" || e.ReportName == filter.ReportName) {
			out = append(out, e)
		}
	}
	return paginate(out, page, limit), int64(len(out)), nil
}

func (f *fakeAuditRepo) History(_ context.Context, reportType, reportName string) ([]model.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditLog
	for _, e := range f.entries {
		if e.ReportType == reportType && e.ReportName == reportName {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- profiles ---

type fakeProfileRepo struct {
	mu       sync.Mutex
	clock    *clock
	profiles []model.Profile
}

func (f *fakeProfileRepo) byID(id uuid.UUID) (model.Profile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return model.Profile{}, false
}

func (f *fakeProfileRepo) add(username string) uuid.UUID {
	p := &model.Profile{Username: username, Email: username + "@nexus.test", Password: "x"}
	_ = f.Create(context.Background(), p)
	return p.ID
}

func (f *fakeProfileRepo) Create(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.profiles {
		if existing.Email == p.Email || existing.Username == p.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = f.clock.next()
	p.UpdatedAt = p.CreatedAt
	f.profiles = append(f.profiles, *p)
	return nil
}

func (f *fakeProfileRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	if p, ok := f.byID(id); ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProfileRepo) GetByEmail(_ context.Context, email string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Email == email {
			out := p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProfileRepo) GetByUsername(_ context.Context, username string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Username == username {
			out := p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProfileRepo) List(_ context.Context, search string, page, limit int) ([]model.Profile, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Profile
	for _, p := range f.profiles {
		if search == "" || strings.Contains(p.Username, search) || strings.Contains(p.Email, search) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return paginate(out, page, limit), int64(len(out)), nil
}

func (f *fakeProfileRepo) Update(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.profiles {
		if existing.ID == p.ID {
			p.UpdatedAt = f.clock.next()
			f.profiles[i] = *p
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// --- projects ---

type fakeProjectRepo struct {
	mu       sync.Mutex
	clock    *clock
	projects []model.Project
}

func (f *fakeProjectRepo) Create(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = f.clock.next()
	p.UpdatedAt = p.CreatedAt
	f.projects = append(f.projects, *p)
	return nil
}

func (f *fakeProjectRepo) Update(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.projects {
		if existing.ID == p.ID {
			p.UpdatedAt = f.clock.next()
			f.projects[i] = *p
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeProjectRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.projects {
		if p.ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeProjectRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProjectRepo) List(_ context.Context, status, search string, page, limit int) ([]model.Project, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Project
	for _, p := range f.projects {
		if (status == "" || p.Status == status) && (search == "" || strings.Contains(p.Name, search)) {
			out = append(out, p)
		}
	}
	return paginate(out, page, limit), int64(len(out)), nil
}

type fakeTaskRepo struct {
	mu    sync.Mutex
	clock *clock
	tasks []model.Task
}

func (f *fakeTaskRepo) Create(_ context.Context, t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = f.clock.next()
	t.UpdatedAt = t.CreatedAt
	f.tasks = append(f.tasks, *t)
	return nil
}

func (f *fakeTaskRepo) Update(_ context.Context, t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.tasks {
		if existing.ID == t.ID {
			t.UpdatedAt = f.clock.next()
			f.tasks[i] = *t
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeTaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeTaskRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTaskRepo) List(_ context.Context, filter repository.TaskFilter, page, limit int) ([]model.Task, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, t := range f.tasks {
		if filter.ProjectID != nil && t.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return paginate(out, page, limit), int64(len(out)), nil
}

// --- side effects ---

type sent struct {
	userID uuid.UUID
	n      notify.Notification
}

type recordingSink struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recordingSink) Notify(_ context.Context, userID uuid.UUID, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{userID: userID, n: n})
}

func (r *recordingSink) last() sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return sent{}
	}
	return r.sent[len(r.sent)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (r *recordingPublisher) Publish(e websocket.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		if a, ok := e.Payload.(Activity); ok {
			out = append(out, a.Action)
		}
	}
	return out
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

var (
	_ repository.RoleRepository        = (*fakeRoleRepo)(nil)
	_ repository.RoleRequestRepository = (*fakeRequestRepo)(nil)
	_ repository.AIOutputRepository    = (*fakeOutputRepo)(nil)
	_ repository.AuditRepository       = (*fakeAuditRepo)(nil)
	_ repository.ProfileRepository     = (*fakeProfileRepo)(nil)
	_ repository.ProjectRepository     = (*fakeProjectRepo)(nil)
	_ repository.TaskRepository        = (*fakeTaskRepo)(nil)
	_ repository.TransactionManager    = (*fakeTx)(nil)
	_ notify.Sink                      = (*recordingSink)(nil)
	_ ActivityPublisher                = (*recordingPublisher)(nil)
)
