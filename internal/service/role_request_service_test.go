package service

import (
	"context"
	"testing"

	"nexus/internal/access"
	"nexus/internal/model"
	"nexus/internal/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestFixture struct {
	svc       RoleRequestService
	requests  *fakeRequestRepo
	roles     *fakeRoleRepo
	profiles  *fakeProfileRepo
	sink      *recordingSink
	activity  *recordingPublisher
	requester uuid.UUID
	admin     uuid.UUID
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	c := &clock{}
	profiles := &fakeProfileRepo{clock: c}
	f := &requestFixture{
		requests: &fakeRequestRepo{clock: c, profiles: profiles},
		roles:    newFakeRoleRepo(c),
		profiles: profiles,
		sink:     &recordingSink{},
		activity: &recordingPublisher{},
	}
	f.requester = profiles.add("riley")
	f.admin = profiles.add("ada")
	f.roles.assign(f.requester, access.RoleUser)
	f.roles.assign(f.admin, access.RoleAdmin)
	f.svc = NewRoleRequestService(f.requests, f.roles, &fakeTx{}, f.sink, f.activity, nil)
	return f
}

func TestSubmit_CreatesPendingRequestWithoutGranting(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	res, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestPending, res.Status)
	assert.Equal(t, "pmo", res.RequestedRole)
	assert.Nil(t, res.ReviewedAt)

	held, _ := f.roles.ListUserRoles(ctx, f.requester)
	assert.Len(t, held, 1, "submitting must not grant the role")

	last := f.sink.last()
	assert.Equal(t, f.requester, last.userID)
	assert.Equal(t, notify.LevelSuccess, last.n.Level)
	assert.Equal(t, []string{ActivityRoleRequested}, f.activity.actions())
}

func TestSubmit_RejectsDuplicatePending(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	assert.ErrorIs(t, err, ErrDuplicatePendingRequest)
	assert.Equal(t, notify.LevelError, f.sink.last().n.Level)
	assert.Contains(t, f.sink.last().n.Message, "pending request")

	list, err := f.svc.ListForUser(ctx, f.requester)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// A different role is still fine.
	_, err = f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "program_manager"})
	assert.NoError(t, err)
}

func TestSubmit_ConcurrentDuplicateHitsUniqueIndex(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)

	f.requests.staleReads = true
	_, err = f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	assert.ErrorIs(t, err, ErrDuplicatePendingRequest)
}

func TestSubmit_Validation(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	tests := []struct {
		role string
		want error
	}{
		{"emperor", access.ErrUnknownRole},
		{"", access.ErrUnknownRole},
		{"admin", ErrAdminNotRequestable},
		{"user", ErrRoleAlreadyHeld},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: tt.role})
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.requests.requests)
}

func TestSubmit_DataFailureNotifiesGenericMessage(t *testing.T) {
	f := newRequestFixture(t)
	f.roles.listErr = assert.AnError

	_, err := f.svc.Submit(context.Background(), f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "Could not submit your role request.", f.sink.last().n.Message)
}

func TestListForUser_NewestFirst(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	for _, role := range []string{"project_manager", "senior_project_manager", "pmo"} {
		_, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: role})
		require.NoError(t, err)
	}

	list, err := f.svc.ListForUser(ctx, f.requester)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "pmo", list[0].RequestedRole)
	assert.Equal(t, "project_manager", list[2].RequestedRole)

	other, err := f.svc.ListForUser(ctx, f.admin)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestReview_ApproveGrantsRole(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)

	notes := "welcome aboard"
	reviewed, err := f.svc.Review(ctx, f.admin, created.ID, ReviewRoleRequest{Decision: "approved", AdminNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestApproved, reviewed.Status)
	assert.Equal(t, "ada", reviewed.ReviewerName)
	assert.Equal(t, "riley", reviewed.Username)
	require.NotNil(t, reviewed.ReviewedAt)
	require.NotNil(t, reviewed.AdminNotes)
	assert.Equal(t, notes, *reviewed.AdminNotes)

	held, _ := f.roles.ListUserRoles(ctx, f.requester)
	roles := make([]string, 0, len(held))
	for _, h := range held {
		roles = append(roles, h.Role)
	}
	assert.ElementsMatch(t, []string{"user", "pmo"}, roles)

	assert.Equal(t, notify.LevelSuccess, f.sink.last().n.Level)
	assert.Equal(t, f.requester, f.sink.last().userID)

	_, err = f.svc.Review(ctx, f.admin, created.ID, ReviewRoleRequest{Decision: "rejected"})
	assert.ErrorIs(t, err, ErrRequestAlreadyReviewed)
}

func TestReview_RejectAllowsNewRequest(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)

	reviewed, err := f.svc.Review(ctx, f.admin, created.ID, ReviewRoleRequest{Decision: "rejected"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestRejected, reviewed.Status)
	assert.Equal(t, notify.LevelWarning, f.sink.last().n.Level)

	held, _ := f.roles.ListUserRoles(ctx, f.requester)
	assert.Len(t, held, 1)

	_, err = f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	assert.NoError(t, err)
}

func TestReview_Guards(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, f.requester, created.ID, ReviewRoleRequest{Decision: "approved"})
	assert.ErrorIs(t, err, ErrSelfReview)

	_, err = f.svc.Review(ctx, f.admin, "not-a-uuid", ReviewRoleRequest{Decision: "approved"})
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = f.svc.Review(ctx, f.admin, uuid.NewString(), ReviewRoleRequest{Decision: "approved"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Review(ctx, f.admin, created.ID, ReviewRoleRequest{Decision: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReview_ApproveWhenRoleAlreadyHeld(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)
	// Granted directly while the request was pending.
	f.roles.assign(f.requester, access.RolePMO)

	_, err = f.svc.Review(ctx, f.admin, created.ID, ReviewRoleRequest{Decision: "approved"})
	require.NoError(t, err)
	held, _ := f.roles.ListUserRoles(ctx, f.requester)
	assert.Len(t, held, 2)
}

func TestUpdateNotes_AfterReview(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, f.admin, created.ID, ReviewRoleRequest{Decision: "approved"})
	require.NoError(t, err)

	notes := "granted for Q3 portfolio review"
	updated, err := f.svc.UpdateNotes(ctx, created.ID, UpdateAdminNotesRequest{AdminNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestApproved, updated.Status)
	assert.Equal(t, notes, *updated.AdminNotes)
}

// reviewDuringNotes lets a review commit while a notes edit is in flight.
type reviewDuringNotes struct {
	*fakeRequestRepo
	review func()
}

func (r *reviewDuringNotes) FindByID(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error) {
	if r.review != nil {
		review := r.review
		r.review = nil
		review()
	}
	return r.fakeRequestRepo.FindByID(ctx, id)
}

func (r *reviewDuringNotes) UpdateNotes(ctx context.Context, id uuid.UUID, notes *string) error {
	if r.review != nil {
		review := r.review
		r.review = nil
		review()
	}
	return r.fakeRequestRepo.UpdateNotes(ctx, id, notes)
}

func TestUpdateNotes_ConcurrentReviewIsKept(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)

	racing := &reviewDuringNotes{fakeRequestRepo: f.requests}
	racing.review = func() {
		_, err := f.svc.Review(ctx, f.admin, created.ID, ReviewRoleRequest{Decision: "approved"})
		require.NoError(t, err)
	}
	svc := NewRoleRequestService(racing, f.roles, &fakeTx{}, f.sink, f.activity, nil)

	notes := "context for the approval"
	updated, err := svc.UpdateNotes(ctx, created.ID, UpdateAdminNotesRequest{AdminNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestApproved, updated.Status)
	assert.Equal(t, notes, *updated.AdminNotes)

	stored, err := f.requests.FindByID(ctx, uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestApproved, stored.Status)
	assert.NotNil(t, stored.ReviewedAt)
	assert.Equal(t, f.admin, *stored.ReviewedBy)
}

func TestUpdateNotes_UnknownRequest(t *testing.T) {
	f := newRequestFixture(t)
	notes := "n/a"
	_, err := f.svc.UpdateNotes(context.Background(), uuid.NewString(), UpdateAdminNotesRequest{AdminNotes: &notes})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_FiltersByStatus(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	a, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "program_manager"})
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, f.admin, a.ID, ReviewRoleRequest{Decision: "rejected"})
	require.NoError(t, err)

	pending, total, err := f.svc.List(ctx, model.RoleRequestPending, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "program_manager", pending[0].RequestedRole)

	_, _, err = f.svc.List(ctx, "unknown", 1, 20)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// A user requests pmo, an admin approves, and the next access decision sees it.
func TestRoleRequest_ApprovalOpensAuditLogs(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	store := access.NewOverlayStore(f.roles, nil)
	accessSvc := NewAccessService(f.roles, store, nil)

	d, err := accessSvc.Decider(ctx, f.requester)
	require.NoError(t, err)
	assert.False(t, d.CanAccess(access.FeatureAuditLogs))

	created, err := f.svc.Submit(ctx, f.requester, SubmitRoleRequest{RequestedRole: "pmo"})
	require.NoError(t, err)

	d, err = accessSvc.Decider(ctx, f.requester)
	require.NoError(t, err)
	assert.False(t, d.CanAccess(access.FeatureAuditLogs), "pending request grants nothing")

	_, err = f.svc.Review(ctx, f.admin, created.ID, ReviewRoleRequest{Decision: "approved"})
	require.NoError(t, err)

	d, err = accessSvc.Decider(ctx, f.requester)
	require.NoError(t, err)
	assert.Equal(t, access.RolePMO, d.Subject().Role)
	assert.True(t, d.CanAccess(access.FeatureAuditLogs))
}
