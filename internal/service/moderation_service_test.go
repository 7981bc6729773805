package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rootle-api/internal/dto"
	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
)

type moderationFixture struct {
	*resourceFixture
	mod *ModerationService
}

func newModerationFixture() *moderationFixture {
	f := newResourceFixture()
	mod := NewModerationService(ModerationServiceDeps{
		Resources: f.store,
		Files:     f.files,
		Jobs:      f.jobs,
		Audit:     f.audit,
		Metrics:   f.metrics,
	})
	return &moderationFixture{resourceFixture: f, mod: mod}
}

func TestStudentUploadApprovedBySameDepartment(t *testing.T) {
	f := newModerationFixture()
	ctx := context.Background()

	result, err := f.svc.Upload(ctx, notesMeta("CSC201"), pdfUpload("csc201"), student("stu-1", deptCS))
	require.NoError(t, err)
	id := result.Resource.ID

	_, err = f.mod.Approve(ctx, id, lecturer(deptMath))
	assert.ErrorIs(t, err, appErrors.ErrJurisdiction)

	approved, err := f.mod.Approve(ctx, id, lecturer(deptCS))
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	items, _, err := f.svc.List(ctx, dto.ResourceQuery{}, student("stu-9", deptMath))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)

	_, err = f.mod.Approve(ctx, id, lecturer(deptCS))
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.moderationActions.WithLabelValues(string(ActionApprove))))
}

func TestStudentCannotModerate(t *testing.T) {
	f := newModerationFixture()
	res := f.store.put(models.Resource{UploaderID: "stu-1", DepartmentID: deptCS, Status: models.StatusPending})

	_, err := f.mod.Approve(context.Background(), res.ID, student("stu-2", deptCS))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = f.mod.PendingQueue(context.Background(), dto.PageQuery{}, student("stu-2", deptCS))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRejectPurgesPendingResource(t *testing.T) {
	f := newModerationFixture()
	ctx := context.Background()
	result, err := f.svc.Upload(ctx, notesMeta("Spam"), pdfUpload("spam"), student("stu-1", deptCS))
	require.NoError(t, err)
	id := result.Resource.ID

	require.NoError(t, f.mod.Reject(ctx, id, lecturer(deptCS)))
	assert.Equal(t, 0, f.files.count())

	_, err = f.svc.Get(ctx, id, lecturer(deptCS))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	// The fingerprint is free again once the row is gone.
	_, err = f.svc.Upload(ctx, notesMeta("Spam again"), pdfUpload("spam"), student("stu-1", deptCS))
	assert.NoError(t, err)
}

func TestRejectOnlyFromPending(t *testing.T) {
	f := newModerationFixture()
	res := f.store.put(models.Resource{UploaderID: "stu-1", DepartmentID: deptCS, Status: models.StatusApproved})

	err := f.mod.Reject(context.Background(), res.ID, lecturer(deptCS))
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestDeletionRequestConfirmPurgeFlow(t *testing.T) {
	f := newModerationFixture()
	ctx := context.Background()
	owner := student("stu-1", deptCS)
	result, err := f.svc.Upload(ctx, notesMeta("Old notes"), pdfUpload("old"), owner)
	require.NoError(t, err)
	res, err := f.mod.Approve(ctx, result.Resource.ID, lecturer(deptCS))
	require.NoError(t, err)

	_, err = f.svc.RequestDeletion(ctx, res.ID, dto.DeletionReasonRequest{Reason: "superseded"}, owner)
	require.NoError(t, err)

	queue, err := f.mod.DeletionQueue(ctx, lecturer(deptCS))
	require.NoError(t, err)
	require.Len(t, queue, 1)

	staffView, err := f.svc.Get(ctx, res.ID, lecturer(deptCS))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeletionRequested, staffView.Status)

	assert.ErrorIs(t, f.mod.ConfirmPurge(ctx, res.ID, lecturer(deptMath)), appErrors.ErrJurisdiction)
	require.NoError(t, f.mod.ConfirmPurge(ctx, res.ID, lecturer(deptCS)))

	_, err = f.svc.Get(ctx, res.ID, lecturer(deptCS))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, 0, f.files.count())
	assert.Contains(t, f.audit.actions(), models.AuditActionResourcePurge)
}

func TestRejectDeletionRestoresApproved(t *testing.T) {
	f := newModerationFixture()
	ctx := context.Background()
	owner := student("stu-1", deptCS)
	res := f.store.put(models.Resource{UploaderID: owner.UserID, DepartmentID: deptCS, Status: models.StatusApproved, FilePath: "resources/a.pdf"})

	req, err := f.svc.RequestDeletion(ctx, res.ID, dto.DeletionReasonRequest{}, owner)
	require.NoError(t, err)

	_, err = f.mod.RejectDeletion(ctx, req.ID, lecturer(deptMath))
	assert.ErrorIs(t, err, appErrors.ErrJurisdiction)

	restored, err := f.mod.RejectDeletion(ctx, req.ID, lecturer(deptCS))
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, restored.Status)

	_, err = f.mod.RejectDeletion(ctx, req.ID, lecturer(deptCS))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestPurgeFileFailureIsQueued(t *testing.T) {
	f := newModerationFixture()
	f.files.deleteErr = errors.New("bucket unavailable")
	res := f.store.put(models.Resource{UploaderID: "stu-1", DepartmentID: deptCS, Status: models.StatusPending, FilePath: "resources/x.pdf"})

	require.NoError(t, f.mod.Reject(context.Background(), res.ID, lecturer(deptCS)))
	require.Len(t, f.jobs.jobs, 1)
	assert.Equal(t, StorageDeletePayload{Key: "resources/x.pdf"}, f.jobs.jobs[0].Payload)

	_, err := f.store.GetByID(context.Background(), res.ID)
	assert.Error(t, err, "row is deleted even when the file is not")
}

func TestPendingQueueScopedToDepartment(t *testing.T) {
	f := newModerationFixture()
	f.store.put(models.Resource{UploaderID: "stu-1", DepartmentID: deptCS, Status: models.StatusPending})
	f.store.put(models.Resource{UploaderID: "stu-2", DepartmentID: deptMath, Status: models.StatusPending})
	f.store.put(models.Resource{UploaderID: "stu-3", DepartmentID: deptCS, Status: models.StatusApproved})

	items, page, err := f.mod.PendingQueue(context.Background(), dto.PageQuery{}, lecturer(deptCS))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, deptCS, items[0].DepartmentID)
	assert.Equal(t, 1, page.TotalCount)
}
