package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type assignmentRepoStub struct {
	assignments map[string]*models.Assignment
	deleted     []string
}

func (s *assignmentRepoStub) Create(ctx context.Context, a *models.Assignment) error {
	if s.assignments == nil {
		s.assignments = make(map[string]*models.Assignment)
	}
	s.assignments[a.ID] = a
	return nil
}

func (s *assignmentRepoStub) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := s.assignments[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentRepoStub) Update(ctx context.Context, a *models.Assignment) error {
	s.assignments[a.ID] = a
	return nil
}

func (s *assignmentRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.assignments, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *assignmentRepoStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	var out []models.Assignment
	for _, a := range s.assignments {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (s *assignmentRepoStub) Statistics(ctx context.Context, filter models.AssignmentFilter) (*models.AssignmentStatistics, error) {
	return &models.AssignmentStatistics{TotalAssignments: len(s.assignments)}, nil
}

type assignmentMaterialStub struct {
	materials map[string]*models.EducationalMaterial
}

func (s *assignmentMaterialStub) FindByID(ctx context.Context, id string) (*models.EducationalMaterial, error) {
	if m, ok := s.materials[id]; ok {
		return m, nil
	}
	return nil, sql.ErrNoRows
}

type assignmentNotifierStub struct {
	types []models.NotificationType
}

func (s *assignmentNotifierStub) NotifyAssignment(ctx context.Context, a *models.Assignment, typ models.NotificationType) {
	s.types = append(s.types, typ)
}

func newAssignmentService(repo *assignmentRepoStub) (*AssignmentService, *assignmentNotifierStub) {
	users := &apptUserRepoStub{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, Status: models.UserStatusActive},
		"tutor-1":   {ID: "tutor-1", Role: models.RoleTutor, Status: models.UserStatusActive},
	}}
	materials := &assignmentMaterialStub{materials: map[string]*models.EducationalMaterial{
		"mat-1": {ID: "mat-1", Title: "Algebra drills"},
	}}
	notifier := &assignmentNotifierStub{}
	return NewAssignmentService(repo, users, materials, notifier, nil, nil), notifier
}

func seedAssignment(repo *assignmentRepoStub, mutate func(*models.Assignment)) *models.Assignment {
	a := &models.Assignment{
		ID:         "asg-1",
		MaterialID: "mat-1",
		StudentID:  "student-1",
		AssignedBy: "tutor-1",
		Title:      "Worksheet 3",
		DueDate:    time.Now().UTC().Add(72 * time.Hour),
		MaxPoints:  100,
		Status:     models.AssignmentAssigned,
	}
	if mutate != nil {
		mutate(a)
	}
	if repo.assignments == nil {
		repo.assignments = make(map[string]*models.Assignment)
	}
	repo.assignments[a.ID] = a
	return a
}

func TestAssignmentCreate(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, notifier := newAssignmentService(repo)

	a, err := svc.Create(context.Background(), "tutor-1", models.CreateAssignmentRequest{
		MaterialID: "mat-1",
		StudentID:  "student-1",
		Title:      "Worksheet 3",
		DueDate:    time.Now().UTC().Add(72 * time.Hour),
		MaxPoints:  100,
	})
	require.NoError(t, err)

	assert.Equal(t, models.AssignmentAssigned, a.Status)
	assert.Equal(t, "medium", a.Difficulty)
	assert.Equal(t, "tutor-1", a.AssignedBy)
	require.Len(t, notifier.types, 1)
	assert.Equal(t, models.NotifAssignmentDue, notifier.types[0])
}

func TestAssignmentCreateRejectsPastDueDate(t *testing.T) {
	svc, _ := newAssignmentService(&assignmentRepoStub{})

	_, err := svc.Create(context.Background(), "tutor-1", models.CreateAssignmentRequest{
		MaterialID: "mat-1",
		StudentID:  "student-1",
		Title:      "Worksheet 3",
		DueDate:    time.Now().UTC().Add(-time.Hour),
		MaxPoints:  100,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentCreateRejectsNonStudent(t *testing.T) {
	svc, _ := newAssignmentService(&assignmentRepoStub{})

	_, err := svc.Create(context.Background(), "tutor-1", models.CreateAssignmentRequest{
		MaterialID: "mat-1",
		StudentID:  "tutor-1",
		Title:      "Worksheet 3",
		DueDate:    time.Now().UTC().Add(time.Hour),
		MaxPoints:  100,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentSubmit(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, nil)

	a, err := svc.Submit(context.Background(), "asg-1", "student-1", models.SubmitAssignmentRequest{Text: "my answers"})
	require.NoError(t, err)

	assert.Equal(t, models.AssignmentSubmitted, a.Status)
	require.NotNil(t, a.Submission)
	assert.False(t, a.Submission.LateSubmission)
	assert.Equal(t, 1, a.Submission.SubmissionAttempts)
}

func TestAssignmentSubmitAfterDueDateIsLate(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.DueDate = time.Now().UTC().Add(-time.Hour)
		a.Status = models.AssignmentMissing
	})

	a, err := svc.Submit(context.Background(), "asg-1", "student-1", models.SubmitAssignmentRequest{Text: "late work"})
	require.NoError(t, err)

	assert.Equal(t, models.AssignmentLate, a.Status)
	assert.True(t, a.Submission.LateSubmission)
}

func TestAssignmentSubmitRequiresContent(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, nil)

	_, err := svc.Submit(context.Background(), "asg-1", "student-1", models.SubmitAssignmentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentSubmitOnlyByAssignedStudent(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, nil)

	_, err := svc.Submit(context.Background(), "asg-1", "student-2", models.SubmitAssignmentRequest{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignmentResubmitOnReturned(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.Status = models.AssignmentReturned
		a.Submission = &models.Submission{SubmittedAt: time.Now().UTC().Add(-24 * time.Hour), Text: "v1", SubmissionAttempts: 1}
	})

	a, err := svc.Submit(context.Background(), "asg-1", "student-1", models.SubmitAssignmentRequest{Text: "v2"})
	require.NoError(t, err)

	assert.Equal(t, models.AssignmentResubmitted, a.Status)
	assert.Equal(t, 2, a.Submission.SubmissionAttempts)
}

func TestAssignmentSubmitGradedRejected(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.Status = models.AssignmentGraded
		a.Submission = &models.Submission{SubmittedAt: time.Now().UTC(), Text: "v1", SubmissionAttempts: 1}
		a.Grading = &models.Grading{Grade: 90, GradedBy: "tutor-1", GradedAt: time.Now().UTC()}
	})

	_, err := svc.Submit(context.Background(), "asg-1", "student-1", models.SubmitAssignmentRequest{Text: "v2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestAssignmentGrade(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, notifier := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.Status = models.AssignmentSubmitted
		a.Submission = &models.Submission{SubmittedAt: time.Now().UTC(), Text: "done", SubmissionAttempts: 1}
	})

	a, err := svc.Grade(context.Background(), "asg-1", "tutor-1", false, models.GradeAssignmentRequest{Grade: 87.5, Feedback: "solid"})
	require.NoError(t, err)

	assert.Equal(t, models.AssignmentGraded, a.Status)
	require.NotNil(t, a.Grading)
	assert.Equal(t, 87.5, a.Grading.Grade)
	assert.Equal(t, "tutor-1", a.Grading.GradedBy)
	require.Len(t, notifier.types, 1)
	assert.Equal(t, models.NotifGradePosted, notifier.types[0])
}

func TestAssignmentGradeCappedByMaxPoints(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.Submission = &models.Submission{SubmittedAt: time.Now().UTC(), Text: "done", SubmissionAttempts: 1}
	})

	_, err := svc.Grade(context.Background(), "asg-1", "tutor-1", false, models.GradeAssignmentRequest{Grade: 101})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentGradeRequiresSubmission(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, nil)

	_, err := svc.Grade(context.Background(), "asg-1", "tutor-1", false, models.GradeAssignmentRequest{Grade: 50})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestAssignmentGradeOnlyByAssigner(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.Submission = &models.Submission{SubmittedAt: time.Now().UTC(), Text: "done", SubmissionAttempts: 1}
	})

	_, err := svc.Grade(context.Background(), "asg-1", "tutor-2", false, models.GradeAssignmentRequest{Grade: 50})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignmentApproveExtensionMovesDueDate(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, notifier := newAssignmentService(repo)
	newDue := time.Now().UTC().Add(96 * time.Hour)
	seedAssignment(repo, func(a *models.Assignment) {
		a.DueDate = time.Now().UTC().Add(-time.Hour)
		a.Status = models.AssignmentMissing
		a.Extensions = models.ExtensionList{{
			RequestedBy: "student-1",
			RequestedAt: time.Now().UTC().Add(-2 * time.Hour),
			Reason:      "illness",
			NewDueDate:  newDue,
		}}
	})

	a, err := svc.ApproveExtension(context.Background(), "asg-1", "tutor-1", false, models.ApproveExtensionRequest{ExtensionIndex: 0})
	require.NoError(t, err)

	assert.True(t, a.DueDate.Equal(newDue))
	assert.Equal(t, models.AssignmentAssigned, a.Status)
	assert.True(t, a.Extensions[0].Approved)
	require.Len(t, notifier.types, 1)
	assert.Equal(t, models.NotifExtensionApproved, notifier.types[0])
}

func TestAssignmentApproveExtensionTwiceRejected(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	approver := "tutor-1"
	when := time.Now().UTC()
	seedAssignment(repo, func(a *models.Assignment) {
		a.Extensions = models.ExtensionList{{
			RequestedBy: "student-1",
			NewDueDate:  time.Now().UTC().Add(96 * time.Hour),
			Approved:    true,
			ApprovedBy:  &approver,
			ApprovedAt:  &when,
		}}
	})

	_, err := svc.ApproveExtension(context.Background(), "asg-1", "tutor-1", false, models.ApproveExtensionRequest{ExtensionIndex: 0})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestAssignmentRequestExtensionRequiresLaterDate(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	a := seedAssignment(repo, nil)

	_, err := svc.RequestExtension(context.Background(), "asg-1", "student-1", models.RequestExtensionRequest{
		Reason:     "travel",
		NewDueDate: a.DueDate.Add(-time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentListDerivesMissing(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.DueDate = time.Now().UTC().Add(-time.Hour)
	})

	list, _, err := svc.List(context.Background(), models.AssignmentFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.AssignmentMissing, list[0].Status)
}

func TestAssignmentDeleteGradedRejected(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.Grading = &models.Grading{Grade: 80, GradedBy: "tutor-1", GradedAt: time.Now().UTC()}
		a.Status = models.AssignmentGraded
	})

	err := svc.Delete(context.Background(), "asg-1", "tutor-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestAssignmentPrivateCommentByStudentRejected(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, nil)

	_, err := svc.AddComment(context.Background(), "asg-1", "student-1", false, models.AddCommentRequest{Comment: "hidden", IsPrivate: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	a, err := svc.AddComment(context.Background(), "asg-1", "tutor-1", false, models.AddCommentRequest{Comment: "needs work", IsPrivate: true})
	require.NoError(t, err)
	require.Len(t, a.Comments, 1)
	assert.True(t, a.Comments[0].IsPrivate)
}

func TestAssignmentUpdateRederivesStatus(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _ := newAssignmentService(repo)
	seedAssignment(repo, func(a *models.Assignment) {
		a.DueDate = time.Now().UTC().Add(-24 * time.Hour)
	})

	title := "Worksheet 3b"
	updated, err := svc.Update(context.Background(), "asg-1", "tutor-1", false, models.UpdateAssignmentRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentMissing, updated.Status)

	due := time.Now().UTC().Add(48 * time.Hour)
	updated, err = svc.Update(context.Background(), "asg-1", "tutor-1", false, models.UpdateAssignmentRequest{DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentAssigned, updated.Status)
}
