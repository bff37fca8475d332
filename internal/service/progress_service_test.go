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

type progressRepoStub struct {
	records  map[string]*models.ProgressTracking
	existing map[string]bool
	deleted  []string
}

func (s *progressRepoStub) Create(ctx context.Context, p *models.ProgressTracking) error {
	if s.records == nil {
		s.records = make(map[string]*models.ProgressTracking)
	}
	s.records[p.ID] = p
	if s.existing == nil {
		s.existing = make(map[string]bool)
	}
	s.existing[p.StudentID+"/"+p.Subject] = true
	return nil
}

func (s *progressRepoStub) FindByID(ctx context.Context, id string) (*models.ProgressTracking, error) {
	if p, ok := s.records[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *progressRepoStub) ExistsForStudentSubject(ctx context.Context, studentID, subject string) (bool, error) {
	return s.existing[studentID+"/"+subject], nil
}

func (s *progressRepoStub) Update(ctx context.Context, p *models.ProgressTracking) error {
	s.records[p.ID] = p
	return nil
}

func (s *progressRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.records, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *progressRepoStub) List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressTracking, int, error) {
	var out []models.ProgressTracking
	for _, p := range s.records {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (s *progressRepoStub) Statistics(ctx context.Context, filter models.ProgressFilter) (*models.ProgressStatistics, error) {
	return &models.ProgressStatistics{TotalRecords: len(s.records)}, nil
}

func newProgressService(repo *progressRepoStub) *ProgressService {
	users := &apptUserRepoStub{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, Status: models.UserStatusActive},
		"tutor-1":   {ID: "tutor-1", Role: models.RoleTutor, Status: models.UserStatusActive},
	}}
	return NewProgressService(repo, users, nil, nil)
}

func seedProgress(repo *progressRepoStub, mutate func(*models.ProgressTracking)) *models.ProgressTracking {
	p := &models.ProgressTracking{
		ID:        "prg-1",
		StudentID: "student-1",
		TrackedBy: "tutor-1",
		Subject:   "Mathematics",
	}
	if mutate != nil {
		mutate(p)
	}
	if repo.records == nil {
		repo.records = make(map[string]*models.ProgressTracking)
	}
	repo.records[p.ID] = p
	return p
}

func TestProgressCreateFirstIsBaseline(t *testing.T) {
	repo := &progressRepoStub{}
	svc := newProgressService(repo)

	first, err := svc.Create(context.Background(), "tutor-1", models.CreateProgressRequest{
		StudentID: "student-1",
		Subject:   "Mathematics",
	})
	require.NoError(t, err)
	assert.True(t, first.IsBaseline)

	second, err := svc.Create(context.Background(), "tutor-1", models.CreateProgressRequest{
		StudentID: "student-1",
		Subject:   "Mathematics",
	})
	require.NoError(t, err)
	assert.False(t, second.IsBaseline)

	other, err := svc.Create(context.Background(), "tutor-1", models.CreateProgressRequest{
		StudentID: "student-1",
		Subject:   "Physics",
	})
	require.NoError(t, err)
	assert.True(t, other.IsBaseline)
}

func TestProgressCreateDefaultsGoalStatus(t *testing.T) {
	repo := &progressRepoStub{}
	svc := newProgressService(repo)

	p, err := svc.Create(context.Background(), "tutor-1", models.CreateProgressRequest{
		StudentID: "student-1",
		Subject:   "Mathematics",
		Goals:     []models.Goal{{Description: "pass the midterm"}},
	})
	require.NoError(t, err)
	require.Len(t, p.Goals, 1)
	assert.Equal(t, models.GoalNotStarted, p.Goals[0].Status)
}

func TestProgressCreateRejectsNonStudent(t *testing.T) {
	svc := newProgressService(&progressRepoStub{})

	_, err := svc.Create(context.Background(), "tutor-1", models.CreateProgressRequest{
		StudentID: "tutor-1",
		Subject:   "Mathematics",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProgressGetVisibility(t *testing.T) {
	repo := &progressRepoStub{}
	svc := newProgressService(repo)
	seedProgress(repo, nil)

	_, err := svc.Get(context.Background(), "prg-1", "student-1", false)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "prg-1", "tutor-1", false)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "prg-1", "tutor-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestProgressUpdateOnlyByTracker(t *testing.T) {
	repo := &progressRepoStub{}
	svc := newProgressService(repo)
	seedProgress(repo, nil)

	obs := "getting better"
	_, err := svc.Update(context.Background(), "prg-1", "student-1", false, models.UpdateProgressRequest{Observations: &obs})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	p, err := svc.Update(context.Background(), "prg-1", "tutor-1", false, models.UpdateProgressRequest{Observations: &obs})
	require.NoError(t, err)
	assert.Equal(t, "getting better", p.Observations)
}

func TestProgressAddHistorySnapshotsMetrics(t *testing.T) {
	repo := &progressRepoStub{}
	svc := newProgressService(repo)
	seedProgress(repo, func(p *models.ProgressTracking) {
		p.Metrics = models.ProgressMetrics{CompletionRate: 40}
	})

	p, err := svc.AddHistory(context.Background(), "prg-1", "tutor-1", false, models.AddHistoryRequest{
		Metrics: models.ProgressMetrics{CompletionRate: 65},
		Notes:   "after exam week",
	})
	require.NoError(t, err)

	require.Len(t, p.History, 1)
	assert.Equal(t, 65.0, p.History[0].Metrics.CompletionRate)
	assert.Equal(t, 65.0, p.Metrics.CompletionRate)
	assert.WithinDuration(t, time.Now().UTC(), p.History[0].Date, time.Minute)
}

func TestProgressCompletedGoalForcesFullProgress(t *testing.T) {
	repo := &progressRepoStub{}
	svc := newProgressService(repo)
	seedProgress(repo, func(p *models.ProgressTracking) {
		p.Goals = models.GoalList{{Description: "pass the midterm", Status: models.GoalInProgress, Progress: 60}}
	})

	p, err := svc.UpdateGoalStatus(context.Background(), "prg-1", "tutor-1", false, models.UpdateGoalStatusRequest{
		GoalIndex: 0,
		Status:    models.GoalCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, models.GoalCompleted, p.Goals[0].Status)
	assert.Equal(t, 100, p.Goals[0].Progress)
}

func TestProgressGoalIndexOutOfRange(t *testing.T) {
	repo := &progressRepoStub{}
	svc := newProgressService(repo)
	seedProgress(repo, nil)

	_, err := svc.UpdateGoalStatus(context.Background(), "prg-1", "tutor-1", false, models.UpdateGoalStatusRequest{
		GoalIndex: 2,
		Status:    models.GoalInProgress,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProgressDeleteOnlyByTracker(t *testing.T) {
	repo := &progressRepoStub{}
	svc := newProgressService(repo)
	seedProgress(repo, nil)

	err := svc.Delete(context.Background(), "prg-1", "student-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "prg-1", "tutor-1", false))
	assert.Equal(t, []string{"prg-1"}, repo.deleted)
}
