package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type materialRepoStub struct {
	materials    map[string]*models.EducationalMaterial
	popular      []models.EducationalMaterial
	popularCalls int
	deleted      []string
}

func (s *materialRepoStub) Create(ctx context.Context, m *models.EducationalMaterial) error {
	if s.materials == nil {
		s.materials = make(map[string]*models.EducationalMaterial)
	}
	s.materials[m.ID] = m
	return nil
}

func (s *materialRepoStub) FindByID(ctx context.Context, id string) (*models.EducationalMaterial, error) {
	if m, ok := s.materials[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *materialRepoStub) Update(ctx context.Context, m *models.EducationalMaterial) error {
	s.materials[m.ID] = m
	return nil
}

func (s *materialRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.materials, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *materialRepoStub) IncrementDownloads(ctx context.Context, id string) (int, error) {
	m := s.materials[id]
	m.Downloads++
	return m.Downloads, nil
}

func (s *materialRepoStub) ListPopular(ctx context.Context, limit int) ([]models.EducationalMaterial, error) {
	s.popularCalls++
	return s.popular, nil
}

func (s *materialRepoStub) List(ctx context.Context, filter models.MaterialFilter) ([]models.EducationalMaterial, int, error) {
	var out []models.EducationalMaterial
	for _, m := range s.materials {
		out = append(out, *m)
	}
	return out, len(out), nil
}

func seedMaterial(repo *materialRepoStub, mutate func(*models.EducationalMaterial)) *models.EducationalMaterial {
	m := &models.EducationalMaterial{
		ID:         "mat-1",
		Title:      "Algebra drills",
		Type:       models.MaterialWorksheet,
		Subject:    "Mathematics",
		Difficulty: "intermediate",
		Visibility: "students",
		Status:     models.MaterialPublished,
		CreatedBy:  "tutor-1",
	}
	if mutate != nil {
		mutate(m)
	}
	if repo.materials == nil {
		repo.materials = make(map[string]*models.EducationalMaterial)
	}
	repo.materials[m.ID] = m
	return m
}

func TestMaterialCreateDefaults(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)

	m, err := svc.Create(context.Background(), "tutor-1", models.CreateMaterialRequest{
		Title:   "Algebra drills",
		Type:    models.MaterialWorksheet,
		Subject: "Mathematics",
	})
	require.NoError(t, err)

	assert.Equal(t, models.MaterialDraft, m.Status)
	assert.Equal(t, "students", m.Visibility)
	assert.Equal(t, "intermediate", m.Difficulty)
	assert.False(t, m.IsPublic)
}

func TestMaterialCreateRejectsBadType(t *testing.T) {
	svc := NewMaterialService(&materialRepoStub{}, nil, 0, nil, nil)

	_, err := svc.Create(context.Background(), "tutor-1", models.CreateMaterialRequest{
		Title:   "Algebra drills",
		Type:    "podcast",
		Subject: "Mathematics",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMaterialVisibility(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, func(m *models.EducationalMaterial) {
		m.Visibility = "private"
		m.SharedWith = models.StringList{"student-2"}
	})

	// owner
	_, err := svc.Get(context.Background(), "mat-1", "tutor-1", false)
	require.NoError(t, err)

	// shared recipient
	_, err = svc.Get(context.Background(), "mat-1", "student-2", false)
	require.NoError(t, err)

	// anyone else
	_, err = svc.Get(context.Background(), "mat-1", "student-3", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// admin
	_, err = svc.Get(context.Background(), "mat-1", "admin-1", true)
	require.NoError(t, err)
}

func TestMaterialStudentsVisibilityRequiresPublished(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, func(m *models.EducationalMaterial) {
		m.Status = models.MaterialDraft
	})

	_, err := svc.Get(context.Background(), "mat-1", "student-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMaterialRateReplacesPreviousRating(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, nil)

	_, err := svc.Rate(context.Background(), "mat-1", "student-1", models.RateMaterialRequest{Rating: 2})
	require.NoError(t, err)
	m, err := svc.Rate(context.Background(), "mat-1", "student-1", models.RateMaterialRequest{Rating: 5, Comment: "much better"})
	require.NoError(t, err)

	require.Len(t, m.Ratings, 1)
	assert.Equal(t, 5, m.Ratings[0].Rating)
	assert.Equal(t, 5.0, m.AverageRating)
}

func TestMaterialRateOwnRejected(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, nil)

	_, err := svc.Rate(context.Background(), "mat-1", "tutor-1", models.RateMaterialRequest{Rating: 5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMaterialAverageRating(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, nil)

	_, err := svc.Rate(context.Background(), "mat-1", "student-1", models.RateMaterialRequest{Rating: 2})
	require.NoError(t, err)
	m, err := svc.Rate(context.Background(), "mat-1", "student-2", models.RateMaterialRequest{Rating: 5})
	require.NoError(t, err)

	assert.Equal(t, 3.5, m.AverageRating)
}

func TestMaterialShareDeduplicates(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, func(m *models.EducationalMaterial) {
		m.SharedWith = models.StringList{"student-1"}
	})

	m, err := svc.Share(context.Background(), "mat-1", "tutor-1", false, models.ShareMaterialRequest{
		UserIDs: []string{"student-1", "student-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"student-1", "student-2"}, m.SharedWith)
}

func TestMaterialUpdateOnlyByOwner(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, nil)

	title := "Renamed"
	_, err := svc.Update(context.Background(), "mat-1", "tutor-2", false, models.UpdateMaterialRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	m, err := svc.Update(context.Background(), "mat-1", "tutor-1", false, models.UpdateMaterialRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", m.Title)
}

func TestMaterialDownloadCounts(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, func(m *models.EducationalMaterial) {
		m.Downloads = 4
	})

	m, err := svc.Download(context.Background(), "mat-1", "student-1", false)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Downloads)
}

func TestMaterialPopularWithoutCacheHitsRepo(t *testing.T) {
	repo := &materialRepoStub{popular: []models.EducationalMaterial{{ID: "mat-1"}, {ID: "mat-2"}}}
	svc := NewMaterialService(repo, nil, 0, nil, nil)

	list, err := svc.Popular(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.Popular(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.popularCalls)
}

func TestMaterialDelete(t *testing.T) {
	repo := &materialRepoStub{}
	svc := NewMaterialService(repo, nil, 0, nil, nil)
	seedMaterial(repo, nil)

	err := svc.Delete(context.Background(), "mat-1", "tutor-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "mat-1", "tutor-1", false))
	assert.Equal(t, []string{"mat-1"}, repo.deleted)
}
