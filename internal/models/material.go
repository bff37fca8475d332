package models

import (
	"database/sql/driver"
	"time"
)

// MaterialType enumerates the supported educational material kinds.
type MaterialType string

const (
	MaterialDocument     MaterialType = "document"
	MaterialPresentation MaterialType = "presentation"
	MaterialVideo        MaterialType = "video"
	MaterialLink         MaterialType = "link"
	MaterialExercise     MaterialType = "exercise"
	MaterialWorksheet    MaterialType = "worksheet"
	MaterialQuiz         MaterialType = "quiz"
)

// MaterialStatus tracks the publication lifecycle.
type MaterialStatus string

const (
	MaterialDraft       MaterialStatus = "draft"
	MaterialPublished   MaterialStatus = "published"
	MaterialArchived    MaterialStatus = "archived"
	MaterialUnderReview MaterialStatus = "under_review"
)

// MaterialRating is one user's rating of a material.
type MaterialRating struct {
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MaterialRatingList is the JSONB-backed rating log.
type MaterialRatingList []MaterialRating

func (l MaterialRatingList) Value() (driver.Value, error) {
	if l == nil {
		l = MaterialRatingList{}
	}
	return jsonbValue(l)
}

func (l *MaterialRatingList) Scan(value interface{}) error { return jsonbScan(value, l) }

// Average returns the mean rating, or zero when unrated.
func (l MaterialRatingList) Average() float64 {
	if len(l) == 0 {
		return 0
	}
	sum := 0
	for _, r := range l {
		sum += r.Rating
	}
	return float64(sum) / float64(len(l))
}

// EducationalMaterial is a study resource shared by professionals.
type EducationalMaterial struct {
	ID            string             `db:"id" json:"id"`
	Title         string             `db:"title" json:"title"`
	Description   string             `db:"description" json:"description,omitempty"`
	Type          MaterialType       `db:"type" json:"type"`
	Subject       string             `db:"subject" json:"subject"`
	GradeLevel    string             `db:"grade_level" json:"gradeLevel,omitempty"`
	Difficulty    string             `db:"difficulty" json:"difficulty"`
	Tags          StringList         `db:"tags" json:"tags"`
	FileURL       string             `db:"file_url" json:"fileUrl,omitempty"`
	ExternalLink  string             `db:"external_link" json:"externalLink,omitempty"`
	Content       string             `db:"content" json:"content,omitempty"`
	Visibility    string             `db:"visibility" json:"visibility"`
	IsPublic      bool               `db:"is_public" json:"isPublic"`
	SharedWith    StringList         `db:"shared_with" json:"sharedWith"`
	Ratings       MaterialRatingList `db:"ratings" json:"ratings"`
	AverageRating float64            `db:"average_rating" json:"averageRating"`
	Downloads     int                `db:"downloads" json:"downloads"`
	Status        MaterialStatus     `db:"status" json:"status"`
	CreatedBy     string             `db:"created_by" json:"createdBy"`
	UpdatedBy     *string            `db:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updatedAt"`
}

// MaterialFilter captures filtering criteria for listing materials.
type MaterialFilter struct {
	Subject    string
	Type       *MaterialType
	Difficulty string
	Status     *MaterialStatus
	CreatedBy  string
	Search     string
	Page       int
	Limit      int
}

// CreateMaterialRequest is the payload for publishing a material.
type CreateMaterialRequest struct {
	Title        string       `json:"title" validate:"required,max=200"`
	Description  string       `json:"description" validate:"max=2000"`
	Type         MaterialType `json:"type" validate:"required,oneof=document presentation video link exercise worksheet quiz"`
	Subject      string       `json:"subject" validate:"required"`
	GradeLevel   string       `json:"gradeLevel"`
	Difficulty   string       `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Tags         []string     `json:"tags"`
	FileURL      string       `json:"fileUrl"`
	ExternalLink string       `json:"externalLink"`
	Content      string       `json:"content"`
	Visibility   string       `json:"visibility" validate:"omitempty,oneof=private students public"`
}

// UpdateMaterialRequest patches material metadata.
type UpdateMaterialRequest struct {
	Title        *string       `json:"title" validate:"omitempty,max=200"`
	Description  *string       `json:"description" validate:"omitempty,max=2000"`
	Type         *MaterialType `json:"type" validate:"omitempty,oneof=document presentation video link exercise worksheet quiz"`
	Subject      *string       `json:"subject"`
	GradeLevel   *string       `json:"gradeLevel"`
	Difficulty   *string       `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Tags         []string      `json:"tags"`
	FileURL      *string       `json:"fileUrl"`
	ExternalLink *string       `json:"externalLink"`
	Content      *string       `json:"content"`
	Visibility   *string       `json:"visibility" validate:"omitempty,oneof=private students public"`
}

// RateMaterialRequest rates a material 1-5.
type RateMaterialRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// ShareMaterialRequest grants access to a set of users.
type ShareMaterialRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1"`
}

// ChangeMaterialStatusRequest moves a material through its lifecycle.
type ChangeMaterialStatusRequest struct {
	Status MaterialStatus `json:"status" validate:"required,oneof=draft published archived under_review"`
}
