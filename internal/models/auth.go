package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignupRequest creates a new account. The role-specific profile matching
// Role is validated by the auth service; the others are ignored.
type SignupRequest struct {
	Email           string          `json:"email" validate:"required,email"`
	Password        string          `json:"password" validate:"required,min=8"`
	Role            UserRole        `json:"role" validate:"omitempty,oneof=student tutor advisor"`
	PersonalInfo    PersonalInfo    `json:"personalInfo"`
	AcademicProfile AcademicProfile `json:"academicProfile"`
	StudentProfile  StudentProfile  `json:"studentProfile"`
	TutorProfile    TutorProfile    `json:"tutorProfile"`
	AdvisorProfile  AdvisorProfile  `json:"advisorProfile"`
}

// SigninRequest holds credentials for authenticating a user.
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the issued token and user info.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
	IssuedAt  time.Time `json:"issuedAt"`
	User      UserInfo  `json:"user"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Role         UserRole     `json:"role"`
	PersonalInfo PersonalInfo `json:"personalInfo"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
