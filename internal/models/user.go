package models

import (
	"database/sql/driver"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTutor   UserRole = "tutor"
	RoleAdvisor UserRole = "advisor"
	RoleAdmin   UserRole = "admin"
)

// IsProfessional reports whether the role may hold availability slots and be
// the counterparty on an appointment.
func (r UserRole) IsProfessional() bool {
	return r == RoleTutor || r == RoleAdvisor
}

// UserStatus tracks the account lifecycle. Accounts are never physically
// deleted; status=deleted is the soft-delete marker.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// PersonalInfo holds the common identity fields shared by every role.
type PersonalInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

func (p PersonalInfo) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *PersonalInfo) Scan(value interface{}) error { return jsonbScan(value, p) }

// AcademicProfile carries background data shared by professionals.
type AcademicProfile struct {
	Institution     string   `json:"institution,omitempty"`
	Degrees         []string `json:"degrees,omitempty"`
	ExperienceYears int      `json:"experienceYears,omitempty"`
}

func (p AcademicProfile) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *AcademicProfile) Scan(value interface{}) error { return jsonbScan(value, p) }

// StudentProfile is the role-specific payload for students.
type StudentProfile struct {
	GradeLevel    string   `json:"gradeLevel,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
	LearningGoals string   `json:"learningGoals,omitempty"`
}

func (p StudentProfile) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *StudentProfile) Scan(value interface{}) error { return jsonbScan(value, p) }

// TutorProfile is the role-specific payload for tutors.
type TutorProfile struct {
	Specialties []string `json:"specialties,omitempty"`
	HourlyRate  float64  `json:"hourlyRate,omitempty"`
	Bio         string   `json:"bio,omitempty"`
}

func (p TutorProfile) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *TutorProfile) Scan(value interface{}) error { return jsonbScan(value, p) }

// AdvisorProfile is the role-specific payload for advisors.
type AdvisorProfile struct {
	Department  string `json:"department,omitempty"`
	OfficeHours string `json:"officeHours,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

func (p AdvisorProfile) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *AdvisorProfile) Scan(value interface{}) error { return jsonbScan(value, p) }

// User represents an application user stored in the users table. Exactly one
// of the role-specific profiles is meaningful, keyed by Role.
type User struct {
	ID              string          `db:"id" json:"id"`
	Email           string          `db:"email" json:"email"`
	PasswordHash    string          `db:"password_hash" json:"-"`
	Role            UserRole        `db:"role" json:"role"`
	Status          UserStatus      `db:"status" json:"status"`
	PersonalInfo    PersonalInfo    `db:"personal_info" json:"personalInfo"`
	AcademicProfile AcademicProfile `db:"academic_profile" json:"academicProfile,omitempty"`
	StudentProfile  StudentProfile  `db:"student_profile" json:"studentProfile,omitempty"`
	TutorProfile    TutorProfile    `db:"tutor_profile" json:"tutorProfile,omitempty"`
	AdvisorProfile  AdvisorProfile  `db:"advisor_profile" json:"advisorProfile,omitempty"`
	LoginAttempts   int             `db:"login_attempts" json:"-"`
	LockedUntil     *time.Time      `db:"locked_until" json:"-"`
	LastLogin       *time.Time      `db:"last_login" json:"lastLogin,omitempty"`
	EmailVerified   bool            `db:"email_verified" json:"emailVerified"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// Locked reports whether the failed-login lockout is currently in effect.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role   *UserRole
	Status *UserStatus
	Search string
	Page   int
	Limit  int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination derives page counts from a total row count.
func NewPagination(page, limit, total int) *Pagination {
	if limit <= 0 {
		limit = 20
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
