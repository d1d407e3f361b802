package services

import (
	"context"
	"errors"
	"strings"

	"scholarship-aid-api/models"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleStaff       Role = "staff"
	RoleInterviewer Role = "interviewer"
	RoleSchoolRep   Role = "school_rep"
	RoleStudent     Role = "student"
)

// AuthContext is the caller identity threaded into every query. School
// representatives only ever see rows belonging to SchoolID and students only
// their own applications.
type AuthContext struct {
	UserID    uint
	Name      string
	Role      Role
	CitizenID string
	SchoolID  *uint
	StudentID *uint
}

// SystemActor is used for work not triggered by a person.
var SystemActor = AuthContext{UserID: 0, Name: "system", Role: RoleAdmin}

func (a AuthContext) IsSchoolRep() bool {
	return a.Role == RoleSchoolRep
}

func (a AuthContext) IsStudent() bool {
	return a.Role == RoleStudent
}

// DisplayName is what gets written to processed_by style columns.
func (a AuthContext) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	if a.UserID == 0 {
		return "system"
	}
	return "user-" + uitoa(a.UserID)
}

// Scope filters a query on the given school column for school representatives.
// A representative without an assigned school matches nothing, and neither
// does a student: school-wide tables are never exposed to them.
func (a AuthContext) Scope(db *gorm.DB, schoolColumn string) *gorm.DB {
	switch {
	case a.IsStudent():
		return db.Where("1 = 0")
	case !a.IsSchoolRep():
		return db
	case a.SchoolID == nil:
		return db.Where("1 = 0")
	}
	return db.Where(schoolColumn+" = ?", *a.SchoolID)
}

// ScopeApplications restricts an applications query to what the caller may
// touch: a student gets their own rows, everyone else goes through Scope.
func (a AuthContext) ScopeApplications(db *gorm.DB) *gorm.DB {
	if !a.IsStudent() {
		return a.Scope(db, "applications.school_id")
	}
	if a.StudentID == nil {
		return db.Where("1 = 0")
	}
	return db.Where("applications.student_id = ?", *a.StudentID)
}

// CanSeeSchool is the in-memory form of Scope.
func (a AuthContext) CanSeeSchool(schoolID uint) bool {
	switch {
	case a.IsStudent():
		return false
	case !a.IsSchoolRep():
		return true
	}
	return a.SchoolID != nil && *a.SchoolID == schoolID
}

// CanActFor reports whether the caller may file or edit applications on
// behalf of student.
func (a AuthContext) CanActFor(student models.Student) bool {
	if a.IsStudent() {
		return a.StudentID != nil && *a.StudentID == student.ID
	}
	return a.CanSeeSchool(student.SchoolID)
}

// ResolveSchoolAssignment maps a citizen id from the identity provider to the
// school the representative is assigned to. It returns nil when unassigned.
func ResolveSchoolAssignment(ctx context.Context, db *gorm.DB, citizenID string) (*uint, error) {
	citizenID = strings.TrimSpace(citizenID)
	if citizenID == "" {
		return nil, nil
	}
	var rep models.SchoolRepresentative
	err := db.WithContext(ctx).
		Where("citizen_id = ? AND is_active = ?", citizenID, true).
		First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	schoolID := rep.SchoolID
	return &schoolID, nil
}

// ResolveStudentIdentity maps a citizen id to the student record it belongs
// to. It returns nil when no student carries that id.
func ResolveStudentIdentity(ctx context.Context, db *gorm.DB, citizenID string) (*uint, error) {
	citizenID = strings.TrimSpace(citizenID)
	if citizenID == "" {
		return nil, nil
	}
	var student models.Student
	err := db.WithContext(ctx).Where("citizen_id = ?", citizenID).First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	studentID := student.ID
	return &studentID, nil
}
