package models

import (
	"strings"
	"time"
)

// Student is the applicant identity snapshot source for payments and logs.
type Student struct {
	ID            uint      `gorm:"primaryKey;column:id" json:"id"`
	StudentNumber string    `gorm:"column:student_number;size:32;uniqueIndex" json:"student_number"`
	FirstName     string    `gorm:"column:first_name;size:100" json:"first_name"`
	MiddleName    *string   `gorm:"column:middle_name;size:100" json:"middle_name,omitempty"`
	LastName      string    `gorm:"column:last_name;size:100" json:"last_name"`
	CitizenID     *string   `gorm:"column:citizen_id;size:32" json:"citizen_id,omitempty"`
	SchoolID      uint      `gorm:"column:school_id;index" json:"school_id"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}

// FullName joins first, middle and last names with single spaces.
func (s Student) FullName() string {
	parts := []string{s.FirstName}
	if s.MiddleName != nil && strings.TrimSpace(*s.MiddleName) != "" {
		parts = append(parts, *s.MiddleName)
	}
	parts = append(parts, s.LastName)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

type School struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	Name      string    `gorm:"column:name;size:200" json:"name"`
	Code      string    `gorm:"column:code;size:32" json:"code"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (School) TableName() string {
	return "schools"
}

// AidCategory is the aid type an application is filed under.
type AidCategory struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	Name      string    `gorm:"column:name;size:120" json:"name"`
	MaxAmount *float64  `gorm:"column:max_amount;type:decimal(12,2)" json:"max_amount,omitempty"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AidCategory) TableName() string {
	return "aid_categories"
}

// SchoolRepresentative maps a citizen identity supplied by the identity provider
// to the school that person may act for.
type SchoolRepresentative struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	CitizenID string    `gorm:"column:citizen_id;size:32;uniqueIndex" json:"citizen_id"`
	SchoolID  uint      `gorm:"column:school_id;index" json:"school_id"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SchoolRepresentative) TableName() string {
	return "school_representatives"
}
