package models

import "time"

type VerificationStatus string

const (
	VerificationStatusPending     VerificationStatus = "pending"
	VerificationStatusVerified    VerificationStatus = "verified"
	VerificationStatusRejected    VerificationStatus = "rejected"
	VerificationStatusNeedsReview VerificationStatus = "needs_review"
)

type EnrollmentTerm string

const (
	EnrollmentTermFirst  EnrollmentTerm = "first"
	EnrollmentTermSecond EnrollmentTerm = "second"
	EnrollmentTermSummer EnrollmentTerm = "summer"
)

// EnrollmentVerification records a school's confirmation that the student is enrolled.
type EnrollmentVerification struct {
	ID                uint               `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID     uint               `gorm:"column:application_id;uniqueIndex" json:"application_id"`
	SchoolID          uint               `gorm:"column:school_id;index" json:"school_id"`
	Status            VerificationStatus `gorm:"column:status;size:20;index" json:"status"`
	EnrollmentYear    string             `gorm:"column:enrollment_year;size:9" json:"enrollment_year"`
	EnrollmentTerm    EnrollmentTerm     `gorm:"column:enrollment_term;size:10" json:"enrollment_term"`
	IsEnrolled        bool               `gorm:"column:is_enrolled" json:"is_enrolled"`
	ProofDocumentPath *string            `gorm:"column:proof_document_path;size:255" json:"proof_document_path,omitempty"`
	SubmittedBy       *uint              `gorm:"column:submitted_by" json:"submitted_by,omitempty"`
	VerifiedBy        *uint              `gorm:"column:verified_by" json:"verified_by,omitempty"`
	VerifierNotes     *string            `gorm:"column:verifier_notes" json:"verifier_notes,omitempty"`
	VerifiedAt        *time.Time         `gorm:"column:verified_at" json:"verified_at,omitempty"`
	CreatedAt         time.Time          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"column:updated_at" json:"updated_at"`

	Application *Application `gorm:"foreignKey:ApplicationID" json:"application,omitempty"`
}

func (EnrollmentVerification) TableName() string {
	return "enrollment_verifications"
}
