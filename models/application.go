package models

import (
	"time"

	"gorm.io/datatypes"
)

// ApplicationStatus is the lifecycle state of a scholarship application.
type ApplicationStatus string

const (
	ApplicationStatusDraft                       ApplicationStatus = "draft"
	ApplicationStatusSubmitted                   ApplicationStatus = "submitted"
	ApplicationStatusUnderReview                 ApplicationStatus = "under_review"
	ApplicationStatusInterviewScheduled          ApplicationStatus = "interview_scheduled"
	ApplicationStatusInterviewCompleted          ApplicationStatus = "interview_completed"
	ApplicationStatusFlaggedForCompliance        ApplicationStatus = "flagged_for_compliance"
	ApplicationStatusApprovedPendingVerification ApplicationStatus = "approved_pending_verification"
	ApplicationStatusApproved                    ApplicationStatus = "approved"
	ApplicationStatusRejected                    ApplicationStatus = "rejected"
	ApplicationStatusGrantsProcessing            ApplicationStatus = "grants_processing"
	ApplicationStatusGrantsDisbursed             ApplicationStatus = "grants_disbursed"
	ApplicationStatusPaymentFailed               ApplicationStatus = "payment_failed"
	ApplicationStatusCancelled                   ApplicationStatus = "cancelled"
)

// AllApplicationStatuses lists every status in lifecycle order.
var AllApplicationStatuses = []ApplicationStatus{
	ApplicationStatusDraft,
	ApplicationStatusSubmitted,
	ApplicationStatusUnderReview,
	ApplicationStatusInterviewScheduled,
	ApplicationStatusInterviewCompleted,
	ApplicationStatusFlaggedForCompliance,
	ApplicationStatusApprovedPendingVerification,
	ApplicationStatusApproved,
	ApplicationStatusRejected,
	ApplicationStatusGrantsProcessing,
	ApplicationStatusGrantsDisbursed,
	ApplicationStatusPaymentFailed,
	ApplicationStatusCancelled,
}

// IsTerminal reports whether no further transition may leave the status.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case ApplicationStatusGrantsDisbursed, ApplicationStatusRejected, ApplicationStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether s is a known status.
func (s ApplicationStatus) IsValid() bool {
	for _, status := range AllApplicationStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Application is a scholarship/aid request owned by the application state machine.
type Application struct {
	ID                uint              `gorm:"primaryKey;column:id" json:"id"`
	ApplicationNumber string            `gorm:"column:application_number;size:32;uniqueIndex" json:"application_number"`
	StudentID         uint              `gorm:"column:student_id;index" json:"student_id"`
	SchoolID          uint              `gorm:"column:school_id;index" json:"school_id"`
	CategoryID        uint              `gorm:"column:category_id;index" json:"category_id"`
	Subcategory       string            `gorm:"column:subcategory;size:120" json:"subcategory"`
	RequestedAmount   float64           `gorm:"column:requested_amount;type:decimal(12,2)" json:"requested_amount"`
	ApprovedAmount    *float64          `gorm:"column:approved_amount;type:decimal(12,2)" json:"approved_amount,omitempty"`
	Currency          string            `gorm:"column:currency;size:3" json:"currency"`
	Status            ApplicationStatus `gorm:"column:status;size:40;index" json:"status"`
	DocumentsReviewed bool              `gorm:"column:documents_reviewed" json:"documents_reviewed"`

	ReviewNotes        *string `gorm:"column:review_notes" json:"review_notes,omitempty"`
	ReviewedBy         *uint   `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	ApprovedBy         *uint   `gorm:"column:approved_by" json:"approved_by,omitempty"`
	ApprovalNotes      *string `gorm:"column:approval_notes" json:"approval_notes,omitempty"`
	ComplianceReason   *string `gorm:"column:compliance_reason" json:"compliance_reason,omitempty"`
	RejectionReason    *string `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	VerificationNotes  *string `gorm:"column:verification_notes" json:"verification_notes,omitempty"`
	CancellationReason *string `gorm:"column:cancellation_reason" json:"cancellation_reason,omitempty"`

	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	ApprovedAt  *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
	DisbursedAt *time.Time `gorm:"column:disbursed_at" json:"disbursed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Student  Student     `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	School   School      `gorm:"foreignKey:SchoolID" json:"school,omitempty"`
	Category AidCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Application) TableName() string {
	return "applications"
}

// PayableAmount is the approved amount when set, otherwise the requested amount.
func (a Application) PayableAmount() float64 {
	if a.ApprovedAmount != nil {
		return *a.ApprovedAmount
	}
	return a.RequestedAmount
}

// ApplicationStatusHistory is an immutable audit row appended by every transition.
type ApplicationStatusHistory struct {
	ID            uint               `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID uint               `gorm:"column:application_id;index" json:"application_id"`
	OldStatus     *ApplicationStatus `gorm:"column:old_status;size:40" json:"old_status,omitempty"`
	NewStatus     ApplicationStatus  `gorm:"column:new_status;size:40" json:"new_status"`
	Action        string             `gorm:"column:action;size:40" json:"action"`
	ChangedBy     uint               `gorm:"column:changed_by" json:"changed_by"`
	Notes         *string            `gorm:"column:notes" json:"notes,omitempty"`
	Metadata      datatypes.JSONMap  `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time          `gorm:"column:created_at" json:"created_at"`
}

func (ApplicationStatusHistory) TableName() string {
	return "application_status_history"
}

// DocumentVerdict is the malware scan outcome returned by the document service.
type DocumentVerdict string

const (
	DocumentVerdictClean    DocumentVerdict = "clean"
	DocumentVerdictInfected DocumentVerdict = "infected"
)

// ApplicationDocument stores the reference and scan verdict of an uploaded file.
type ApplicationDocument struct {
	ID            uint            `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID uint            `gorm:"column:application_id;index" json:"application_id"`
	DocumentType  string          `gorm:"column:document_type;size:60" json:"document_type"`
	StoragePath   string          `gorm:"column:storage_path;size:255" json:"storage_path"`
	ScanVerdict   DocumentVerdict `gorm:"column:scan_verdict;size:20" json:"scan_verdict"`
	UploadedBy    uint            `gorm:"column:uploaded_by" json:"uploaded_by"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (ApplicationDocument) TableName() string {
	return "application_documents"
}
