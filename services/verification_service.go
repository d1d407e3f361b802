package services

import (
	"context"
	"sort"
	"strings"

	"scholarship-aid-api/config"
	"scholarship-aid-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VerificationService struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewVerificationService(db *gorm.DB) *VerificationService {
	if db == nil {
		db = config.DB
	}
	return &VerificationService{db: db, log: config.Logger().WithField("component", "verifications")}
}

// VerificationEntry is one row of the verification worklist. Virtual entries
// stand for applications awaiting verification that have no record yet.
type VerificationEntry struct {
	ApplicationID     uint                           `json:"application_id"`
	ApplicationNumber string                         `json:"application_number"`
	ApplicationStatus models.ApplicationStatus       `json:"application_status"`
	StudentName       string                         `json:"student_name"`
	StudentNumber     string                         `json:"student_number"`
	SchoolID          uint                           `json:"school_id"`
	Status            models.VerificationStatus      `json:"status"`
	Virtual           bool                           `json:"virtual"`
	Verification      *models.EnrollmentVerification `json:"verification,omitempty"`
}

type VerificationFilter struct {
	Status   string
	SchoolID *uint
	Page     int
	PageSize int
}

type EnrollmentProofInput struct {
	ProofDocumentPath string                `json:"proof_document_path" validate:"required,max=255"`
	EnrollmentYear    string                `json:"enrollment_year" validate:"required,max=9"`
	EnrollmentTerm    models.EnrollmentTerm `json:"enrollment_term" validate:"required,oneof=first second summer"`
	IsEnrolled        bool                  `json:"is_enrolled"`
}

type VerificationStats struct {
	Total         int64 `json:"total"`
	AwaitingProof int64 `json:"awaiting_proof"`
	Pending       int64 `json:"pending"`
	NeedsReview   int64 `json:"needs_review"`
	Verified      int64 `json:"verified"`
	Rejected      int64 `json:"rejected"`
}

// List merges stored verification records with virtual pending entries for
// applications in approved_pending_verification, filtered to the caller's school.
func (s *VerificationService) List(ctx context.Context, auth AuthContext, filter VerificationFilter) ([]VerificationEntry, int64, error) {
	entries, err := s.worklist(ctx, auth, filter.SchoolID)
	if err != nil {
		return nil, 0, err
	}

	if status := strings.ToLower(strings.TrimSpace(filter.Status)); status != "" {
		filtered := entries[:0]
		for _, entry := range entries {
			if string(entry.Status) == status {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	total := int64(len(entries))
	page, size := normalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start >= len(entries) {
		return []VerificationEntry{}, total, nil
	}
	end := start + size
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], total, nil
}

func (s *VerificationService) worklist(ctx context.Context, auth AuthContext, schoolID *uint) ([]VerificationEntry, error) {
	db := s.db.WithContext(ctx)

	recordQuery := auth.Scope(db.Preload("Application.Student"), "enrollment_verifications.school_id")
	if schoolID != nil {
		recordQuery = recordQuery.Where("enrollment_verifications.school_id = ?", *schoolID)
	}
	var records []models.EnrollmentVerification
	if err := recordQuery.Order("enrollment_verifications.updated_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	appQuery := auth.Scope(db.Preload("Student"), "applications.school_id").
		Where("applications.status = ?", string(models.ApplicationStatusApprovedPendingVerification))
	if schoolID != nil {
		appQuery = appQuery.Where("applications.school_id = ?", *schoolID)
	}
	var pendingApps []models.Application
	if err := appQuery.Order("applications.approved_at ASC, applications.id ASC").Find(&pendingApps).Error; err != nil {
		return nil, err
	}

	recorded := make(map[uint]struct{}, len(records))
	for _, record := range records {
		recorded[record.ApplicationID] = struct{}{}
	}
	entries := make([]VerificationEntry, 0, len(records)+len(pendingApps))
	for i := range pendingApps {
		app := pendingApps[i]
		if _, ok := recorded[app.ID]; ok {
			continue
		}
		entries = append(entries, VerificationEntry{
			ApplicationID:     app.ID,
			ApplicationNumber: app.ApplicationNumber,
			ApplicationStatus: app.Status,
			StudentName:       app.Student.FullName(),
			StudentNumber:     app.Student.StudentNumber,
			SchoolID:          app.SchoolID,
			Status:            models.VerificationStatusPending,
			Virtual:           true,
		})
	}
	for i := range records {
		record := records[i]
		entry := VerificationEntry{
			ApplicationID: record.ApplicationID,
			SchoolID:      record.SchoolID,
			Status:        record.Status,
			Verification:  &record,
		}
		if record.Application != nil {
			entry.ApplicationNumber = record.Application.ApplicationNumber
			entry.ApplicationStatus = record.Application.Status
			entry.StudentName = record.Application.Student.FullName()
			entry.StudentNumber = record.Application.Student.StudentNumber
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Virtual && !entries[j].Virtual
	})
	return entries, nil
}

func (s *VerificationService) Get(ctx context.Context, auth AuthContext, applicationID uint) (*VerificationEntry, error) {
	entries, err := s.worklist(ctx, auth, nil)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ApplicationID == applicationID {
			return &entries[i], nil
		}
	}
	return nil, NotFoundError("verification for application", applicationID)
}

// SubmitEnrollmentProof creates or replaces the pending verification of an
// application awaiting verification.
func (s *VerificationService) SubmitEnrollmentProof(ctx context.Context, auth AuthContext, applicationID uint, input EnrollmentProofInput) (*models.EnrollmentVerification, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	proof := strings.TrimSpace(input.ProofDocumentPath)
	submitter := auth.UserID

	return s.mutate(ctx, auth, applicationID, func(tx *gorm.DB, app *models.Application, record *models.EnrollmentVerification) (*models.EnrollmentVerification, error) {
		ts := now()
		if record == nil {
			record = &models.EnrollmentVerification{
				ApplicationID: app.ID,
				SchoolID:      app.SchoolID,
				CreatedAt:     ts,
			}
		} else if record.Status == models.VerificationStatusVerified || record.Status == models.VerificationStatusRejected {
			return nil, StateGuardError("verification for application %d is already %s", app.ID, record.Status)
		}
		record.Status = models.VerificationStatusPending
		record.EnrollmentYear = strings.TrimSpace(input.EnrollmentYear)
		record.EnrollmentTerm = input.EnrollmentTerm
		record.IsEnrolled = input.IsEnrolled
		record.ProofDocumentPath = &proof
		record.SubmittedBy = &submitter
		record.UpdatedAt = ts

		if record.ID == 0 {
			if err := tx.Create(record).Error; err != nil {
				if isDuplicateKey(err) {
					return nil, ConflictError("verification for application %d was submitted concurrently", app.ID)
				}
				return nil, err
			}
			return record, nil
		}
		err := tx.Model(&models.EnrollmentVerification{}).Where("id = ?", record.ID).Updates(map[string]interface{}{
			"status":              string(record.Status),
			"enrollment_year":     record.EnrollmentYear,
			"enrollment_term":     string(record.EnrollmentTerm),
			"is_enrolled":         record.IsEnrolled,
			"proof_document_path": proof,
			"submitted_by":        submitter,
			"updated_at":          ts,
		}).Error
		return record, err
	})
}

// Approve verifies the enrollment and confirms the application.
func (s *VerificationService) Approve(ctx context.Context, auth AuthContext, applicationID uint, notes string) (*models.EnrollmentVerification, error) {
	notesText := optionalText(notes)
	return s.mutate(ctx, auth, applicationID, func(tx *gorm.DB, app *models.Application, record *models.EnrollmentVerification) (*models.EnrollmentVerification, error) {
		if record == nil {
			return nil, StateGuardError("enrollment proof for application %d has not been submitted", app.ID)
		}
		if record.Status != models.VerificationStatusPending && record.Status != models.VerificationStatusNeedsReview {
			return nil, StateGuardError("cannot approve a verification that is %s", record.Status)
		}
		if !record.IsEnrolled {
			return nil, StateGuardError("student of application %d is not enrolled", app.ID)
		}

		if err := s.settle(tx, auth, record, models.VerificationStatusVerified, notesText); err != nil {
			return nil, err
		}
		err := applyTransition(tx, app, transitionRequest{
			Action:   ActionConfirmEnrollment,
			To:       models.ApplicationStatusApproved,
			Actor:    auth,
			Notes:    notesText,
			Updates:  map[string]interface{}{"verification_notes": notesText},
			Metadata: map[string]interface{}{"verification_id": record.ID},
		})
		return record, err
	})
}

// Reject records a failed verification and rejects the application.
func (s *VerificationService) Reject(ctx context.Context, auth AuthContext, applicationID uint, reason string) (*models.EnrollmentVerification, error) {
	reasonText := optionalText(reason)
	if reasonText == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}
	return s.mutate(ctx, auth, applicationID, func(tx *gorm.DB, app *models.Application, record *models.EnrollmentVerification) (*models.EnrollmentVerification, error) {
		if record == nil {
			ts := now()
			record = &models.EnrollmentVerification{
				ApplicationID: app.ID,
				SchoolID:      app.SchoolID,
				Status:        models.VerificationStatusPending,
				CreatedAt:     ts,
				UpdatedAt:     ts,
			}
			if err := tx.Create(record).Error; err != nil {
				return nil, err
			}
		}
		if record.Status != models.VerificationStatusPending && record.Status != models.VerificationStatusNeedsReview {
			return nil, StateGuardError("cannot reject a verification that is %s", record.Status)
		}
		if err := s.settle(tx, auth, record, models.VerificationStatusRejected, reasonText); err != nil {
			return nil, err
		}
		if err := tx.Model(&models.Application{}).Where("id = ?", app.ID).
			Update("verification_notes", reasonText).Error; err != nil {
			return nil, err
		}
		return record, rejectApplication(tx, app, auth, *reasonText)
	})
}

// FlagForReview parks a pending verification without touching the application.
func (s *VerificationService) FlagForReview(ctx context.Context, auth AuthContext, applicationID uint, notes string) (*models.EnrollmentVerification, error) {
	notesText := optionalText(notes)
	return s.mutate(ctx, auth, applicationID, func(tx *gorm.DB, app *models.Application, record *models.EnrollmentVerification) (*models.EnrollmentVerification, error) {
		if record == nil {
			return nil, StateGuardError("enrollment proof for application %d has not been submitted", app.ID)
		}
		if record.Status != models.VerificationStatusPending {
			return nil, StateGuardError("cannot flag a verification that is %s", record.Status)
		}
		err := tx.Model(&models.EnrollmentVerification{}).Where("id = ?", record.ID).Updates(map[string]interface{}{
			"status":         string(models.VerificationStatusNeedsReview),
			"verifier_notes": notesText,
			"updated_at":     now(),
		}).Error
		record.Status = models.VerificationStatusNeedsReview
		record.VerifierNotes = notesText
		return record, err
	})
}

// Statistics counts the worklist by status, virtual entries included.
func (s *VerificationService) Statistics(ctx context.Context, auth AuthContext) (*VerificationStats, error) {
	entries, err := s.worklist(ctx, auth, nil)
	if err != nil {
		return nil, err
	}
	stats := &VerificationStats{}
	for _, entry := range entries {
		stats.Total++
		if entry.Virtual {
			stats.AwaitingProof++
		}
		switch entry.Status {
		case models.VerificationStatusPending:
			stats.Pending++
		case models.VerificationStatusNeedsReview:
			stats.NeedsReview++
		case models.VerificationStatusVerified:
			stats.Verified++
		case models.VerificationStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

func (s *VerificationService) settle(tx *gorm.DB, auth AuthContext, record *models.EnrollmentVerification, status models.VerificationStatus, notes *string) error {
	ts := now()
	verifier := auth.UserID
	err := tx.Model(&models.EnrollmentVerification{}).Where("id = ?", record.ID).Updates(map[string]interface{}{
		"status":         string(status),
		"verified_by":    verifier,
		"verifier_notes": notes,
		"verified_at":    ts,
		"updated_at":     ts,
	}).Error
	if err != nil {
		return err
	}
	record.Status = status
	record.VerifiedBy = &verifier
	record.VerifierNotes = notes
	record.VerifiedAt = &ts
	return nil
}

// mutate locks the application (scoped to the caller) and its verification
// record, which may not exist yet, and runs fn in one transaction.
func (s *VerificationService) mutate(ctx context.Context, auth AuthContext, applicationID uint, fn func(tx *gorm.DB, app *models.Application, record *models.EnrollmentVerification) (*models.EnrollmentVerification, error)) (*models.EnrollmentVerification, error) {
	var result *models.EnrollmentVerification
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		app, err := lockApplication(tx, auth, applicationID)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusApprovedPendingVerification {
			return StateGuardError("application %d is not awaiting enrollment verification (status %s)", app.ID, app.Status)
		}

		var record *models.EnrollmentVerification
		var existing models.EnrollmentVerification
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("application_id = ?", app.ID).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != 0 {
			record = &existing
		}

		result, err = fn(tx, app, record)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"application_id": applicationID,
		"status":         result.Status,
	}).Info("enrollment verification updated")
	return result, nil
}
