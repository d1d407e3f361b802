package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scholarship-aid-api/config"
	"scholarship-aid-api/models"
	"scholarship-aid-api/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ApplicationService struct {
	db                  *gorm.DB
	log                 *logrus.Entry
	requireVerification bool
	defaultCurrency     string
}

func NewApplicationService(db *gorm.DB) *ApplicationService {
	if db == nil {
		db = config.DB
	}
	cfg := config.Current()
	return &ApplicationService{
		db:                  db,
		log:                 config.Logger().WithField("component", "applications"),
		requireVerification: cfg.RequireEnrollmentVerification,
		defaultCurrency:     cfg.DefaultCurrency,
	}
}

// SetRequireVerification toggles whether approval routes through enrollment verification.
func (s *ApplicationService) SetRequireVerification(required bool) {
	s.requireVerification = required
}

type ApplicationFilter struct {
	Status     string
	SchoolID   *uint
	StudentID  *uint
	CategoryID *uint
	Search     string
	Page       int
	PageSize   int
}

type CreateApplicationInput struct {
	StudentID       uint    `json:"student_id" validate:"required"`
	CategoryID      uint    `json:"category_id" validate:"required"`
	Subcategory     string  `json:"subcategory" validate:"max=120"`
	RequestedAmount float64 `json:"requested_amount" validate:"gt=0"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
}

type UpdateApplicationInput struct {
	CategoryID      *uint    `json:"category_id"`
	Subcategory     *string  `json:"subcategory" validate:"omitempty,max=120"`
	RequestedAmount *float64 `json:"requested_amount" validate:"omitempty,gt=0"`
}

type ReviewInput struct {
	DocumentsReviewed bool   `json:"documents_reviewed"`
	Notes             string `json:"notes"`
}

type ApproveInput struct {
	ApprovedAmount float64 `json:"approved_amount" validate:"gt=0"`
	Notes          string  `json:"notes"`
}

type AttachDocumentInput struct {
	DocumentType string                 `json:"document_type" validate:"required,max=60"`
	StoragePath  string                 `json:"storage_path" validate:"required,max=255"`
	ScanVerdict  models.DocumentVerdict `json:"scan_verdict" validate:"required,oneof=clean infected"`
}

// List returns applications visible to the caller, newest first.
func (s *ApplicationService) List(ctx context.Context, auth AuthContext, filter ApplicationFilter) ([]models.Application, int64, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)

	q := auth.ScopeApplications(s.db.WithContext(ctx).Model(&models.Application{}))
	if filter.Status != "" {
		status, ok := utils.NormalizeApplicationStatus(filter.Status)
		if !ok {
			return nil, 0, ValidationError("unknown status filter", map[string]string{"status": filter.Status})
		}
		q = q.Where("applications.status = ?", status)
	}
	if filter.SchoolID != nil {
		q = q.Where("applications.school_id = ?", *filter.SchoolID)
	}
	if filter.StudentID != nil {
		q = q.Where("applications.student_id = ?", *filter.StudentID)
	}
	if filter.CategoryID != nil {
		q = q.Where("applications.category_id = ?", *filter.CategoryID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Joins("JOIN students ON students.id = applications.student_id").
			Where("LOWER(applications.application_number) LIKE ? OR LOWER(students.first_name) LIKE ? OR LOWER(students.last_name) LIKE ? OR students.student_number LIKE ?",
				like, like, like, "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var apps []models.Application
	if err := preloadApplication(q).
		Order("applications.created_at DESC, applications.id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&apps).Error; err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

func (s *ApplicationService) Get(ctx context.Context, auth AuthContext, id uint) (*models.Application, error) {
	var app models.Application
	q := auth.ScopeApplications(preloadApplication(s.db.WithContext(ctx)))
	if err := q.Where("applications.id = ?", id).First(&app).Error; err != nil {
		return nil, notFoundOr(err, "application", id)
	}
	return &app, nil
}

// Create files a new draft application for a student.
func (s *ApplicationService) Create(ctx context.Context, auth AuthContext, input CreateApplicationInput) (*models.Application, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var created *models.Application
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		var student models.Student
		if err := tx.First(&student, input.StudentID).Error; err != nil {
			return notFoundOr(err, "student", input.StudentID)
		}
		if !auth.CanActFor(student) {
			return NotFoundError("student", input.StudentID)
		}

		var category models.AidCategory
		if err := tx.First(&category, input.CategoryID).Error; err != nil {
			return notFoundOr(err, "aid category", input.CategoryID)
		}
		if !category.IsActive {
			return ValidationError("aid category is not accepting applications", map[string]string{"category_id": "inactive"})
		}
		if err := checkCategoryMaximum(category, input.RequestedAmount); err != nil {
			return err
		}

		currency := strings.ToUpper(strings.TrimSpace(input.Currency))
		if currency == "" {
			currency = s.defaultCurrency
		}

		ts := now()
		app := &models.Application{
			ApplicationNumber: generateApplicationNumber(ts),
			StudentID:         student.ID,
			SchoolID:          student.SchoolID,
			CategoryID:        category.ID,
			Subcategory:       utils.SanitizeInput(input.Subcategory),
			RequestedAmount:   roundMoney(input.RequestedAmount),
			Currency:          currency,
			Status:            models.ApplicationStatusDraft,
			CreatedAt:         ts,
			UpdatedAt:         ts,
		}
		if err := tx.Omit("Student", "School", "Category").Create(app).Error; err != nil {
			return err
		}
		if err := recordCreation(tx, app, auth); err != nil {
			return err
		}

		loaded, err := reloadApplication(tx, app.ID)
		if err != nil {
			return err
		}
		created = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"application_id": created.ID, "student_id": created.StudentID}).Info("application created")
	return created, nil
}

// Update edits a draft application.
func (s *ApplicationService) Update(ctx context.Context, auth AuthContext, id uint, input UpdateApplicationInput) (*models.Application, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		if app.Status != models.ApplicationStatusDraft {
			return StateGuardError("only draft applications can be edited (status %s)", app.Status)
		}
		updates := map[string]interface{}{"updated_at": now()}
		categoryID := app.CategoryID
		if input.CategoryID != nil {
			categoryID = *input.CategoryID
		}
		amount := app.RequestedAmount
		if input.RequestedAmount != nil {
			amount = roundMoney(*input.RequestedAmount)
			updates["requested_amount"] = amount
		}
		var category models.AidCategory
		if err := tx.First(&category, categoryID).Error; err != nil {
			return notFoundOr(err, "aid category", categoryID)
		}
		if input.CategoryID != nil {
			if !category.IsActive {
				return ValidationError("aid category is not accepting applications", map[string]string{"category_id": "inactive"})
			}
			updates["category_id"] = category.ID
		}
		if err := checkCategoryMaximum(category, amount); err != nil {
			return err
		}
		if input.Subcategory != nil {
			updates["subcategory"] = utils.SanitizeInput(*input.Subcategory)
		}
		return tx.Model(&models.Application{}).Where("id = ?", app.ID).Updates(updates).Error
	})
}

// Delete removes an application; only drafts may be deleted.
func (s *ApplicationService) Delete(ctx context.Context, auth AuthContext, id uint) error {
	return transact(ctx, s.db, func(tx *gorm.DB) error {
		app, err := lockApplication(tx, auth, id)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusDraft {
			return StateGuardError("only draft applications can be deleted (status %s)", app.Status)
		}
		if err := tx.Where("application_id = ?", app.ID).Delete(&models.ApplicationDocument{}).Error; err != nil {
			return err
		}
		if err := tx.Where("application_id = ?", app.ID).Delete(&models.ApplicationStatusHistory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Application{}, app.ID).Error
	})
}

func (s *ApplicationService) Submit(ctx context.Context, auth AuthContext, id uint) (*models.Application, error) {
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		return applyTransition(tx, app, transitionRequest{
			Action:  ActionSubmit,
			To:      models.ApplicationStatusSubmitted,
			Actor:   auth,
			Updates: map[string]interface{}{"submitted_at": now()},
		})
	})
}

// Review starts the review of a submitted application. The caller must
// confirm the documents were reviewed and none may be infected.
func (s *ApplicationService) Review(ctx context.Context, auth AuthContext, id uint, input ReviewInput) (*models.Application, error) {
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		if !input.DocumentsReviewed && !app.DocumentsReviewed {
			return StateGuardError("application %d documents must be reviewed before review", app.ID)
		}
		infected, err := countInfectedDocuments(tx, app.ID)
		if err != nil {
			return err
		}
		if infected > 0 {
			return StateGuardError("application %d has %d infected document(s)", app.ID, infected)
		}
		notes := optionalText(input.Notes)
		return applyTransition(tx, app, transitionRequest{
			Action: ActionReview,
			To:     models.ApplicationStatusUnderReview,
			Actor:  auth,
			Notes:  notes,
			Updates: map[string]interface{}{
				"documents_reviewed": true,
				"review_notes":       notes,
				"reviewed_by":        auth.UserID,
				"reviewed_at":        now(),
			},
		})
	})
}

func (s *ApplicationService) FlagForCompliance(ctx context.Context, auth AuthContext, id uint, reason string) (*models.Application, error) {
	reasonText := optionalText(reason)
	if reasonText == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		return applyTransition(tx, app, transitionRequest{
			Action:  ActionFlagForCompliance,
			To:      models.ApplicationStatusFlaggedForCompliance,
			Actor:   auth,
			Notes:   reasonText,
			Updates: map[string]interface{}{"compliance_reason": reasonText},
		})
	})
}

// Approve endorses an interviewed application with an approved amount. A
// flagged application can only be approved when it was flagged after its
// interview. When enrollment verification is required the application
// waits in approved_pending_verification.
func (s *ApplicationService) Approve(ctx context.Context, auth AuthContext, id uint, input ApproveInput) (*models.Application, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	target := models.ApplicationStatusApproved
	if s.requireVerification {
		target = models.ApplicationStatusApprovedPendingVerification
	}
	amount := roundMoney(input.ApprovedAmount)
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		if app.Status == models.ApplicationStatusFlaggedForCompliance {
			if err := canApproveFlagged(tx, app); err != nil {
				return err
			}
		}
		notes := optionalText(input.Notes)
		return applyTransition(tx, app, transitionRequest{
			Action: ActionApprove,
			To:     target,
			Actor:  auth,
			Notes:  notes,
			Updates: map[string]interface{}{
				"approved_amount": amount,
				"approved_by":     auth.UserID,
				"approved_at":     now(),
				"approval_notes":  notes,
			},
			Metadata: map[string]interface{}{"approved_amount": amount},
		})
	})
}

func (s *ApplicationService) Reject(ctx context.Context, auth AuthContext, id uint, reason string) (*models.Application, error) {
	reasonText := optionalText(reason)
	if reasonText == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		return rejectApplication(tx, app, auth, *reasonText)
	})
}

func (s *ApplicationService) Process(ctx context.Context, auth AuthContext, id uint, notes string) (*models.Application, error) {
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		return processApplication(tx, app, auth, optionalText(notes))
	})
}

func (s *ApplicationService) Release(ctx context.Context, auth AuthContext, id uint, notes string) (*models.Application, error) {
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		return releaseApplication(tx, app, auth, optionalText(notes))
	})
}

func (s *ApplicationService) Cancel(ctx context.Context, auth AuthContext, id uint, reason string) (*models.Application, error) {
	reasonText := optionalText(reason)
	if reasonText == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, app *models.Application) error {
		return applyTransition(tx, app, transitionRequest{
			Action:  ActionCancel,
			To:      models.ApplicationStatusCancelled,
			Actor:   auth,
			Notes:   reasonText,
			Updates: map[string]interface{}{"cancellation_reason": reasonText},
		})
	})
}

// AttachDocument records a scanned upload against an application.
func (s *ApplicationService) AttachDocument(ctx context.Context, auth AuthContext, id uint, input AttachDocumentInput) (*models.ApplicationDocument, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	var doc *models.ApplicationDocument
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		app, err := lockApplication(tx, auth, id)
		if err != nil {
			return err
		}
		switch app.Status {
		case models.ApplicationStatusDraft, models.ApplicationStatusSubmitted, models.ApplicationStatusUnderReview:
		default:
			return StateGuardError("documents cannot be attached to an application in status %s", app.Status)
		}
		doc = &models.ApplicationDocument{
			ApplicationID: app.ID,
			DocumentType:  utils.SanitizeInput(input.DocumentType),
			StoragePath:   strings.TrimSpace(input.StoragePath),
			ScanVerdict:   input.ScanVerdict,
			UploadedBy:    auth.UserID,
			CreatedAt:     now(),
		}
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		if input.ScanVerdict == models.DocumentVerdictInfected {
			// A new infected upload invalidates any earlier document review.
			return tx.Model(&models.Application{}).Where("id = ?", app.ID).
				Update("documents_reviewed", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if doc.ScanVerdict == models.DocumentVerdictInfected {
		s.log.WithFields(logrus.Fields{"application_id": id, "document_id": doc.ID}).Warn("infected document recorded")
	}
	return doc, nil
}

func (s *ApplicationService) Documents(ctx context.Context, auth AuthContext, id uint) ([]models.ApplicationDocument, error) {
	if _, err := s.Get(ctx, auth, id); err != nil {
		return nil, err
	}
	var docs []models.ApplicationDocument
	err := s.db.WithContext(ctx).Where("application_id = ?", id).Order("id ASC").Find(&docs).Error
	return docs, err
}

// History returns the audit trail of an application, oldest first.
func (s *ApplicationService) History(ctx context.Context, auth AuthContext, id uint) ([]models.ApplicationStatusHistory, error) {
	if _, err := s.Get(ctx, auth, id); err != nil {
		return nil, err
	}
	var rows []models.ApplicationStatusHistory
	err := s.db.WithContext(ctx).Where("application_id = ?", id).Order("id ASC").Find(&rows).Error
	return rows, err
}

// mutate runs fn against a locked application and returns the reloaded row.
func (s *ApplicationService) mutate(ctx context.Context, auth AuthContext, id uint, fn func(tx *gorm.DB, app *models.Application) error) (*models.Application, error) {
	var result *models.Application
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		app, err := lockApplication(tx, auth, id)
		if err != nil {
			return err
		}
		if err := fn(tx, app); err != nil {
			return err
		}
		result, err = reloadApplication(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func rejectApplication(tx *gorm.DB, app *models.Application, actor AuthContext, reason string) error {
	return applyTransition(tx, app, transitionRequest{
		Action:  ActionReject,
		To:      models.ApplicationStatusRejected,
		Actor:   actor,
		Notes:   &reason,
		Updates: map[string]interface{}{"rejection_reason": reason},
	})
}

func processApplication(tx *gorm.DB, app *models.Application, actor AuthContext, notes *string) error {
	if err := canBeProcessed(app); err != nil {
		return err
	}
	return applyTransition(tx, app, transitionRequest{
		Action:  ActionProcess,
		To:      models.ApplicationStatusGrantsProcessing,
		Actor:   actor,
		Notes:   notes,
		Updates: map[string]interface{}{"processed_at": now()},
	})
}

func releaseApplication(tx *gorm.DB, app *models.Application, actor AuthContext, notes *string) error {
	if err := canBeReleased(app); err != nil {
		return err
	}
	return applyTransition(tx, app, transitionRequest{
		Action:  ActionRelease,
		To:      models.ApplicationStatusGrantsDisbursed,
		Actor:   actor,
		Notes:   notes,
		Updates: map[string]interface{}{"disbursed_at": now()},
	})
}

func checkCategoryMaximum(category models.AidCategory, amount float64) error {
	if category.MaxAmount != nil && amount > *category.MaxAmount+MoneyEpsilon {
		return ValidationError("requested amount exceeds category maximum", map[string]string{
			"requested_amount": fmt.Sprintf("must be at most %.2f", *category.MaxAmount),
		})
	}
	return nil
}

func countInfectedDocuments(tx *gorm.DB, applicationID uint) (int64, error) {
	var infected int64
	err := tx.Model(&models.ApplicationDocument{}).
		Where("application_id = ? AND scan_verdict = ?", applicationID, string(models.DocumentVerdictInfected)).
		Count(&infected).Error
	return infected, err
}

// generateApplicationNumber formats APP-YYYYMMDD-XXXXXXXX.
func generateApplicationNumber(ts time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("APP-%s-%s", ts.Format("20060102"), suffix)
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return page, size
}
