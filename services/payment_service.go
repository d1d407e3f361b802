package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scholarship-aid-api/config"
	"scholarship-aid-api/metrics"
	"scholarship-aid-api/models"
	"scholarship-aid-api/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var livePaymentStatuses = []string{
	string(models.PaymentStatusPending),
	string(models.PaymentStatusScheduled),
	string(models.PaymentStatusProcessing),
	string(models.PaymentStatusCompleted),
}

var processablePaymentStatuses = []string{
	string(models.PaymentStatusPending),
	string(models.PaymentStatusScheduled),
	string(models.PaymentStatusProcessing),
}

type PaymentService struct {
	db            *gorm.DB
	log           *logrus.Entry
	locks         *LockManager
	distributions *DistributionService
	defaultMethod models.PaymentMethod
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	if db == nil {
		db = config.DB
	}
	return &PaymentService{
		db:            db,
		log:           config.Logger().WithField("component", "payments"),
		locks:         NewLockManager(db, config.Current().ProcessingLockTTL),
		distributions: NewDistributionService(db),
		defaultMethod: models.PaymentMethodBankTransfer,
	}
}

type QueueFilter struct {
	Status   string
	Kind     string
	Search   string
	Page     int
	PageSize int
}

type CreatePaymentsInput struct {
	ApplicationIDs []uint               `json:"application_ids" validate:"required,min=1,dive,gt=0"`
	Method         models.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=bank_transfer check cash e_wallet"`
	ScheduledDate  string               `json:"scheduled_date"`
	Notes          string               `json:"notes"`
}

// CreateOutcome is the per-application result of CreateFromApplications.
type CreateOutcome struct {
	ApplicationID uint      `json:"application_id"`
	Success       bool      `json:"success"`
	PaymentID     *uint     `json:"payment_id,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	Code          ErrorKind `json:"code,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// ProcessResult is returned by ProcessPayment. Warnings carry best-effort
// follow-up failures that did not undo the payment.
type ProcessResult struct {
	Payment         *models.Payment         `json:"payment"`
	DistributionLog *models.DistributionLog `json:"distribution_log,omitempty"`
	Warnings        []string                `json:"warnings,omitempty"`
}

// ItemOutcome is the per-payment result of BulkProcess.
type ItemOutcome struct {
	Ref      PayableRef `json:"ref"`
	Success  bool       `json:"success"`
	Code     ErrorKind  `json:"code,omitempty"`
	Error    string     `json:"error,omitempty"`
	Warnings []string   `json:"warnings,omitempty"`
}

type BulkProcessResult struct {
	Processed         int           `json:"processed"`
	Failed            int           `json:"failed"`
	RejectedSynthetic []PayableRef  `json:"rejected_synthetic"`
	RejectedCompleted []PayableRef  `json:"rejected_completed"`
	Items             []ItemOutcome `json:"items"`
}

type ApprovedRunResult struct {
	Created []CreateOutcome    `json:"created"`
	Bulk    *BulkProcessResult `json:"bulk"`
}

// Queue returns the unified payable queue: stored payments followed by
// synthetic entries for approved applications that have no payment.
func (s *PaymentService) Queue(ctx context.Context, auth AuthContext, filter QueueFilter) ([]PayableItem, int64, error) {
	items, err := s.snapshot(ctx, auth)
	if err != nil {
		return nil, 0, err
	}

	var status models.PaymentStatus
	if filter.Status != "" {
		normalized, ok := utils.NormalizePaymentStatus(filter.Status)
		if !ok {
			return nil, 0, ValidationError("unknown status filter", map[string]string{"status": filter.Status})
		}
		status = normalized
	}
	kind := PayableKind(strings.ToLower(strings.TrimSpace(filter.Kind)))
	search := normalizeName(filter.Search)

	filtered := make([]PayableItem, 0, len(items))
	for _, item := range items {
		if status != "" && item.Status != status {
			continue
		}
		if kind != "" && item.Ref.Kind != kind {
			continue
		}
		if search != "" && !strings.Contains(normalizeName(item.StudentName), search) &&
			!strings.Contains(strings.ToLower(item.StudentNumber), search) {
			continue
		}
		filtered = append(filtered, item)
	}

	total := int64(len(filtered))
	page, size := normalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start >= len(filtered) {
		return []PayableItem{}, total, nil
	}
	end := start + size
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], total, nil
}

// PendingRefs lists the synthetic refs of every approved application that
// still has no payment.
func (s *PaymentService) PendingRefs(ctx context.Context, auth AuthContext) ([]PayableRef, error) {
	items, err := s.snapshot(ctx, auth)
	if err != nil {
		return nil, err
	}
	refs := make([]PayableRef, 0)
	for _, item := range items {
		if item.Synthetic {
			refs = append(refs, item.Ref)
		}
	}
	return refs, nil
}

// snapshot merges unscoped so a payment outside the caller's school still
// suppresses its matching application; the caller's scope is applied after.
func (s *PaymentService) snapshot(ctx context.Context, auth AuthContext) ([]PayableItem, error) {
	db := s.db.WithContext(ctx)

	var existing []models.Payment
	if err := db.Order("created_at DESC, id DESC").Find(&existing).Error; err != nil {
		return nil, err
	}

	var approved []models.Application
	if err := preloadApplication(db).
		Where("applications.status = ?", string(models.ApplicationStatusApproved)).
		Order("applications.approved_at ASC, applications.id ASC").
		Find(&approved).Error; err != nil {
		return nil, err
	}
	candidates := make([]PendingApplication, 0, len(approved))
	for _, app := range approved {
		candidates = append(candidates, pendingFromApplication(app))
	}

	merged := MergePayables(existing, candidates)
	if !auth.IsSchoolRep() {
		return merged, nil
	}
	visible := make([]PayableItem, 0, len(merged))
	for _, item := range merged {
		switch {
		case item.Payment != nil:
			if item.Payment.SchoolID != nil && auth.CanSeeSchool(*item.Payment.SchoolID) {
				visible = append(visible, item)
			}
		case item.Application != nil:
			if auth.CanSeeSchool(item.Application.SchoolID) {
				visible = append(visible, item)
			}
		}
	}
	return visible, nil
}

// Get returns one queue entry. A synthetic ref resolves only while the
// application is still waiting for a payment.
func (s *PaymentService) Get(ctx context.Context, auth AuthContext, ref PayableRef) (*PayableItem, error) {
	if !ref.IsSynthetic() {
		var payment models.Payment
		if err := auth.Scope(s.db.WithContext(ctx), "payments.school_id").
			Where("payments.id = ?", ref.ID).First(&payment).Error; err != nil {
			return nil, notFoundOr(err, "payment", ref.ID)
		}
		item := paymentItem(payment)
		return &item, nil
	}

	items, err := s.snapshot(ctx, auth)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Ref == ref {
			return &items[i], nil
		}
	}
	return nil, NotFoundError("pending payable for application", ref.ID)
}

// ProcessPayment completes a stored payment and releases its application in
// one transaction, then writes its distribution log on a best-effort basis.
func (s *PaymentService) ProcessPayment(ctx context.Context, auth AuthContext, ref PayableRef, notes string) (*ProcessResult, error) {
	if ref.IsSynthetic() {
		metrics.RecordPaymentProcessed("rejected_synthetic")
		return nil, StateGuardError("application %d has no payment yet; create it from the application first", ref.ID)
	}

	notesText := optionalText(notes)
	processor := auth.UserID
	var payment models.Payment
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("payments.id = ?", ref.ID)
		if err := auth.Scope(q, "payments.school_id").First(&payment).Error; err != nil {
			return notFoundOr(err, "payment", ref.ID)
		}
		switch payment.Status {
		case models.PaymentStatusCompleted:
			return ConflictError("payment %d is already completed", payment.ID)
		case models.PaymentStatusCancelled, models.PaymentStatusFailed:
			return StateGuardError("payment %d is %s and cannot be processed", payment.ID, payment.Status)
		}

		ts := now()
		updates := map[string]interface{}{
			"payment_status": string(models.PaymentStatusCompleted),
			"processed_date": ts,
			"processed_by":   processor,
			"updated_at":     ts,
		}
		if notesText != nil {
			updates["notes"] = notesText
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND payment_status IN ?", payment.ID, processablePaymentStatuses).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ConflictError("payment %d was processed concurrently", payment.ID)
		}

		if payment.ApplicationID != nil {
			if err := s.settleApplication(tx, auth, *payment.ApplicationID, payment.ID, notesText); err != nil {
				return err
			}
		}
		return tx.First(&payment, payment.ID).Error
	})
	if err != nil {
		metrics.RecordPaymentProcessed(processOutcome(err))
		return nil, err
	}
	metrics.RecordPaymentProcessed("completed")

	result := &ProcessResult{Payment: &payment}
	entry, logErr := s.distributions.logPayment(persistentContext(ctx), payment.ID, auth.DisplayName())
	if logErr != nil {
		depErr := DependencyError("payment completed but the distribution log was not written", logErr)
		s.log.WithError(logErr).WithField("payment_id", payment.ID).Warn("automatic distribution log failed")
		result.Warnings = append(result.Warnings, depErr.Error())
	} else {
		result.DistributionLog = entry
	}

	s.log.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"application_id": payment.ApplicationID,
		"amount":         payment.Amount,
	}).Info("payment completed")
	return result, nil
}

// settleApplication moves the linked application to grants_disbursed. A
// legacy payment whose application never entered processing is processed
// first; other states are left untouched.
func (s *PaymentService) settleApplication(tx *gorm.DB, actor AuthContext, applicationID, paymentID uint, notes *string) error {
	app, err := lockApplication(tx, SystemActor, applicationID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			s.log.WithFields(logrus.Fields{"payment_id": paymentID, "application_id": applicationID}).
				Warn("payment references a missing application")
			return nil
		}
		return err
	}
	if canBeProcessed(app) == nil {
		if err := processApplication(tx, app, actor, notes); err != nil {
			return err
		}
	}
	if canBeReleased(app) != nil {
		s.log.WithFields(logrus.Fields{
			"payment_id":     paymentID,
			"application_id": app.ID,
			"status":         app.Status,
		}).Warn("payment completed for an application that is not being processed")
		return nil
	}
	return releaseApplication(tx, app, actor, notes)
}

func processOutcome(err error) string {
	switch KindOf(err) {
	case KindConflict:
		return "rejected_completed"
	case KindNotFound, KindStateGuard, KindValidation:
		return "rejected"
	}
	return "error"
}

// CreateFromApplications materializes one payment per application. Each
// application is handled in its own transaction and reported separately.
func (s *PaymentService) CreateFromApplications(ctx context.Context, auth AuthContext, input CreatePaymentsInput) ([]CreateOutcome, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	method := input.Method
	if method == "" {
		method = s.defaultMethod
	}
	var scheduled *time.Time
	if strings.TrimSpace(input.ScheduledDate) != "" {
		date, err := time.ParseInLocation(utils.DateLayout, strings.TrimSpace(input.ScheduledDate), time.Local)
		if err != nil {
			return nil, ValidationError("invalid scheduled date", map[string]string{"scheduled_date": "must be YYYY-MM-DD"})
		}
		scheduled = &date
	}

	ids := uniqueUints(input.ApplicationIDs)
	outcomes := make([]CreateOutcome, 0, len(ids))
	for _, id := range ids {
		payment, err := s.createPayment(ctx, auth, id, method, scheduled, optionalText(input.Notes))
		if err != nil {
			outcome := CreateOutcome{ApplicationID: id, Code: KindOf(err), Error: err.Error()}
			if outcome.Code == "" {
				s.log.WithError(err).WithField("application_id", id).Error("failed to create payment")
				outcome.Error = "internal error"
			}
			outcomes = append(outcomes, outcome)
			metrics.RecordPaymentCreated("failed")
			continue
		}
		paymentID := payment.ID
		outcomes = append(outcomes, CreateOutcome{
			ApplicationID: id,
			Success:       true,
			PaymentID:     &paymentID,
			Reference:     payment.Reference,
		})
		metrics.RecordPaymentCreated("created")
	}
	return outcomes, nil
}

func (s *PaymentService) createPayment(ctx context.Context, auth AuthContext, applicationID uint, method models.PaymentMethod, scheduled *time.Time, notes *string) (*models.Payment, error) {
	var payment models.Payment
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		app, err := lockApplication(tx, auth, applicationID)
		if err != nil {
			return err
		}
		if err := canBeProcessed(app); err != nil {
			return err
		}
		if err := tx.Preload("Student").Preload("School").Preload("Category").First(app, app.ID).Error; err != nil {
			return err
		}

		var linked models.Payment
		if err := tx.Where("application_id = ? AND payment_status IN ?", app.ID, livePaymentStatuses).
			Limit(1).Find(&linked).Error; err != nil {
			return err
		}
		if linked.ID != 0 {
			return ConflictError("application %d already has payment %d (%s)", app.ID, linked.ID, linked.Status)
		}

		amount := roundMoney(app.PayableAmount())
		studentName := app.Student.FullName()
		var legacy []models.Payment
		if err := tx.Where("application_id IS NULL AND payment_status IN ?", livePaymentStatuses).
			Where("student_number = ?", app.Student.StudentNumber).
			Find(&legacy).Error; err != nil {
			return err
		}
		for _, p := range legacy {
			if sameIdentity(studentName, app.Student.StudentNumber, amount, p) {
				return ConflictError("application %d matches unlinked payment %d", app.ID, p.ID)
			}
		}

		ts := now()
		status := models.PaymentStatusPending
		if scheduled != nil && scheduled.After(ts) {
			status = models.PaymentStatusScheduled
		}
		key := applicationLockKey(app.ID)
		studentID := app.StudentID
		schoolID := app.SchoolID
		appID := app.ID
		payment = models.Payment{
			ApplicationID: &appID,
			StudentID:     &studentID,
			SchoolID:      &schoolID,
			StudentName:   studentName,
			StudentNumber: app.Student.StudentNumber,
			Amount:        amount,
			Currency:      app.Currency,
			Method:        method,
			Status:        status,
			Reference:     generatePaymentReference(ts),
			ActiveKey:     &key,
			ScheduledDate: scheduled,
			Notes:         notes,
			CreatedBy:     auth.UserID,
			CreatedAt:     ts,
			UpdatedAt:     ts,
		}
		if err := tx.Create(&payment).Error; err != nil {
			if isDuplicateKey(err) {
				return ConflictError("application %d already has a live payment", app.ID)
			}
			return err
		}
		return processApplication(tx, app, auth, notes)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"application_id": applicationID,
		"reference":      payment.Reference,
		"amount":         payment.Amount,
	}).Info("payment created")
	return &payment, nil
}

// ProcessApprovedApplications materializes and then processes the selected
// synthetic entries. Every selected application is locked in processing_locks
// for the whole run so a concurrent submission of the same item is refused.
func (s *PaymentService) ProcessApprovedApplications(ctx context.Context, auth AuthContext, refs []PayableRef, method models.PaymentMethod, scheduledDate string) (*ApprovedRunResult, error) {
	if len(refs) == 0 {
		return nil, ValidationError("no items selected", map[string]string{"refs": "is required"})
	}
	ids := make([]uint, 0, len(refs))
	var invalid []string
	for _, ref := range refs {
		if !ref.IsSynthetic() {
			invalid = append(invalid, ref.String())
			continue
		}
		ids = append(ids, ref.ID)
	}
	if len(invalid) > 0 {
		return nil, ValidationError("only pending applications can be processed here", map[string]string{
			"refs": "not pending applications: " + strings.Join(invalid, ", "),
		})
	}
	ids = uniqueUints(ids)

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, applicationLockKey(id))
	}
	handle, err := s.locks.AcquireAll(ctx, keys, "process_approved_applications")
	if err != nil {
		return nil, err
	}
	defer handle.Release(ctx)

	created, err := s.CreateFromApplications(ctx, auth, CreatePaymentsInput{
		ApplicationIDs: ids,
		Method:         method,
		ScheduledDate:  scheduledDate,
	})
	if err != nil {
		return nil, err
	}

	paymentRefs := make([]PayableRef, 0, len(created))
	for _, outcome := range created {
		if outcome.Success && outcome.PaymentID != nil {
			paymentRefs = append(paymentRefs, PaymentRef(*outcome.PaymentID))
		}
	}
	result := &ApprovedRunResult{Created: created, Bulk: &BulkProcessResult{
		RejectedSynthetic: []PayableRef{},
		RejectedCompleted: []PayableRef{},
		Items:             []ItemOutcome{},
	}}
	if len(paymentRefs) == 0 {
		return result, nil
	}
	bulk, err := s.BulkProcess(ctx, auth, paymentRefs, "")
	if err != nil {
		return nil, err
	}
	result.Bulk = bulk
	return result, nil
}

// BulkProcess sorts refs into synthetic, already completed and eligible, then
// processes each eligible payment independently.
func (s *PaymentService) BulkProcess(ctx context.Context, auth AuthContext, refs []PayableRef, notes string) (*BulkProcessResult, error) {
	if len(refs) == 0 {
		return nil, ValidationError("no items selected", map[string]string{"refs": "is required"})
	}
	result := &BulkProcessResult{
		RejectedSynthetic: []PayableRef{},
		RejectedCompleted: []PayableRef{},
		Items:             make([]ItemOutcome, 0, len(refs)),
	}

	var paymentIDs []uint
	seen := make(map[PayableRef]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		if ref.IsSynthetic() {
			result.RejectedSynthetic = append(result.RejectedSynthetic, ref)
			continue
		}
		paymentIDs = append(paymentIDs, ref.ID)
	}

	statuses := make(map[uint]models.PaymentStatus, len(paymentIDs))
	if len(paymentIDs) > 0 {
		var payments []models.Payment
		if err := auth.Scope(s.db.WithContext(ctx).Where("payments.id IN ?", paymentIDs), "payments.school_id").
			Find(&payments).Error; err != nil {
			return nil, err
		}
		for _, p := range payments {
			statuses[p.ID] = p.Status
		}
	}

	for _, id := range paymentIDs {
		ref := PaymentRef(id)
		status, found := statuses[id]
		if found && status == models.PaymentStatusCompleted {
			result.RejectedCompleted = append(result.RejectedCompleted, ref)
			continue
		}
		if !found {
			result.Items = append(result.Items, ItemOutcome{Ref: ref, Code: KindNotFound, Error: NotFoundError("payment", id).Error()})
			result.Failed++
			continue
		}

		processed, err := s.ProcessPayment(ctx, auth, ref, notes)
		if err != nil {
			outcome := ItemOutcome{Ref: ref, Code: KindOf(err), Error: err.Error()}
			if outcome.Code == "" {
				s.log.WithError(err).WithField("payment_id", id).Error("bulk payment processing failed")
				outcome.Error = "internal error"
			}
			result.Items = append(result.Items, outcome)
			result.Failed++
			continue
		}
		result.Items = append(result.Items, ItemOutcome{Ref: ref, Success: true, Warnings: processed.Warnings})
		result.Processed++
	}

	s.log.WithFields(logrus.Fields{
		"processed":          result.Processed,
		"failed":             result.Failed,
		"rejected_synthetic": len(result.RejectedSynthetic),
		"rejected_completed": len(result.RejectedCompleted),
	}).Info("bulk payment processing finished")
	return result, nil
}

// CancelPayment cancels a payment that has not started and frees its
// application for a retry.
func (s *PaymentService) CancelPayment(ctx context.Context, auth AuthContext, id uint, reason string) (*models.Payment, error) {
	reasonText := optionalText(reason)
	if reasonText == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}
	return s.closePayment(ctx, auth, id, models.PaymentStatusCancelled, []models.PaymentStatus{
		models.PaymentStatusPending,
		models.PaymentStatusScheduled,
	}, map[string]interface{}{"cancel_reason": reasonText}, reasonText)
}

// MarkPaymentFailed records a failed disbursement and frees its application
// for a retry.
func (s *PaymentService) MarkPaymentFailed(ctx context.Context, auth AuthContext, id uint, reason string) (*models.Payment, error) {
	reasonText := optionalText(reason)
	if reasonText == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}
	return s.closePayment(ctx, auth, id, models.PaymentStatusFailed, []models.PaymentStatus{
		models.PaymentStatusPending,
		models.PaymentStatusScheduled,
		models.PaymentStatusProcessing,
	}, map[string]interface{}{"failure_reason": reasonText}, reasonText)
}

func (s *PaymentService) closePayment(ctx context.Context, auth AuthContext, id uint, to models.PaymentStatus, from []models.PaymentStatus, extra map[string]interface{}, reason *string) (*models.Payment, error) {
	var payment models.Payment
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("payments.id = ?", id)
		if err := auth.Scope(q, "payments.school_id").First(&payment).Error; err != nil {
			return notFoundOr(err, "payment", id)
		}
		allowed := false
		for _, status := range from {
			if payment.Status == status {
				allowed = true
			}
		}
		if !allowed {
			return StateGuardError("cannot mark payment %d %s while it is %s", payment.ID, to, payment.Status)
		}

		updates := map[string]interface{}{
			"payment_status": string(to),
			"active_key":     nil,
			"updated_at":     now(),
		}
		for k, v := range extra {
			updates[k] = v
		}
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(updates).Error; err != nil {
			return err
		}

		if payment.ApplicationID != nil {
			app, err := lockApplication(tx, SystemActor, *payment.ApplicationID)
			if err != nil && KindOf(err) != KindNotFound {
				return err
			}
			if app != nil && app.Status == models.ApplicationStatusGrantsProcessing {
				if err := applyTransition(tx, app, transitionRequest{
					Action:   ActionFailPayment,
					To:       models.ApplicationStatusPaymentFailed,
					Actor:    auth,
					Notes:    reason,
					Metadata: map[string]interface{}{"payment_id": payment.ID, "payment_status": string(to)},
				}); err != nil {
					return err
				}
			}
		}
		return tx.First(&payment, payment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"payment_id": payment.ID, "status": to}).Info("payment closed")
	return &payment, nil
}

// CancelApplication withdraws an application that is waiting for payment and
// has no live payment.
func (s *PaymentService) CancelApplication(ctx context.Context, auth AuthContext, applicationID uint, reason string) (*models.Application, error) {
	reasonText := optionalText(reason)
	if reasonText == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}
	var result *models.Application
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		app, err := lockApplication(tx, auth, applicationID)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusApproved && app.Status != models.ApplicationStatusPaymentFailed {
			return StateGuardError("application %d is not waiting for payment (status %s)", app.ID, app.Status)
		}
		var live int64
		if err := tx.Model(&models.Payment{}).
			Where("application_id = ? AND payment_status IN ?", app.ID, livePaymentStatuses).
			Count(&live).Error; err != nil {
			return err
		}
		if live > 0 {
			return StateGuardError("application %d has a live payment; cancel the payment first", app.ID)
		}
		if err := applyTransition(tx, app, transitionRequest{
			Action:  ActionCancel,
			To:      models.ApplicationStatusCancelled,
			Actor:   auth,
			Notes:   reasonText,
			Updates: map[string]interface{}{"cancellation_reason": reasonText},
		}); err != nil {
			return err
		}
		result, err = reloadApplication(tx, app.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// generatePaymentReference formats PAY-YYYYMMDD-XXXXXXXXXX.
func generatePaymentReference(ts time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("PAY-%s-%s", ts.Format("20060102"), suffix)
}
