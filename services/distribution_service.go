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
)

const unspecifiedAidType = "unspecified"

type DistributionService struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewDistributionService(db *gorm.DB) *DistributionService {
	if db == nil {
		db = config.DB
	}
	return &DistributionService{db: db, log: config.Logger().WithField("component", "distribution")}
}

type CreateLogsInput struct {
	PaymentIDs  []uint `json:"payment_ids" validate:"required,min=1,dive,gt=0"`
	BatchNumber string `json:"batch_number" validate:"max=40"`
	ProcessedBy string `json:"processed_by" validate:"max=150"`
}

type DistributionFilter struct {
	BatchNumber   string
	SchoolID      *uint
	StudentNumber string
	Status        string
	From          string
	To            string
	Page          int
	PageSize      int
}

// LogOutcome is the per-payment result of a batch.
type LogOutcome struct {
	PaymentID uint      `json:"payment_id"`
	Success   bool      `json:"success"`
	LogID     *uint     `json:"log_id,omitempty"`
	Code      ErrorKind `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type BatchResult struct {
	BatchNumber string                   `json:"batch_number"`
	Created     int                      `json:"created"`
	Failed      int                      `json:"failed"`
	TotalAmount float64                  `json:"total_amount"`
	Items       []LogOutcome             `json:"items"`
	Logs        []models.DistributionLog `json:"logs"`
	Statistics  *DistributionStats       `json:"statistics,omitempty"`
}

type DistributionStats struct {
	TotalRecords     int64              `json:"total_records"`
	TotalAmount      float64            `json:"total_amount"`
	DistinctStudents int64              `json:"distinct_students"`
	DistinctSchools  int64              `json:"distinct_schools"`
	TotalBatches     int64              `json:"total_batches"`
	ByStatus         map[string]int64   `json:"by_status"`
	AmountByBatch    map[string]float64 `json:"amount_by_batch"`
}

// BatchIntegrity compares the logged total of a batch with the total of the
// payments it references.
type BatchIntegrity struct {
	BatchNumber   string  `json:"batch_number"`
	LogTotal      float64 `json:"log_total"`
	PaymentTotal  float64 `json:"payment_total"`
	Balanced      bool    `json:"balanced"`
	LogCount      int64   `json:"log_count"`
	PaymentsFound int64   `json:"payments_found"`
}

// GenerateBatchNumber formats BATCH-YYYYMMDD-HHMMSS-xxxx.
func GenerateBatchNumber(ts time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("BATCH-%s-%s", ts.Format("20060102-150405"), suffix)
}

// CreateLogsFromPayments writes one distribution log per completed payment.
// Payments that are missing, not completed or already logged are reported as
// failed items; the rest are written together.
func (s *DistributionService) CreateLogsFromPayments(ctx context.Context, auth AuthContext, input CreateLogsInput) (*BatchResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	processedBy := utils.SanitizeInput(input.ProcessedBy)
	if processedBy == "" {
		processedBy = auth.DisplayName()
	}
	result, err := s.writeBatch(ctx, auth, uniqueUints(input.PaymentIDs), utils.SanitizeInput(input.BatchNumber), processedBy, "manual")
	if err != nil {
		return nil, err
	}
	stats, err := s.Statistics(ctx, auth)
	if err != nil {
		s.log.WithError(err).Warn("failed to recompute distribution statistics")
	} else {
		result.Statistics = stats
	}
	return result, nil
}

// logPayment writes the automatic log of a payment that was just completed.
func (s *DistributionService) logPayment(ctx context.Context, paymentID uint, processedBy string) (*models.DistributionLog, error) {
	result, err := s.writeBatch(ctx, SystemActor, []uint{paymentID}, "", processedBy, "auto")
	if err != nil {
		return nil, err
	}
	if len(result.Logs) == 0 {
		item := result.Items[0]
		return nil, &Error{Kind: item.Code, Message: item.Error}
	}
	return &result.Logs[0], nil
}

func (s *DistributionService) writeBatch(ctx context.Context, auth AuthContext, paymentIDs []uint, batchNumber, processedBy, trigger string) (*BatchResult, error) {
	ts := now()
	if batchNumber == "" {
		batchNumber = GenerateBatchNumber(ts)
	}
	result := &BatchResult{BatchNumber: batchNumber, Items: make([]LogOutcome, 0, len(paymentIDs))}

	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		var payments []models.Payment
		if err := auth.Scope(tx.Where("id IN ?", paymentIDs), "payments.school_id").Find(&payments).Error; err != nil {
			return err
		}
		byID := make(map[uint]models.Payment, len(payments))
		for _, p := range payments {
			byID[p.ID] = p
		}

		var logged []uint
		if err := tx.Model(&models.DistributionLog{}).Where("payment_id IN ?", paymentIDs).
			Pluck("payment_id", &logged).Error; err != nil {
			return err
		}
		alreadyLogged := make(map[uint]struct{}, len(logged))
		for _, id := range logged {
			alreadyLogged[id] = struct{}{}
		}

		var logs []models.DistributionLog
		var outcomes []LogOutcome
		var paymentTotal float64
		for _, id := range paymentIDs {
			p, ok := byID[id]
			switch {
			case !ok:
				outcomes = append(outcomes, failedLog(id, NotFoundError("payment", id)))
				continue
			case p.Status != models.PaymentStatusCompleted:
				outcomes = append(outcomes, failedLog(id, StateGuardError("payment %d is %s, not completed", id, p.Status)))
				continue
			}
			if _, dup := alreadyLogged[id]; dup {
				outcomes = append(outcomes, failedLog(id, ConflictError("payment %d is already logged", id)))
				continue
			}
			entry, err := snapshotPayment(tx, p)
			if err != nil {
				return err
			}
			entry.BatchNumber = batchNumber
			entry.ProcessedBy = processedBy
			entry.ProcessedDate = ts
			entry.CreatedAt = ts
			logs = append(logs, entry)
			paymentTotal += p.Amount
			outcomes = append(outcomes, LogOutcome{PaymentID: id, Success: true})
		}

		if len(logs) > 0 {
			inserted, raced, err := insertLogs(tx, logs)
			if err != nil {
				return err
			}
			for i := range outcomes {
				if _, lost := raced[outcomes[i].PaymentID]; lost {
					id := outcomes[i].PaymentID
					outcomes[i] = failedLog(id, ConflictError("payment %d was logged concurrently", id))
					paymentTotal -= byID[id].Amount
				}
			}
			logs = inserted
			var logTotal float64
			for _, entry := range logs {
				logTotal += entry.Amount
			}
			if !amountsMatch(roundMoney(logTotal), roundMoney(paymentTotal)) {
				return fmt.Errorf("batch %s is unbalanced: logs %.2f, payments %.2f", batchNumber, logTotal, paymentTotal)
			}
			result.TotalAmount = roundMoney(logTotal)
		}

		logIDs := make(map[uint]uint, len(logs))
		for _, entry := range logs {
			logIDs[entry.PaymentID] = entry.ID
		}
		for i := range outcomes {
			if id, ok := logIDs[outcomes[i].PaymentID]; ok {
				logID := id
				outcomes[i].LogID = &logID
			}
		}
		result.Items = outcomes
		result.Logs = logs
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, item := range result.Items {
		if item.Success {
			result.Created++
		} else {
			result.Failed++
		}
	}
	metrics.RecordDistributionLogs(trigger, result.Created)
	if result.Created > 0 {
		s.log.WithFields(logrus.Fields{
			"batch_number": batchNumber,
			"created":      result.Created,
			"failed":       result.Failed,
			"total_amount": result.TotalAmount,
			"trigger":      trigger,
		}).Info("distribution logs written")
	}
	return result, nil
}

// insertLogs writes logs in one statement. When another writer logged one of
// the payments first, it falls back to one insert per row so only the
// conflicting payments are lost; their ids come back in raced.
func insertLogs(tx *gorm.DB, logs []models.DistributionLog) ([]models.DistributionLog, map[uint]struct{}, error) {
	const bulk = "distribution_logs_bulk"
	if err := tx.SavePoint(bulk).Error; err != nil {
		return nil, nil, err
	}
	err := tx.Create(&logs).Error
	if err == nil {
		return logs, nil, nil
	}
	if !isDuplicateKey(err) {
		return nil, nil, err
	}
	if err := tx.RollbackTo(bulk).Error; err != nil {
		return nil, nil, err
	}

	const row = "distribution_logs_row"
	inserted := make([]models.DistributionLog, 0, len(logs))
	raced := make(map[uint]struct{})
	for _, entry := range logs {
		entry.ID = 0
		if err := tx.SavePoint(row).Error; err != nil {
			return nil, nil, err
		}
		err := tx.Create(&entry).Error
		switch {
		case err == nil:
			inserted = append(inserted, entry)
		case isDuplicateKey(err):
			if err := tx.RollbackTo(row).Error; err != nil {
				return nil, nil, err
			}
			raced[entry.PaymentID] = struct{}{}
		default:
			return nil, nil, err
		}
	}
	return inserted, raced, nil
}

func failedLog(paymentID uint, err *Error) LogOutcome {
	return LogOutcome{PaymentID: paymentID, Code: err.Kind, Error: err.Message}
}

// snapshotPayment copies the student, school and aid type of a payment into a
// log row so later edits to reference data do not rewrite history.
func snapshotPayment(tx *gorm.DB, p models.Payment) (models.DistributionLog, error) {
	entry := models.DistributionLog{
		PaymentID:          p.ID,
		ApplicationID:      p.ApplicationID,
		StudentName:        p.StudentName,
		StudentNumber:      p.StudentNumber,
		SchoolID:           p.SchoolID,
		AidType:            unspecifiedAidType,
		Amount:             roundMoney(p.Amount),
		Currency:           p.Currency,
		DistributionStatus: models.DistributionStatusDistributed,
	}

	if p.ApplicationID != nil {
		var app models.Application
		err := tx.Preload("School").Preload("Category").Where("id = ?", *p.ApplicationID).Limit(1).Find(&app).Error
		if err != nil {
			return entry, err
		}
		if app.ID != 0 {
			if app.Category.Name != "" {
				entry.AidType = app.Category.Name
			}
			entry.SchoolName = app.School.Name
			if entry.SchoolID == nil {
				schoolID := app.SchoolID
				entry.SchoolID = &schoolID
			}
			return entry, nil
		}
	}

	if p.SchoolID != nil {
		var school models.School
		if err := tx.Where("id = ?", *p.SchoolID).Limit(1).Find(&school).Error; err != nil {
			return entry, err
		}
		entry.SchoolName = school.Name
	}
	return entry, nil
}

func (s *DistributionService) List(ctx context.Context, auth AuthContext, filter DistributionFilter) ([]models.DistributionLog, int64, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)
	q := auth.Scope(s.db.WithContext(ctx).Model(&models.DistributionLog{}), "distribution_logs.school_id")
	if filter.BatchNumber != "" {
		q = q.Where("batch_number = ?", strings.TrimSpace(filter.BatchNumber))
	}
	if filter.SchoolID != nil {
		q = q.Where("school_id = ?", *filter.SchoolID)
	}
	if filter.StudentNumber != "" {
		q = q.Where("student_number = ?", strings.TrimSpace(filter.StudentNumber))
	}
	if filter.Status != "" {
		q = q.Where("distribution_status = ?", strings.ToLower(strings.TrimSpace(filter.Status)))
	}
	if filter.From != "" {
		from, err := time.Parse(utils.DateLayout, filter.From)
		if err != nil {
			return nil, 0, ValidationError("invalid date", map[string]string{"from": "must be YYYY-MM-DD"})
		}
		q = q.Where("processed_date >= ?", from)
	}
	if filter.To != "" {
		to, err := time.Parse(utils.DateLayout, filter.To)
		if err != nil {
			return nil, 0, ValidationError("invalid date", map[string]string{"to": "must be YYYY-MM-DD"})
		}
		q = q.Where("processed_date < ?", to.AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.DistributionLog
	if err := q.Order("processed_date DESC, id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// Statistics recomputes the aggregates from every log row the caller can see.
func (s *DistributionService) Statistics(ctx context.Context, auth AuthContext) (*DistributionStats, error) {
	var logs []models.DistributionLog
	if err := auth.Scope(s.db.WithContext(ctx), "distribution_logs.school_id").Find(&logs).Error; err != nil {
		return nil, err
	}

	stats := &DistributionStats{
		ByStatus:      make(map[string]int64),
		AmountByBatch: make(map[string]float64),
	}
	students := make(map[string]struct{})
	schools := make(map[uint]struct{})
	for _, entry := range logs {
		stats.TotalRecords++
		stats.TotalAmount += entry.Amount
		stats.ByStatus[entry.DistributionStatus]++
		stats.AmountByBatch[entry.BatchNumber] = roundMoney(stats.AmountByBatch[entry.BatchNumber] + entry.Amount)

		studentKey := normalizeStudentNumber(entry.StudentNumber)
		if studentKey == "" {
			studentKey = "name:" + normalizeName(entry.StudentName)
		}
		students[studentKey] = struct{}{}
		if entry.SchoolID != nil {
			schools[*entry.SchoolID] = struct{}{}
		}
	}
	stats.TotalAmount = roundMoney(stats.TotalAmount)
	stats.DistinctStudents = int64(len(students))
	stats.DistinctSchools = int64(len(schools))
	stats.TotalBatches = int64(len(stats.AmountByBatch))
	return stats, nil
}

// CheckBatch reports whether a batch's log total equals the total of the
// payments it references.
func (s *DistributionService) CheckBatch(ctx context.Context, auth AuthContext, batchNumber string) (*BatchIntegrity, error) {
	batchNumber = strings.TrimSpace(batchNumber)
	var logs []models.DistributionLog
	if err := auth.Scope(s.db.WithContext(ctx), "distribution_logs.school_id").
		Where("batch_number = ?", batchNumber).Find(&logs).Error; err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, NotFoundError("batch", batchNumber)
	}

	report := &BatchIntegrity{BatchNumber: batchNumber, LogCount: int64(len(logs))}
	paymentIDs := make([]uint, 0, len(logs))
	for _, entry := range logs {
		report.LogTotal += entry.Amount
		paymentIDs = append(paymentIDs, entry.PaymentID)
	}

	var payments []models.Payment
	if err := s.db.WithContext(ctx).Where("id IN ?", paymentIDs).Find(&payments).Error; err != nil {
		return nil, err
	}
	for _, p := range payments {
		report.PaymentTotal += p.Amount
	}
	report.PaymentsFound = int64(len(payments))
	report.LogTotal = roundMoney(report.LogTotal)
	report.PaymentTotal = roundMoney(report.PaymentTotal)
	report.Balanced = report.PaymentsFound == report.LogCount && amountsMatch(report.LogTotal, report.PaymentTotal)
	return report, nil
}
