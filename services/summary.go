package services

import (
	"context"
	"time"

	"scholarship-aid-api/config"
	"scholarship-aid-api/models"

	"gorm.io/gorm"
)

// QueueSummary counts the work waiting in each stage of the pipeline.
type QueueSummary struct {
	Applications         map[string]int64 `json:"applications"`
	Payments             map[string]int64 `json:"payments"`
	ActiveInterviews     int64            `json:"active_interviews"`
	PendingVerifications int64            `json:"pending_verifications"`
	PayableApplications  int64            `json:"payable_applications"`
	ActiveLocks          int64            `json:"active_locks"`
	DistributionBatches  int64            `json:"distribution_batches"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

type statusCount struct {
	Status string
	Count  int64
}

func countByStatus(db *gorm.DB, model interface{}, column string) (map[string]int64, error) {
	var rows []statusCount
	if err := db.Model(model).Select(column + " AS status, COUNT(*) AS count").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Summarize builds the operational snapshot used by the monitor page.
func Summarize(ctx context.Context, db *gorm.DB) (*QueueSummary, error) {
	if db == nil {
		db = config.DB
	}
	db = db.WithContext(ctx)
	summary := &QueueSummary{GeneratedAt: time.Now()}

	var err error
	if summary.Applications, err = countByStatus(db, &models.Application{}, "status"); err != nil {
		return nil, err
	}
	if summary.Payments, err = countByStatus(db, &models.Payment{}, "payment_status"); err != nil {
		return nil, err
	}

	if err := db.Model(&models.InterviewSchedule{}).
		Where("status IN ?", activeInterviewStatuses).
		Count(&summary.ActiveInterviews).Error; err != nil {
		return nil, err
	}

	summary.PendingVerifications = summary.Applications[string(models.ApplicationStatusApprovedPendingVerification)]

	// Approved applications without a live payment are still waiting in the queue.
	if err := db.Model(&models.Application{}).
		Where("status = ?", models.ApplicationStatusApproved).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.application_id = applications.id AND p.payment_status IN ?)", livePaymentStatuses).
		Count(&summary.PayableApplications).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.ProcessingLock{}).
		Where("expires_at > ?", time.Now()).
		Count(&summary.ActiveLocks).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.DistributionLog{}).
		Distinct("batch_number").
		Count(&summary.DistributionBatches).Error; err != nil {
		return nil, err
	}

	return summary, nil
}
