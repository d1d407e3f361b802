package models

import "time"

// ProcessingLock is a durable keyed lock held while an item is between
// payment materialization and processing.
type ProcessingLock struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	LockKey   string    `gorm:"column:lock_key;size:80;uniqueIndex" json:"lock_key"`
	Owner     string    `gorm:"column:owner;size:36;index" json:"owner"`
	Purpose   string    `gorm:"column:purpose;size:60" json:"purpose"`
	ExpiresAt time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ProcessingLock) TableName() string {
	return "processing_locks"
}

// All returns every model managed by the migration tool.
func All() []interface{} {
	return []interface{}{
		&School{},
		&AidCategory{},
		&Student{},
		&SchoolRepresentative{},
		&Application{},
		&ApplicationStatusHistory{},
		&ApplicationDocument{},
		&InterviewSchedule{},
		&InterviewEvaluation{},
		&EnrollmentVerification{},
		&Payment{},
		&DistributionLog{},
		&ProcessingLock{},
	}
}
