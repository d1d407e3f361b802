package models

import "time"

const (
	DistributionStatusDistributed = "distributed"
	DistributionStatusReversed    = "reversed"
)

// DistributionLog is the audit row written for one completed payment.
// PaymentID is unique: a payment is logged at most once.
type DistributionLog struct {
	ID                 uint      `gorm:"primaryKey;column:id" json:"id"`
	PaymentID          uint      `gorm:"column:payment_id;uniqueIndex" json:"payment_id"`
	ApplicationID      *uint     `gorm:"column:application_id;index" json:"application_id,omitempty"`
	StudentName        string    `gorm:"column:student_name;size:200" json:"student_name"`
	StudentNumber      string    `gorm:"column:student_number;size:32;index" json:"student_number"`
	SchoolID           *uint     `gorm:"column:school_id;index" json:"school_id,omitempty"`
	SchoolName         string    `gorm:"column:school_name;size:200" json:"school_name"`
	AidType            string    `gorm:"column:aid_type;size:120" json:"aid_type"`
	Amount             float64   `gorm:"column:amount;type:decimal(12,2)" json:"amount"`
	Currency           string    `gorm:"column:currency;size:3" json:"currency"`
	DistributionStatus string    `gorm:"column:distribution_status;size:20;index" json:"distribution_status"`
	BatchNumber        string    `gorm:"column:batch_number;size:40;index" json:"batch_number"`
	ProcessedBy        string    `gorm:"column:processed_by;size:150" json:"processed_by"`
	ProcessedDate      time.Time `gorm:"column:processed_date" json:"processed_date"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
}

func (DistributionLog) TableName() string {
	return "distribution_logs"
}
