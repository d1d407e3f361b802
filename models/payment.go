package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusScheduled  PaymentStatus = "scheduled"
)

type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodEWallet      PaymentMethod = "e_wallet"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCheck, PaymentMethodCash, PaymentMethodEWallet:
		return true
	}
	return false
}

// Payment is a disbursement to a student. ApplicationID may be nil for rows
// created before the application link was preserved.
//
// ActiveKey is the idempotency key of a live payment ("application:<id>"); it
// is cleared when the payment is cancelled or fails so a retry can claim it.
type Payment struct {
	ID             uint          `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID  *uint         `gorm:"column:application_id;index" json:"application_id,omitempty"`
	StudentID      *uint         `gorm:"column:student_id;index" json:"student_id,omitempty"`
	SchoolID       *uint         `gorm:"column:school_id" json:"school_id,omitempty"`
	StudentName    string        `gorm:"column:student_name;size:200" json:"student_name"`
	StudentNumber  string        `gorm:"column:student_number;size:32;index" json:"student_number"`
	Amount         float64       `gorm:"column:amount;type:decimal(12,2)" json:"amount"`
	Currency       string        `gorm:"column:currency;size:3" json:"currency"`
	Method         PaymentMethod `gorm:"column:payment_method;size:20" json:"payment_method"`
	Status         PaymentStatus `gorm:"column:payment_status;size:20;index" json:"payment_status"`
	Reference      string        `gorm:"column:reference;size:40;uniqueIndex" json:"reference"`
	TransactionFee float64       `gorm:"column:transaction_fee;type:decimal(12,2)" json:"transaction_fee"`
	ActiveKey      *string       `gorm:"column:active_key;size:40;uniqueIndex" json:"-"`
	ScheduledDate  *time.Time    `gorm:"column:scheduled_date" json:"scheduled_date,omitempty"`
	ProcessedDate  *time.Time    `gorm:"column:processed_date" json:"processed_date,omitempty"`
	ProcessedBy    *uint         `gorm:"column:processed_by" json:"processed_by,omitempty"`
	Notes          *string       `gorm:"column:notes" json:"notes,omitempty"`
	FailureReason  *string       `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	CancelReason   *string       `gorm:"column:cancel_reason" json:"cancel_reason,omitempty"`
	CreatedBy      uint          `gorm:"column:created_by" json:"created_by"`
	CreatedAt      time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsSettled reports whether the payment can no longer be processed.
func (p Payment) IsSettled() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusCancelled, PaymentStatusFailed:
		return true
	}
	return false
}
