package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"scholarship-aid-api/models"
)

// PayableKind tells a stored payment apart from an approved application that
// has not been materialized into one.
type PayableKind string

const (
	PayableKindPayment            PayableKind = "payment"
	PayableKindPendingApplication PayableKind = "application"
)

// PayableRef identifies one entry of the payable queue. Its text form is
// "payment:<id>" or "application:<id>"; a bare number means a payment.
type PayableRef struct {
	Kind PayableKind
	ID   uint
}

func PaymentRef(id uint) PayableRef {
	return PayableRef{Kind: PayableKindPayment, ID: id}
}

func PendingApplicationRef(applicationID uint) PayableRef {
	return PayableRef{Kind: PayableKindPendingApplication, ID: applicationID}
}

func (r PayableRef) IsSynthetic() bool {
	return r.Kind == PayableKindPendingApplication
}

func (r PayableRef) String() string {
	return string(r.Kind) + ":" + uitoa(r.ID)
}

func (r PayableRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *PayableRef) UnmarshalText(text []byte) error {
	parsed, err := ParsePayableRef(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParsePayableRef reads the text form of a PayableRef.
func ParsePayableRef(value string) (PayableRef, error) {
	value = strings.TrimSpace(value)
	kind := PayableKindPayment
	raw := value
	if prefix, rest, ok := strings.Cut(value, ":"); ok {
		switch PayableKind(strings.ToLower(prefix)) {
		case PayableKindPayment:
			kind = PayableKindPayment
		case PayableKindPendingApplication:
			kind = PayableKindPendingApplication
		default:
			return PayableRef{}, fmt.Errorf("unknown payable kind %q", prefix)
		}
		raw = rest
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return PayableRef{}, fmt.Errorf("invalid payable id %q", value)
	}
	return PayableRef{Kind: kind, ID: uint(id)}, nil
}

// PendingApplication is the read-only projection of an approved application
// that has no payment yet. It is never stored.
type PendingApplication struct {
	ApplicationID     uint       `json:"application_id"`
	ApplicationNumber string     `json:"application_number"`
	StudentID         uint       `json:"student_id"`
	SchoolID          uint       `json:"school_id"`
	StudentName       string     `json:"student_name"`
	StudentNumber     string     `json:"student_number"`
	Amount            float64    `json:"amount"`
	Currency          string     `json:"currency"`
	AidType           string     `json:"aid_type"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
}

func pendingFromApplication(app models.Application) PendingApplication {
	return PendingApplication{
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		StudentID:         app.StudentID,
		SchoolID:          app.SchoolID,
		StudentName:       app.Student.FullName(),
		StudentNumber:     app.Student.StudentNumber,
		Amount:            roundMoney(app.PayableAmount()),
		Currency:          app.Currency,
		AidType:           app.Category.Name,
		ApprovedAt:        app.ApprovedAt,
	}
}

// PayableItem is one entry of the unified queue: exactly one of Payment and
// Application is set, matching Ref.Kind.
type PayableItem struct {
	Ref           PayableRef           `json:"ref"`
	Synthetic     bool                 `json:"synthetic"`
	StudentName   string               `json:"student_name"`
	StudentNumber string               `json:"student_number"`
	Amount        float64              `json:"amount"`
	Currency      string               `json:"currency"`
	Status        models.PaymentStatus `json:"payment_status"`
	Payment       *models.Payment      `json:"payment,omitempty"`
	Application   *PendingApplication  `json:"application,omitempty"`
}

func paymentItem(p models.Payment) PayableItem {
	return PayableItem{
		Ref:           PaymentRef(p.ID),
		StudentName:   p.StudentName,
		StudentNumber: p.StudentNumber,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
		Payment:       &p,
	}
}

func syntheticItem(pending PendingApplication) PayableItem {
	return PayableItem{
		Ref:           PendingApplicationRef(pending.ApplicationID),
		Synthetic:     true,
		StudentName:   pending.StudentName,
		StudentNumber: pending.StudentNumber,
		Amount:        pending.Amount,
		Currency:      pending.Currency,
		Status:        models.PaymentStatusPending,
		Application:   &pending,
	}
}

// sameIdentity is the legacy match between a payment and an application:
// student name, student number and amount within MoneyEpsilon.
func sameIdentity(name, number string, amount float64, p models.Payment) bool {
	return normalizeName(name) == normalizeName(p.StudentName) &&
		normalizeStudentNumber(number) == normalizeStudentNumber(p.StudentNumber) &&
		amountsMatch(amount, p.Amount)
}

// MergePayables builds the payable queue from every stored payment and every
// approved application. An application is left out when any payment links to
// it, when an unlinked payment matches its identity and amount, or when a
// completed payment matches it at all. Stored payments come first.
func MergePayables(existing []models.Payment, candidates []PendingApplication) []PayableItem {
	linked := make(map[uint]struct{}, len(existing))
	var unlinked, completed []models.Payment
	for _, p := range existing {
		if p.ApplicationID != nil {
			linked[*p.ApplicationID] = struct{}{}
		} else {
			unlinked = append(unlinked, p)
		}
		if p.Status == models.PaymentStatusCompleted {
			completed = append(completed, p)
		}
	}

	items := make([]PayableItem, 0, len(existing)+len(candidates))
	for _, p := range existing {
		items = append(items, paymentItem(p))
	}

	for _, candidate := range candidates {
		if _, ok := linked[candidate.ApplicationID]; ok {
			continue
		}
		if matchesAny(candidate, unlinked) {
			continue
		}
		// A payment may have completed after the snapshot was taken.
		if matchesAny(candidate, completed) {
			continue
		}
		items = append(items, syntheticItem(candidate))
	}
	return items
}

func matchesAny(candidate PendingApplication, payments []models.Payment) bool {
	for _, p := range payments {
		if sameIdentity(candidate.StudentName, candidate.StudentNumber, candidate.Amount, p) {
			return true
		}
	}
	return false
}
