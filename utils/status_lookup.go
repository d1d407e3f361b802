package utils

import (
	"strings"

	"scholarship-aid-api/models"
)

var (
	applicationStatusSynonyms = map[models.ApplicationStatus][]string{
		models.ApplicationStatusDraft:                       {"draft", "new"},
		models.ApplicationStatusSubmitted:                   {"submitted", "pending"},
		models.ApplicationStatusUnderReview:                 {"under_review", "under-review", "review", "in_review"},
		models.ApplicationStatusInterviewScheduled:          {"interview_scheduled", "for_interview"},
		models.ApplicationStatusInterviewCompleted:          {"interview_completed", "interviewed", "endorsed"},
		models.ApplicationStatusFlaggedForCompliance:        {"flagged_for_compliance", "flagged", "compliance"},
		models.ApplicationStatusApprovedPendingVerification: {"approved_pending_verification", "pending_verification", "for_verification"},
		models.ApplicationStatusApproved:                    {"approved"},
		models.ApplicationStatusRejected:                    {"rejected", "denied"},
		models.ApplicationStatusGrantsProcessing:            {"grants_processing", "processing"},
		models.ApplicationStatusGrantsDisbursed:             {"grants_disbursed", "disbursed", "released", "paid"},
		models.ApplicationStatusPaymentFailed:               {"payment_failed", "failed"},
		models.ApplicationStatusCancelled:                   {"cancelled", "canceled"},
	}
	applicationStatusAliases = buildApplicationStatusAliases()

	paymentStatusSynonyms = map[models.PaymentStatus][]string{
		models.PaymentStatusPending:    {"pending", "queued"},
		models.PaymentStatusProcessing: {"processing", "in_progress"},
		models.PaymentStatusCompleted:  {"completed", "complete", "paid"},
		models.PaymentStatusFailed:     {"failed", "error"},
		models.PaymentStatusCancelled:  {"cancelled", "canceled"},
		models.PaymentStatusScheduled:  {"scheduled"},
	}
	paymentStatusAliases = buildPaymentStatusAliases()
)

func normalizeStatusCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(strings.ReplaceAll(code, "-", "_"), " ", "_")
}

func buildApplicationStatusAliases() map[string]models.ApplicationStatus {
	aliasMap := make(map[string]models.ApplicationStatus)
	for canonical, synonyms := range applicationStatusSynonyms {
		aliasMap[normalizeStatusCode(string(canonical))] = canonical
		for _, alias := range synonyms {
			if normalized := normalizeStatusCode(alias); normalized != "" {
				if _, taken := aliasMap[normalized]; !taken {
					aliasMap[normalized] = canonical
				}
			}
		}
	}
	// Canonical names always win over aliases of other statuses.
	for canonical := range applicationStatusSynonyms {
		aliasMap[normalizeStatusCode(string(canonical))] = canonical
	}
	return aliasMap
}

func buildPaymentStatusAliases() map[string]models.PaymentStatus {
	aliasMap := make(map[string]models.PaymentStatus)
	for canonical, synonyms := range paymentStatusSynonyms {
		for _, alias := range synonyms {
			aliasMap[normalizeStatusCode(alias)] = canonical
		}
	}
	for canonical := range paymentStatusSynonyms {
		aliasMap[normalizeStatusCode(string(canonical))] = canonical
	}
	return aliasMap
}

// NormalizeApplicationStatus resolves a filter value or alias to its canonical status.
func NormalizeApplicationStatus(code string) (models.ApplicationStatus, bool) {
	status, ok := applicationStatusAliases[normalizeStatusCode(code)]
	return status, ok
}

// NormalizePaymentStatus resolves a filter value or alias to its canonical payment status.
func NormalizePaymentStatus(code string) (models.PaymentStatus, bool) {
	status, ok := paymentStatusAliases[normalizeStatusCode(code)]
	return status, ok
}
