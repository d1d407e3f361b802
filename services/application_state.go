package services

import (
	"scholarship-aid-api/models"

	"gorm.io/gorm"
)

// Action names a guarded application transition.
type Action string

const (
	ActionSubmit            Action = "submit"
	ActionReview            Action = "review"
	ActionScheduleInterview Action = "schedule_interview"
	ActionCompleteInterview Action = "complete_interview"
	ActionFlagForCompliance Action = "flag_for_compliance"
	ActionApprove           Action = "approve"
	ActionConfirmEnrollment Action = "confirm_enrollment"
	ActionReject            Action = "reject"
	ActionProcess           Action = "process"
	ActionRelease           Action = "release"
	ActionFailPayment       Action = "fail_payment"
	ActionCancel            Action = "cancel"
)

type transitionRule struct {
	from []models.ApplicationStatus
	to   []models.ApplicationStatus
}

func nonTerminalStatuses() []models.ApplicationStatus {
	out := make([]models.ApplicationStatus, 0, len(models.AllApplicationStatuses))
	for _, s := range models.AllApplicationStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// reviewableStatuses may be flagged for compliance.
var reviewableStatuses = []models.ApplicationStatus{
	models.ApplicationStatusSubmitted,
	models.ApplicationStatusUnderReview,
	models.ApplicationStatusInterviewScheduled,
	models.ApplicationStatusInterviewCompleted,
	models.ApplicationStatusApprovedPendingVerification,
}

var transitionRules = map[Action]transitionRule{
	ActionSubmit: {
		from: []models.ApplicationStatus{models.ApplicationStatusDraft},
		to:   []models.ApplicationStatus{models.ApplicationStatusSubmitted},
	},
	ActionReview: {
		from: []models.ApplicationStatus{models.ApplicationStatusSubmitted},
		to:   []models.ApplicationStatus{models.ApplicationStatusUnderReview},
	},
	ActionScheduleInterview: {
		from: []models.ApplicationStatus{models.ApplicationStatusUnderReview},
		to:   []models.ApplicationStatus{models.ApplicationStatusInterviewScheduled},
	},
	ActionCompleteInterview: {
		from: []models.ApplicationStatus{models.ApplicationStatusInterviewScheduled},
		to: []models.ApplicationStatus{
			models.ApplicationStatusInterviewCompleted,
			models.ApplicationStatusRejected,
		},
	},
	ActionFlagForCompliance: {
		from: reviewableStatuses,
		to:   []models.ApplicationStatus{models.ApplicationStatusFlaggedForCompliance},
	},
	ActionApprove: {
		from: []models.ApplicationStatus{
			models.ApplicationStatusInterviewCompleted,
			models.ApplicationStatusFlaggedForCompliance,
		},
		to: []models.ApplicationStatus{
			models.ApplicationStatusApprovedPendingVerification,
			models.ApplicationStatusApproved,
		},
	},
	ActionConfirmEnrollment: {
		from: []models.ApplicationStatus{models.ApplicationStatusApprovedPendingVerification},
		to:   []models.ApplicationStatus{models.ApplicationStatusApproved},
	},
	ActionReject: {
		from: nonTerminalStatuses(),
		to:   []models.ApplicationStatus{models.ApplicationStatusRejected},
	},
	ActionProcess: {
		from: []models.ApplicationStatus{
			models.ApplicationStatusApproved,
			models.ApplicationStatusPaymentFailed,
		},
		to: []models.ApplicationStatus{models.ApplicationStatusGrantsProcessing},
	},
	ActionRelease: {
		from: []models.ApplicationStatus{models.ApplicationStatusGrantsProcessing},
		to:   []models.ApplicationStatus{models.ApplicationStatusGrantsDisbursed},
	},
	ActionFailPayment: {
		from: []models.ApplicationStatus{models.ApplicationStatusGrantsProcessing},
		to:   []models.ApplicationStatus{models.ApplicationStatusPaymentFailed},
	},
	ActionCancel: {
		from: nonTerminalStatuses(),
		to:   []models.ApplicationStatus{models.ApplicationStatusCancelled},
	},
}

func containsStatus(list []models.ApplicationStatus, status models.ApplicationStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

// CheckTransition returns a StateGuardError unless action may move an
// application from -> to.
func CheckTransition(action Action, from, to models.ApplicationStatus) error {
	rule, ok := transitionRules[action]
	if !ok {
		return StateGuardError("unknown action %q", action)
	}
	if !containsStatus(rule.from, from) {
		return StateGuardError("cannot %s an application in status %s", action, from)
	}
	if !containsStatus(rule.to, to) {
		return StateGuardError("%s cannot move an application to %s", action, to)
	}
	return nil
}

// AllowedActions lists the actions whose source states include status.
func AllowedActions(status models.ApplicationStatus) []Action {
	order := []Action{
		ActionSubmit, ActionReview, ActionScheduleInterview, ActionCompleteInterview,
		ActionFlagForCompliance, ActionApprove, ActionConfirmEnrollment, ActionReject,
		ActionProcess, ActionRelease, ActionFailPayment, ActionCancel,
	}
	var out []Action
	for _, action := range order {
		if containsStatus(transitionRules[action].from, status) {
			out = append(out, action)
		}
	}
	return out
}

// canProceedToInterview requires reviewed documents and no infected uploads.
func canProceedToInterview(app *models.Application, infectedDocuments int64) error {
	if !app.DocumentsReviewed {
		return StateGuardError("application %d documents have not been reviewed", app.ID)
	}
	if infectedDocuments > 0 {
		return StateGuardError("application %d has %d infected document(s)", app.ID, infectedDocuments)
	}
	return nil
}

// canApproveFlagged looks at the status an application was flagged from. Only
// a flag raised after the interview may be cleared by approval; earlier flags
// must not let the application skip review and interview.
func canApproveFlagged(tx *gorm.DB, app *models.Application) error {
	var flag models.ApplicationStatusHistory
	err := tx.Where("application_id = ? AND new_status = ?", app.ID, string(models.ApplicationStatusFlaggedForCompliance)).
		Order("id DESC").
		Limit(1).
		Find(&flag).Error
	if err != nil {
		return err
	}
	if flag.ID == 0 || flag.OldStatus == nil {
		return StateGuardError("application %d has no compliance flag on record", app.ID)
	}
	switch *flag.OldStatus {
	case models.ApplicationStatusInterviewCompleted, models.ApplicationStatusApprovedPendingVerification:
		return nil
	}
	return StateGuardError("application %d was flagged while %s and cannot be approved", app.ID, *flag.OldStatus)
}

func canBeProcessed(app *models.Application) error {
	if app.Status != models.ApplicationStatusApproved && app.Status != models.ApplicationStatusPaymentFailed {
		return StateGuardError("application %d must be approved before processing (status %s)", app.ID, app.Status)
	}
	return nil
}

func canBeReleased(app *models.Application) error {
	if app.Status != models.ApplicationStatusGrantsProcessing {
		return StateGuardError("application %d is not being processed (status %s)", app.ID, app.Status)
	}
	return nil
}

// recommendationTarget maps an interview recommendation to the application
// status completeInterview should produce.
func recommendationTarget(rec models.Recommendation) (models.ApplicationStatus, error) {
	switch rec {
	case models.RecommendationRecommended, models.RecommendationNeedsFollowup:
		return models.ApplicationStatusInterviewCompleted, nil
	case models.RecommendationNotRecommended:
		return models.ApplicationStatusRejected, nil
	}
	return "", ValidationError("invalid recommendation", map[string]string{"overall_recommendation": "must be one of: recommended not_recommended needs_followup"})
}
