package services

import (
	"errors"
	"testing"

	"scholarship-aid-api/metrics"
	"scholarship-aid-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCheckTransitionAllowsGraphEdges(t *testing.T) {
	edges := []struct {
		action   Action
		from, to models.ApplicationStatus
	}{
		{ActionSubmit, models.ApplicationStatusDraft, models.ApplicationStatusSubmitted},
		{ActionReview, models.ApplicationStatusSubmitted, models.ApplicationStatusUnderReview},
		{ActionScheduleInterview, models.ApplicationStatusUnderReview, models.ApplicationStatusInterviewScheduled},
		{ActionCompleteInterview, models.ApplicationStatusInterviewScheduled, models.ApplicationStatusInterviewCompleted},
		{ActionCompleteInterview, models.ApplicationStatusInterviewScheduled, models.ApplicationStatusRejected},
		{ActionFlagForCompliance, models.ApplicationStatusInterviewCompleted, models.ApplicationStatusFlaggedForCompliance},
		{ActionApprove, models.ApplicationStatusInterviewCompleted, models.ApplicationStatusApprovedPendingVerification},
		{ActionApprove, models.ApplicationStatusFlaggedForCompliance, models.ApplicationStatusApproved},
		{ActionConfirmEnrollment, models.ApplicationStatusApprovedPendingVerification, models.ApplicationStatusApproved},
		{ActionProcess, models.ApplicationStatusApproved, models.ApplicationStatusGrantsProcessing},
		{ActionProcess, models.ApplicationStatusPaymentFailed, models.ApplicationStatusGrantsProcessing},
		{ActionRelease, models.ApplicationStatusGrantsProcessing, models.ApplicationStatusGrantsDisbursed},
		{ActionFailPayment, models.ApplicationStatusGrantsProcessing, models.ApplicationStatusPaymentFailed},
		{ActionReject, models.ApplicationStatusUnderReview, models.ApplicationStatusRejected},
		{ActionCancel, models.ApplicationStatusApproved, models.ApplicationStatusCancelled},
	}
	for _, e := range edges {
		assert.NoError(t, CheckTransition(e.action, e.from, e.to), "%s %s -> %s", e.action, e.from, e.to)
	}
}

func TestCheckTransitionRejectsOffGraphMoves(t *testing.T) {
	cases := []struct {
		action   Action
		from, to models.ApplicationStatus
	}{
		{ActionApprove, models.ApplicationStatusSubmitted, models.ApplicationStatusApproved},
		{ActionRelease, models.ApplicationStatusApproved, models.ApplicationStatusGrantsDisbursed},
		{ActionProcess, models.ApplicationStatusApprovedPendingVerification, models.ApplicationStatusGrantsProcessing},
		{ActionSubmit, models.ApplicationStatusDraft, models.ApplicationStatusApproved},
		{ActionReject, models.ApplicationStatusGrantsDisbursed, models.ApplicationStatusRejected},
		{ActionCancel, models.ApplicationStatusRejected, models.ApplicationStatusCancelled},
		{Action("teleport"), models.ApplicationStatusDraft, models.ApplicationStatusApproved},
	}
	for _, c := range cases {
		err := CheckTransition(c.action, c.from, c.to)
		assert.Equal(t, KindStateGuard, KindOf(err), "%s %s -> %s", c.action, c.from, c.to)
	}
}

func TestTerminalStatusesHaveNoActions(t *testing.T) {
	for _, status := range models.AllApplicationStatuses {
		actions := AllowedActions(status)
		if status.IsTerminal() {
			assert.Empty(t, actions, "terminal status %s", status)
		} else {
			assert.NotEmpty(t, actions, "status %s", status)
		}
	}
}

func TestApplicationLifecycleWritesHistory(t *testing.T) {
	f := newFixture(t)
	svc := NewApplicationService(f.db)
	svc.SetRequireVerification(false)
	student := f.student(f.school.ID, "Ana", "Reyes")

	app, err := svc.Create(f.ctx, staff(), CreateApplicationInput{
		StudentID:       student.ID,
		CategoryID:      f.category.ID,
		RequestedAmount: 15000,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusDraft, app.Status)
	assert.Equal(t, "PHP", app.Currency)

	_, err = svc.Submit(f.ctx, staff(), app.ID)
	require.NoError(t, err)

	_, err = svc.Review(f.ctx, staff(), app.ID, ReviewInput{})
	requireKind(t, err, KindStateGuard)

	reviewed, err := svc.Review(f.ctx, staff(), app.ID, ReviewInput{DocumentsReviewed: true, Notes: "complete"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusUnderReview, reviewed.Status)
	assert.True(t, reviewed.DocumentsReviewed)

	_, err = svc.Approve(f.ctx, staff(), app.ID, ApproveInput{ApprovedAmount: 12000})
	requireKind(t, err, KindStateGuard)

	history := f.history(app.ID)
	require.Len(t, history, 3)
	assert.Nil(t, history[0].OldStatus)
	assert.Equal(t, models.ApplicationStatusDraft, history[0].NewStatus)
	require.NotNil(t, history[2].OldStatus)
	assert.Equal(t, models.ApplicationStatusSubmitted, *history[2].OldStatus)
	assert.Equal(t, models.ApplicationStatusUnderReview, history[2].NewStatus)
	assert.Equal(t, string(ActionReview), history[2].Action)
}

func TestApproveHonoursVerificationSetting(t *testing.T) {
	f := newFixture(t)
	student := f.student(f.school.ID, "Ben", "Cruz")
	first := f.application(student, models.ApplicationStatusInterviewCompleted, 9000)
	second := f.application(student, models.ApplicationStatusInterviewCompleted, 9000)

	svc := NewApplicationService(f.db)
	svc.SetRequireVerification(true)
	got, err := svc.Approve(f.ctx, staff(), first.ID, ApproveInput{ApprovedAmount: 8000})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApprovedPendingVerification, got.Status)
	require.NotNil(t, got.ApprovedAmount)
	assert.InDelta(t, 8000, *got.ApprovedAmount, 0.001)

	svc.SetRequireVerification(false)
	got, err = svc.Approve(f.ctx, staff(), second.ID, ApproveInput{ApprovedAmount: 8000})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, got.Status)
}

func TestStaleTransitionIsRefused(t *testing.T) {
	f := newFixture(t)
	student := f.student(f.school.ID, "Carla", "Diaz")
	app := f.application(student, models.ApplicationStatusSubmitted, 5000)

	// Another writer moved the row on after this copy was read.
	require.NoError(t, f.db.Model(&models.Application{}).Where("id = ?", app.ID).
		Update("status", string(models.ApplicationStatusUnderReview)).Error)

	stale := app
	err := applyTransition(f.db, &stale, transitionRequest{
		Action: ActionReview,
		To:     models.ApplicationStatusUnderReview,
		Actor:  staff(),
	})
	requireKind(t, err, KindStateGuard)
	assert.Empty(t, f.history(app.ID))
}

func TestSchoolRepCannotSeeOtherSchools(t *testing.T) {
	f := newFixture(t)
	mine := f.application(f.student(f.school.ID, "Dina", "Lopez"), models.ApplicationStatusSubmitted, 5000)
	theirs := f.application(f.student(f.other.ID, "Eli", "Santos"), models.ApplicationStatusSubmitted, 5000)

	svc := NewApplicationService(f.db)
	rep := schoolRep(f.school.ID)

	_, err := svc.Get(f.ctx, rep, mine.ID)
	require.NoError(t, err)
	_, err = svc.Get(f.ctx, rep, theirs.ID)
	requireKind(t, err, KindNotFound)

	list, total, err := svc.List(f.ctx, rep, ApplicationFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	unassigned := AuthContext{UserID: 21, Role: RoleSchoolRep}
	_, total, err = svc.List(f.ctx, unassigned, ApplicationFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStudentOnlyReachesOwnApplications(t *testing.T) {
	f := newFixture(t)
	ana := f.student(f.school.ID, "Ana", "Reyes")
	ben := f.student(f.school.ID, "Ben", "Cruz")
	mine := f.application(ana, models.ApplicationStatusDraft, 5000)
	theirs := f.application(ben, models.ApplicationStatusDraft, 5000)

	svc := NewApplicationService(f.db)
	me := studentActor(ana.ID)

	list, total, err := svc.List(f.ctx, me, ApplicationFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = svc.Get(f.ctx, me, theirs.ID)
	requireKind(t, err, KindNotFound)
	_, err = svc.History(f.ctx, me, theirs.ID)
	requireKind(t, err, KindNotFound)
	amount := 100.0
	_, err = svc.Update(f.ctx, me, theirs.ID, UpdateApplicationInput{RequestedAmount: &amount})
	requireKind(t, err, KindNotFound)
	_, err = svc.Submit(f.ctx, me, theirs.ID)
	requireKind(t, err, KindNotFound)
	requireKind(t, svc.Delete(f.ctx, me, theirs.ID), KindNotFound)
	assert.Equal(t, models.ApplicationStatusDraft, f.reload(theirs.ID).Status)

	_, err = svc.Create(f.ctx, me, CreateApplicationInput{StudentID: ben.ID, CategoryID: f.category.ID, RequestedAmount: 1000})
	requireKind(t, err, KindNotFound)
	created, err := svc.Create(f.ctx, me, CreateApplicationInput{StudentID: ana.ID, CategoryID: f.category.ID, RequestedAmount: 1000})
	require.NoError(t, err)
	assert.Equal(t, ana.ID, created.StudentID)

	_, err = svc.Submit(f.ctx, me, mine.ID)
	require.NoError(t, err)

	unmatched := AuthContext{UserID: 31, Role: RoleStudent}
	_, total, err = svc.List(f.ctx, unmatched, ApplicationFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestApproveFlaggedRequiresCompletedInterview(t *testing.T) {
	f := newFixture(t)
	student := f.student(f.school.ID, "Fe", "Garcia")
	early := f.application(student, models.ApplicationStatusSubmitted, 5000)
	late := f.application(student, models.ApplicationStatusInterviewCompleted, 5000)

	svc := NewApplicationService(f.db)
	svc.SetRequireVerification(false)

	_, err := svc.FlagForCompliance(f.ctx, staff(), early.ID, "income mismatch")
	require.NoError(t, err)
	_, err = svc.Approve(f.ctx, staff(), early.ID, ApproveInput{ApprovedAmount: 5000})
	requireKind(t, err, KindStateGuard)
	assert.Equal(t, models.ApplicationStatusFlaggedForCompliance, f.reload(early.ID).Status)

	_, err = svc.FlagForCompliance(f.ctx, staff(), late.ID, "income mismatch")
	require.NoError(t, err)
	got, err := svc.Approve(f.ctx, staff(), late.ID, ApproveInput{ApprovedAmount: 5000})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, got.Status)
}

func TestUpdateChecksCategoryRules(t *testing.T) {
	f := newFixture(t)
	maxAmount := 3000.0
	capped := models.AidCategory{Name: "Book Allowance", IsActive: true, MaxAmount: &maxAmount}
	require.NoError(t, f.db.Create(&capped).Error)
	closed := models.AidCategory{Name: "Closed Grant", IsActive: true}
	require.NoError(t, f.db.Create(&closed).Error)
	require.NoError(t, f.db.Model(&closed).Update("is_active", false).Error)

	app := f.application(f.student(f.school.ID, "Gio", "Ramos"), models.ApplicationStatusDraft, 5000)
	svc := NewApplicationService(f.db)

	_, err := svc.Update(f.ctx, staff(), app.ID, UpdateApplicationInput{CategoryID: &closed.ID})
	requireKind(t, err, KindValidation)

	_, err = svc.Update(f.ctx, staff(), app.ID, UpdateApplicationInput{CategoryID: &capped.ID})
	requireKind(t, err, KindValidation)

	amount := 2500.0
	got, err := svc.Update(f.ctx, staff(), app.ID, UpdateApplicationInput{CategoryID: &capped.ID, RequestedAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, capped.ID, got.CategoryID)

	tooMuch := 3500.0
	_, err = svc.Update(f.ctx, staff(), app.ID, UpdateApplicationInput{RequestedAmount: &tooMuch})
	requireKind(t, err, KindValidation)
	assert.InDelta(t, 2500, f.reload(app.ID).RequestedAmount, 0.001)
}

func TestTransitionMetricWaitsForCommit(t *testing.T) {
	f := newFixture(t)
	app := f.application(f.student(f.school.ID, "Hana", "Lim"), models.ApplicationStatusSubmitted, 5000)
	from, to := string(models.ApplicationStatusSubmitted), string(models.ApplicationStatusUnderReview)
	before := transitionCount(t, from, to)

	errAbort := errors.New("abort")
	err := transact(f.ctx, f.db, func(tx *gorm.DB) error {
		locked, err := lockApplication(tx, staff(), app.ID)
		require.NoError(t, err)
		require.NoError(t, applyTransition(tx, locked, transitionRequest{Action: ActionReview, To: models.ApplicationStatusUnderReview, Actor: staff()}))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	assert.Equal(t, models.ApplicationStatusSubmitted, f.reload(app.ID).Status)
	assert.Equal(t, before, transitionCount(t, from, to))

	err = transact(f.ctx, f.db, func(tx *gorm.DB) error {
		locked, err := lockApplication(tx, staff(), app.ID)
		if err != nil {
			return err
		}
		return applyTransition(tx, locked, transitionRequest{Action: ActionReview, To: models.ApplicationStatusUnderReview, Actor: staff()})
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, transitionCount(t, from, to))
}

// transitionCount reads the transition counter for one edge from the registry.
func transitionCount(t *testing.T, from, to string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "scholarship_aid_applications_transitions_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["from"] == from && labels["to"] == to {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
