package services

import (
	"testing"

	"scholarship-aid-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotGrid(t *testing.T) {
	grid := SlotGrid()
	require.Len(t, grid, 16)
	assert.Equal(t, "09:00", grid[0])
	assert.Equal(t, "12:30", grid[7])
	assert.Equal(t, "16:30", grid[15])
	assert.False(t, isGridSlot("17:00"))
	assert.False(t, isGridSlot("09:15"))
}

func bookInput(appID uint, clock string) BookInterviewInput {
	return BookInterviewInput{
		ApplicationID:   appID,
		InterviewerID:   7,
		InterviewerName: "Dr. Mendoza",
		Date:            "2026-11-03",
		Time:            clock,
		Type:            models.InterviewTypeInPerson,
		Location:        "Room 204",
	}
}

func TestBookSchedulesInterviewAndHoldsSlot(t *testing.T) {
	f := newFixture(t)
	svc := NewInterviewService(f.db)
	first := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)
	second := f.application(f.student(f.school.ID, "Ben", "Cruz"), models.ApplicationStatusUnderReview, 5000)

	schedule, err := svc.Book(f.ctx, staff(), bookInput(first.ID, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.InterviewStatusScheduled, schedule.Status)
	assert.Equal(t, models.ApplicationStatusInterviewScheduled, f.reload(first.ID).Status)

	_, err = svc.Book(f.ctx, staff(), bookInput(second.ID, "10:00"))
	requireKind(t, err, KindConflict)
	assert.Equal(t, models.ApplicationStatusUnderReview, f.reload(second.ID).Status)

	interviewer := uint(7)
	free, err := svc.AvailableSlots(f.ctx, "2026-11-03", models.InterviewTypeInPerson, &interviewer)
	require.NoError(t, err)
	assert.Len(t, free, 15)
	assert.NotContains(t, free, "10:00")

	// The same clock time of another interview type is a different slot.
	online := bookInput(second.ID, "10:00")
	online.Type = models.InterviewTypeOnline
	_, err = svc.Book(f.ctx, staff(), online)
	require.NoError(t, err)
}

func TestBookRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	svc := NewInterviewService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)

	_, err := svc.Book(f.ctx, staff(), bookInput(app.ID, "17:00"))
	requireKind(t, err, KindValidation)

	bad := bookInput(app.ID, "10:00")
	bad.Date = "03/11/2026"
	_, err = svc.Book(f.ctx, staff(), bad)
	requireKind(t, err, KindValidation)

	draft := f.application(f.student(f.school.ID, "Ben", "Cruz"), models.ApplicationStatusDraft, 5000)
	_, err = svc.Book(f.ctx, staff(), bookInput(draft.ID, "10:00"))
	requireKind(t, err, KindStateGuard)
}

func TestBookRequiresCleanReviewedDocuments(t *testing.T) {
	f := newFixture(t)
	svc := NewInterviewService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)
	require.NoError(t, f.db.Create(&models.ApplicationDocument{
		ApplicationID: app.ID,
		DocumentType:  "transcript",
		StoragePath:   "uploads/transcript.pdf",
		ScanVerdict:   models.DocumentVerdictInfected,
	}).Error)

	_, err := svc.Book(f.ctx, staff(), bookInput(app.ID, "10:00"))
	requireKind(t, err, KindStateGuard)
	assert.Equal(t, models.ApplicationStatusUnderReview, f.reload(app.ID).Status)
}

func TestCancelledInterviewFreesSlotAndAllowsRebooking(t *testing.T) {
	f := newFixture(t)
	svc := NewInterviewService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)
	other := f.application(f.student(f.school.ID, "Ben", "Cruz"), models.ApplicationStatusUnderReview, 5000)

	schedule, err := svc.Book(f.ctx, staff(), bookInput(app.ID, "11:00"))
	require.NoError(t, err)

	_, err = svc.Book(f.ctx, staff(), bookInput(app.ID, "13:00"))
	requireKind(t, err, KindConflict)

	_, err = svc.Cancel(f.ctx, staff(), schedule.ID, "")
	requireKind(t, err, KindValidation)

	cancelled, err := svc.Cancel(f.ctx, staff(), schedule.ID, "interviewer unavailable")
	require.NoError(t, err)
	assert.Equal(t, models.InterviewStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.SlotKey)
	assert.Nil(t, cancelled.ActiveApplicationKey)

	_, err = svc.Book(f.ctx, staff(), bookInput(other.ID, "11:00"))
	require.NoError(t, err)

	rebooked, err := svc.Book(f.ctx, staff(), bookInput(app.ID, "14:00"))
	require.NoError(t, err)
	assert.Equal(t, "14:00", rebooked.InterviewTime)
	assert.Equal(t, models.ApplicationStatusInterviewScheduled, f.reload(app.ID).Status)

	_, err = svc.Cancel(f.ctx, staff(), schedule.ID, "again")
	requireKind(t, err, KindStateGuard)
}

func TestRescheduleMovesToFreeSlot(t *testing.T) {
	f := newFixture(t)
	svc := NewInterviewService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)
	other := f.application(f.student(f.school.ID, "Ben", "Cruz"), models.ApplicationStatusUnderReview, 5000)

	schedule, err := svc.Book(f.ctx, staff(), bookInput(app.ID, "09:00"))
	require.NoError(t, err)
	_, err = svc.Book(f.ctx, staff(), bookInput(other.ID, "09:30"))
	require.NoError(t, err)

	_, err = svc.Reschedule(f.ctx, staff(), schedule.ID, RescheduleInput{Date: "2026-11-03", Time: "09:30", Reason: "conflict"})
	requireKind(t, err, KindConflict)

	// Keeping the current slot is allowed.
	moved, err := svc.Reschedule(f.ctx, staff(), schedule.ID, RescheduleInput{Date: "2026-11-03", Time: "09:00", Reason: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, models.InterviewStatusRescheduled, moved.Status)

	moved, err = svc.Reschedule(f.ctx, staff(), schedule.ID, RescheduleInput{Date: "2026-11-04", Time: "15:00", Reason: "student request"})
	require.NoError(t, err)
	assert.Equal(t, "2026-11-04", moved.InterviewDate)
	assert.Equal(t, "15:00", moved.InterviewTime)
	require.NotNil(t, moved.SlotKey)
	assert.Equal(t, slotKey(7, "2026-11-04", "15:00", models.InterviewTypeInPerson), *moved.SlotKey)

	_, err = svc.Book(f.ctx, staff(), bookInput(f.application(f.student(f.school.ID, "Cy", "Tan"), models.ApplicationStatusUnderReview, 5000).ID, "09:00"))
	require.NoError(t, err)
}

func TestCompleteInterviewDrivesApplication(t *testing.T) {
	f := newFixture(t)
	svc := NewInterviewService(f.db)
	passed := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)
	failed := f.application(f.student(f.school.ID, "Ben", "Cruz"), models.ApplicationStatusUnderReview, 5000)

	s1, err := svc.Book(f.ctx, staff(), bookInput(passed.ID, "09:00"))
	require.NoError(t, err)
	s2, err := svc.Book(f.ctx, staff(), bookInput(failed.ID, "09:30"))
	require.NoError(t, err)

	done, err := svc.Complete(f.ctx, staff(), s1.ID, CompleteInterviewInput{Result: models.InterviewResultPassed})
	require.NoError(t, err)
	assert.Equal(t, models.InterviewStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, models.ApplicationStatusInterviewCompleted, f.reload(passed.ID).Status)

	_, err = svc.Complete(f.ctx, staff(), s2.ID, CompleteInterviewInput{Result: models.InterviewResultFailed})
	require.NoError(t, err)
	rejected := f.reload(failed.ID)
	assert.Equal(t, models.ApplicationStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, notRecommendedReason, *rejected.RejectionReason)

	_, err = svc.Complete(f.ctx, staff(), s1.ID, CompleteInterviewInput{Result: models.InterviewResultPassed})
	requireKind(t, err, KindStateGuard)
}

func TestCalendarGroupsByDate(t *testing.T) {
	f := newFixture(t)
	svc := NewInterviewService(f.db)
	a := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)
	b := f.application(f.student(f.other.ID, "Ben", "Cruz"), models.ApplicationStatusUnderReview, 5000)

	in := bookInput(a.ID, "10:00")
	_, err := svc.Book(f.ctx, staff(), in)
	require.NoError(t, err)
	in = bookInput(b.ID, "10:00")
	in.Date = "2026-11-20"
	_, err = svc.Book(f.ctx, staff(), in)
	require.NoError(t, err)

	days, err := svc.Calendar(f.ctx, staff(), "2026-11", nil)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-11-03", days[0].Date)
	assert.Equal(t, "2026-11-20", days[1].Date)

	days, err = svc.Calendar(f.ctx, schoolRep(f.other.ID), "2026-11", nil)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, b.ID, days[0].Interviews[0].ApplicationID)

	_, err = svc.Calendar(f.ctx, staff(), "November", nil)
	requireKind(t, err, KindValidation)
}
