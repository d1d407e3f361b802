package services

import (
	"testing"

	"scholarship-aid-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proofInput(enrolled bool) EnrollmentProofInput {
	return EnrollmentProofInput{
		ProofDocumentPath: "uploads/enrollment/coe.pdf",
		EnrollmentYear:    "2026-2027",
		EnrollmentTerm:    models.EnrollmentTerm("first"),
		IsEnrolled:        enrolled,
	}
}

func TestWorklistShowsAwaitingApplicationsPerSchool(t *testing.T) {
	f := newFixture(t)
	svc := NewVerificationService(f.db)
	mine := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApprovedPendingVerification, 5000)
	f.application(f.student(f.other.ID, "Ben", "Cruz"), models.ApplicationStatusApprovedPendingVerification, 5000)
	f.application(f.student(f.school.ID, "Cy", "Tan"), models.ApplicationStatusApproved, 5000)

	entries, total, err := svc.List(f.ctx, staff(), VerificationFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, entry := range entries {
		assert.True(t, entry.Virtual)
		assert.Equal(t, models.VerificationStatusPending, entry.Status)
	}

	entries, total, err = svc.List(f.ctx, schoolRep(f.school.ID), VerificationFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, mine.ID, entries[0].ApplicationID)
	assert.Equal(t, "Ana Reyes", entries[0].StudentName)

	_, err = svc.SubmitEnrollmentProof(f.ctx, schoolRep(f.other.ID), mine.ID, proofInput(true))
	requireKind(t, err, KindNotFound)
}

func TestApproveVerificationConfirmsApplication(t *testing.T) {
	f := newFixture(t)
	svc := NewVerificationService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApprovedPendingVerification, 5000)
	rep := schoolRep(f.school.ID)

	_, err := svc.Approve(f.ctx, rep, app.ID, "")
	requireKind(t, err, KindStateGuard)

	record, err := svc.SubmitEnrollmentProof(f.ctx, rep, app.ID, proofInput(true))
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusPending, record.Status)

	entry, err := svc.Get(f.ctx, rep, app.ID)
	require.NoError(t, err)
	assert.False(t, entry.Virtual)
	require.NotNil(t, entry.Verification)

	verified, err := svc.Approve(f.ctx, rep, app.ID, "certificate checked")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedAt)

	confirmed := f.reload(app.ID)
	assert.Equal(t, models.ApplicationStatusApproved, confirmed.Status)
	require.NotNil(t, confirmed.VerificationNotes)
	assert.Equal(t, "certificate checked", *confirmed.VerificationNotes)

	_, err = svc.Approve(f.ctx, rep, app.ID, "")
	requireKind(t, err, KindStateGuard)
}

func TestApproveRequiresEnrolledStudent(t *testing.T) {
	f := newFixture(t)
	svc := NewVerificationService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApprovedPendingVerification, 5000)

	_, err := svc.SubmitEnrollmentProof(f.ctx, staff(), app.ID, proofInput(false))
	require.NoError(t, err)
	_, err = svc.Approve(f.ctx, staff(), app.ID, "")
	requireKind(t, err, KindStateGuard)
	assert.Equal(t, models.ApplicationStatusApprovedPendingVerification, f.reload(app.ID).Status)
}

func TestRejectVerificationRejectsApplication(t *testing.T) {
	f := newFixture(t)
	svc := NewVerificationService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApprovedPendingVerification, 5000)

	_, err := svc.Reject(f.ctx, staff(), app.ID, "")
	requireKind(t, err, KindValidation)

	record, err := svc.Reject(f.ctx, staff(), app.ID, "not in the registrar list")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusRejected, record.Status)

	rejected := f.reload(app.ID)
	assert.Equal(t, models.ApplicationStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "not in the registrar list", *rejected.RejectionReason)
}

func TestFlagForReviewAndStatistics(t *testing.T) {
	f := newFixture(t)
	svc := NewVerificationService(f.db)
	flagged := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApprovedPendingVerification, 5000)
	f.application(f.student(f.school.ID, "Ben", "Cruz"), models.ApplicationStatusApprovedPendingVerification, 5000)

	_, err := svc.FlagForReview(f.ctx, staff(), flagged.ID, "blurry scan")
	requireKind(t, err, KindStateGuard)

	_, err = svc.SubmitEnrollmentProof(f.ctx, staff(), flagged.ID, proofInput(true))
	require.NoError(t, err)
	record, err := svc.FlagForReview(f.ctx, staff(), flagged.ID, "blurry scan")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusNeedsReview, record.Status)

	stats, err := svc.Statistics(f.ctx, staff())
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.AwaitingProof)
	assert.EqualValues(t, 1, stats.Pending)
	assert.EqualValues(t, 1, stats.NeedsReview)

	// A flagged record can still be approved.
	_, err = svc.Approve(f.ctx, staff(), flagged.ID, "rescanned")
	require.NoError(t, err)
}
