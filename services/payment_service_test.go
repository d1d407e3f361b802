package services

import (
	"testing"
	"time"

	"scholarship-aid-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueMergesPaymentsAndApprovedApplications(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	ana := f.student(f.school.ID, "Ana", "Reyes")
	ben := f.student(f.other.ID, "Ben", "Cruz")
	waiting := f.application(ana, models.ApplicationStatusApproved, 5000)
	legacyMatch := f.application(ben, models.ApplicationStatusApproved, 7000)
	f.application(ana, models.ApplicationStatusApprovedPendingVerification, 5000)
	f.payment(models.Payment{StudentName: "Ben Cruz", StudentNumber: ben.StudentNumber, Amount: 7000, Status: models.PaymentStatusPending})

	items, total, err := svc.Queue(f.ctx, staff(), QueueFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.False(t, items[0].Synthetic)
	assert.Equal(t, PendingApplicationRef(waiting.ID), items[1].Ref)

	synthetic, _, err := svc.Queue(f.ctx, staff(), QueueFilter{Kind: "application"})
	require.NoError(t, err)
	require.Len(t, synthetic, 1)
	assert.NotEqual(t, PendingApplicationRef(legacyMatch.ID), synthetic[0].Ref)

	refs, err := svc.PendingRefs(f.ctx, staff())
	require.NoError(t, err)
	assert.Equal(t, []PayableRef{PendingApplicationRef(waiting.ID)}, refs)

	// School representatives only see their own school's entries.
	scoped, _, err := svc.Queue(f.ctx, schoolRep(f.other.ID), QueueFilter{})
	require.NoError(t, err)
	require.Len(t, scoped, 0)

	item, err := svc.Get(f.ctx, staff(), PendingApplicationRef(waiting.ID))
	require.NoError(t, err)
	require.NotNil(t, item.Application)
	assert.InDelta(t, 5000, item.Amount, 0.001)
}

func TestProcessApprovedApplicationsDisbursesAndLogs(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApproved, 5000)

	result, err := svc.ProcessApprovedApplications(f.ctx, staff(), []PayableRef{PendingApplicationRef(app.ID)}, "", "")
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.True(t, result.Created[0].Success, result.Created[0].Error)
	assert.Equal(t, 1, result.Bulk.Processed)
	assert.Zero(t, result.Bulk.Failed)
	assert.Empty(t, result.Bulk.Items[0].Warnings)

	disbursed := f.reload(app.ID)
	assert.Equal(t, models.ApplicationStatusGrantsDisbursed, disbursed.Status)
	assert.NotNil(t, disbursed.DisbursedAt)

	var payment models.Payment
	require.NoError(t, f.db.Where("application_id = ?", app.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, models.PaymentMethodBankTransfer, payment.Method)
	require.NotNil(t, payment.ActiveKey)

	var logs []models.DistributionLog
	require.NoError(t, f.db.Where("payment_id = ?", payment.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.InDelta(t, 5000, logs[0].Amount, 0.001)
	assert.Equal(t, "Tuition Assistance", logs[0].AidType)
	assert.Equal(t, f.school.Name, logs[0].SchoolName)
	assert.Equal(t, "Office Staff", logs[0].ProcessedBy)

	items, _, err := svc.Queue(f.ctx, staff(), QueueFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, PaymentRef(payment.ID), items[0].Ref)

	var locks int64
	require.NoError(t, f.db.Model(&models.ProcessingLock{}).Count(&locks).Error)
	assert.Zero(t, locks)
}

func TestProcessApprovedApplicationsRefusesStoredPayments(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	_, err := svc.ProcessApprovedApplications(f.ctx, staff(), []PayableRef{PaymentRef(1)}, "", "")
	requireKind(t, err, KindValidation)
	_, err = svc.ProcessApprovedApplications(f.ctx, staff(), nil, "", "")
	requireKind(t, err, KindValidation)
}

func TestProcessApprovedApplicationsRefusesLockedItems(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApproved, 5000)

	held, err := NewLockManager(f.db, time.Minute).AcquireAll(f.ctx, []string{applicationLockKey(app.ID)}, "other run")
	require.NoError(t, err)

	_, err = svc.ProcessApprovedApplications(f.ctx, staff(), []PayableRef{PendingApplicationRef(app.ID)}, "", "")
	requireKind(t, err, KindConflict)
	assert.Equal(t, models.ApplicationStatusApproved, f.reload(app.ID).Status)

	require.NoError(t, held.Release(f.ctx))
	_, err = svc.ProcessApprovedApplications(f.ctx, staff(), []PayableRef{PendingApplicationRef(app.ID)}, "", "")
	require.NoError(t, err)
}

func TestProcessPaymentGuards(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	ana := f.student(f.school.ID, "Ana", "Reyes")

	_, err := svc.ProcessPayment(f.ctx, staff(), PendingApplicationRef(1), "")
	requireKind(t, err, KindStateGuard)

	_, err = svc.ProcessPayment(f.ctx, staff(), PaymentRef(404), "")
	requireKind(t, err, KindNotFound)

	cancelled := f.payment(models.Payment{StudentName: "Ana Reyes", StudentNumber: ana.StudentNumber, Amount: 10, Status: models.PaymentStatusCancelled})
	_, err = svc.ProcessPayment(f.ctx, staff(), PaymentRef(cancelled.ID), "")
	requireKind(t, err, KindStateGuard)

	legacy := f.payment(models.Payment{StudentName: "Ana Reyes", StudentNumber: ana.StudentNumber, Amount: 20, Status: models.PaymentStatusPending})
	result, err := svc.ProcessPayment(f.ctx, staff(), PaymentRef(legacy.ID), "paid at cashier")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	require.NotNil(t, result.DistributionLog)

	_, err = svc.ProcessPayment(f.ctx, staff(), PaymentRef(legacy.ID), "")
	requireKind(t, err, KindConflict)
}

func TestProcessPaymentWarnsWhenLogCannotBeWritten(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApproved, 5000)

	outcomes, err := svc.CreateFromApplications(f.ctx, staff(), CreatePaymentsInput{ApplicationIDs: []uint{app.ID}})
	require.NoError(t, err)
	require.True(t, outcomes[0].Success)
	paymentID := *outcomes[0].PaymentID

	// A stray log row for the payment makes the automatic log fail.
	require.NoError(t, f.db.Create(&models.DistributionLog{
		PaymentID:          paymentID,
		StudentName:        "Ana Reyes",
		Amount:             5000,
		DistributionStatus: models.DistributionStatusDistributed,
		BatchNumber:        "BATCH-STRAY",
	}).Error)

	result, err := svc.ProcessPayment(f.ctx, staff(), PaymentRef(paymentID), "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.Nil(t, result.DistributionLog)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "distribution log")
	assert.Equal(t, models.ApplicationStatusGrantsDisbursed, f.reload(app.ID).Status)
}

func TestCreateFromApplicationsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	ben := f.student(f.school.ID, "Ben", "Cruz")
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApproved, 5000)
	legacy := f.application(ben, models.ApplicationStatusApproved, 7000)
	pending := f.application(ben, models.ApplicationStatusApprovedPendingVerification, 7000)
	f.payment(models.Payment{StudentName: "Ben Cruz", StudentNumber: ben.StudentNumber, Amount: 7000, Status: models.PaymentStatusPending})

	outcomes, err := svc.CreateFromApplications(f.ctx, staff(), CreatePaymentsInput{
		ApplicationIDs: []uint{app.ID, app.ID, legacy.ID, pending.ID, 999},
		ScheduledDate:  time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, KindConflict, outcomes[1].Code)
	assert.Equal(t, KindStateGuard, outcomes[2].Code)
	assert.Equal(t, KindNotFound, outcomes[3].Code)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, *outcomes[0].PaymentID).Error)
	assert.Equal(t, models.PaymentStatusScheduled, payment.Status)
	assert.Regexp(t, `^PAY-\d{8}-[0-9A-F]{10}$`, payment.Reference)
	assert.Equal(t, models.ApplicationStatusGrantsProcessing, f.reload(app.ID).Status)

	again, err := svc.CreateFromApplications(f.ctx, staff(), CreatePaymentsInput{ApplicationIDs: []uint{app.ID}})
	require.NoError(t, err)
	assert.False(t, again[0].Success)
	assert.Equal(t, KindStateGuard, again[0].Code)

	_, err = svc.CreateFromApplications(f.ctx, staff(), CreatePaymentsInput{ApplicationIDs: []uint{app.ID}, ScheduledDate: "next week"})
	requireKind(t, err, KindValidation)
}

func TestFailedPaymentCanBeRetried(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApproved, 5000)

	outcomes, err := svc.CreateFromApplications(f.ctx, staff(), CreatePaymentsInput{ApplicationIDs: []uint{app.ID}})
	require.NoError(t, err)
	first := *outcomes[0].PaymentID

	failed, err := svc.MarkPaymentFailed(f.ctx, staff(), first, "bank rejected account")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Nil(t, failed.ActiveKey)
	assert.Equal(t, models.ApplicationStatusPaymentFailed, f.reload(app.ID).Status)

	_, err = svc.CancelPayment(f.ctx, staff(), first, "duplicate")
	requireKind(t, err, KindStateGuard)

	retry, err := svc.CreateFromApplications(f.ctx, staff(), CreatePaymentsInput{ApplicationIDs: []uint{app.ID}})
	require.NoError(t, err)
	require.True(t, retry[0].Success, retry[0].Error)
	assert.NotEqual(t, first, *retry[0].PaymentID)

	_, err = svc.ProcessPayment(f.ctx, staff(), PaymentRef(*retry[0].PaymentID), "")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusGrantsDisbursed, f.reload(app.ID).Status)
}

func TestBulkProcessPartitionsSelection(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	ana := f.student(f.school.ID, "Ana", "Reyes")
	open := f.payment(models.Payment{StudentName: "Ana Reyes", StudentNumber: ana.StudentNumber, Amount: 100, Status: models.PaymentStatusPending})
	done := f.payment(models.Payment{StudentName: "Ana Reyes", StudentNumber: ana.StudentNumber, Amount: 200, Status: models.PaymentStatusCompleted})
	cancelled := f.payment(models.Payment{StudentName: "Ana Reyes", StudentNumber: ana.StudentNumber, Amount: 300, Status: models.PaymentStatusCancelled})

	result, err := svc.BulkProcess(f.ctx, staff(), []PayableRef{
		PaymentRef(open.ID),
		PaymentRef(open.ID),
		PaymentRef(done.ID),
		PendingApplicationRef(5),
		PaymentRef(cancelled.ID),
		PaymentRef(404),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, []PayableRef{PendingApplicationRef(5)}, result.RejectedSynthetic)
	assert.Equal(t, []PayableRef{PaymentRef(done.ID)}, result.RejectedCompleted)
	assert.Equal(t, 2, result.Failed)

	var reloaded models.Payment
	require.NoError(t, f.db.First(&reloaded, open.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, reloaded.Status)

	_, err = svc.BulkProcess(f.ctx, staff(), nil, "")
	requireKind(t, err, KindValidation)
}

func TestCancelApplicationRemovesItFromQueue(t *testing.T) {
	f := newFixture(t)
	svc := NewPaymentService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusApproved, 5000)
	busy := f.application(f.student(f.school.ID, "Ben", "Cruz"), models.ApplicationStatusApproved, 5000)

	_, err := svc.CancelApplication(f.ctx, staff(), app.ID, "")
	requireKind(t, err, KindValidation)

	cancelled, err := svc.CancelApplication(f.ctx, staff(), app.ID, "student withdrew")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusCancelled, cancelled.Status)

	refs, err := svc.PendingRefs(f.ctx, staff())
	require.NoError(t, err)
	assert.Equal(t, []PayableRef{PendingApplicationRef(busy.ID)}, refs)

	_, err = svc.CreateFromApplications(f.ctx, staff(), CreatePaymentsInput{ApplicationIDs: []uint{busy.ID}})
	require.NoError(t, err)
	_, err = svc.CancelApplication(f.ctx, staff(), busy.ID, "too late")
	requireKind(t, err, KindStateGuard)
}
