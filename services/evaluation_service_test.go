package services

import (
	"testing"

	"scholarship-aid-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluationInput(scheduleID uint, rec models.Recommendation) EvaluationInput {
	return EvaluationInput{
		ScheduleID:            scheduleID,
		CommunicationScore:    4,
		AcademicScore:         5,
		MotivationScore:       4,
		FinancialNeedScore:    3,
		OverallRecommendation: rec,
		Remarks:               "clear goals",
	}
}

func TestEvaluationCompletesActiveInterview(t *testing.T) {
	f := newFixture(t)
	interviews := NewInterviewService(f.db)
	evaluations := NewEvaluationService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)

	schedule, err := interviews.Book(f.ctx, staff(), bookInput(app.ID, "10:00"))
	require.NoError(t, err)

	evaluation, err := evaluations.Create(f.ctx, staff(), evaluationInput(schedule.ID, models.RecommendationRecommended))
	require.NoError(t, err)
	assert.Equal(t, models.InterviewResultPassed, evaluation.InterviewResult)
	assert.Equal(t, 16, evaluation.TotalScore())

	done, err := interviews.Get(f.ctx, staff(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InterviewStatusCompleted, done.Status)
	require.NotNil(t, done.Evaluation)
	assert.Equal(t, evaluation.ID, done.Evaluation.ID)
	assert.Equal(t, models.ApplicationStatusInterviewCompleted, f.reload(app.ID).Status)

	_, err = evaluations.Create(f.ctx, staff(), evaluationInput(schedule.ID, models.RecommendationRecommended))
	requireKind(t, err, KindConflict)
}

func TestNotRecommendedEvaluationRejectsApplication(t *testing.T) {
	f := newFixture(t)
	interviews := NewInterviewService(f.db)
	evaluations := NewEvaluationService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)

	schedule, err := interviews.Book(f.ctx, staff(), bookInput(app.ID, "10:00"))
	require.NoError(t, err)
	_, err = evaluations.Create(f.ctx, staff(), evaluationInput(schedule.ID, models.RecommendationNotRecommended))
	require.NoError(t, err)

	rejected := f.reload(app.ID)
	assert.Equal(t, models.ApplicationStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, notRecommendedReason, *rejected.RejectionReason)
}

func TestEvaluatingCompletedInterviewOnlyRecords(t *testing.T) {
	f := newFixture(t)
	interviews := NewInterviewService(f.db)
	evaluations := NewEvaluationService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)

	schedule, err := interviews.Book(f.ctx, staff(), bookInput(app.ID, "10:00"))
	require.NoError(t, err)
	_, err = interviews.Complete(f.ctx, staff(), schedule.ID, CompleteInterviewInput{Result: models.InterviewResultPassed})
	require.NoError(t, err)
	before := len(f.history(app.ID))

	_, err = evaluations.Create(f.ctx, staff(), evaluationInput(schedule.ID, models.RecommendationRecommended))
	require.NoError(t, err)
	assert.Len(t, f.history(app.ID), before)
	assert.Equal(t, models.ApplicationStatusInterviewCompleted, f.reload(app.ID).Status)
}

func TestEvaluationGuardsAndValidation(t *testing.T) {
	f := newFixture(t)
	interviews := NewInterviewService(f.db)
	evaluations := NewEvaluationService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)

	schedule, err := interviews.Book(f.ctx, staff(), bookInput(app.ID, "10:00"))
	require.NoError(t, err)

	input := evaluationInput(schedule.ID, models.RecommendationRecommended)
	input.AcademicScore = 6
	_, err = evaluations.Create(f.ctx, staff(), input)
	requireKind(t, err, KindValidation)

	_, err = interviews.MarkNoShow(f.ctx, staff(), schedule.ID, "did not attend")
	require.NoError(t, err)
	_, err = evaluations.Create(f.ctx, staff(), evaluationInput(schedule.ID, models.RecommendationRecommended))
	requireKind(t, err, KindStateGuard)

	_, err = evaluations.Create(f.ctx, staff(), evaluationInput(9999, models.RecommendationRecommended))
	requireKind(t, err, KindNotFound)
}

func TestUpdateEvaluationChangesScoresOnly(t *testing.T) {
	f := newFixture(t)
	interviews := NewInterviewService(f.db)
	evaluations := NewEvaluationService(f.db)
	app := f.application(f.student(f.school.ID, "Ana", "Reyes"), models.ApplicationStatusUnderReview, 5000)
	schedule, err := interviews.Book(f.ctx, staff(), bookInput(app.ID, "10:00"))
	require.NoError(t, err)
	created, err := evaluations.Create(f.ctx, staff(), evaluationInput(schedule.ID, models.RecommendationNeedsFollowup))
	require.NoError(t, err)

	score := 2
	remarks := "needs transcript"
	updated, err := evaluations.Update(f.ctx, staff(), created.ID, UpdateEvaluationInput{MotivationScore: &score, Remarks: &remarks})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MotivationScore)
	assert.Equal(t, models.RecommendationNeedsFollowup, updated.OverallRecommendation)
	require.NotNil(t, updated.Remarks)
	assert.Equal(t, remarks, *updated.Remarks)

	_, err = evaluations.Get(f.ctx, schoolRep(f.other.ID), created.ID)
	requireKind(t, err, KindNotFound)
	_, err = evaluations.Get(f.ctx, schoolRep(f.school.ID), created.ID)
	require.NoError(t, err)
}
