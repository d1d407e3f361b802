package services

import (
	"context"

	"scholarship-aid-api/config"
	"scholarship-aid-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type EvaluationService struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewEvaluationService(db *gorm.DB) *EvaluationService {
	if db == nil {
		db = config.DB
	}
	return &EvaluationService{db: db, log: config.Logger().WithField("component", "evaluations")}
}

type EvaluationInput struct {
	ScheduleID            uint                  `json:"schedule_id" validate:"required"`
	CommunicationScore    int                   `json:"communication_score" validate:"min=1,max=5"`
	AcademicScore         int                   `json:"academic_score" validate:"min=1,max=5"`
	MotivationScore       int                   `json:"motivation_score" validate:"min=1,max=5"`
	FinancialNeedScore    int                   `json:"financial_need_score" validate:"min=1,max=5"`
	OverallRecommendation models.Recommendation `json:"overall_recommendation" validate:"required,oneof=recommended not_recommended needs_followup"`
	Remarks               string                `json:"remarks"`
}

// UpdateEvaluationInput changes scores and remarks only; the recommendation
// is fixed once forwarded to the application.
type UpdateEvaluationInput struct {
	CommunicationScore *int    `json:"communication_score" validate:"omitempty,min=1,max=5"`
	AcademicScore      *int    `json:"academic_score" validate:"omitempty,min=1,max=5"`
	MotivationScore    *int    `json:"motivation_score" validate:"omitempty,min=1,max=5"`
	FinancialNeedScore *int    `json:"financial_need_score" validate:"omitempty,min=1,max=5"`
	Remarks            *string `json:"remarks"`
}

type EvaluationFilter struct {
	ApplicationID *uint
	StudentID     *uint
	InterviewerID *uint
	Page          int
	PageSize      int
}

// Create records the single evaluation of a schedule. An active schedule is
// completed with the derived result and the recommendation is forwarded to
// the application in the same transaction.
func (s *EvaluationService) Create(ctx context.Context, auth AuthContext, input EvaluationInput) (*models.InterviewEvaluation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var evaluation models.InterviewEvaluation
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		schedule, err := lockSchedule(tx, scheduleScope(tx, auth), input.ScheduleID)
		if err != nil {
			return err
		}
		switch schedule.Status {
		case models.InterviewStatusCancelled, models.InterviewStatusNoShow:
			return StateGuardError("cannot evaluate an interview that is %s", schedule.Status)
		}

		var existing int64
		if err := tx.Model(&models.InterviewEvaluation{}).Where("schedule_id = ?", schedule.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ConflictError("interview %d has already been evaluated", schedule.ID)
		}

		result := recommendationResult(input.OverallRecommendation)
		ts := now()
		evaluation = models.InterviewEvaluation{
			ScheduleID:            schedule.ID,
			ApplicationID:         schedule.ApplicationID,
			StudentID:             schedule.StudentID,
			InterviewerID:         schedule.InterviewerID,
			CommunicationScore:    input.CommunicationScore,
			AcademicScore:         input.AcademicScore,
			MotivationScore:       input.MotivationScore,
			FinancialNeedScore:    input.FinancialNeedScore,
			OverallRecommendation: input.OverallRecommendation,
			InterviewResult:       result,
			Remarks:               optionalText(input.Remarks),
			EvaluatedBy:           auth.UserID,
			CreatedAt:             ts,
			UpdatedAt:             ts,
		}
		if err := tx.Create(&evaluation).Error; err != nil {
			if isDuplicateKey(err) {
				return ConflictError("interview %d has already been evaluated", schedule.ID)
			}
			return err
		}

		if !schedule.Status.IsActive() {
			return nil
		}
		if err := completeSchedule(tx, schedule, result, nil); err != nil {
			return err
		}
		return completeInterview(tx, schedule.ApplicationID, input.OverallRecommendation, auth, evaluation.Remarks)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"evaluation_id":  evaluation.ID,
		"schedule_id":    evaluation.ScheduleID,
		"recommendation": evaluation.OverallRecommendation,
		"total_score":    evaluation.TotalScore(),
	}).Info("interview evaluated")
	return &evaluation, nil
}

func (s *EvaluationService) Update(ctx context.Context, auth AuthContext, id uint, input UpdateEvaluationInput) (*models.InterviewEvaluation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var evaluation models.InterviewEvaluation
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		if err := evaluationScope(tx, auth).Where("interview_evaluations.id = ?", id).First(&evaluation).Error; err != nil {
			return notFoundOr(err, "evaluation", id)
		}
		updates := map[string]interface{}{"updated_at": now()}
		if input.CommunicationScore != nil {
			updates["communication_score"] = *input.CommunicationScore
		}
		if input.AcademicScore != nil {
			updates["academic_score"] = *input.AcademicScore
		}
		if input.MotivationScore != nil {
			updates["motivation_score"] = *input.MotivationScore
		}
		if input.FinancialNeedScore != nil {
			updates["financial_need_score"] = *input.FinancialNeedScore
		}
		if input.Remarks != nil {
			updates["remarks"] = optionalText(*input.Remarks)
		}
		if err := tx.Model(&models.InterviewEvaluation{}).Where("id = ?", evaluation.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&evaluation, evaluation.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &evaluation, nil
}

func (s *EvaluationService) Get(ctx context.Context, auth AuthContext, id uint) (*models.InterviewEvaluation, error) {
	var evaluation models.InterviewEvaluation
	if err := evaluationScope(s.db.WithContext(ctx), auth).Where("interview_evaluations.id = ?", id).First(&evaluation).Error; err != nil {
		return nil, notFoundOr(err, "evaluation", id)
	}
	return &evaluation, nil
}

func (s *EvaluationService) List(ctx context.Context, auth AuthContext, filter EvaluationFilter) ([]models.InterviewEvaluation, int64, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)
	q := evaluationScope(s.db.WithContext(ctx).Model(&models.InterviewEvaluation{}), auth)
	if filter.ApplicationID != nil {
		q = q.Where("interview_evaluations.application_id = ?", *filter.ApplicationID)
	}
	if filter.StudentID != nil {
		q = q.Where("interview_evaluations.student_id = ?", *filter.StudentID)
	}
	if filter.InterviewerID != nil {
		q = q.Where("interview_evaluations.interviewer_id = ?", *filter.InterviewerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var evaluations []models.InterviewEvaluation
	if err := q.Order("interview_evaluations.created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&evaluations).Error; err != nil {
		return nil, 0, err
	}
	return evaluations, total, nil
}

func scheduleScope(db *gorm.DB, auth AuthContext) *gorm.DB {
	if !auth.IsSchoolRep() {
		return db
	}
	db = db.Joins("JOIN applications ON applications.id = interview_schedules.application_id")
	return auth.Scope(db, "applications.school_id")
}

func evaluationScope(db *gorm.DB, auth AuthContext) *gorm.DB {
	if !auth.IsSchoolRep() {
		return db
	}
	db = db.Joins("JOIN applications ON applications.id = interview_evaluations.application_id")
	return auth.Scope(db, "applications.school_id")
}
