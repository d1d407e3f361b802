package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"scholarship-aid-api/config"
	"scholarship-aid-api/metrics"
	"scholarship-aid-api/models"
	"scholarship-aid-api/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	slotDayStart = 9 * 60
	slotDayEnd   = 17 * 60
	slotLength   = 30
)

// notRecommendedReason is recorded when an interview ends in rejection.
const notRecommendedReason = "not recommended after interview evaluation"

var activeInterviewStatuses = []string{
	string(models.InterviewStatusScheduled),
	string(models.InterviewStatusRescheduled),
}

// SlotGrid returns the fixed 30-minute slot start times between 09:00 and 17:00.
func SlotGrid() []string {
	slots := make([]string, 0, (slotDayEnd-slotDayStart)/slotLength)
	for m := slotDayStart; m+slotLength <= slotDayEnd; m += slotLength {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}

func isGridSlot(clock string) bool {
	for _, slot := range SlotGrid() {
		if slot == clock {
			return true
		}
	}
	return false
}

func slotKey(interviewerID uint, date, clock string, interviewType models.InterviewType) string {
	return fmt.Sprintf("%d|%s|%s|%s", interviewerID, date, clock, interviewType)
}

type InterviewService struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewInterviewService(db *gorm.DB) *InterviewService {
	if db == nil {
		db = config.DB
	}
	return &InterviewService{db: db, log: config.Logger().WithField("component", "interviews")}
}

type InterviewFilter struct {
	ApplicationID *uint
	StudentID     *uint
	InterviewerID *uint
	Status        string
	Date          string
	Type          string
	Page          int
	PageSize      int
}

type BookInterviewInput struct {
	ApplicationID   uint                 `json:"application_id" validate:"required"`
	InterviewerID   uint                 `json:"interviewer_id" validate:"required"`
	InterviewerName string               `json:"interviewer_name" validate:"required,max=150"`
	Date            string               `json:"interview_date" validate:"required"`
	Time            string               `json:"interview_time" validate:"required"`
	Type            models.InterviewType `json:"interview_type" validate:"required,oneof=in_person online phone"`
	Location        string               `json:"location" validate:"max=255"`
	MeetingLink     string               `json:"meeting_link" validate:"max=255"`
	Notes           string               `json:"notes"`
}

type RescheduleInput struct {
	Date   string `json:"interview_date" validate:"required"`
	Time   string `json:"interview_time" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

type CompleteInterviewInput struct {
	Result models.InterviewResult `json:"result" validate:"required,oneof=passed failed needs_followup"`
	Notes  string                 `json:"notes"`
}

// CalendarDay groups the interviews of one date.
type CalendarDay struct {
	Date       string                     `json:"date"`
	Interviews []models.InterviewSchedule `json:"interviews"`
}

func validateSlot(date, clock string) error {
	fields := map[string]string{}
	if !utils.ValidDate(date) {
		fields["interview_date"] = "must be YYYY-MM-DD"
	}
	if !utils.ValidClock(clock) || !isGridSlot(clock) {
		fields["interview_time"] = "must be a 30-minute slot between 09:00 and 16:30"
	}
	if len(fields) > 0 {
		return ValidationError("invalid interview slot", fields)
	}
	return nil
}

// AvailableSlots returns the grid slots on date not held by an active
// schedule of the same type (and interviewer, when given).
func (s *InterviewService) AvailableSlots(ctx context.Context, date string, interviewType models.InterviewType, interviewerID *uint) ([]string, error) {
	if !utils.ValidDate(date) {
		return nil, ValidationError("invalid date", map[string]string{"date": "must be YYYY-MM-DD"})
	}
	if !interviewType.IsValid() {
		return nil, ValidationError("invalid interview type", map[string]string{"type": "must be one of: in_person online phone"})
	}
	return availableSlots(s.db.WithContext(ctx), date, interviewType, interviewerID, 0)
}

func availableSlots(db *gorm.DB, date string, interviewType models.InterviewType, interviewerID *uint, excludeID uint) ([]string, error) {
	q := db.Model(&models.InterviewSchedule{}).
		Where("interview_date = ? AND interview_type = ? AND status IN ?", date, string(interviewType), activeInterviewStatuses)
	if interviewerID != nil {
		q = q.Where("interviewer_id = ?", *interviewerID)
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var booked []string
	if err := q.Pluck("interview_time", &booked).Error; err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}

	available := make([]string, 0, len(SlotGrid()))
	for _, slot := range SlotGrid() {
		if _, ok := taken[slot]; !ok {
			available = append(available, slot)
		}
	}
	return available, nil
}

func slotIsFree(db *gorm.DB, date, clock string, interviewType models.InterviewType, interviewerID uint, excludeID uint) (bool, error) {
	free, err := availableSlots(db, date, interviewType, &interviewerID, excludeID)
	if err != nil {
		return false, err
	}
	for _, slot := range free {
		if slot == clock {
			return true, nil
		}
	}
	return false, nil
}

// Book schedules an interview. The availability check and the insert run in
// one transaction and the slot_key unique index rejects a concurrent booking
// that slipped past the check.
func (s *InterviewService) Book(ctx context.Context, auth AuthContext, input BookInterviewInput) (*models.InterviewSchedule, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := validateSlot(input.Date, input.Time); err != nil {
		return nil, err
	}

	var schedule models.InterviewSchedule
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		app, err := lockApplication(tx, auth, input.ApplicationID)
		if err != nil {
			return err
		}

		switch app.Status {
		case models.ApplicationStatusUnderReview:
			infected, err := countInfectedDocuments(tx, app.ID)
			if err != nil {
				return err
			}
			if err := canProceedToInterview(app, infected); err != nil {
				return err
			}
			if err := applyTransition(tx, app, transitionRequest{
				Action:   ActionScheduleInterview,
				To:       models.ApplicationStatusInterviewScheduled,
				Actor:    auth,
				Notes:    optionalText(input.Notes),
				Metadata: map[string]interface{}{"interview_date": input.Date, "interview_time": input.Time},
			}); err != nil {
				return err
			}
		case models.ApplicationStatusInterviewScheduled:
			// Rebooking after a cancelled or missed interview.
		default:
			return StateGuardError("cannot schedule an interview for an application in status %s", app.Status)
		}

		var active int64
		if err := tx.Model(&models.InterviewSchedule{}).
			Where("application_id = ? AND status IN ?", app.ID, activeInterviewStatuses).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ConflictError("application %d already has an active interview", app.ID)
		}

		free, err := slotIsFree(tx, input.Date, input.Time, input.Type, input.InterviewerID, 0)
		if err != nil {
			return err
		}
		if !free {
			return ConflictError("slot %s %s (%s) is already booked for interviewer %d", input.Date, input.Time, input.Type, input.InterviewerID)
		}

		key := slotKey(input.InterviewerID, input.Date, input.Time, input.Type)
		appKey := applicationLockKey(app.ID)
		ts := now()
		schedule = models.InterviewSchedule{
			ApplicationID:        app.ID,
			StudentID:            app.StudentID,
			InterviewerID:        input.InterviewerID,
			InterviewerName:      utils.SanitizeInput(input.InterviewerName),
			InterviewDate:        input.Date,
			InterviewTime:        input.Time,
			InterviewType:        input.Type,
			Location:             optionalText(input.Location),
			MeetingLink:          optionalText(input.MeetingLink),
			Status:               models.InterviewStatusScheduled,
			Notes:                optionalText(input.Notes),
			SlotKey:              &key,
			ActiveApplicationKey: &appKey,
			ScheduledBy:          auth.UserID,
			CreatedAt:            ts,
			UpdatedAt:            ts,
		}
		if err := tx.Create(&schedule).Error; err != nil {
			if isDuplicateKey(err) {
				return ConflictError("slot %s %s (%s) is already booked for interviewer %d", input.Date, input.Time, input.Type, input.InterviewerID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		metrics.RecordInterviewBooking(bookingOutcome(err))
		return nil, err
	}

	metrics.RecordInterviewBooking("booked")
	s.log.WithFields(logrus.Fields{
		"schedule_id":    schedule.ID,
		"application_id": schedule.ApplicationID,
		"slot":           *schedule.SlotKey,
	}).Info("interview booked")
	return &schedule, nil
}

func bookingOutcome(err error) string {
	switch KindOf(err) {
	case KindConflict:
		return "conflict"
	case KindValidation, KindStateGuard, KindNotFound:
		return "rejected"
	}
	return "error"
}

// Reschedule moves an active interview to another free slot.
func (s *InterviewService) Reschedule(ctx context.Context, auth AuthContext, id uint, input RescheduleInput) (*models.InterviewSchedule, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := validateSlot(input.Date, input.Time); err != nil {
		return nil, err
	}
	reason := optionalText(input.Reason)
	if reason == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}

	return s.mutate(ctx, auth, id, func(tx *gorm.DB, schedule *models.InterviewSchedule) error {
		if !schedule.Status.IsActive() {
			return StateGuardError("cannot reschedule an interview that is %s", schedule.Status)
		}
		free, err := slotIsFree(tx, input.Date, input.Time, schedule.InterviewType, schedule.InterviewerID, schedule.ID)
		if err != nil {
			return err
		}
		if !free {
			return ConflictError("slot %s %s (%s) is already booked for interviewer %d", input.Date, input.Time, schedule.InterviewType, schedule.InterviewerID)
		}
		key := slotKey(schedule.InterviewerID, input.Date, input.Time, schedule.InterviewType)
		err = tx.Model(&models.InterviewSchedule{}).Where("id = ?", schedule.ID).Updates(map[string]interface{}{
			"interview_date":    input.Date,
			"interview_time":    input.Time,
			"status":            string(models.InterviewStatusRescheduled),
			"reschedule_reason": reason,
			"slot_key":          key,
			"updated_at":        now(),
		}).Error
		if isDuplicateKey(err) {
			return ConflictError("slot %s %s is already booked for interviewer %d", input.Date, input.Time, schedule.InterviewerID)
		}
		return err
	})
}

// Complete closes an active interview with a result and forwards it to the
// application state machine.
func (s *InterviewService) Complete(ctx context.Context, auth AuthContext, id uint, input CompleteInterviewInput) (*models.InterviewSchedule, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, schedule *models.InterviewSchedule) error {
		if !schedule.Status.IsActive() {
			return StateGuardError("cannot complete an interview that is %s", schedule.Status)
		}
		if err := completeSchedule(tx, schedule, input.Result, optionalText(input.Notes)); err != nil {
			return err
		}
		return completeInterview(tx, schedule.ApplicationID, resultRecommendation(input.Result), auth, optionalText(input.Notes))
	})
}

func (s *InterviewService) Cancel(ctx context.Context, auth AuthContext, id uint, reason string) (*models.InterviewSchedule, error) {
	reasonText := optionalText(reason)
	if reasonText == nil {
		return nil, ValidationError("reason is required", map[string]string{"reason": "is required"})
	}
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, schedule *models.InterviewSchedule) error {
		return releaseSchedule(tx, schedule, models.InterviewStatusCancelled, map[string]interface{}{
			"cancellation_reason": reasonText,
		})
	})
}

func (s *InterviewService) MarkNoShow(ctx context.Context, auth AuthContext, id uint, notes string) (*models.InterviewSchedule, error) {
	return s.mutate(ctx, auth, id, func(tx *gorm.DB, schedule *models.InterviewSchedule) error {
		return releaseSchedule(tx, schedule, models.InterviewStatusNoShow, map[string]interface{}{
			"notes": optionalText(notes),
		})
	})
}

func (s *InterviewService) Get(ctx context.Context, auth AuthContext, id uint) (*models.InterviewSchedule, error) {
	var schedule models.InterviewSchedule
	q := s.scoped(s.db.WithContext(ctx), auth).Preload("Evaluation").Where("interview_schedules.id = ?", id)
	if err := q.First(&schedule).Error; err != nil {
		return nil, notFoundOr(err, "interview", id)
	}
	return &schedule, nil
}

func (s *InterviewService) List(ctx context.Context, auth AuthContext, filter InterviewFilter) ([]models.InterviewSchedule, int64, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)
	q := s.scoped(s.db.WithContext(ctx).Model(&models.InterviewSchedule{}), auth)
	if filter.ApplicationID != nil {
		q = q.Where("interview_schedules.application_id = ?", *filter.ApplicationID)
	}
	if filter.StudentID != nil {
		q = q.Where("interview_schedules.student_id = ?", *filter.StudentID)
	}
	if filter.InterviewerID != nil {
		q = q.Where("interview_schedules.interviewer_id = ?", *filter.InterviewerID)
	}
	if filter.Status != "" {
		q = q.Where("interview_schedules.status = ?", strings.ToLower(strings.TrimSpace(filter.Status)))
	}
	if filter.Date != "" {
		q = q.Where("interview_schedules.interview_date = ?", filter.Date)
	}
	if filter.Type != "" {
		q = q.Where("interview_schedules.interview_type = ?", filter.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var schedules []models.InterviewSchedule
	if err := q.Preload("Evaluation").
		Order("interview_schedules.interview_date ASC, interview_schedules.interview_time ASC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&schedules).Error; err != nil {
		return nil, 0, err
	}
	return schedules, total, nil
}

// Calendar groups the interviews of a YYYY-MM month by date.
func (s *InterviewService) Calendar(ctx context.Context, auth AuthContext, month string, interviewerID *uint) ([]CalendarDay, error) {
	if !utils.ValidMonth(month) {
		return nil, ValidationError("invalid month", map[string]string{"month": "must be YYYY-MM"})
	}
	start, _ := time.Parse(utils.MonthLayout, month)
	end := start.AddDate(0, 1, -1)

	q := s.scoped(s.db.WithContext(ctx).Model(&models.InterviewSchedule{}), auth).
		Where("interview_schedules.interview_date BETWEEN ? AND ?", start.Format(utils.DateLayout), end.Format(utils.DateLayout))
	if interviewerID != nil {
		q = q.Where("interview_schedules.interviewer_id = ?", *interviewerID)
	}

	var schedules []models.InterviewSchedule
	if err := q.Order("interview_schedules.interview_date ASC, interview_schedules.interview_time ASC").
		Find(&schedules).Error; err != nil {
		return nil, err
	}

	byDate := make(map[string][]models.InterviewSchedule)
	for _, schedule := range schedules {
		byDate[schedule.InterviewDate] = append(byDate[schedule.InterviewDate], schedule)
	}
	days := make([]CalendarDay, 0, len(byDate))
	for date, items := range byDate {
		days = append(days, CalendarDay{Date: date, Interviews: items})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

func (s *InterviewService) scoped(db *gorm.DB, auth AuthContext) *gorm.DB {
	return scheduleScope(db, auth)
}

func (s *InterviewService) mutate(ctx context.Context, auth AuthContext, id uint, fn func(tx *gorm.DB, schedule *models.InterviewSchedule) error) (*models.InterviewSchedule, error) {
	var result models.InterviewSchedule
	err := transact(ctx, s.db, func(tx *gorm.DB) error {
		schedule, err := lockSchedule(tx, s.scoped(tx, auth), id)
		if err != nil {
			return err
		}
		if err := fn(tx, schedule); err != nil {
			return err
		}
		return tx.Preload("Evaluation").First(&result, schedule.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func lockSchedule(tx *gorm.DB, scoped *gorm.DB, id uint) (*models.InterviewSchedule, error) {
	var schedule models.InterviewSchedule
	if err := scoped.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("interview_schedules.id = ?", id).
		First(&schedule).Error; err != nil {
		return nil, notFoundOr(err, "interview", id)
	}
	return &schedule, nil
}

// completeSchedule marks a schedule completed and frees its slot.
func completeSchedule(tx *gorm.DB, schedule *models.InterviewSchedule, result models.InterviewResult, notes *string) error {
	updates := map[string]interface{}{
		"status":                 string(models.InterviewStatusCompleted),
		"result":                 string(result),
		"completed_at":           now(),
		"slot_key":               nil,
		"active_application_key": nil,
		"updated_at":             now(),
	}
	if notes != nil {
		updates["notes"] = notes
	}
	if err := tx.Model(&models.InterviewSchedule{}).Where("id = ?", schedule.ID).Updates(updates).Error; err != nil {
		return err
	}
	schedule.Status = models.InterviewStatusCompleted
	schedule.Result = &result
	return nil
}

// releaseSchedule ends an active schedule without a result.
func releaseSchedule(tx *gorm.DB, schedule *models.InterviewSchedule, status models.InterviewStatus, extra map[string]interface{}) error {
	if !schedule.Status.IsActive() {
		return StateGuardError("interview is already %s", schedule.Status)
	}
	updates := map[string]interface{}{
		"status":                 string(status),
		"slot_key":               nil,
		"active_application_key": nil,
		"updated_at":             now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	return tx.Model(&models.InterviewSchedule{}).Where("id = ?", schedule.ID).Updates(updates).Error
}

// completeInterview forwards an interview recommendation to the application.
func completeInterview(tx *gorm.DB, applicationID uint, rec models.Recommendation, actor AuthContext, notes *string) error {
	target, err := recommendationTarget(rec)
	if err != nil {
		return err
	}
	app, err := lockApplication(tx, SystemActor, applicationID)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if target == models.ApplicationStatusRejected {
		updates["rejection_reason"] = notRecommendedReason
		reason := notRecommendedReason
		notes = &reason
	}
	return applyTransition(tx, app, transitionRequest{
		Action:   ActionCompleteInterview,
		To:       target,
		Actor:    actor,
		Notes:    notes,
		Updates:  updates,
		Metadata: map[string]interface{}{"recommendation": string(rec)},
	})
}

func resultRecommendation(result models.InterviewResult) models.Recommendation {
	switch result {
	case models.InterviewResultPassed:
		return models.RecommendationRecommended
	case models.InterviewResultFailed:
		return models.RecommendationNotRecommended
	}
	return models.RecommendationNeedsFollowup
}

func recommendationResult(rec models.Recommendation) models.InterviewResult {
	switch rec {
	case models.RecommendationRecommended:
		return models.InterviewResultPassed
	case models.RecommendationNotRecommended:
		return models.InterviewResultFailed
	}
	return models.InterviewResultNeedsFollowup
}
