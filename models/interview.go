package models

import "time"

type InterviewType string

const (
	InterviewTypeInPerson InterviewType = "in_person"
	InterviewTypeOnline   InterviewType = "online"
	InterviewTypePhone    InterviewType = "phone"
)

func (t InterviewType) IsValid() bool {
	switch t {
	case InterviewTypeInPerson, InterviewTypeOnline, InterviewTypePhone:
		return true
	}
	return false
}

type InterviewStatus string

const (
	InterviewStatusScheduled   InterviewStatus = "scheduled"
	InterviewStatusRescheduled InterviewStatus = "rescheduled"
	InterviewStatusCompleted   InterviewStatus = "completed"
	InterviewStatusCancelled   InterviewStatus = "cancelled"
	InterviewStatusNoShow      InterviewStatus = "no_show"
)

// IsActive reports whether the schedule still holds its slot.
func (s InterviewStatus) IsActive() bool {
	return s == InterviewStatusScheduled || s == InterviewStatusRescheduled
}

type InterviewResult string

const (
	InterviewResultPassed        InterviewResult = "passed"
	InterviewResultFailed        InterviewResult = "failed"
	InterviewResultNeedsFollowup InterviewResult = "needs_followup"
)

func (r InterviewResult) IsValid() bool {
	switch r {
	case InterviewResultPassed, InterviewResultFailed, InterviewResultNeedsFollowup:
		return true
	}
	return false
}

type Recommendation string

const (
	RecommendationRecommended    Recommendation = "recommended"
	RecommendationNotRecommended Recommendation = "not_recommended"
	RecommendationNeedsFollowup  Recommendation = "needs_followup"
)

func (r Recommendation) IsValid() bool {
	switch r {
	case RecommendationRecommended, RecommendationNotRecommended, RecommendationNeedsFollowup:
		return true
	}
	return false
}

// InterviewSchedule books one interviewer slot for an application.
//
// SlotKey and ActiveApplicationKey are populated only while the schedule is
// scheduled or rescheduled; both carry unique indexes so the database rejects a
// second active booking of the same slot or application.
type InterviewSchedule struct {
	ID                   uint             `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID        uint             `gorm:"column:application_id;index" json:"application_id"`
	StudentID            uint             `gorm:"column:student_id;index" json:"student_id"`
	InterviewerID        uint             `gorm:"column:interviewer_id;index" json:"interviewer_id"`
	InterviewerName      string           `gorm:"column:interviewer_name;size:150" json:"interviewer_name"`
	InterviewDate        string           `gorm:"column:interview_date;size:10;index" json:"interview_date"`
	InterviewTime        string           `gorm:"column:interview_time;size:5" json:"interview_time"`
	InterviewType        InterviewType    `gorm:"column:interview_type;size:20" json:"interview_type"`
	Location             *string          `gorm:"column:location;size:255" json:"location,omitempty"`
	MeetingLink          *string          `gorm:"column:meeting_link;size:255" json:"meeting_link,omitempty"`
	Status               InterviewStatus  `gorm:"column:status;size:20;index" json:"status"`
	Result               *InterviewResult `gorm:"column:result;size:20" json:"result,omitempty"`
	Notes                *string          `gorm:"column:notes" json:"notes,omitempty"`
	RescheduleReason     *string          `gorm:"column:reschedule_reason" json:"reschedule_reason,omitempty"`
	CancellationReason   *string          `gorm:"column:cancellation_reason" json:"cancellation_reason,omitempty"`
	SlotKey              *string          `gorm:"column:slot_key;size:120;uniqueIndex" json:"-"`
	ActiveApplicationKey *string          `gorm:"column:active_application_key;size:40;uniqueIndex" json:"-"`
	ScheduledBy          uint             `gorm:"column:scheduled_by" json:"scheduled_by"`
	CompletedAt          *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt            time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"column:updated_at" json:"updated_at"`

	Application *Application         `gorm:"foreignKey:ApplicationID" json:"application,omitempty"`
	Evaluation  *InterviewEvaluation `gorm:"foreignKey:ScheduleID" json:"evaluation,omitempty"`
}

func (InterviewSchedule) TableName() string {
	return "interview_schedules"
}

// InterviewEvaluation is the single scored evaluation recorded for a schedule.
type InterviewEvaluation struct {
	ID                    uint            `gorm:"primaryKey;column:id" json:"id"`
	ScheduleID            uint            `gorm:"column:schedule_id;uniqueIndex" json:"schedule_id"`
	ApplicationID         uint            `gorm:"column:application_id;index" json:"application_id"`
	StudentID             uint            `gorm:"column:student_id;index" json:"student_id"`
	InterviewerID         uint            `gorm:"column:interviewer_id;index" json:"interviewer_id"`
	CommunicationScore    int             `gorm:"column:communication_score" json:"communication_score"`
	AcademicScore         int             `gorm:"column:academic_score" json:"academic_score"`
	MotivationScore       int             `gorm:"column:motivation_score" json:"motivation_score"`
	FinancialNeedScore    int             `gorm:"column:financial_need_score" json:"financial_need_score"`
	OverallRecommendation Recommendation  `gorm:"column:overall_recommendation;size:20" json:"overall_recommendation"`
	InterviewResult       InterviewResult `gorm:"column:interview_result;size:20" json:"interview_result"`
	Remarks               *string         `gorm:"column:remarks" json:"remarks,omitempty"`
	EvaluatedBy           uint            `gorm:"column:evaluated_by" json:"evaluated_by"`
	CreatedAt             time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (InterviewEvaluation) TableName() string {
	return "interview_evaluations"
}

// TotalScore sums the four criterion scores.
func (e InterviewEvaluation) TotalScore() int {
	return e.CommunicationScore + e.AcademicScore + e.MotivationScore + e.FinancialNeedScore
}
