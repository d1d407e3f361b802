package controllers

import (
	"net/http"

	"scholarship-aid-api/models"
	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

func GetInterviews(c *gin.Context) {
	page, size := pageQuery(c)
	filter := services.InterviewFilter{
		ApplicationID: optionalUintQuery(c, "application_id"),
		StudentID:     optionalUintQuery(c, "student_id"),
		InterviewerID: optionalUintQuery(c, "interviewer_id"),
		Status:        c.Query("status"),
		Date:          c.Query("date"),
		Type:          c.Query("type"),
		Page:          page,
		PageSize:      size,
	}
	schedules, total, err := services.NewInterviewService(nil).List(c.Request.Context(), currentAuth(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, schedules, total, page, size)
}

func GetInterview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	schedule, err := services.NewInterviewService(nil).Get(c.Request.Context(), currentAuth(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", schedule)
}

// GetAvailableSlots: GET /interviews/available-slots?date=YYYY-MM-DD&type=online&interviewer_id=7
func GetAvailableSlots(c *gin.Context) {
	date := c.Query("date")
	interviewType := models.InterviewType(c.Query("type"))
	slots, err := services.NewInterviewService(nil).AvailableSlots(c.Request.Context(), date, interviewType, optionalUintQuery(c, "interviewer_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"date":  date,
			"type":  interviewType,
			"slots": slots,
		},
	})
}

// GetInterviewCalendar: GET /interviews/calendar?month=YYYY-MM
func GetInterviewCalendar(c *gin.Context) {
	days, err := services.NewInterviewService(nil).Calendar(c.Request.Context(), currentAuth(c), c.Query("month"), optionalUintQuery(c, "interviewer_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", days)
}

// ScheduleInterview books a slot for an application under review
func ScheduleInterview(c *gin.Context) {
	var req services.BookInterviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	schedule, err := services.NewInterviewService(nil).Book(c.Request.Context(), currentAuth(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Interview scheduled successfully",
		"data":    schedule,
	})
}

func RescheduleInterview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.RescheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	schedule, err := services.NewInterviewService(nil).Reschedule(c.Request.Context(), currentAuth(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Interview rescheduled", schedule)
}

func CompleteInterview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.CompleteInterviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	schedule, err := services.NewInterviewService(nil).Complete(c.Request.Context(), currentAuth(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Interview completed", schedule)
}

func CancelInterview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	schedule, err := services.NewInterviewService(nil).Cancel(c.Request.Context(), currentAuth(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Interview cancelled", schedule)
}

func MarkInterviewNoShow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	schedule, err := services.NewInterviewService(nil).MarkNoShow(c.Request.Context(), currentAuth(c), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Interview marked as no-show", schedule)
}
