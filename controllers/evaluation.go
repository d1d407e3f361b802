package controllers

import (
	"net/http"

	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

func GetEvaluations(c *gin.Context) {
	page, size := pageQuery(c)
	filter := services.EvaluationFilter{
		ApplicationID: optionalUintQuery(c, "application_id"),
		StudentID:     optionalUintQuery(c, "student_id"),
		InterviewerID: optionalUintQuery(c, "interviewer_id"),
		Page:          page,
		PageSize:      size,
	}
	evaluations, total, err := services.NewEvaluationService(nil).List(c.Request.Context(), currentAuth(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, evaluations, total, page, size)
}

func GetEvaluation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	evaluation, err := services.NewEvaluationService(nil).Get(c.Request.Context(), currentAuth(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", evaluation)
}

// CreateEvaluation scores an interview; one evaluation per schedule
func CreateEvaluation(c *gin.Context) {
	var req services.EvaluationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	evaluation, err := services.NewEvaluationService(nil).Create(c.Request.Context(), currentAuth(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Evaluation recorded",
		"data":    evaluation,
	})
}

func UpdateEvaluation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.UpdateEvaluationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	evaluation, err := services.NewEvaluationService(nil).Update(c.Request.Context(), currentAuth(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Evaluation updated", evaluation)
}
