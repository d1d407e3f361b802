package controllers

import (
	"net/http"

	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

func GetDistributionLogs(c *gin.Context) {
	page, size := pageQuery(c)
	filter := services.DistributionFilter{
		BatchNumber:   c.Query("batch_number"),
		SchoolID:      optionalUintQuery(c, "school_id"),
		StudentNumber: c.Query("student_number"),
		Status:        c.Query("status"),
		From:          c.Query("from"),
		To:            c.Query("to"),
		Page:          page,
		PageSize:      size,
	}
	logs, total, err := services.NewDistributionService(nil).List(c.Request.Context(), currentAuth(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, logs, total, page, size)
}

// CreateDistributionLogs writes a batch from completed payments
func CreateDistributionLogs(c *gin.Context) {
	var req services.CreateLogsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := services.NewDistributionService(nil).CreateLogsFromPayments(c.Request.Context(), currentAuth(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Distribution batch recorded",
		"data":    result,
	})
}

func GetDistributionStatistics(c *gin.Context) {
	stats, err := services.NewDistributionService(nil).Statistics(c.Request.Context(), currentAuth(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", stats)
}

func GetDistributionBatch(c *gin.Context) {
	report, err := services.NewDistributionService(nil).CheckBatch(c.Request.Context(), currentAuth(c), c.Param("batch"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", report)
}
