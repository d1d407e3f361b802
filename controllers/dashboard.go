package controllers

import (
	"net/http"
	"time"

	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

// GetDashboardStats returns the counters shown on the caller's landing page.
// Office users get the whole pipeline; school representatives get the
// verification and distribution figures of their own school.
func GetDashboardStats(c *gin.Context) {
	auth := currentAuth(c)
	ctx := c.Request.Context()
	stats := gin.H{"current_date": time.Now().Format("2006-01-02")}

	switch {
	case auth.IsSchoolRep():
		verifications, err := services.NewVerificationService(nil).Statistics(ctx, auth)
		if err != nil {
			respondError(c, err)
			return
		}
		stats["verifications"] = verifications
	case auth.Role == services.RoleAdmin || auth.Role == services.RoleStaff:
		summary, err := services.Summarize(ctx, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		stats["pipeline"] = summary
	default:
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Insufficient permissions"})
		return
	}

	distributions, err := services.NewDistributionService(nil).Statistics(ctx, auth)
	if err != nil {
		respondError(c, err)
		return
	}
	stats["distributions"] = distributions

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}
