package routes

import (
	"scholarship-aid-api/config"
	"scholarship-aid-api/controllers"
	"scholarship-aid-api/middleware"
	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

var (
	officeRoles    = []services.Role{services.RoleAdmin, services.RoleStaff}
	reviewerRoles  = []services.Role{services.RoleAdmin, services.RoleStaff, services.RoleInterviewer}
	schoolRoles    = []services.Role{services.RoleAdmin, services.RoleStaff, services.RoleSchoolRep}
	applicantRoles = []services.Role{services.RoleAdmin, services.RoleStaff, services.RoleStudent}
	readerRoles    = []services.Role{
		services.RoleAdmin, services.RoleStaff, services.RoleInterviewer, services.RoleSchoolRep,
	}
)

func SetupRoutes(router *gin.Engine) {
	cfg := config.Current()
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"message": "Scholarship Aid API is running",
			})
		})

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(), limiter.Middleware())
		{
			applications := protected.Group("/applications")
			{
				applications.GET("", controllers.GetApplications)
				applications.GET("/:id", controllers.GetApplication)
				applications.GET("/:id/history", controllers.GetApplicationHistory)
				applications.GET("/:id/documents", controllers.GetApplicationDocuments)

				applications.POST("", middleware.RequireRole(applicantRoles...), controllers.CreateApplication)
				applications.PUT("/:id", middleware.RequireRole(applicantRoles...), controllers.UpdateApplication)
				applications.DELETE("/:id", middleware.RequireRole(applicantRoles...), controllers.DeleteApplication)
				applications.POST("/:id/submit", middleware.RequireRole(applicantRoles...), controllers.SubmitApplication)
				applications.POST("/:id/documents", middleware.RequireRole(applicantRoles...), controllers.AttachApplicationDocument)

				applications.POST("/:id/review", middleware.RequireRole(officeRoles...), controllers.ReviewApplication)
				applications.POST("/:id/flag", middleware.RequireRole(officeRoles...), controllers.FlagApplication)
				applications.POST("/:id/approve", middleware.RequireRole(officeRoles...), controllers.ApproveApplication)
				applications.POST("/:id/reject", middleware.RequireRole(officeRoles...), controllers.RejectApplication)
				applications.POST("/:id/process", middleware.RequireRole(officeRoles...), controllers.ProcessApplication)
				applications.POST("/:id/release", middleware.RequireRole(officeRoles...), controllers.ReleaseApplication)
				applications.POST("/:id/cancel", middleware.RequireRole(officeRoles...), controllers.CancelApplication)
			}

			interviews := protected.Group("/interviews")
			interviews.Use(middleware.RequireRole(readerRoles...))
			{
				interviews.GET("", controllers.GetInterviews)
				interviews.GET("/available-slots", controllers.GetAvailableSlots)
				interviews.GET("/calendar", controllers.GetInterviewCalendar)
				interviews.GET("/:id", controllers.GetInterview)

				interviews.POST("", middleware.RequireRole(officeRoles...), controllers.ScheduleInterview)
				interviews.POST("/:id/reschedule", middleware.RequireRole(officeRoles...), controllers.RescheduleInterview)
				interviews.POST("/:id/cancel", middleware.RequireRole(officeRoles...), controllers.CancelInterview)
				interviews.POST("/:id/no-show", middleware.RequireRole(reviewerRoles...), controllers.MarkInterviewNoShow)
				interviews.POST("/:id/complete", middleware.RequireRole(reviewerRoles...), controllers.CompleteInterview)
			}

			evaluations := protected.Group("/evaluations")
			evaluations.Use(middleware.RequireRole(readerRoles...))
			{
				evaluations.GET("", controllers.GetEvaluations)
				evaluations.GET("/:id", controllers.GetEvaluation)
				evaluations.POST("", middleware.RequireRole(reviewerRoles...), controllers.CreateEvaluation)
				evaluations.PUT("/:id", middleware.RequireRole(reviewerRoles...), controllers.UpdateEvaluation)
			}

			verifications := protected.Group("/verifications")
			verifications.Use(middleware.RequireRole(schoolRoles...))
			{
				verifications.GET("", controllers.GetVerifications)
				verifications.GET("/statistics", controllers.GetVerificationStatistics)
				verifications.GET("/:application_id", controllers.GetVerification)
				verifications.POST("/:application_id/proof", controllers.SubmitEnrollmentProof)
				verifications.POST("/:application_id/approve", controllers.ApproveVerification)
				verifications.POST("/:application_id/reject", controllers.RejectVerification)
				verifications.POST("/:application_id/flag", controllers.FlagVerification)
			}

			payments := protected.Group("/payments")
			payments.Use(middleware.RequireRole(officeRoles...))
			{
				payments.GET("", controllers.GetPaymentQueue)
				payments.POST("/bulk-process", controllers.BulkProcessPayments)
				payments.POST("/from-applications", controllers.CreatePaymentsFromApplications)
				payments.POST("/process-approved", controllers.ProcessApprovedApplications)
				payments.GET("/:ref", controllers.GetPayment)
				payments.POST("/:ref/process", controllers.ProcessPayment)
				payments.POST("/:ref/cancel", controllers.CancelPayment)
				payments.POST("/:ref/fail", controllers.MarkPaymentFailed)
			}
			protected.POST("/payable-applications/:id/cancel", middleware.RequireRole(officeRoles...), controllers.CancelPendingApplication)

			protected.GET("/dashboard", middleware.RequireRole(schoolRoles...), controllers.GetDashboardStats)

			distributions := protected.Group("/distribution-logs")
			{
				distributions.GET("", middleware.RequireRole(schoolRoles...), controllers.GetDistributionLogs)
				distributions.GET("/statistics", middleware.RequireRole(schoolRoles...), controllers.GetDistributionStatistics)
				distributions.GET("/batches/:batch", middleware.RequireRole(officeRoles...), controllers.GetDistributionBatch)
				distributions.POST("", middleware.RequireRole(officeRoles...), controllers.CreateDistributionLogs)
			}
		}
	}
}
