package controllers

import (
	"net/http"

	"scholarship-aid-api/models"
	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

type refsRequest struct {
	Refs  []services.PayableRef `json:"refs" binding:"required,min=1"`
	Notes string                `json:"notes"`
}

type processApprovedRequest struct {
	Refs          []services.PayableRef `json:"refs" binding:"required,min=1"`
	Method        models.PaymentMethod  `json:"payment_method"`
	ScheduledDate string                `json:"scheduled_date"`
}

func refParam(c *gin.Context) (services.PayableRef, bool) {
	ref, err := services.ParsePayableRef(c.Param("ref"))
	if err != nil {
		badRequest(c, err.Error())
		return services.PayableRef{}, false
	}
	return ref, true
}

// paymentIDParam accepts only refs to stored payments.
func paymentIDParam(c *gin.Context) (uint, bool) {
	ref, ok := refParam(c)
	if !ok {
		return 0, false
	}
	if ref.IsSynthetic() {
		respondError(c, services.StateGuardError("application %d has no payment yet", ref.ID))
		return 0, false
	}
	return ref.ID, true
}

// GetPaymentQueue returns stored payments plus approved applications that
// still need one.
func GetPaymentQueue(c *gin.Context) {
	page, size := pageQuery(c)
	filter := services.QueueFilter{
		Status:   c.Query("status"),
		Kind:     c.Query("kind"),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: size,
	}
	items, total, err := services.NewPaymentService(nil).Queue(c.Request.Context(), currentAuth(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, items, total, page, size)
}

func GetPayment(c *gin.Context) {
	ref, ok := refParam(c)
	if !ok {
		return
	}
	item, err := services.NewPaymentService(nil).Get(c.Request.Context(), currentAuth(c), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", item)
}

// ProcessPayment completes one payment. A failed distribution log comes back
// as a warning next to the completed payment.
func ProcessPayment(c *gin.Context) {
	ref, ok := refParam(c)
	if !ok {
		return
	}
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, err := services.NewPaymentService(nil).ProcessPayment(c.Request.Context(), currentAuth(c), ref, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	body := gin.H{
		"success": true,
		"message": "Payment processed successfully",
		"data":    result,
	}
	if len(result.Warnings) > 0 {
		body["warnings"] = result.Warnings
	}
	c.JSON(http.StatusOK, body)
}

func BulkProcessPayments(c *gin.Context) {
	var req refsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := services.NewPaymentService(nil).BulkProcess(c.Request.Context(), currentAuth(c), req.Refs, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Bulk processing finished", result)
}

func CreatePaymentsFromApplications(c *gin.Context) {
	var req services.CreatePaymentsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	outcomes, err := services.NewPaymentService(nil).CreateFromApplications(c.Request.Context(), currentAuth(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	created := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			created++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    outcomes,
		"created": created,
		"failed":  len(outcomes) - created,
	})
}

// ProcessApprovedApplications materializes and processes pending applications in one call
func ProcessApprovedApplications(c *gin.Context) {
	var req processApprovedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := services.NewPaymentService(nil).ProcessApprovedApplications(c.Request.Context(), currentAuth(c), req.Refs, req.Method, req.ScheduledDate)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Approved applications processed", result)
}

func CancelPayment(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	payment, err := services.NewPaymentService(nil).CancelPayment(c.Request.Context(), currentAuth(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Payment cancelled", payment)
}

func MarkPaymentFailed(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	payment, err := services.NewPaymentService(nil).MarkPaymentFailed(c.Request.Context(), currentAuth(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Payment marked as failed", payment)
}

// CancelPendingApplication withdraws an approved application from the payable queue
func CancelPendingApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := services.NewPaymentService(nil).CancelApplication(c.Request.Context(), currentAuth(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application cancelled", app)
}
