package controllers

import (
	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

// GetVerifications lists stored verifications together with applications
// still waiting for proof.
func GetVerifications(c *gin.Context) {
	page, size := pageQuery(c)
	filter := services.VerificationFilter{
		Status:   c.Query("status"),
		SchoolID: optionalUintQuery(c, "school_id"),
		Page:     page,
		PageSize: size,
	}
	entries, total, err := services.NewVerificationService(nil).List(c.Request.Context(), currentAuth(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, entries, total, page, size)
}

func GetVerification(c *gin.Context) {
	id, ok := idParam(c, "application_id")
	if !ok {
		return
	}
	entry, err := services.NewVerificationService(nil).Get(c.Request.Context(), currentAuth(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", entry)
}

func GetVerificationStatistics(c *gin.Context) {
	stats, err := services.NewVerificationService(nil).Statistics(c.Request.Context(), currentAuth(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", stats)
}

func SubmitEnrollmentProof(c *gin.Context) {
	id, ok := idParam(c, "application_id")
	if !ok {
		return
	}
	var req services.EnrollmentProofInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	record, err := services.NewVerificationService(nil).SubmitEnrollmentProof(c.Request.Context(), currentAuth(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Enrollment proof submitted", record)
}

func ApproveVerification(c *gin.Context) {
	id, ok := idParam(c, "application_id")
	if !ok {
		return
	}
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	record, err := services.NewVerificationService(nil).Approve(c.Request.Context(), currentAuth(c), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Enrollment verified", record)
}

func RejectVerification(c *gin.Context) {
	id, ok := idParam(c, "application_id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	record, err := services.NewVerificationService(nil).Reject(c.Request.Context(), currentAuth(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Enrollment verification rejected", record)
}

func FlagVerification(c *gin.Context) {
	id, ok := idParam(c, "application_id")
	if !ok {
		return
	}
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	record, err := services.NewVerificationService(nil).FlagForReview(c.Request.Context(), currentAuth(c), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Verification flagged for review", record)
}
