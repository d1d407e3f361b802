package controllers

import (
	"net/http"

	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

// GetApplications returns applications visible to the caller
func GetApplications(c *gin.Context) {
	page, size := pageQuery(c)
	filter := services.ApplicationFilter{
		Status:     c.Query("status"),
		SchoolID:   optionalUintQuery(c, "school_id"),
		StudentID:  optionalUintQuery(c, "student_id"),
		CategoryID: optionalUintQuery(c, "category_id"),
		Search:     c.Query("search"),
		Page:       page,
		PageSize:   size,
	}

	apps, total, err := services.NewApplicationService(nil).List(c.Request.Context(), currentAuth(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, apps, total, page, size)
}

// GetApplication returns single application by ID
func GetApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	app, err := services.NewApplicationService(nil).Get(c.Request.Context(), currentAuth(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"data":            app,
		"allowed_actions": services.AllowedActions(app.Status),
	})
}

// CreateApplication files a draft application
func CreateApplication(c *gin.Context) {
	var req services.CreateApplicationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	app, err := services.NewApplicationService(nil).Create(c.Request.Context(), currentAuth(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Application created successfully",
		"data":    app,
	})
}

func UpdateApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.UpdateApplicationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	app, err := services.NewApplicationService(nil).Update(c.Request.Context(), currentAuth(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application updated successfully", app)
}

// DeleteApplication removes a draft
func DeleteApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := services.NewApplicationService(nil).Delete(c.Request.Context(), currentAuth(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Application deleted successfully"})
}

func SubmitApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	app, err := services.NewApplicationService(nil).Submit(c.Request.Context(), currentAuth(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application submitted", app)
}

func ReviewApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	app, err := services.NewApplicationService(nil).Review(c.Request.Context(), currentAuth(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application moved to review", app)
}

func FlagApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := services.NewApplicationService(nil).FlagForCompliance(c.Request.Context(), currentAuth(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application flagged for compliance", app)
}

// ApproveApplication endorses with an approved amount
func ApproveApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.ApproveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	app, err := services.NewApplicationService(nil).Approve(c.Request.Context(), currentAuth(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application approved", app)
}

func RejectApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := services.NewApplicationService(nil).Reject(c.Request.Context(), currentAuth(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application rejected", app)
}

func ProcessApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := services.NewApplicationService(nil).Process(c.Request.Context(), currentAuth(c), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application is being processed", app)
}

func ReleaseApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := services.NewApplicationService(nil).Release(c.Request.Context(), currentAuth(c), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Grant released", app)
}

func CancelApplication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := services.NewApplicationService(nil).Cancel(c.Request.Context(), currentAuth(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Application cancelled", app)
}

// AttachApplicationDocument records a scanned upload reference
func AttachApplicationDocument(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.AttachDocumentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	doc, err := services.NewApplicationService(nil).AttachDocument(c.Request.Context(), currentAuth(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": doc})
}

func GetApplicationDocuments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	docs, err := services.NewApplicationService(nil).Documents(c.Request.Context(), currentAuth(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", docs)
}

func GetApplicationHistory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rows, err := services.NewApplicationService(nil).History(c.Request.Context(), currentAuth(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", rows)
}
