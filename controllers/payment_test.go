package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scholarship-aid-api/config"
	"scholarship-aid-api/models"
	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// newPaymentRouter points config.DB at an in-memory database holding one
// approved application and serves the payment routes as office staff.
func newPaymentRouter(t *testing.T) (*gin.Engine, models.Application) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	config.SetLogger(quiet)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	previous := config.DB
	config.DB = db
	t.Cleanup(func() {
		config.DB = previous
		sqlDB.Close()
	})

	school := models.School{Name: "Central State University", Code: "CSU"}
	require.NoError(t, db.Create(&school).Error)
	category := models.AidCategory{Name: "Tuition Assistance", IsActive: true}
	require.NoError(t, db.Create(&category).Error)
	student := models.Student{StudentNumber: "S-0001", FirstName: "Ana", LastName: "Reyes", SchoolID: school.ID}
	require.NoError(t, db.Create(&student).Error)
	amount := 5000.0
	ts := time.Now()
	app := models.Application{
		ApplicationNumber: "APP-TEST-0001",
		StudentID:         student.ID,
		SchoolID:          school.ID,
		CategoryID:        category.ID,
		RequestedAmount:   amount,
		ApprovedAmount:    &amount,
		Currency:          "PHP",
		Status:            models.ApplicationStatusApproved,
		DocumentsReviewed: true,
		ApprovedAt:        &ts,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(&app).Error)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(AuthContextKey, services.AuthContext{UserID: 10, Name: "Office Staff", Role: services.RoleStaff})
		c.Next()
	})
	router.GET("/payments", GetPaymentQueue)
	router.POST("/payments/bulk-process", BulkProcessPayments)
	router.POST("/payments/process-approved", ProcessApprovedApplications)
	router.POST("/payments/:ref/process", ProcessPayment)
	router.POST("/payments/:ref/cancel", CancelPayment)
	return router, app
}

func send(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentQueueListsPendingApplications(t *testing.T) {
	router, app := newPaymentRouter(t)

	rec := send(router, http.MethodGet, "/payments?kind=application", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    []struct {
			Ref       string `json:"ref"`
			Synthetic bool   `json:"synthetic"`
		} `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.EqualValues(t, 1, body.Pagination.Total)
	require.Len(t, body.Data, 1)
	assert.Equal(t, services.PendingApplicationRef(app.ID).String(), body.Data[0].Ref)
	assert.True(t, body.Data[0].Synthetic)
}

func TestPaymentRoutesMapServiceErrors(t *testing.T) {
	router, app := newPaymentRouter(t)
	pending := services.PendingApplicationRef(app.ID).String()

	rec := send(router, http.MethodPost, "/payments/"+pending+"/process", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"state_guard"`)

	assert.Equal(t, http.StatusConflict, send(router, http.MethodPost, "/payments/"+pending+"/cancel", "").Code)
	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPost, "/payments/invoice:1/process", "").Code)
	assert.Equal(t, http.StatusNotFound, send(router, http.MethodPost, "/payments/payment:404/process", "").Code)

	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPost, "/payments/bulk-process", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPost, "/payments/bulk-process", `{"refs":["bogus:1"]}`).Code)
}

func TestProcessApprovedApplicationsRoute(t *testing.T) {
	router, app := newPaymentRouter(t)
	body := `{"refs":["` + services.PendingApplicationRef(app.ID).String() + `"],"payment_method":"bank_transfer"}`

	rec := send(router, http.MethodPost, "/payments/process-approved", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reloaded models.Application
	require.NoError(t, config.DB.First(&reloaded, app.ID).Error)
	assert.Equal(t, models.ApplicationStatusGrantsDisbursed, reloaded.Status)

	var logs int64
	require.NoError(t, config.DB.Model(&models.DistributionLog{}).Count(&logs).Error)
	assert.EqualValues(t, 1, logs)
}
