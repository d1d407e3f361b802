package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"scholarship-aid-api/config"
	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

// AuthContextKey is where middleware.AuthMiddleware stores the caller.
const AuthContextKey = "auth"

func currentAuth(c *gin.Context) services.AuthContext {
	if v, ok := c.Get(AuthContextKey); ok {
		if auth, ok := v.(services.AuthContext); ok {
			return auth
		}
	}
	return services.AuthContext{Role: services.RoleStudent}
}

// respondError maps a service error kind to an HTTP status.
func respondError(c *gin.Context, err error) {
	var status int
	switch services.KindOf(err) {
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindStateGuard, services.KindConflict:
		status = http.StatusConflict
	case services.KindDependency:
		c.JSON(http.StatusOK, gin.H{"success": true, "warnings": []string{err.Error()}})
		return
	default:
		config.Logger().WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	body := gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    services.KindOf(err),
	}
	var svcErr *services.Error
	if errors.As(err, &svcErr) && len(svcErr.Fields) > 0 {
		body["details"] = svcErr.Fields
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message, "code": services.KindValidation})
}

func respondOK(c *gin.Context, message string, data interface{}) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(http.StatusOK, body)
}

func respondList(c *gin.Context, data interface{}, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

// idParam reads a positive numeric path parameter, answering 400 when it is not one.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func optionalUintQuery(c *gin.Context, name string) *uint {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil
	}
	id := uint(v)
	return &id
}

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return page, size
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// bindOptionalJSON binds a body when one is sent; an empty body is allowed.
func bindOptionalJSON(c *gin.Context, target interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(target); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}
