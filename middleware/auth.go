package middleware

import (
	"net/http"
	"strings"

	"scholarship-aid-api/config"
	"scholarship-aid-api/controllers"
	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are issued by the identity provider. CitizenID is only used to look
// up the school of a representative or the record of a student.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CitizenID string `json:"citizen_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates JWT token and stores the caller's AuthContext
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header is required"})
			c.Abort()
			return
		}

		// Check Bearer prefix
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		cfg := config.Current()
		if err := cfg.RequireJWTSecret(); err != nil {
			// Without a key any HS256 token signed with "" would verify.
			config.Logger().WithError(err).Error("refusing token")
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication is not configured"})
			c.Abort()
			return
		}
		secret := []byte(cfg.JWTSecret)
		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || claims.UserID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token claims"})
			c.Abort()
			return
		}

		auth := services.AuthContext{
			UserID:    claims.UserID,
			Name:      claims.Name,
			Role:      services.Role(strings.ToLower(strings.TrimSpace(claims.Role))),
			CitizenID: claims.CitizenID,
		}
		if auth.IsSchoolRep() {
			schoolID, err := services.ResolveSchoolAssignment(c.Request.Context(), config.DB, claims.CitizenID)
			if err != nil {
				config.Logger().WithError(err).WithField("user_id", claims.UserID).Error("failed to resolve school assignment")
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to resolve school assignment"})
				c.Abort()
				return
			}
			// An unassigned representative keeps a nil school and sees no rows.
			auth.SchoolID = schoolID
		}
		if auth.IsStudent() {
			studentID, err := services.ResolveStudentIdentity(c.Request.Context(), config.DB, claims.CitizenID)
			if err != nil {
				config.Logger().WithError(err).WithField("user_id", claims.UserID).Error("failed to resolve student record")
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to resolve student record"})
				c.Abort()
				return
			}
			// A student without a matching record owns no applications.
			auth.StudentID = studentID
		}

		c.Set(controllers.AuthContextKey, auth)
		c.Set("userID", claims.UserID)
		c.Set("role", string(auth.Role))

		c.Next()
	}
}

// RequireRole checks if user has specific role
func RequireRole(roles ...services.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(controllers.AuthContextKey)
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Role not found"})
			c.Abort()
			return
		}

		auth := value.(services.AuthContext)
		allowed := false
		for _, role := range roles {
			if auth.Role == role {
				allowed = true
				break
			}
		}

		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}
