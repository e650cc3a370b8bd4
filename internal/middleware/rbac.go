package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. It must run
// after JWT.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActsForStudent reports whether the caller may change enrollments of the
// given student: staff roles always, students only for themselves.
func ActsForStudent(claims *models.JWTClaims, studentNumber string) bool {
	if claims == nil {
		return false
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleRegistrar:
		return true
	case models.RoleStudent:
		return claims.StudentNumber != "" && claims.StudentNumber == studentNumber
	}
	return false
}
