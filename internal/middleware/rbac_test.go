package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/roster-api/internal/models"
)

func rbacRouter(role models.UserRole, required ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected",
		func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: role})
		},
		RequireRoles(required...),
		func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	return r
}

func TestRequireRolesAllows(t *testing.T) {
	r := rbacRouter(models.RoleAdmin, models.RoleAdmin, models.RoleStaff)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesForbids(t *testing.T) {
	r := rbacRouter(models.RoleTeacher, models.RoleAdmin, models.RoleStaff)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
