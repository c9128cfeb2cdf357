package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"socialsync/internal/utils"
	pkgutils "socialsync/pkg/utils"
)

const (
	// AuthorizationHeader 认证头部名称
	AuthorizationHeader = "Authorization"
	// BearerPrefix Bearer前缀
	BearerPrefix = "Bearer "
	// UserIDKey 用户ID在上下文中的键
	UserIDKey = "user_id"
	// UserRoleKey 用户角色在上下文中的键
	UserRoleKey = "user_role"
)

// AuthConfig 认证配置
type AuthConfig struct {
	// TokenValidator Token验证函数
	TokenValidator func(token string) (*UserInfo, error)
	// SkipPaths 跳过认证的路径
	SkipPaths []string
	// RequiredRole 需要的角色
	RequiredRole string
}

// UserInfo 用户信息
type UserInfo struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// JWTValidator adapts a JWT manager to the middleware's validator signature
func JWTValidator(m *utils.JWTManager) func(token string) (*UserInfo, error) {
	return func(token string) (*UserInfo, error) {
		claims, err := m.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return &UserInfo{ID: claims.UserID, Role: claims.Role}, nil
	}
}

// Auth 认证中间件
func Auth(validator func(token string) (*UserInfo, error)) gin.HandlerFunc {
	return AuthWithConfig(AuthConfig{
		TokenValidator: validator,
	})
}

// AuthWithConfig 带配置的认证中间件
func AuthWithConfig(config AuthConfig) gin.HandlerFunc {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "Missing or malformed authorization header")
			c.Abort()
			return
		}

		userInfo, err := config.TokenValidator(token)
		if err != nil {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		if config.RequiredRole != "" && userInfo.Role != config.RequiredRole {
			pkgutils.Error(c, pkgutils.CodeForbidden, "Insufficient permissions")
			c.Abort()
			return
		}

		c.Set(UserIDKey, userInfo.ID)
		c.Set(UserRoleKey, userInfo.Role)
		c.Next()
	}
}

// RequireRole rejects callers without role. Mount after Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if current, _ := GetUserRole(c); current != role {
			pkgutils.Error(c, pkgutils.CodeForbidden, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth 可选认证中间件
func OptionalAuth(validator func(token string) (*UserInfo, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		userInfo, err := validator(token)
		if err != nil {
			c.Next()
			return
		}

		c.Set(UserIDKey, userInfo.ID)
		c.Set(UserRoleKey, userInfo.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	return token, token != ""
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(UserIDKey)
	return userID, userID != ""
}

// GetUserRole 从上下文获取用户角色
func GetUserRole(c *gin.Context) (string, bool) {
	role := c.GetString(UserRoleKey)
	return role, role != ""
}
