package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hospital-auth/internal/domain"
	"hospital-auth/internal/service"
)

// NewRouter configura el router de Gin con el gatekeeper y las rutas.
func NewRouter(
	logger *zap.Logger,
	tokens *service.TokenService,
	authH *AuthHandler,
	adminH *AdminHandler,
) *gin.Engine {
	r := gin.New()

	// El gatekeeper corre antes que cualquier handler: autenticación primero,
	// chequeo de rol después.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), Gatekeeper(tokens))

	pub := r.Group("/api/public/user")
	pub.POST("/register", authH.Register)
	pub.POST("/verify-email", authH.ConfirmVerification)
	pub.POST("/resend-verification-code", authH.ResendCode)
	pub.POST("/forgot-password", authH.RequestPasswordReset)
	pub.POST("/forgot-password/confirm", authH.ConfirmPasswordReset)

	auth := r.Group("/api/auth")
	auth.POST("/login", authH.Login)
	auth.PUT("/user/update-profile", BearerAuthMiddleware(tokens), authH.UpdateProfile)

	protected := r.Group("/api/protected")
	users := protected.Group("/users", RequireRoles(domain.RoleAdmin))
	users.GET("", adminH.ListUsers)
	users.PATCH("/update/:id", adminH.UpdateRole)
	users.PATCH("/delete", adminH.SoftDeleteUser)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
