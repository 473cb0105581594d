package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hospital-auth/internal/domain"
	"hospital-auth/internal/service"
)

// Cookie names: la API protegida acepta el access token en cookie "token"
// además del header; las áreas de UI usan la cookie de sesión del navegador.
// Son portadores distintos y no deben confundirse.
const (
	apiTokenCookie = "token"
	sessionCookie  = "session"
)

const (
	loginPath        = "/auth?tab=login"
	accessDeniedPath = "/access-denied"
)

// routeClass clasifica un path entrante según la política del gatekeeper.
type routeClass int

const (
	routePublic routeClass = iota
	routeProtectedAPI
	routeAdminArea
	routeDoctorArea
	routeUserArea
	routeDashboard
	routeAuthEntry
)

// classifyPath es una función pura sobre el path; el orden de los prefijos
// importa: la API protegida se evalúa antes que las áreas de UI.
func classifyPath(path string) routeClass {
	switch {
	case strings.HasPrefix(path, "/api/protected"):
		return routeProtectedAPI
	case strings.HasPrefix(path, "/admin"):
		return routeAdminArea
	case strings.HasPrefix(path, "/doctor"):
		return routeDoctorArea
	case strings.HasPrefix(path, "/user"):
		return routeUserArea
	case strings.HasPrefix(path, "/dashboard"):
		return routeDashboard
	case strings.HasPrefix(path, "/auth"):
		return routeAuthEntry
	default:
		return routePublic
	}
}

// roleLanding devuelve el destino según el rol de la sesión.
func roleLanding(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "/admin"
	case domain.RoleDoctor:
		return "/doctor"
	default:
		return "/user"
	}
}

// Gatekeeper intercepta cada request y aplica la política por path:
// la API protegida exige token (header o cookie) y solo permite o niega;
// las áreas de UI exigen sesión y redirigen según rol.
func Gatekeeper(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch classifyPath(c.Request.URL.Path) {
		case routeProtectedAPI:
			gatekeepProtectedAPI(c, tokens)
		case routeAdminArea:
			gatekeepUIArea(c, tokens, domain.RoleAdmin)
		case routeDoctorArea:
			gatekeepUIArea(c, tokens, domain.RoleDoctor)
		case routeUserArea:
			gatekeepUserArea(c, tokens)
		case routeDashboard:
			gatekeepDashboard(c, tokens)
		case routeAuthEntry:
			gatekeepAuthEntry(c, tokens)
		default:
			c.Next()
		}
	}
}

// gatekeepProtectedAPI valida el token sin estado y reenvía la identidad en
// headers para los handlers siguientes. Nunca redirige.
func gatekeepProtectedAPI(c *gin.Context, tokens *service.TokenService) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		if cookie, err := c.Cookie(apiTokenCookie); err == nil {
			token = cookie
		}
	}

	claims, valid := tokens.Verify(token)
	if !valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
		return
	}

	c.Request.Header.Set("x-user-id", claims.UserID)
	c.Request.Header.Set("x-user-role", string(claims.Role))
	c.Request.Header.Set("x-user-email", claims.Email)
	c.Set(authClaimsKey, claims)
	c.Next()
}

func gatekeepUIArea(c *gin.Context, tokens *service.TokenService, required domain.Role) {
	claims, ok := sessionClaims(c, tokens)
	if !ok {
		redirect(c, loginPath)
		return
	}
	if claims.Role != required {
		redirect(c, accessDeniedPath)
		return
	}
	c.Set(authClaimsKey, claims)
	c.Next()
}

// gatekeepUserArea deja pasar cualquier sesión válida pero reubica a los
// roles con área propia.
func gatekeepUserArea(c *gin.Context, tokens *service.TokenService) {
	claims, ok := sessionClaims(c, tokens)
	if !ok {
		redirect(c, loginPath)
		return
	}
	if claims.Role == domain.RoleAdmin || claims.Role == domain.RoleDoctor {
		redirect(c, roleLanding(claims.Role))
		return
	}
	c.Set(authClaimsKey, claims)
	c.Next()
}

func gatekeepDashboard(c *gin.Context, tokens *service.TokenService) {
	if _, ok := sessionClaims(c, tokens); !ok {
		redirect(c, loginPath)
		return
	}
	c.Next()
}

// gatekeepAuthEntry evita re-autenticación: una sesión vigente va directo a
// su landing por rol.
func gatekeepAuthEntry(c *gin.Context, tokens *service.TokenService) {
	if claims, ok := sessionClaims(c, tokens); ok {
		redirect(c, roleLanding(claims.Role))
		return
	}
	c.Next()
}

func sessionClaims(c *gin.Context, tokens *service.TokenService) (service.Claims, bool) {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil {
		return service.Claims{}, false
	}
	return tokens.Verify(cookie)
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
	c.Abort()
}
