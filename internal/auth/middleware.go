package auth

import (
	"errors"
	"net/http"

	httperr "github.com/aevon-lab/indexer-metrics-collector/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// ContextKeyClient is the gin context key holding the authorized client identifier.
const ContextKeyClient = "auth.client"

// RequireCapability rejects requests whose credential is missing (401) or denied (403).
func RequireCapability(a *Authorizer, capability Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := DecodeCredential(c.GetHeader("Authorization"))
		if err != nil {
			message := "Authorization required"
			if errors.Is(err, ErrMalformedCredential) {
				message = "Malformed authorization header"
			}
			c.Header("WWW-Authenticate", `Basic realm="indexer-metrics-collector"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, httperr.ErrorResponse{
				ErrorType: httperr.HttpUnauthorizedError,
				Message:   message,
			})
			return
		}

		if decision := a.Authorize(cred, capability); !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, httperr.ErrorResponse{
				ErrorType: httperr.HttpForbiddenError,
				Message:   "Forbidden",
			})
			return
		}

		c.Set(ContextKeyClient, cred.User)
		c.Next()
	}
}
