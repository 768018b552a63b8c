package middleware

import (
	"errors"
	"net/http"

	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/erp/invoicedesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CurrentUserKey is the gin context key of the resolved *identity.User
const CurrentUserKey = "current_user"

// CurrentUser loads the authenticated user with its capabilities.
// It must run after JWTAuthMiddleware. Capabilities are read on every request
// so a change to the user record applies to the next call.
func CurrentUser(users identity.UserRepository, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		userID := GetJWTUserID(c)
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, "Authentication required", c.GetString(RequestIDKey)))
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, "User no longer exists", c.GetString(RequestIDKey)))
				return
			}
			log.Error("Failed to load current user", zap.Int64("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, "An unexpected error occurred", c.GetString(RequestIDKey)))
			return
		}

		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

// GetCurrentUser returns the user resolved by CurrentUser, nil if absent
func GetCurrentUser(c *gin.Context) *identity.User {
	if v, ok := c.Get(CurrentUserKey); ok {
		if user, ok := v.(*identity.User); ok {
			return user
		}
	}
	return nil
}
