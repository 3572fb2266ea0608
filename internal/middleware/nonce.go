package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/viewblock/internal/pkg/nonce"
	"github.com/mx-space/viewblock/internal/pkg/response"
	"go.uber.org/zap"
)

// NonceField is the form field carrying the anti-forgery nonce.
const NonceField = "wpnonce"

// VerifyNonce rejects form posts whose nonce was not issued for action and the
// current caller. Failures use the editor envelope so the block can show them.
func VerifyNonce(issuer *nonce.Issuer, action string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := issuer.Verify(c.PostForm(NonceField), action, CurrentUserID(c)); err != nil {
			log.Debug("nonce rejected", zap.String("action", action), zap.Error(err))
			response.Failure(c, "Invalid security token. Reload the editor and try again.")
			return
		}
		c.Next()
	}
}
