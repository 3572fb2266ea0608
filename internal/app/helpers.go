package app

import (
	"os"
	"strings"

	"github.com/mx-space/viewblock/internal/config"
	jwtpkg "github.com/mx-space/viewblock/internal/pkg/jwt"
	"github.com/mx-space/viewblock/internal/pkg/nativelog"
	"go.uber.org/zap"
)

func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) {
	_ = os.Setenv(nativelog.EnvLogDir, cfg.LogDir())

	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}
	if strings.TrimSpace(cfg.NonceSecret) == "" {
		logger.Warn("nonce_secret is empty, nonces will not survive a restart")
	}
}
