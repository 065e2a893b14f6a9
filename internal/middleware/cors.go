package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"otplink/internal/config"
)

func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CorsAllowedOrigins,
		AllowedMethods: cfg.Server.CorsAllowedMethods,
		AllowedHeaders: cfg.Server.CorsAllowedHeaders,
		// bearer tokens only, no cookies
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	})

	return c.Handler
}
