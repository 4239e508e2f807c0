package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range allowedOrigins {
		if origin == "*" {
			config.AllowAllOrigins = true
			return cors.New(config)
		}
	}
	config.AllowOrigins = allowedOrigins
	return cors.New(config)
}
