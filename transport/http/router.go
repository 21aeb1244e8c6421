package http

import (
	"github.com/finsight/walletauth/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter sets up the Gin router.
func SetupRouter(walletService *service.WalletService) *gin.Engine {
	router := gin.Default()

	handlers := NewWalletHandlers(walletService)

	wallet := router.Group("/api/wallet")
	{
		// Public: step 1 of the SIWE flow.
		wallet.POST("/nonce", handlers.Nonce)

		// Identity-scoped wallet lifecycle.
		scoped := wallet.Group("")
		scoped.Use(IdentityMiddleware())
		{
			scoped.POST("/verify", handlers.Verify)
			scoped.GET("/connections", handlers.Connections)
			scoped.POST("/set-primary", handlers.SetPrimary)
			scoped.DELETE("/connections/:wallet_id", handlers.Disconnect)
		}

		// Credential-protected.
		authed := wallet.Group("")
		authed.Use(WalletAuthMiddleware(walletService))
		{
			authed.GET("/me", handlers.Me)
		}
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
