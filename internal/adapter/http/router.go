package http

import (
	"github.com/GovindKumar26/petstore-api/internal/adapter/http/middleware"
	"github.com/GovindKumar26/petstore-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(oh *OrderHandler, ph *PaymentHandler, ah *AdminHandler, auth *AuthHandler, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.POST("/auth/login", auth.Login)

	// Gateway-facing endpoints carry their own signatures instead of
	// bearer tokens.
	api.POST("/payments/callback/success", ph.Callback)
	api.POST("/payments/callback/failure", ph.Callback)
	api.POST("/webhooks/payment", ph.Webhook)

	user := api.Group("", authz.Authenticate())
	{
		user.POST("/orders", oh.Create)
		user.GET("/orders", oh.ListMine)
		user.GET("/orders/:id", oh.Get)
		user.GET("/orders/:id/status", oh.GetStatus)
		user.POST("/orders/:id/cancel", oh.Cancel)
		user.POST("/orders/:id/return", oh.RequestReturn)
		user.POST("/payments/:id/initiate", ph.Initiate)
	}

	admin := api.Group("/admin", authz.Authenticate(), authz.RequireAdmin())
	{
		admin.GET("/orders/:id", ah.Get)
		admin.PATCH("/orders/:id/status", ah.UpdateStatus)
		admin.POST("/orders/:id/refund/approve", ah.ApproveRefund)
		admin.POST("/orders/:id/refund/reject", ah.RejectRefund)
		admin.POST("/orders/:id/return/approve", ah.ApproveReturn)
		admin.POST("/orders/:id/return/reject", ah.RejectReturn)
		admin.POST("/orders/:id/return/schedule-pickup", ah.ScheduleReturnPickup)
		admin.POST("/orders/:id/return/picked-up", ah.MarkReturnPickedUp)
		admin.POST("/orders/:id/return/complete", ah.CompleteReturn)
	}

	return r
}
