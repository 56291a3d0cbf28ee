// Package routes wires every handler onto the gin engine. Route groups
// mirror the auth model: /user behind Firebase tokens, /admin behind
// the API key, webhooks and health public.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	basketcontroller "github.com/ZeapZeaper/Zeaper-api-sub000/controllers/basket"
	ordercontroller "github.com/ZeapZeaper/Zeaper-api-sub000/controllers/order"
	paymentcontroller "github.com/ZeapZeaper/Zeaper-api-sub000/controllers/payment"
	"github.com/ZeapZeaper/Zeaper-api-sub000/middleware"
	"github.com/ZeapZeaper/Zeaper-api-sub000/notify"
)

type Deps struct {
	Verifier middleware.TokenVerifier
	APIKey   string

	Payments *paymentcontroller.Handler
	Baskets  *basketcontroller.Handler
	Orders   *ordercontroller.Handler
	Hub      *notify.Hub
}

func Setup(r *gin.Engine, deps Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gateway callbacks authenticate by signature, not by session.
	r.POST("/webhooks/stripe", deps.Payments.StripeWebhook)

	r.GET("/ws/notifications", deps.Hub.Handler())

	user := r.Group("/user", middleware.RequireUser(deps.Verifier))
	{
		user.GET("/basket", deps.Baskets.Get)
		user.POST("/basket", deps.Baskets.UpsertItem)
		user.DELETE("/basket/items/:item_id", deps.Baskets.DeleteItem)
		user.GET("/basket/total", deps.Baskets.Total)

		user.POST("/payments/reference", deps.Payments.GetReference)
		user.POST("/payments/verify", deps.Payments.Verify)

		user.GET("/orders", deps.Orders.ListMine)
		user.GET("/orders/:order_id", deps.Orders.Get)
	}

	admin := r.Group("/admin", middleware.RequireAPIKey(deps.APIKey))
	{
		admin.GET("/orders", deps.Orders.ListAll)
		admin.GET("/orders/export", deps.Orders.Export)
		admin.PATCH("/product-orders/:id/status", deps.Orders.UpdateStatus)
	}
}
