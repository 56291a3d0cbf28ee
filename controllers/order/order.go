// Package ordercontroller serves order history for buyers and the
// admin order desk, including the xlsx export and per-line status
// updates.
package ordercontroller

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"

	"github.com/ZeapZeaper/Zeaper-api-sub000/middleware"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

type OrderStore interface {
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	UpdateProductOrderStatus(ctx context.Context, productOrderID uint, status models.ProductOrderStatus) error
}

type Handler struct {
	log    *zap.Logger
	orders OrderStore
}

func New(log *zap.Logger, orders OrderStore) *Handler {
	return &Handler{log: log, orders: orders}
}

// ListMine handles GET /user/orders.
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	orders, err := h.orders.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// Get handles GET /user/orders/:order_id. Buyers only see their own.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	order, err := h.orders.FindByOrderID(c.Request.Context(), c.Param("order_id"))
	if err != nil || order.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListAll handles GET /admin/orders.
func (h *Handler) ListAll(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

var validStatuses = map[models.ProductOrderStatus]bool{
	models.ProductOrderStatusPlaced:    true,
	models.ProductOrderStatusConfirmed: true,
	models.ProductOrderStatusShipped:   true,
	models.ProductOrderStatusDelivered: true,
	models.ProductOrderStatusCancelled: true,
}

// UpdateStatus handles PATCH /admin/product-orders/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product order id"})
		return
	}

	var input struct {
		Status models.ProductOrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || !validStatuses[input.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	if err := h.orders.UpdateProductOrderStatus(c.Request.Context(), uint(id), input.Status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	h.log.Info("product order status updated",
		zap.Uint64("product_order_id", id),
		zap.String("status", string(input.Status)))
	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

// Export handles GET /admin/orders/export, streaming every order line
// as an xlsx workbook.
func (h *Handler) Export(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build workbook"})
		return
	}

	header := sheet.AddRow()
	for _, title := range []string{
		"Order ID", "User ID", "Created", "Delivery Country", "Delivery City",
		"Product", "SKU", "Shop ID", "Unit Price", "Quantity", "Line Total",
		"Status", "Revenue Status",
	} {
		header.AddCell().Value = title
	}

	for _, order := range orders {
		for _, po := range order.ProductOrders {
			row := sheet.AddRow()
			row.AddCell().Value = order.OrderID
			row.AddCell().Value = order.UserID
			row.AddCell().Value = order.CreatedAt.Format(time.RFC3339)
			row.AddCell().Value = order.DeliveryCountry
			row.AddCell().Value = order.DeliveryCity
			row.AddCell().Value = po.Title
			row.AddCell().Value = po.SKU
			row.AddCell().Value = strconv.FormatUint(uint64(po.ShopID), 10)
			row.AddCell().Value = strconv.FormatFloat(po.Price, 'f', 2, 64)
			row.AddCell().Value = strconv.Itoa(po.Quantity)
			row.AddCell().Value = strconv.FormatFloat(po.Price*float64(po.Quantity), 'f', 2, 64)
			row.AddCell().Value = string(po.Status)
			row.AddCell().Value = string(po.ShopRevenue.Status)
		}
	}

	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := file.Write(c.Writer); err != nil {
		h.log.Error("write xlsx export", zap.Error(err))
	}
}
