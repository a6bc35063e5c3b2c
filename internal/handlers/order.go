// internal/handlers/order.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cubitdynamics/cubit-backend/internal/i18n"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// POST /orders/checkout
func (h *OrderHandler) Checkout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.Checkout(c.Request.Context(), userID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderCreated),
		"order":   order,
	})
}

// GET /orders
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	params := services.OrderSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		OwnerID:          &userID,
		Status:           models.OrderStatus(c.Query("status")),
	}
	h.list(c, params)
}

// GET /orders/:id
func (h *OrderHandler) GetMyOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	h.get(c, userID)
}

// POST /orders/:id/cancel
func (h *OrderHandler) CancelMyOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	h.cancel(c, userID)
}

// GET /admin/orders
func (h *OrderHandler) AdminListOrders(c *gin.Context) {
	params := services.OrderSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		OwnerID:          queryUUID(c, "owner_id"),
		Status:           models.OrderStatus(c.Query("status")),
	}
	h.list(c, params)
}

// GET /admin/orders/:id
func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	h.get(c, uuid.Nil)
}

// POST /admin/orders/:id/cancel
func (h *OrderHandler) AdminCancelOrder(c *gin.Context) {
	h.cancel(c, uuid.Nil)
}

// POST /admin/orders/:id/fulfill
func (h *OrderHandler) AdminFulfillOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.orderService.FulfillOrder(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminActionSuccess),
		"order":   order,
	})
}

// POST /admin/orders/:id/refund
func (h *OrderHandler) AdminRefundOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	var req services.RefundOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.RefundOrder(c.Request.Context(), id, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderRefunded),
		"order":   order,
	})
}

func (h *OrderHandler) list(c *gin.Context, params services.OrderSearchParams) {
	orders, total, err := h.orderService.ListOrders(c.Request.Context(), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(orders, total, params.PaginationParams))
}

// get loads an order; uuid.Nil as owner skips the ownership check.
func (h *OrderHandler) get(c *gin.Context, ownerID uuid.UUID) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), id, ownerID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

func (h *OrderHandler) cancel(c *gin.Context, ownerID uuid.UUID) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), id, ownerID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderCancelled),
		"order":   order,
	})
}
