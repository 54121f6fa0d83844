package handlers

import (
	"errors"
	"log"

	"tokoorders/internal/idempotency"
	"tokoorders/internal/middleware"
	"tokoorders/internal/models"
	"tokoorders/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// HeaderIdempotencyKey lets clients retry order creation safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	idem     idempotency.Store
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler. idem may be nil, which turns
// idempotency keys off.
func NewOrderHandler(service *services.OrderService, idem idempotency.Store) *OrderHandler {
	return &OrderHandler{
		service:  service,
		idem:     idem,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, authRequired, adminOnly fiber.Handler) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", authRequired, adminOnly, h.HandleGetOrders)
	orderRoutes.Get("/user-orders/:userId", authRequired, h.HandleGetUserOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", authRequired, h.HandleCreateOrder)
	orderRoutes.Put("/:id", authRequired, adminOnly, h.HandleUpdateOrderStatus)
	orderRoutes.Delete("/:id", authRequired, adminOnly, h.HandleDeleteOrder)
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Products []models.ItemRequest `json:"products" validate:"required,min=1,dive"`
}

// UpdateStatusRequest is the body of PUT /orders/:id.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// HandleGetOrders retrieves all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext())
	if err != nil {
		return internalError(c, "Error getting all orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrder(c.UserContext(), orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return message(c, fiber.StatusNotFound, "Order not found")
		}
		return internalError(c, "Error getting order "+orderID, err)
	}
	return c.JSON(order)
}

// HandleCreateOrder places an order for the authenticated caller.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return message(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req CreateOrderRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}

	ctx := c.UserContext()
	key := c.Get(HeaderIdempotencyKey)
	useKey := h.idem != nil && key != ""
	if useKey {
		orderID, found, err := h.idem.Lookup(ctx, caller.ID, key)
		switch {
		case err != nil:
			// Redis trouble shouldn't block orders; carry on without replay.
			log.Printf("Idempotency lookup failed for caller %s: %v", caller.ID, err)
		case found:
			order, err := h.service.GetOrder(ctx, orderID)
			if err == nil {
				return c.Status(fiber.StatusOK).JSON(order)
			}
			if !errors.Is(err, services.ErrOrderNotFound) {
				return internalError(c, "Error replaying order "+orderID, err)
			}
		}
	}

	order, err := h.service.CreateOrder(ctx, caller, req.Products)
	if err != nil {
		var stockErr *services.InsufficientStockError
		if errors.As(err, &stockErr) {
			return message(c, fiber.StatusBadRequest, stockErr.Error())
		}
		return internalError(c, "Error creating order", err)
	}

	if useKey {
		if err := h.idem.Remember(ctx, caller.ID, key, order.ID); err != nil {
			log.Printf("Failed to remember idempotency key for order %s: %v", order.ID, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleUpdateOrderStatus overwrites the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var req UpdateStatusRequest
	if ok, err := decode(c, h.validate, &req); !ok {
		return err
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), orderID, req.Status)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return message(c, fiber.StatusNotFound, "Order not found")
		}
		return internalError(c, "Error updating status of order "+orderID, err)
	}
	return c.JSON(order)
}

// HandleDeleteOrder deletes an order and restocks its products.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	deleted, err := h.service.DeleteOrder(c.UserContext(), orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return message(c, fiber.StatusNotFound, "Order not found")
		}
		return internalError(c, "Error deleting order "+orderID, err)
	}
	return c.JSON(fiber.Map{
		"message": "Order deleted successfully",
		"deleted": deleted,
	})
}

// HandleGetUserOrders lists the orders of one user for that user or an admin.
func (h *OrderHandler) HandleGetUserOrders(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return message(c, fiber.StatusUnauthorized, "Authentication required")
	}

	userID := c.Params("userId")
	orders, err := h.service.ListOrdersForUser(c.UserContext(), caller, userID)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			return message(c, fiber.StatusForbidden, "Access denied")
		}
		return internalError(c, "Error getting orders of user "+userID, err)
	}
	return c.JSON(orders)
}
