package repositories

import (
	"context"

	"tokoorders/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByUserID(ctx context.Context, userID string) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, status string) error
	Delete(ctx context.Context, id string) (int64, error)
}

// OrderItemRepository defines the interface for order line data access.
type OrderItemRepository interface {
	GetByOrderIDs(ctx context.Context, orderIDs []string) ([]models.OrderItem, error)
	CreateBatch(ctx context.Context, items []models.OrderItem) error
	DeleteByOrderID(ctx context.Context, orderID string) (int64, error)
}
