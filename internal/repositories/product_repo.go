package repositories

import (
	"context"

	"tokoorders/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	// DecrementStock subtracts quantity only if enough stock is left. It
	// reports false when the product is missing or short.
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)
	// RestoreStock adds quantity back. It reports false when the product no
	// longer exists.
	RestoreStock(ctx context.Context, id string, quantity int) (bool, error)
}
