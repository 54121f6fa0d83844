package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in one unit of work.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Users() UserRepository
	// WithTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// GORMStore is the GORM-backed Store.
type GORMStore struct {
	db *gorm.DB
}

func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

func (s *GORMStore) Products() ProductRepository     { return NewGORMProductRepository(s.db) }
func (s *GORMStore) Orders() OrderRepository         { return NewGORMOrderRepository(s.db) }
func (s *GORMStore) OrderItems() OrderItemRepository { return NewGORMOrderItemRepository(s.db) }
func (s *GORMStore) Users() UserRepository           { return NewGORMUserRepository(s.db) }

func (s *GORMStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMStore{db: tx})
	})
}
