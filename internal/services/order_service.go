package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tokoorders/internal/models"
	"tokoorders/internal/repositories"
)

// Notifier sends an email. Implementations may queue it for later delivery.
type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// OrderService handles business logic related to orders.
type OrderService struct {
	store         repositories.Store
	notifier      Notifier
	notifyTimeout time.Duration
	wg            sync.WaitGroup // in-flight notifications
}

// NewOrderService creates a new OrderService. notifier may be nil, in which
// case no emails are sent.
func NewOrderService(store repositories.Store, notifier Notifier, notifyTimeout time.Duration) *OrderService {
	return &OrderService{
		store:         store,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
	}
}

// ListOrders retrieves every order with its owner and products.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.OrderDetails, error) {
	orders, err := s.store.Orders().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, orders)
}

// GetOrder retrieves a single order with its owner and products.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.OrderDetails, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, ErrOrderNotFound)
	}
	details, err := s.details(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// CreateOrder places an order for caller. Products that don't exist are
// skipped without charge. Stock checks, decrements and the order rows are
// written in one transaction: when any product is short, nothing is kept.
func (s *OrderService) CreateOrder(ctx context.Context, caller models.Caller, items []models.ItemRequest) (*models.OrderDetails, error) {
	var order models.Order
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var total float64
		lines := make([]models.OrderItem, 0, len(items))

		for _, item := range items {
			product, err := tx.Products().GetByID(ctx, item.ProductID)
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if product.Stock < item.Quantity {
				return &InsufficientStockError{ProductID: product.ID}
			}

			ok, err := tx.Products().DecrementStock(ctx, product.ID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				// Another request took the stock between read and write.
				return &InsufficientStockError{ProductID: product.ID}
			}

			total += product.Price * float64(item.Quantity)
			lines = append(lines, models.OrderItem{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				Price:     product.Price,
			})
		}

		order = models.Order{UserID: caller.ID, TotalPrice: total, Status: models.StatusPending}
		if err := tx.Orders().Create(ctx, &order); err != nil {
			return err
		}
		for i := range lines {
			lines[i].OrderID = order.ID
		}
		return tx.OrderItems().CreateBatch(ctx, lines)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	details, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.notifyAsync("confirmation", func(ctx context.Context) error {
		to := caller.Email
		if to == "" {
			user, err := s.store.Users().GetByID(ctx, caller.ID)
			if err != nil {
				return err
			}
			to = user.Email
		}
		body := fmt.Sprintf("Your order #%s has been placed successfully. Total: $%.2f", order.ID, order.TotalPrice)
		return s.notifier.SendEmail(ctx, to, "Order Confirmation", body)
	})

	return details, nil
}

// UpdateOrderStatus overwrites the status of an order with any string.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status string) (*models.OrderDetails, error) {
	if err := s.store.Orders().UpdateStatus(ctx, id, status); err != nil {
		return nil, translateNotFound(err, ErrOrderNotFound)
	}
	return s.GetOrder(ctx, id)
}

// DeleteOrder removes an order and its lines and puts the ordered quantities
// back in stock for products that still exist. It returns the number of
// deleted orders.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) (int64, error) {
	var (
		order   *models.Order
		deleted int64
	)
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByID(ctx, id)
		if err != nil {
			return translateNotFound(err, ErrOrderNotFound)
		}

		items, err := tx.OrderItems().GetByOrderIDs(ctx, []string{id})
		if err != nil {
			return err
		}
		for _, item := range items {
			restored, err := tx.Products().RestoreStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !restored {
				log.Printf("Product %s of order %s no longer exists, stock not restored", item.ProductID, id)
			}
		}

		if _, err := tx.OrderItems().DeleteByOrderID(ctx, id); err != nil {
			return err
		}
		deleted, err = tx.Orders().Delete(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to delete order %s: %w", id, err)
	}

	userID := order.UserID
	s.notifyAsync("cancellation", func(ctx context.Context) error {
		user, err := s.store.Users().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to find owner of order %s: %w", id, err)
		}
		body := fmt.Sprintf("Your order #%s has been cancelled.", id)
		return s.notifier.SendEmail(ctx, user.Email, "Order Cancellation", body)
	})

	return deleted, nil
}

// ListOrdersForUser returns the orders of userID. Only that user or an admin
// may see them.
func (s *OrderService) ListOrdersForUser(ctx context.Context, caller models.Caller, userID string) ([]models.OrderDetails, error) {
	if caller.ID != userID && !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	orders, err := s.store.Orders().GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, orders)
}

// Wait blocks until every email started so far has been handed off.
func (s *OrderService) Wait() {
	s.wg.Wait()
}

// notifyAsync runs send in the background once the caller has its result.
// Failures are only logged.
func (s *OrderService) notifyAsync(kind string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			log.Printf("Failed to send %s email: %v", kind, err)
		}
	}()
}

// details resolves owners and products for orders with one batched query
// per table.
func (s *OrderService) details(ctx context.Context, orders []models.Order) ([]models.OrderDetails, error) {
	result := make([]models.OrderDetails, 0, len(orders))
	if len(orders) == 0 {
		return result, nil
	}

	orderIDs := make([]string, 0, len(orders))
	userIDs := make([]string, 0, len(orders))
	seenUsers := make(map[string]bool)
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		if !seenUsers[o.UserID] {
			seenUsers[o.UserID] = true
			userIDs = append(userIDs, o.UserID)
		}
	}

	items, err := s.store.OrderItems().GetByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	itemsByOrder := make(map[string][]models.OrderItem)
	productIDs := make([]string, 0, len(items))
	seenProducts := make(map[string]bool)
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
		if !seenProducts[item.ProductID] {
			seenProducts[item.ProductID] = true
			productIDs = append(productIDs, item.ProductID)
		}
	}

	products, err := s.store.Products().GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	productByID := make(map[string]models.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	users, err := s.store.Users().GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	userByID := make(map[string]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	for _, o := range orders {
		d := models.OrderDetails{Order: o, Products: []models.OrderedProduct{}}
		if u, ok := userByID[o.UserID]; ok {
			d.User = &models.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		for _, item := range itemsByOrder[o.ID] {
			p, ok := productByID[item.ProductID]
			if !ok {
				continue
			}
			d.Products = append(d.Products, models.OrderedProduct{
				ID:        p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  item.Quantity,
				UnitPrice: item.Price,
			})
		}
		result = append(result, d)
	}
	return result, nil
}
