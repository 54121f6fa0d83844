package handlers

import (
	"errors"
	"fmt"

	"tokoorders/internal/models"
	"tokoorders/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the product routes. Reads are public, writes
// need an admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, authRequired, adminOnly fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", authRequired, adminOnly, h.HandleCreateProduct)
	productRoutes.Put("/:id", authRequired, adminOnly, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", authRequired, adminOnly, h.HandleDeleteProduct)
}

func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return internalError(c, "Error getting all products", err)
	}
	return c.JSON(products)
}

func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id := c.Params("id")
	product, err := h.service.GetProductByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return message(c, fiber.StatusNotFound, "Product not found")
		}
		return internalError(c, "Error getting product "+id, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if ok, err := decode(c, h.validate, &product); !ok {
		return err
	}
	// IDs are always assigned by the server.
	product.ID = ""
	if err := h.service.CreateProduct(c.UserContext(), &product); err != nil {
		return internalError(c, "Error creating product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var product models.Product
	if ok, err := decode(c, h.validate, &product); !ok {
		return err
	}
	product.ID = c.Params("id")

	if err := h.service.UpdateProduct(c.UserContext(), &product); err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return message(c, fiber.StatusNotFound, "Product not found")
		}
		return internalError(c, "Error updating product "+product.ID, err)
	}

	updated, err := h.service.GetProductByID(c.UserContext(), product.ID)
	if err != nil {
		return internalError(c, "Error reloading product "+product.ID, err)
	}
	return c.JSON(updated)
}

func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return message(c, fiber.StatusNotFound, "Product not found")
		}
		return internalError(c, "Error deleting product "+id, err)
	}
	return message(c, fiber.StatusOK, fmt.Sprintf("Product %s deleted successfully", id))
}
