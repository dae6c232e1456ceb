package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	appErrors "github.com/freshgrove/fulfillment/internal/errors"
	"github.com/freshgrove/fulfillment/internal/models"
	"github.com/freshgrove/fulfillment/internal/pricing"
	repository "github.com/freshgrove/fulfillment/internal/repositories"
	"github.com/google/uuid"
)

type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, req *models.UpdateQuantityRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, productID uuid.UUID) (*models.Cart, error)
	Replace(ctx context.Context, userID uuid.UUID, entries []models.CartEntry) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Summary(ctx context.Context, userID uuid.UUID) (*models.CartSummary, error)
}

type cartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	portions pricing.PortionPolicy
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, portions pricing.PortionPolicy) CartService {
	return &cartService{carts: carts, products: products, portions: portions}
}

func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	return cart, nil
}

func (s *cartService) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {

	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Product not found: " + productID.String()).WithError(err)
		}
		return nil, appErrors.DatabaseError("Failed to load product").WithError(err)
	}

	if !product.IsAvailable {
		return nil, appErrors.BadRequestError("Product is not available: " + product.Name)
	}

	return product, nil
}

// AddItem merges the requested quantity into any existing entry for the same
// product. The merged quantity is checked against available stock expressed
// in cart units (grams for weight goods).
func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error) {

	product, err := s.loadProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	merged := req.Quantity
	if existing, ok := cart.Entries[req.ProductID.String()]; ok {
		merged += existing.Quantity
	}

	if ceiling := product.UnitKind.CartUnits(product.StockQuantity); merged > ceiling {
		return nil, appErrors.ValidationError("Requested quantity exceeds available stock").
			WithDetail(fmt.Sprintf("%s: requested %d, available %d", product.Name, merged, ceiling))
	}

	cart.Entries[req.ProductID.String()] = models.CartEntry{ProductID: req.ProductID, Quantity: merged}

	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to update cart").WithError(err)
	}

	return cart, nil
}

// UpdateQuantity overwrites the entry's quantity. Weight-type quantities are
// first normalized by the portion policy; a zero quantity removes the entry.
func (s *cartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, req *models.UpdateQuantityRequest) (*models.Cart, error) {

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	if _, ok := cart.Entries[req.ProductID.String()]; !ok {
		return nil, appErrors.BadRequestError("Item not found in the cart")
	}

	if req.Quantity == 0 {
		delete(cart.Entries, req.ProductID.String())

		if err := s.carts.SaveCart(ctx, cart); err != nil {
			return nil, appErrors.DatabaseError("Failed to update cart").WithError(err)
		}

		return cart, nil
	}

	product, err := s.loadProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	quantity := req.Quantity
	if product.UnitKind == models.UnitKindWeight {
		quantity = s.portions.Normalize(quantity)
	}

	if ceiling := product.UnitKind.CartUnits(product.StockQuantity); quantity > ceiling {
		return nil, appErrors.ValidationError("Requested quantity exceeds available stock").
			WithDetail(fmt.Sprintf("%s: requested %d, available %d", product.Name, quantity, ceiling))
	}

	cart.Entries[req.ProductID.String()] = models.CartEntry{ProductID: req.ProductID, Quantity: quantity}

	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to update cart").WithError(err)
	}

	return cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID uuid.UUID) (*models.Cart, error) {

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	if _, ok := cart.Entries[productID.String()]; !ok {
		return nil, appErrors.BadRequestError("Item not found in the cart")
	}

	delete(cart.Entries, productID.String())

	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to update cart").WithError(err)
	}

	return cart, nil
}

// Replace swaps the whole cart for the given entries. Later duplicates of the
// same product win; every product must exist and be available.
func (s *cartService) Replace(ctx context.Context, userID uuid.UUID, entries []models.CartEntry) (*models.Cart, error) {

	cart := models.NewCart(userID)

	for _, entry := range entries {

		if entry.Quantity < 1 {
			return nil, appErrors.ValidationError("Quantity must be at least 1").
				WithDetail("product " + entry.ProductID.String())
		}

		if _, err := s.loadProduct(ctx, entry.ProductID); err != nil {
			return nil, err
		}

		cart.Entries[entry.ProductID.String()] = entry
	}

	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to update cart").WithError(err)
	}

	return cart, nil
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) error {

	if err := s.carts.ClearCart(ctx, userID); err != nil {
		return appErrors.DatabaseError("Failed to clear cart").WithError(err)
	}

	return nil
}

// Summary prices every entry at the current catalog price. Prices are only
// frozen at checkout, never here.
func (s *cartService) Summary(ctx context.Context, userID uuid.UUID) (*models.CartSummary, error) {

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	summary := &models.CartSummary{Lines: make([]models.CartLine, 0, len(cart.Entries))}

	for _, entry := range cart.Entries {

		product, err := s.products.GetProductByID(ctx, entry.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFoundError("Product not found: " + entry.ProductID.String()).WithError(err)
			}
			return nil, appErrors.DatabaseError("Failed to load product").WithError(err)
		}

		subtotal := pricing.Line(product, entry.Quantity)

		summary.Lines = append(summary.Lines, models.CartLine{
			Product:  product,
			Quantity: entry.Quantity,
			Subtotal: subtotal,
		})

		summary.Total += subtotal
	}

	sort.Slice(summary.Lines, func(i, j int) bool {
		return summary.Lines[i].Product.Name < summary.Lines[j].Product.Name
	})

	return summary, nil
}
