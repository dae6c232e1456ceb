package service

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/freshgrove/fulfillment/internal/errors"
	"github.com/freshgrove/fulfillment/internal/models"
	repository "github.com/freshgrove/fulfillment/internal/repositories"
	"github.com/google/uuid"
)

// ProductService is the read-only catalog surface. Stock is mutated only by
// the inventory ledger.
type ProductService interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error)
}

type productService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

func (s *productService) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Product not found").WithError(err)
		}
		return nil, appErrors.DatabaseError("Failed to load product").WithError(err)
	}

	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error) {

	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 20
	}

	products, total, err := s.repo.ListProducts(ctx, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list products").WithError(err)
	}

	return products, total, nil
}
