package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freshgrove/fulfillment/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CartRepository is the session-scoped cart store. Carts live in Redis keyed
// by user ID; a cart has exactly one writer (its session), so no locking is
// layered on top.
type CartRepository interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type cartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartRepo(client *redis.Client, ttl time.Duration) CartRepository {
	return &cartRepository{client: client, ttl: ttl}
}

func cartKey(userID uuid.UUID) string {
	return "cart:" + userID.String()
}

// GetCart returns the stored cart, or a fresh empty one when the session has
// no cart yet.
func (r *cartRepository) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {

	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {

		if err == redis.Nil {
			return models.NewCart(userID), nil
		}

		return nil, fmt.Errorf("failed to get cart for user %s: %w", userID, err)
	}

	cart := &models.Cart{}

	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart for user %s: %w", userID, err)
	}

	if cart.Entries == nil {
		cart.Entries = make(map[string]models.CartEntry)
	}

	return cart, nil
}

func (r *cartRepository) SaveCart(ctx context.Context, cart *models.Cart) error {

	cart.UpdatedAt = time.Now()

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart for user %s: %w", cart.UserID, err)
	}

	if err := r.client.Set(ctx, cartKey(cart.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart for user %s: %w", cart.UserID, err)
	}

	return nil
}

func (r *cartRepository) ClearCart(ctx context.Context, userID uuid.UUID) error {

	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart for user %s: %w", userID, err)
	}

	return nil
}
