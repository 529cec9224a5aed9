package rediscart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Store - durable-хранилище корзин. Одна корзина на покупателя, пишет её
// только сам покупатель, поэтому блокировок нет: JSON-блоб целиком на ключ.
type Store struct {
	c *redis.Client
}

func New(addr string) *Store {
	return &Store{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *Store) Load(ctx context.Context, customerID string) (*models.Cart, bool, error) {
	b, err := s.c.Get(ctx, cartKey(customerID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "load cart")
	}
	var cart models.Cart
	if err := json.Unmarshal(b, &cart); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal cart")
	}
	return &cart, true, nil
}

func (s *Store) Save(ctx context.Context, cart *models.Cart) error {
	b, err := json.Marshal(cart)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}
	// TTL нет: корзина живёт до явной очистки или успешного сабмита.
	if err := s.c.Set(ctx, cartKey(cart.CustomerID), b, 0).Err(); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, customerID string) error {
	if err := s.c.Del(ctx, cartKey(customerID)).Err(); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

func cartKey(customerID string) string {
	return fmt.Sprintf("cart:%s", customerID)
}
