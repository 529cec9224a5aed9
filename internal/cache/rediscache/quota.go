package rediscache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// QuotaIdentity - кто расходует квоту: авторизованный пользователь (дневное
// окно) или гость (пожизненный лимит без сброса).
type QuotaIdentity struct {
	Key   string
	Guest bool
}

type QuotaConfig struct {
	DailyLimit    int
	GuestLifetime int
	// Location задаёт полночь, по которой сбрасывается дневное окно.
	Location *time.Location
}

// QuotaThrottle хранит по одной записи на identity. Сброс окна ленивый:
// отдельного джоба нет, запись с чужой датой окна трактуется как пустая
// прямо при чтении.
type QuotaThrottle struct {
	c   *redis.Client
	cfg QuotaConfig

	now func() time.Time
}

func NewQuotaThrottle(addr string, cfg QuotaConfig) *QuotaThrottle {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 5
	}
	if cfg.GuestLifetime <= 0 {
		cfg.GuestLifetime = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &QuotaThrottle{
		c:   redis.NewClient(&redis.Options{Addr: addr}),
		cfg: cfg,
		now: time.Now,
	}
}

func (q *QuotaThrottle) CheckRemaining(ctx context.Context, id QuotaIdentity) (int, error) {
	count, limit, err := q.usage(ctx, id)
	if err != nil {
		return 0, err
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (q *QuotaThrottle) IsExhausted(ctx context.Context, id QuotaIdentity) (bool, error) {
	remaining, err := q.CheckRemaining(ctx, id)
	if err != nil {
		return false, err
	}
	return remaining == 0, nil
}

func (q *QuotaThrottle) RecordUse(ctx context.Context, id QuotaIdentity) error {
	if id.Guest {
		if err := q.c.Incr(ctx, guestKey(id.Key)).Err(); err != nil {
			return errors.Wrap(err, "quota incr")
		}
		return nil
	}

	today := q.today()
	key := userKey(id.Key)
	stored, err := q.c.HGet(ctx, key, "window_start").Result()
	if err != nil && err != redis.Nil {
		return errors.Wrap(err, "quota read window")
	}
	if stored != today {
		// Окно перевернулось (или записи не было): начинаем счёт заново.
		if err := q.c.HSet(ctx, key, "count", 1, "window_start", today).Err(); err != nil {
			return errors.Wrap(err, "quota reset window")
		}
		return nil
	}
	if err := q.c.HIncrBy(ctx, key, "count", 1).Err(); err != nil {
		return errors.Wrap(err, "quota incr")
	}
	return nil
}

func (q *QuotaThrottle) usage(ctx context.Context, id QuotaIdentity) (count, limit int, err error) {
	if id.Guest {
		raw, err := q.c.Get(ctx, guestKey(id.Key)).Result()
		if err == redis.Nil {
			return 0, q.cfg.GuestLifetime, nil
		}
		if err != nil {
			return 0, 0, errors.Wrap(err, "quota get")
		}
		n, _ := strconv.Atoi(raw)
		return n, q.cfg.GuestLifetime, nil
	}

	vals, err := q.c.HGetAll(ctx, userKey(id.Key)).Result()
	if err != nil {
		return 0, 0, errors.Wrap(err, "quota hgetall")
	}
	if vals["window_start"] != q.today() {
		return 0, q.cfg.DailyLimit, nil
	}
	n, _ := strconv.Atoi(vals["count"])
	return n, q.cfg.DailyLimit, nil
}

func (q *QuotaThrottle) today() string {
	return q.now().In(q.cfg.Location).Format("2006-01-02")
}

func userKey(id string) string {
	return fmt.Sprintf("quota:user:%s", id)
}

func guestKey(id string) string {
	return fmt.Sprintf("quota:guest:%s", id)
}
