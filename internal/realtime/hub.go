package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type EventKind string

const (
	KindOrder        EventKind = "order"
	KindNotification EventKind = "notification"
	// KindStale сообщает подписчику, что в потоке мог быть пропуск
	// (переподключение или переполнение буфера): нужен один полный re-read.
	KindStale EventKind = "stale"
)

// Event несёт полный снапшот изменённой сущности. Доставка at-least-once:
// подписчик применяет событие заменой локального состояния, а не дельтой,
// поэтому повтор безвреден.
type Event struct {
	Kind       EventKind       `json:"kind"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func OrderKey(orderID uint64) string      { return fmt.Sprintf("order:%d", orderID) }
func CustomerKey(customerID string) string { return "customer:" + customerID }
func InboxKey(recipientID string) string   { return "inbox:" + recipientID }

// Hub - pub/sub канал синхронизации поверх redis. Один логический канал на
// ключ (order:<id>, customer:<id>, inbox:<id>); порядок публикаций
// сохраняется в пределах ключа, глобального порядка нет.
type Hub struct {
	c       *redis.Client
	bufSize int
}

func New(addr string, bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		c:       redis.NewClient(&redis.Options{Addr: addr}),
		bufSize: bufSize,
	}
}

func (h *Hub) Publish(ctx context.Context, key string, ev Event) error {
	ev.Key = key
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if err := h.c.Publish(ctx, channelName(key), b).Err(); err != nil {
		return errors.Wrap(err, "publish event")
	}
	return nil
}

// Subscribe открывает поток событий по ключу. Гарантий доставки за время
// до подписки нет: подписчик обязан сделать один полный read после Subscribe.
func (h *Hub) Subscribe(ctx context.Context, key string) (*Subscription, error) {
	ps := h.c.Subscribe(ctx, channelName(key))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "subscribe")
	}

	sub := &Subscription{
		key:    key,
		out:    make(chan Event, h.bufSize),
		done:   make(chan struct{}),
		pubsub: ps,
	}
	go sub.loop(ctx)
	return sub, nil
}

type Subscription struct {
	key    string
	out    chan Event
	done   chan struct{}
	once   sync.Once
	pubsub *redis.PubSub

	// dropped: буфер переполнялся, подписчику нужен stale-маркер.
	dropped bool
}

func (s *Subscription) C() <-chan Event {
	return s.out
}

// Unsubscribe останавливает доставку и освобождает соединение.
// Безопасен в любой момент, в том числе во время доставки, и повторно.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		_ = s.pubsub.Close()
	})
}

func (s *Subscription) loop(ctx context.Context) {
	defer close(s.out)

	failCount := 0
	for {
		select {
		case <-s.done:
			return
		default:
		}

		msg, err := s.pubsub.ReceiveMessage(ctx)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			failCount++
			if failCount >= 3 {
				// Переподключение не помогает: подписчик должен знать,
				// что его состояние могло устареть.
				s.deliver(Event{Kind: KindStale, Key: s.key, OccurredAt: time.Now().UTC()})
			}
			slog.Warn("realtime receive failed", "key", s.key, "attempt", failCount, "error", err.Error())
			select {
			case <-s.done:
				return
			case <-time.After(retryDelay(failCount)):
			}
			continue
		}
		failCount = 0

		var ev Event
		if json.Unmarshal([]byte(msg.Payload), &ev) != nil {
			continue
		}
		s.deliver(ev)
	}
}

// deliver не блокируется на медленном подписчике: при переполнении буфера
// событие выбрасывается, а при первой возможности вместо него доставляется
// stale-маркер, заставляющий подписчика перечитать состояние.
func (s *Subscription) deliver(ev Event) {
	if s.dropped {
		select {
		case s.out <- Event{Kind: KindStale, Key: s.key, OccurredAt: time.Now().UTC()}:
			s.dropped = false
		default:
			return
		}
	}
	select {
	case s.out <- ev:
	default:
		s.dropped = true
	}
}

func retryDelay(failCount int) time.Duration {
	switch {
	case failCount <= 1:
		return 500 * time.Millisecond
	case failCount == 2:
		return 2 * time.Second
	case failCount == 3:
		return 5 * time.Second
	default:
		return 15 * time.Second
	}
}

func channelName(key string) string {
	return "sync:" + key
}
