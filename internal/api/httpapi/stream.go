package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/StreetEats/internal/realtime"
)

const sseHeartbeat = 15 * time.Second

// streamOrder отдаёт события по одному заказу как SSE. Клиент после
// подключения делает один полный GET заказа: событий за время офлайна
// в потоке нет, event kind=stale означает то же самое посреди потока.
func (s *Server) streamOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	order, err := s.orders.GetByID(r.Context(), orderID)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	if !canSeeOrder(identityFrom(r.Context()), order) {
		writeError(w, http.StatusForbidden, "not your order")
		return
	}
	s.serveSSE(w, r, realtime.OrderKey(orderID))
}

// streamMyOrders - живая лента всех заказов покупателя: канал customer:<id>
// получает снапшот при каждой мутации любого его заказа.
func (s *Server) streamMyOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	s.serveSSE(w, r, realtime.CustomerKey(id.UserID))
}

func (s *Server) streamInbox(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	s.serveSSE(w, r, realtime.InboxKey(id.UserID))
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, key string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := s.streams.Subscribe(r.Context(), key)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			// Комментарий SSE: держит соединение живым сквозь прокси.
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-sub.C():
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
