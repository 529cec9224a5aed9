package httpapi

import (
	"net/http"

	"github.com/BearBump/StreetEats/internal/cache/rediscache"
)

func quotaIdentity(id Identity) (rediscache.QuotaIdentity, bool) {
	if id.SignedIn() {
		return rediscache.QuotaIdentity{Key: id.UserID}, true
	}
	if id.GuestKey != "" {
		return rediscache.QuotaIdentity{Key: id.GuestKey, Guest: true}, true
	}
	return rediscache.QuotaIdentity{}, false
}

// surprise выбирает случайный трак. Исчерпанная квота - обычный ответ 429,
// а не ошибка сервиса.
func (s *Server) surprise(w http.ResponseWriter, r *http.Request) {
	qid, ok := quotaIdentity(identityFrom(r.Context()))
	if !ok {
		writeError(w, http.StatusUnauthorized, "X-User-Id or X-Guest-Key header is required")
		return
	}

	remaining, err := s.quota.CheckRemaining(r.Context(), qid)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	if remaining == 0 {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":     "surprise quota exhausted",
			"remaining": 0,
		})
		return
	}

	truck, err := s.dir.RandomTruck(r.Context())
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	if err := s.quota.RecordUse(r.Context(), qid); err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"truck":     truck,
		"remaining": remaining - 1,
	})
}

func (s *Server) surpriseRemaining(w http.ResponseWriter, r *http.Request) {
	qid, ok := quotaIdentity(identityFrom(r.Context()))
	if !ok {
		writeError(w, http.StatusUnauthorized, "X-User-Id or X-Guest-Key header is required")
		return
	}
	remaining, err := s.quota.CheckRemaining(r.Context(), qid)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}
