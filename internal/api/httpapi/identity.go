package httpapi

import (
	"context"
	"net/http"
)

// Роли приходят от внешнего identity-провайдера в заголовках: сам сервис
// токены не проверяет, этим занимается gateway перед ним.
const (
	RoleCustomer = "customer"
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
)

type Identity struct {
	UserID   string
	Role     string
	GuestKey string
}

func (id Identity) SignedIn() bool {
	return id.UserID != ""
}

type identityCtxKey struct{}

func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID:   r.Header.Get("X-User-Id"),
			Role:     r.Header.Get("X-User-Role"),
			GuestKey: r.Header.Get("X-Guest-Key"),
		}
		if id.UserID != "" && id.Role == "" {
			id.Role = RoleCustomer
		}
		ctx := context.WithValue(r.Context(), identityCtxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityCtxKey{}).(Identity)
	return id
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r.Context()).SignedIn() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
