package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/BearBump/StreetEats/internal/services/notifier"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	limit, offset := parsePage(r)
	items, err := s.inbox.List(r.Context(), id.UserID, limit, offset)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	count, err := s.inbox.CountUnread(r.Context(), id.UserID)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	nid, ok := parseNotificationID(w, r)
	if !ok {
		return
	}
	if err := s.inbox.MarkRead(r.Context(), nid); err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := s.inbox.MarkAllRead(r.Context(), id.UserID); err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	nid, ok := parseNotificationID(w, r)
	if !ok {
		return
	}
	if err := s.inbox.Delete(r.Context(), nid); err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) clearNotifications(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := s.inbox.ClearAll(r.Context(), id.UserID); err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func parseNotificationID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

type registerTruckRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// registerTruck пишет трак в справочник и рассылает админам событие о новом
// траке. Рассылка best-effort, регистрацию её сбой не откатывает.
func (s *Server) registerTruck(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if id.Role != RoleOwner && id.Role != RoleAdmin {
		writeError(w, http.StatusForbidden, "owner or admin role required")
		return
	}

	var req registerTruckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required")
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = id.UserID
	}

	truck := models.TruckRef{ID: req.ID, Name: req.Name, OwnerID: req.OwnerID}
	if err := s.dir.UpsertTruck(r.Context(), truck); err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	_ = s.inbox.Dispatch(r.Context(), notifier.TruckRegistered{TruckID: truck.ID, Name: truck.Name})

	writeJSON(w, http.StatusCreated, truck)
}

type submitReviewRequest struct {
	TruckID      string `json:"truckId"`
	ReviewerName string `json:"reviewerName"`
	Rating       int    `json:"rating"`
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.TruckID == "" || req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "truckId and rating 1..5 are required")
		return
	}
	if req.ReviewerName == "" {
		req.ReviewerName = identityFrom(r.Context()).UserID
	}

	_ = s.inbox.Dispatch(r.Context(), notifier.ReviewSubmitted{
		TruckID:      req.TruckID,
		ReviewerName: req.ReviewerName,
		Rating:       req.Rating,
	})
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type signupRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// userSignedUp - hook от identity-провайдера о новой регистрации.
func (s *Server) userSignedUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.Name == "" {
		req.Name = req.UserID
	}

	_ = s.inbox.Dispatch(r.Context(), notifier.UserSignedUp{UserID: req.UserID, Name: req.Name})
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}
