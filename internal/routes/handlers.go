package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/services"
)

const maxBodyBytes = 64 << 10

type handler struct {
	sos       Triggerer
	messenger Messenger
	locations LocationStore
	contacts  ContactStore
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *handler) triggerSOS(w http.ResponseWriter, r *http.Request) {
	var req models.SOSRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.User.Name) == "" {
		writeError(w, http.StatusBadRequest, "user.name is required")
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get(requestIDHeader)
	}

	// The run outlives the request: only a newer trigger for the same user
	// or the timeout stops it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()
	summary, err := h.sos.Trigger(ctx, req)
	switch {
	case errors.Is(err, services.ErrSuperseded):
		writeJSON(w, http.StatusConflict, envelope{Success: false, Message: summary.Message, Data: summary, Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, envelope{Success: false, Message: summary.Message, Data: summary, Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: summary.Message, Data: summary})
	}
}

type smsRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (h *handler) sendSMS(w http.ResponseWriter, r *http.Request) {
	var req smsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Phone == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "phone and message are required")
		return
	}
	sent := h.messenger.SendSMS(r.Context(), req.Phone, req.Message)
	writeResult(w, sent, "message sent", "message not sent")
}

type callRequest struct {
	Phone string `json:"phone"`
}

func (h *handler) placeCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	placed := h.messenger.MakeCall(r.Context(), req.Phone)
	writeResult(w, placed, "call placed", "call not placed")
}

func writeResult(w http.ResponseWriter, ok bool, success, failure string) {
	if ok {
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: success})
		return
	}
	writeJSON(w, http.StatusBadGateway, envelope{Success: false, Error: failure})
}

func (h *handler) deviceStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]int{
			"battery_level":   h.messenger.BatteryLevel(),
			"signal_strength": h.messenger.SignalStrength(r.Context()),
		},
	})
}

type locationRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// putLocation stores the device's live position. With ?share=true the
// position is also texted to every stored contact.
func (h *handler) putLocation(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	var req locationRequest
	if !decode(w, r, &req) {
		return
	}
	coord := models.Coordinate{Lat: req.Lat, Lng: req.Lng}
	if err := coord.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc := models.LiveLocation{
		UserID:     userID,
		Coordinate: coord,
		Accuracy:   req.Accuracy,
		UpdatedAt:  h.now().UTC(),
	}
	if err := h.locations.SaveLocation(r.Context(), loc); err != nil {
		h.logger.Error("failed to save location", slog.String("user_id", userID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to save location")
		return
	}

	meta := map[string]interface{}{}
	if r.URL.Query().Get("share") == "true" {
		shared, err := h.shareLocation(r, userID, coord)
		if err != nil {
			h.logger.Warn("location share skipped", slog.String("user_id", userID), slog.Any("error", err))
		}
		meta["shared_with"] = shared
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: loc, Meta: meta})
}

func (h *handler) shareLocation(r *http.Request, userID string, coord models.Coordinate) (int, error) {
	recipients, err := h.contacts.ListContacts(r.Context(), userID)
	if err != nil {
		return 0, err
	}
	shared := 0
	for _, rc := range recipients {
		if h.messenger.SendLocationUpdate(r.Context(), rc.Phone, coord) {
			shared++
		}
	}
	return shared, nil
}

func (h *handler) getLocation(w http.ResponseWriter, r *http.Request) {
	h.writeLocation(w, r, false)
}

func (h *handler) guardianLocation(w http.ResponseWriter, r *http.Request) {
	h.writeLocation(w, r, true)
}

func (h *handler) writeLocation(w http.ResponseWriter, r *http.Request, withLink bool) {
	userID := mux.Vars(r)["id"]
	loc, err := h.locations.GetLocation(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load location", slog.String("user_id", userID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load location")
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "no live location for user")
		return
	}
	body := envelope{Success: true, Data: loc}
	if withLink {
		body.Meta = map[string]interface{}{
			"map_link":    loc.Coordinate.MapLink(),
			"age_seconds": int(h.now().Sub(loc.UpdatedAt).Seconds()),
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) listContacts(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	contacts, err := h.contacts.ListContacts(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list contacts", slog.String("user_id", userID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}
	if contacts == nil {
		contacts = []models.Recipient{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: contacts})
}

type contactsRequest struct {
	Contacts []models.Recipient `json:"contacts"`
}

func (h *handler) replaceContacts(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	var req contactsRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.contacts.ReplaceContacts(r.Context(), userID, req.Contacts)
	switch {
	case errors.Is(err, repository.ErrInvalidContact):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to store contacts", slog.String("user_id", userID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to store contacts")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "contacts updated", Data: req.Contacts})
}
