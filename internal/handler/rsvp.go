package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"birthday-rsvp/internal/models"
	"birthday-rsvp/internal/storage"
	"birthday-rsvp/internal/validate"
)

const (
	msgInvalidJSON     = "invalid JSON"
	msgNameRequired    = "name is required"
	msgNotConfigured   = "database not configured"
	msgBodyTooLarge    = "request body too large"
	msgSaveFailed      = "failed to save rsvp"
	errCodeStatsFailed = "stats_failed"

	notifyTimeout = 30 * time.Second
)

// RSVPStore is the persistence the handlers need. A nil store means the
// database was never configured.
type RSVPStore interface {
	CreateRSVPWithGuests(ctx context.Context, name string, phone *string, guestNames []string) (*models.RSVP, error)
	CountRSVPs(ctx context.Context) (int64, error)
	CountGuests(ctx context.Context) (int64, error)
}

// Notifier is told about every stored RSVP that carries a phone number.
type Notifier interface {
	NotifyRSVP(ctx context.Context, rsvp *models.RSVP) error
}

type RSVPHandler struct {
	store    RSVPStore
	notifier Notifier
	log      zerolog.Logger

	pending sync.WaitGroup
}

// createRSVPRequest keeps every field untyped so that wrong JSON types reach
// the validators instead of failing the whole decode.
type createRSVPRequest struct {
	Name   any `json:"name"`
	Phone  any `json:"phone"`
	Guests any `json:"guests"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type statsResponse struct {
	RSVPs       int64  `json:"rsvps"`
	GuestsCount int64  `json:"guestsCount"`
	Configured  bool   `json:"configured"`
	Error       string `json:"error,omitempty"`
}

// NewRSVPHandler creates a new RSVP handler. store and notifier may be nil.
func NewRSVPHandler(store RSVPStore, notifier Notifier, log zerolog.Logger) *RSVPHandler {
	return &RSVPHandler{
		store:    store,
		notifier: notifier,
		log:      log.With().Str("component", "RSVPHandler").Logger(),
	}
}

// Create handles POST /api/rsvps
func (h *RSVPHandler) Create(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, messageResponse{Message: msgNotConfigured})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, messageResponse{Message: msgBodyTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, messageResponse{Message: msgInvalidJSON})
		return
	}

	var req *createRSVPRequest
	if err := json.Unmarshal(body, &req); err != nil || req == nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: msgInvalidJSON})
		return
	}

	name, ok := validate.RequiredString(req.Name, models.MaxNameLen)
	if !ok {
		c.JSON(http.StatusBadRequest, messageResponse{Message: msgNameRequired})
		return
	}
	phone := validate.OptionalString(req.Phone, models.MaxPhoneLen)
	guests := validate.GuestList(req.Guests)

	rsvp, err := h.store.CreateRSVPWithGuests(c.Request.Context(), name, phone, guests)
	if err != nil {
		h.log.Error().Err(err).Int("guests", len(guests)).Msg("Failed to create RSVP")
		c.JSON(http.StatusInternalServerError, messageResponse{Message: msgSaveFailed})
		return
	}

	h.log.Info().Str("id", rsvp.ID.String()).Int("guests", len(rsvp.Guests)).Msg("RSVP created")
	h.notify(rsvp)
	c.JSON(http.StatusCreated, rsvp)
}

// Stats handles GET /api/rsvps/stats
func (h *RSVPHandler) Stats(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	if h.store == nil {
		c.JSON(http.StatusOK, statsResponse{})
		return
	}

	ctx := c.Request.Context()
	rsvps, err := h.store.CountRSVPs(ctx)
	var guests int64
	if err == nil {
		guests, err = h.store.CountGuests(ctx)
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, statsResponse{RSVPs: rsvps, GuestsCount: guests, Configured: true})
	case errors.Is(err, storage.ErrSchemaMissing):
		h.log.Warn().Err(err).Msg("RSVP tables missing, reporting storage as unconfigured")
		c.JSON(http.StatusOK, statsResponse{})
	default:
		h.log.Error().Err(err).Msg("Failed to fetch RSVP stats")
		c.JSON(http.StatusInternalServerError, statsResponse{Configured: true, Error: errCodeStatsFailed})
	}
}

// Wait blocks until in-flight notifications finish
func (h *RSVPHandler) Wait() {
	h.pending.Wait()
}

// notify runs detached from the request; failures never affect the response.
func (h *RSVPHandler) notify(rsvp *models.RSVP) {
	if h.notifier == nil || rsvp.Phone == nil {
		return
	}
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := h.notifier.NotifyRSVP(ctx, rsvp); err != nil {
			h.log.Warn().Err(err).Str("id", rsvp.ID.String()).Msg("Failed to send RSVP confirmation")
		}
	}()
}
