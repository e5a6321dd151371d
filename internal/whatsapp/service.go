package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"

	"birthday-rsvp/internal/models"
)

// brazilCountryCode is prefixed to national numbers (DDD + subscriber).
const brazilCountryCode = "55"

type Config struct {
	DataDir string

	PartyName     string
	PartyDate     string
	PartyLocation string
	HostName      string
}

// Service sends RSVP confirmations from a linked WhatsApp device.
type Service struct {
	client *whatsmeow.Client
	cfg    *Config
	log    zerolog.Logger
}

// NewService creates a new WhatsApp service backed by a sqlite device store
func NewService(ctx context.Context, cfg *Config, log zerolog.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "whatsmeow.db")
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	service := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    log.With().Str("component", "WhatsApp").Logger(),
	}
	service.client.AddEventHandler(service.eventHandler)

	return service, nil
}

// NormalizePhoneNumber reduces a phone number to digits and adds the
// Brazilian country code to national numbers, e.g. (11) 98888-7777 becomes
// 5511988887777.
func NormalizePhoneNumber(phoneNumber string) string {
	var b strings.Builder
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	// trunk prefix: 011988887777 -> 11988887777
	if strings.HasPrefix(digits, "0") && (len(digits) == 11 || len(digits) == 12) {
		digits = digits[1:]
	}
	if len(digits) == 10 || len(digits) == 11 {
		digits = brazilCountryCode + digits
	}
	return digits
}

// Connect connects to WhatsApp, printing a pairing QR code on first use
func (s *Service) Connect(ctx context.Context) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			s.log.Info().Str("event", evt.Event).Msg("Login event")
			continue
		}
		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			fmt.Printf("QR Code: %s\n", evt.Code)
			continue
		}
		fmt.Println("\n" + q.ToSmallString(false))
		fmt.Println("Scan the QR code above with WhatsApp > Settings > Linked Devices")
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// NotifyRSVP sends the attendee a confirmation for a stored RSVP. RSVPs
// without a phone are skipped.
func (s *Service) NotifyRSVP(ctx context.Context, rsvp *models.RSVP) error {
	if rsvp.Phone == nil {
		return nil
	}
	return s.SendMessage(ctx, *rsvp.Phone, ConfirmationMessage(s.cfg, rsvp))
}

// ConfirmationMessage renders the text sent after an RSVP is stored
func ConfirmationMessage(cfg *Config, rsvp *models.RSVP) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 Oi %s! Your presence at *%s* is confirmed.\n\n", rsvp.Name, cfg.PartyName)
	fmt.Fprintf(&b, "📅 Date: %s\n📍 Location: %s\n", cfg.PartyDate, cfg.PartyLocation)
	if len(rsvp.GuestNames) > 0 {
		fmt.Fprintf(&b, "\n👥 Guests (%d): %s\n", len(rsvp.GuestNames), strings.Join([]string(rsvp.GuestNames), ", "))
	}
	fmt.Fprintf(&b, "\nSee you there! 💕 %s", cfg.HostName)
	return b.String()
}

// SendMessage sends a simple text message
func (s *Service) SendMessage(ctx context.Context, phoneNumber, message string) error {
	phoneNumber = NormalizePhoneNumber(phoneNumber)
	if phoneNumber == "" {
		return fmt.Errorf("phone number has no digits")
	}

	// Verify the number is on WhatsApp before sending
	resp, err := s.client.IsOnWhatsApp(ctx, []string{"+" + phoneNumber})
	if err != nil {
		return fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return fmt.Errorf("number %s is not registered on WhatsApp", phoneNumber)
	}
	jid := resp[0].JID

	s.log.Debug().Str("jid", jid.String()).Str("phone", phoneNumber).Msg("Sending message")

	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: &message,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", jid.String(), err)
	}

	s.log.Info().Str("id", string(sent.ID)).Str("jid", jid.String()).Msg("Message sent")
	return nil
}

func (s *Service) eventHandler(evt any) {
	switch evt := evt.(type) {
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Warn().Msg("Logged out from WhatsApp")
	case *events.Message:
		if !evt.Info.IsFromMe {
			s.log.Debug().Str("sender", evt.Info.Sender.String()).Msg("Ignoring incoming message")
		}
	}
}
