package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"birthday-rsvp/internal/config"
	"birthday-rsvp/internal/models"
)

func newTestStorage(tb testing.TB, migrate bool) *Storage {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	s, err := NewStorage(config.DriverSQLite, dsn, zerolog.Nop())
	if err != nil {
		tb.Fatalf("NewStorage: %v", err)
	}
	tb.Cleanup(func() { _ = s.Close() })
	if migrate {
		if err := s.Migrate(context.Background()); err != nil {
			tb.Fatalf("Migrate: %v", err)
		}
	}
	return s
}

func strPtr(s string) *string { return &s }

func TestCreateRSVPWithGuests(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, true)

	rsvp, err := s.CreateRSVPWithGuests(ctx, "Maria Silva", strPtr("11988887777"), []string{"Ana", "Ana", "Bruno"})
	if err != nil {
		t.Fatalf("CreateRSVPWithGuests: %v", err)
	}
	if rsvp.ID == uuid.Nil {
		t.Fatalf("expected an id to be assigned")
	}
	if rsvp.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt to be set")
	}
	if len(rsvp.Guests) != 3 {
		t.Fatalf("unexpected guest rows: got=%d want=3", len(rsvp.Guests))
	}
	for i, g := range rsvp.Guests {
		if g.ID == uuid.Nil || g.RSVPID != rsvp.ID {
			t.Fatalf("guest %d not linked: %+v", i, g)
		}
		if g.Name != rsvp.GuestNames[i] {
			t.Fatalf("guest %d name mismatch: got=%q want=%q", i, g.Name, rsvp.GuestNames[i])
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats != (models.Stats{RSVPs: 1, GuestsCount: 3}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	listed, err := s.ListRSVPs(ctx)
	if err != nil {
		t.Fatalf("ListRSVPs: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("unexpected rsvp count: %d", len(listed))
	}
	got := listed[0]
	if got.Name != "Maria Silva" || got.Phone == nil || *got.Phone != "11988887777" {
		t.Fatalf("unexpected stored rsvp: %+v", got)
	}
	if want := []string{"Ana", "Ana", "Bruno"}; !reflect.DeepEqual([]string(got.GuestNames), want) {
		t.Fatalf("unexpected guestNames: got=%v want=%v", got.GuestNames, want)
	}
	if len(got.Guests) != 3 {
		t.Fatalf("unexpected preloaded guests: %d", len(got.Guests))
	}
}

func TestCreateRSVPWithoutGuests(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, true)

	rsvp, err := s.CreateRSVPWithGuests(ctx, "Solo", nil, nil)
	if err != nil {
		t.Fatalf("CreateRSVPWithGuests: %v", err)
	}
	if rsvp.Phone != nil {
		t.Fatalf("expected null phone, got %q", *rsvp.Phone)
	}
	if rsvp.GuestNames == nil || len(rsvp.GuestNames) != 0 {
		t.Fatalf("expected empty guestNames, got %v", rsvp.GuestNames)
	}
	if rsvp.Guests == nil || len(rsvp.Guests) != 0 {
		t.Fatalf("expected empty guests, got %v", rsvp.Guests)
	}

	n, err := s.CountGuests(ctx)
	if err != nil {
		t.Fatalf("CountGuests: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no guest rows, got %d", n)
	}
}

func TestCreateRSVPWithGuestsIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, true)

	errInjected := errors.New("injected guest insert failure")
	err := s.db.Callback().Create().After("gorm:create").Register("test:fail_guest_insert", func(db *gorm.DB) {
		if db.Statement.Table == (models.Guest{}).TableName() {
			_ = db.AddError(errInjected)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := s.CreateRSVPWithGuests(ctx, "Maria Silva", nil, []string{"Ana"}); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RSVPs != 0 || stats.GuestsCount != 0 {
		t.Fatalf("expected no rows after rollback, got %+v", stats)
	}
}

func TestDeletingRSVPCascadesToGuests(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, true)

	rsvp, err := s.CreateRSVPWithGuests(ctx, "Maria Silva", nil, []string{"Ana", "Bruno"})
	if err != nil {
		t.Fatalf("CreateRSVPWithGuests: %v", err)
	}
	keep, err := s.CreateRSVPWithGuests(ctx, "Outro", nil, []string{"Carla"})
	if err != nil {
		t.Fatalf("CreateRSVPWithGuests: %v", err)
	}

	if err := s.db.WithContext(ctx).Delete(&models.RSVP{}, "id = ?", rsvp.ID).Error; err != nil {
		t.Fatalf("delete rsvp: %v", err)
	}

	var remaining []models.Guest
	if err := s.db.WithContext(ctx).Find(&remaining).Error; err != nil {
		t.Fatalf("find guests: %v", err)
	}
	if len(remaining) != 1 || remaining[0].RSVPID != keep.ID {
		t.Fatalf("expected only the other rsvp's guest to remain, got %+v", remaining)
	}
}

func TestCountsReportMissingSchema(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, false)

	if _, err := s.CountRSVPs(ctx); !errors.Is(err, ErrSchemaMissing) {
		t.Fatalf("CountRSVPs: expected ErrSchemaMissing, got %v", err)
	}
	if _, err := s.CountGuests(ctx); !errors.Is(err, ErrSchemaMissing) {
		t.Fatalf("CountGuests: expected ErrSchemaMissing, got %v", err)
	}
	if _, err := s.CreateRSVPWithGuests(ctx, "Maria", nil, nil); err == nil {
		t.Fatalf("expected write against missing schema to fail")
	}
}

func TestIsMissingRelation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "postgres undefined table", err: &pgconn.PgError{Code: "42P01", Message: `relation "rsvps" does not exist`}, want: true},
		{name: "wrapped postgres undefined table", err: fmt.Errorf("query: %w", &pgconn.PgError{Code: "42P01"}), want: true},
		{name: "postgres unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "plain error mentioning table", err: errors.New("no such table: rsvps"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isMissingRelation(tc.err); got != tc.want {
				t.Fatalf("isMissingRelation(%v): got=%v want=%v", tc.err, got, tc.want)
			}
		})
	}
}

func TestNewStorageRejectsUnknownDriver(t *testing.T) {
	if _, err := NewStorage("mysql", "dsn", zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
