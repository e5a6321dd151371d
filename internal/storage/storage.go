package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"birthday-rsvp/internal/config"
	"birthday-rsvp/internal/models"
)

// ErrSchemaMissing marks failures caused by the tables not existing yet,
// i.e. the database was provisioned but never migrated.
var ErrSchemaMissing = errors.New("storage schema missing")

// postgres undefined_table
const pgUndefinedTable = "42P01"

type Storage struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewStorage opens a connection to the RSVP database
func NewStorage(driver, dsn string, log zerolog.Logger) (*Storage, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == config.DriverSQLite {
		// sqlite has a single writer; an in-memory database also lives only
		// as long as its connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &Storage{db: db, log: log}, nil
}

// Migrate creates or updates the rsvps and rsvp_guests tables
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.RSVP{}, &models.Guest{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	s.log.Info().Msg("Schema migrated")
	return nil
}

// CreateRSVPWithGuests stores an RSVP and one guest row per name in a single
// transaction. Either everything is written or nothing is.
func (s *Storage) CreateRSVPWithGuests(ctx context.Context, name string, phone *string, guestNames []string) (*models.RSVP, error) {
	rsvp := &models.RSVP{
		Name:       name,
		Phone:      phone,
		GuestNames: datatypes.JSONSlice[string](append([]string{}, guestNames...)),
		Guests:     []models.Guest{},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(rsvp).Error; err != nil {
			return fmt.Errorf("failed to create rsvp: %w", err)
		}
		if len(guestNames) == 0 {
			return nil
		}

		guests := make([]models.Guest, 0, len(guestNames))
		for _, guestName := range guestNames {
			guests = append(guests, models.Guest{RSVPID: rsvp.ID, Name: guestName})
		}
		if err := tx.Create(&guests).Error; err != nil {
			return fmt.Errorf("failed to create guests: %w", err)
		}
		rsvp.Guests = guests
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return rsvp, nil
}

// CountRSVPs returns the number of stored RSVPs
func (s *Storage) CountRSVPs(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.RSVP{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count rsvps: %w", classify(err))
	}
	return n, nil
}

// CountGuests returns the number of stored guests across all RSVPs
func (s *Storage) CountGuests(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Guest{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count guests: %w", classify(err))
	}
	return n, nil
}

// Stats returns both counts
func (s *Storage) Stats(ctx context.Context) (models.Stats, error) {
	rsvps, err := s.CountRSVPs(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	guests, err := s.CountGuests(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	return models.Stats{RSVPs: rsvps, GuestsCount: guests}, nil
}

// ListRSVPs returns all RSVPs with their guests, oldest first
func (s *Storage) ListRSVPs(ctx context.Context) ([]models.RSVP, error) {
	var rsvps []models.RSVP
	err := s.db.WithContext(ctx).
		Preload("Guests").
		Order("created_at ASC").
		Find(&rsvps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rsvps: %w", classify(err))
	}
	return rsvps, nil
}

// Close releases the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlDB.Close()
}

// classify tags driver errors that mean the tables do not exist.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrSchemaMissing) {
		return err
	}
	if isMissingRelation(err) {
		return fmt.Errorf("%w: %w", ErrSchemaMissing, err)
	}
	return err
}

func isMissingRelation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrError && strings.Contains(sqliteErr.Error(), "no such table")
	}
	return false
}
