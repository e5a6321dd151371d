package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Field bounds applied before anything is stored.
const (
	MaxNameLen      = 120
	MaxPhoneLen     = 40
	MaxGuestNameLen = 120
	MaxGuests       = 20
)

// RSVP is one attendee's confirmation. GuestNames mirrors the names of the
// owned Guest rows and is written from the same input.
type RSVP struct {
	ID         uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string                      `gorm:"size:120;not null" json:"name"`
	Phone      *string                     `gorm:"size:40" json:"phone"`
	GuestNames datatypes.JSONSlice[string] `gorm:"not null" json:"guestNames"`
	CreatedAt  time.Time                   `gorm:"not null;index" json:"createdAt"`
	Guests     []Guest                     `gorm:"foreignKey:RSVPID;references:ID;constraint:OnDelete:CASCADE" json:"guests"`
}

func (RSVP) TableName() string { return "rsvps" }

func (r *RSVP) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.GuestNames == nil {
		r.GuestNames = datatypes.JSONSlice[string]{}
	}
	return nil
}

// Guest is an accompanying attendee owned by exactly one RSVP.
type Guest struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RSVPID uuid.UUID `gorm:"type:uuid;column:rsvp_id;not null;index" json:"-"`
	Name   string    `gorm:"size:120;not null" json:"name"`
}

func (Guest) TableName() string { return "rsvp_guests" }

func (g *Guest) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Stats is the aggregate view served to the landing page.
type Stats struct {
	RSVPs       int64
	GuestsCount int64
}
