package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:contact"`

	ContactID string    `bun:"contact_id,pk" json:"contact_id"`
	VenueID   string    `bun:"venue_id,notnull" json:"venue_id"`
	FirstName string    `bun:"first_name,nullzero" json:"first_name"`
	LastName  string    `bun:"last_name,nullzero" json:"last_name"`
	Title     string    `bun:"title,nullzero" json:"title"`
	Email     string    `bun:"email,nullzero" json:"email"`
	Phone     string    `bun:"phone,nullzero" json:"phone"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:booking"`

	BookingID string    `bun:"booking_id,pk" json:"booking_id"`
	VenueID   string    `bun:"venue_id,notnull" json:"venue_id"`
	EventName string    `bun:"event_name,nullzero" json:"event_name"`
	EventDate time.Time `bun:"event_date,nullzero" json:"event_date"`
	Status    string    `bun:"status,nullzero" json:"status"`
	Fee       *float64  `bun:"fee" json:"fee"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Rating struct {
	bun.BaseModel `bun:"table:ratings,alias:rating"`

	RatingID      string    `bun:"rating_id,pk" json:"rating_id"`
	VenueID       string    `bun:"venue_id,notnull" json:"venue_id"`
	OverallRating int       `bun:"overall_rating,notnull" json:"overall_rating"`
	Title         string    `bun:"title,nullzero" json:"title"`
	Comments      string    `bun:"comments,nullzero" json:"comments"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:tag"`

	TagID string `bun:"tag_id,pk" json:"tag_id"`
	Name  string `bun:"name,notnull,unique" json:"name"`
}

// VenueTag is the join row between venues and tags.
type VenueTag struct {
	bun.BaseModel `bun:"table:venue_tags,alias:venue_tag"`

	VenueID string `bun:"venue_id,pk" json:"venue_id"`
	TagID   string `bun:"tag_id,pk" json:"tag_id"`
}
