package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Amenities is stored as a JSON document in venues.amenities.
type Amenities struct {
	Parking          bool `json:"parking"`
	SoundSystem      bool `json:"sound_system"`
	InHouseEngineer  bool `json:"in_house_engineer"`
	StageLighting    bool `json:"stage_lighting"`
	DressingRoom     bool `json:"dressing_room"`
	Bar              bool `json:"bar"`
	FoodService      bool `json:"food_service"`
	Accessible       bool `json:"accessible"`
	Wifi             bool `json:"wifi"`
	MerchandiseSpace bool `json:"merchandise_space"`
}

type Venue struct {
	bun.BaseModel `bun:"table:venues,alias:venue"`

	VenueID     string     `bun:"venue_id,pk" json:"venue_id"`
	Name        string     `bun:"name,notnull" json:"name" validate:"required,max=255"`
	Address     string     `bun:"address,nullzero" json:"address" validate:"max=255"`
	City        string     `bun:"city,nullzero" json:"city" validate:"max=100"`
	State       string     `bun:"state,nullzero" json:"state" validate:"max=100"`
	Country     string     `bun:"country,nullzero" json:"country" validate:"max=100"`
	ZipCode     string     `bun:"zip_code,nullzero" json:"zip_code" validate:"max=20"`
	Capacity    *int       `bun:"capacity" json:"capacity" validate:"omitempty,min=0,max=2147483647"`
	Website     string     `bun:"website,nullzero" json:"website" validate:"max=255"`
	Phone       string     `bun:"phone,nullzero" json:"phone" validate:"max=20"`
	Email       string     `bun:"email,nullzero" json:"email" validate:"omitempty,email,max=255"`
	Description string     `bun:"description,nullzero" json:"description"`
	Amenities   *Amenities `bun:"amenities,type:jsonb" json:"amenities"`
	LoadInInfo  string     `bun:"load_in_info,nullzero" json:"load_in_info"`
	ParkingInfo string     `bun:"parking_info,nullzero" json:"parking_info"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// VenueDetail is a venue with its related records attached.
type VenueDetail struct {
	Venue
	Contacts []Contact `json:"contacts"`
	Bookings []Booking `json:"bookings"`
	Ratings  []Rating  `json:"ratings"`
	Tags     []Tag     `json:"tags"`
}

// SortableVenueColumns lists the venue columns a list query may order by.
var SortableVenueColumns = []string{
	"venue_id",
	"name",
	"address",
	"city",
	"state",
	"country",
	"zip_code",
	"capacity",
	"website",
	"phone",
	"email",
	"created_at",
	"updated_at",
}
