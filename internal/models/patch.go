package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ms-venues/internal/apperrors"
)

// Optional records whether a JSON key was present, and whether it was null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Null = true
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// AmenitiesPatch carries only the amenity flags a client sent.
type AmenitiesPatch struct {
	Parking          *bool `json:"parking"`
	SoundSystem      *bool `json:"sound_system"`
	InHouseEngineer  *bool `json:"in_house_engineer"`
	StageLighting    *bool `json:"stage_lighting"`
	DressingRoom     *bool `json:"dressing_room"`
	Bar              *bool `json:"bar"`
	FoodService      *bool `json:"food_service"`
	Accessible       *bool `json:"accessible"`
	Wifi             *bool `json:"wifi"`
	MerchandiseSpace *bool `json:"merchandise_space"`
}

func (p *AmenitiesPatch) UnmarshalJSON(data []byte) error {
	type plain AmenitiesPatch
	var out plain

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return err
	}
	*p = AmenitiesPatch(out)
	return nil
}

func (p AmenitiesPatch) applyTo(a *Amenities) {
	setBool(&a.Parking, p.Parking)
	setBool(&a.SoundSystem, p.SoundSystem)
	setBool(&a.InHouseEngineer, p.InHouseEngineer)
	setBool(&a.StageLighting, p.StageLighting)
	setBool(&a.DressingRoom, p.DressingRoom)
	setBool(&a.Bar, p.Bar)
	setBool(&a.FoodService, p.FoodService)
	setBool(&a.Accessible, p.Accessible)
	setBool(&a.Wifi, p.Wifi)
	setBool(&a.MerchandiseSpace, p.MerchandiseSpace)
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// VenuePatch is the body of a create or update request. Only keys present in
// the request are applied; the read-only keys exist so they can be rejected.
type VenuePatch struct {
	Name        Optional[string]         `json:"name"`
	Address     Optional[string]         `json:"address"`
	City        Optional[string]         `json:"city"`
	State       Optional[string]         `json:"state"`
	Country     Optional[string]         `json:"country"`
	ZipCode     Optional[string]         `json:"zip_code"`
	Capacity    Optional[int]            `json:"capacity"`
	Website     Optional[string]         `json:"website"`
	Phone       Optional[string]         `json:"phone"`
	Email       Optional[string]         `json:"email"`
	Description Optional[string]         `json:"description"`
	Amenities   Optional[AmenitiesPatch] `json:"amenities"`
	LoadInInfo  Optional[string]         `json:"load_in_info"`
	ParkingInfo Optional[string]         `json:"parking_info"`

	VenueID   Optional[json.RawMessage] `json:"venue_id"`
	CreatedAt Optional[json.RawMessage] `json:"created_at"`
	UpdatedAt Optional[json.RawMessage] `json:"updated_at"`
}

// DecodeVenuePatch reads a JSON object, rejecting keys outside the venue attribute set.
func DecodeVenuePatch(r io.Reader) (VenuePatch, error) {
	var patch VenuePatch

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return VenuePatch{}, decodeError(err)
	}
	if dec.More() {
		return VenuePatch{}, apperrors.Validation("body", "request body must contain a single JSON object")
	}
	if err := patch.CheckReadOnly(); err != nil {
		return VenuePatch{}, err
	}
	return patch, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var sizeErr *http.MaxBytesError
	switch {
	case errors.As(err, &sizeErr):
		return apperrors.Validationf("body", "request body must not exceed %d bytes", sizeErr.Limit)
	case errors.Is(err, io.EOF):
		return apperrors.Validation("body", "request body is required")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return apperrors.Validationf(field, "%s has the wrong type: expected %s", field, typeErr.Type.String())
	case errors.As(err, &syntaxErr):
		return apperrors.Validationf("body", "malformed JSON at offset %d", syntaxErr.Offset)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return apperrors.Validationf(field, "unknown field %q", field)
	default:
		return apperrors.Validation("body", fmt.Sprintf("invalid request body: %v", err))
	}
}

// CheckReadOnly rejects server-assigned keys.
func (p VenuePatch) CheckReadOnly() error {
	switch {
	case p.VenueID.Set:
		return apperrors.Validation("venue_id", "venue_id is assigned by the server and cannot be set")
	case p.CreatedAt.Set:
		return apperrors.Validation("created_at", "created_at is assigned by the server and cannot be set")
	case p.UpdatedAt.Set:
		return apperrors.Validation("updated_at", "updated_at is assigned by the server and cannot be set")
	}
	return nil
}

// HasName reports whether the patch carries a non-blank name.
func (p VenuePatch) HasName() bool {
	return p.Name.Set && !p.Name.Null && strings.TrimSpace(p.Name.Value) != ""
}

// Apply merges the present keys onto v. Identifier and timestamps are never touched.
func (p VenuePatch) Apply(v *Venue) {
	applyString(&v.Name, p.Name)
	applyString(&v.Address, p.Address)
	applyString(&v.City, p.City)
	applyString(&v.State, p.State)
	applyString(&v.Country, p.Country)
	applyString(&v.ZipCode, p.ZipCode)
	applyString(&v.Website, p.Website)
	applyString(&v.Phone, p.Phone)
	applyString(&v.Email, p.Email)
	applyString(&v.Description, p.Description)
	applyString(&v.LoadInInfo, p.LoadInInfo)
	applyString(&v.ParkingInfo, p.ParkingInfo)

	if p.Capacity.Set {
		if p.Capacity.Null {
			v.Capacity = nil
		} else {
			capacity := p.Capacity.Value
			v.Capacity = &capacity
		}
	}

	if p.Amenities.Set {
		if p.Amenities.Null {
			v.Amenities = nil
		} else {
			merged := Amenities{}
			if v.Amenities != nil {
				merged = *v.Amenities
			}
			p.Amenities.Value.applyTo(&merged)
			v.Amenities = &merged
		}
	}
}

func applyString(dst *string, src Optional[string]) {
	if src.Set {
		*dst = src.Value
	}
}
