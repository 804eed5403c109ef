package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-venues/internal/models"
	"ms-venues/internal/venues/query"
)

// ErrVenueNotFound is returned when no venue row matches the identifier.
var ErrVenueNotFound = errors.New("venue not found")

type DB struct {
	Bun *bun.DB
}

// likeEscape is the LIKE escape character; it works unchanged in both Postgres and SQLite.
const likeEscape = "!"

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

func (d *DB) applyPredicates(q *bun.SelectQuery, predicates []query.Predicate) (*bun.SelectQuery, error) {
	for _, p := range predicates {
		col := bun.Ident(p.Field)
		switch p.Op {
		case query.OpContains:
			text, ok := p.Value.(string)
			if !ok {
				return nil, fmt.Errorf("predicate %s %s: expected string value, got %T", p.Field, p.Op, p.Value)
			}
			pattern := "%" + likeReplacer.Replace(text) + "%"
			if d.Bun.Dialect().Name() == dialect.PG {
				q = q.Where("? ILIKE ? ESCAPE '"+likeEscape+"'", col, pattern)
			} else {
				q = q.Where("LOWER(?) LIKE LOWER(?) ESCAPE '"+likeEscape+"'", col, pattern)
			}
		case query.OpGTE:
			q = q.Where("? >= ?", col, p.Value)
		case query.OpLTE:
			q = q.Where("? <= ?", col, p.Value)
		default:
			return nil, fmt.Errorf("unsupported operator %q on %s", p.Op, p.Field)
		}
	}
	return q, nil
}

// ListVenues returns one page of venues for spec. Ties on the sort key are broken by venue_id.
func (d *DB) ListVenues(ctx context.Context, spec query.Spec) ([]models.Venue, error) {
	venues := make([]models.Venue, 0, spec.Limit())

	q, err := d.applyPredicates(d.Bun.NewSelect().Model(&venues), spec.Predicates())
	if err != nil {
		return nil, err
	}

	sort := spec.Sort()
	direction := "ASC"
	if sort.Direction == query.Desc {
		direction = "DESC"
	}
	q = q.OrderExpr("? "+direction, bun.Ident(sort.Field))
	if sort.Field != "venue_id" {
		q = q.OrderExpr("? ASC", bun.Ident("venue_id"))
	}

	err = q.Limit(spec.Limit()).
		Offset(spec.Offset()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select venues: %w", err)
	}
	return venues, nil
}

// CountVenues counts every venue matching the predicates, ignoring pagination.
func (d *DB) CountVenues(ctx context.Context, spec query.CountSpec) (int, error) {
	q, err := d.applyPredicates(d.Bun.NewSelect().Model((*models.Venue)(nil)), spec.Predicates())
	if err != nil {
		return 0, err
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count venues: %w", err)
	}
	return count, nil
}

func (d *DB) GetVenueByID(ctx context.Context, id string) (*models.Venue, error) {
	var venue models.Venue
	err := d.Bun.NewSelect().
		Model(&venue).
		Where("? = ?", bun.Ident("venue_id"), id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVenueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select venue %s: %w", id, err)
	}
	return &venue, nil
}

func (d *DB) VenueExists(ctx context.Context, id string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Venue)(nil)).
		Where("? = ?", bun.Ident("venue_id"), id).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check venue %s: %w", id, err)
	}
	return exists, nil
}

func (d *DB) CreateVenue(ctx context.Context, venue *models.Venue) error {
	if _, err := d.Bun.NewInsert().Model(venue).Exec(ctx); err != nil {
		return fmt.Errorf("insert venue: %w", err)
	}
	return nil
}

var mutableVenueColumns = []string{
	"name", "address", "city", "state", "country", "zip_code", "capacity",
	"website", "phone", "email", "description", "amenities",
	"load_in_info", "parking_info", "updated_at",
}

// UpdateVenue writes every mutable column of venue. A vanished row is ErrVenueNotFound.
func (d *DB) UpdateVenue(ctx context.Context, venue *models.Venue) error {
	res, err := d.Bun.NewUpdate().
		Model(venue).
		Column(mutableVenueColumns...).
		Where("? = ?", bun.Ident("venue_id"), venue.VenueID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update venue %s: %w", venue.VenueID, err)
	}
	return expectOneRow(res)
}

// DeleteVenue removes the venue and every row that references it in one transaction.
func (d *DB) DeleteVenue(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dependents := []any{
			(*models.VenueTag)(nil),
			(*models.Rating)(nil),
			(*models.Booking)(nil),
			(*models.Contact)(nil),
		}
		for _, model := range dependents {
			_, err := tx.NewDelete().
				Model(model).
				Where("? = ?", bun.Ident("venue_id"), id).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("delete %T for venue %s: %w", model, id, err)
			}
		}

		res, err := tx.NewDelete().
			Model((*models.Venue)(nil)).
			Where("? = ?", bun.Ident("venue_id"), id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete venue %s: %w", id, err)
		}
		return expectOneRow(res)
	})
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrVenueNotFound
	}
	return nil
}

func (d *DB) GetContactsByVenue(ctx context.Context, venueID string) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := d.Bun.NewSelect().
		Model(&contacts).
		Where("? = ?", bun.Ident("venue_id"), venueID).
		OrderExpr("? ASC, ? ASC", bun.Ident("created_at"), bun.Ident("contact_id")).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select contacts for venue %s: %w", venueID, err)
	}
	return contacts, nil
}

func (d *DB) GetBookingsByVenue(ctx context.Context, venueID string) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("? = ?", bun.Ident("venue_id"), venueID).
		OrderExpr("? ASC, ? ASC", bun.Ident("event_date"), bun.Ident("booking_id")).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select bookings for venue %s: %w", venueID, err)
	}
	return bookings, nil
}

func (d *DB) GetRatingsByVenue(ctx context.Context, venueID string) ([]models.Rating, error) {
	ratings := []models.Rating{}
	err := d.Bun.NewSelect().
		Model(&ratings).
		Where("? = ?", bun.Ident("venue_id"), venueID).
		OrderExpr("? DESC, ? ASC", bun.Ident("created_at"), bun.Ident("rating_id")).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select ratings for venue %s: %w", venueID, err)
	}
	return ratings, nil
}

func (d *DB) GetTagsByVenue(ctx context.Context, venueID string) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := d.Bun.NewSelect().
		Model(&tags).
		Join("JOIN venue_tags AS vt ON vt.tag_id = tag.tag_id").
		Where("vt.venue_id = ?", venueID).
		OrderExpr("tag.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select tags for venue %s: %w", venueID, err)
	}
	return tags, nil
}
