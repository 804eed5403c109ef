package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ms-venues/internal/apperrors"
	"ms-venues/internal/logger"
	"ms-venues/internal/models"
	"ms-venues/internal/venues/cache"
	"ms-venues/internal/venues/db"
	"ms-venues/internal/venues/query"
)

type VenueDBLayer interface {
	ListVenues(ctx context.Context, spec query.Spec) ([]models.Venue, error)
	CountVenues(ctx context.Context, spec query.CountSpec) (int, error)
	GetVenueByID(ctx context.Context, id string) (*models.Venue, error)
	VenueExists(ctx context.Context, id string) (bool, error)
	CreateVenue(ctx context.Context, venue *models.Venue) error
	UpdateVenue(ctx context.Context, venue *models.Venue) error
	DeleteVenue(ctx context.Context, id string) error
	GetContactsByVenue(ctx context.Context, venueID string) ([]models.Contact, error)
	GetBookingsByVenue(ctx context.Context, venueID string) ([]models.Booking, error)
	GetRatingsByVenue(ctx context.Context, venueID string) ([]models.Rating, error)
	GetTagsByVenue(ctx context.Context, venueID string) ([]models.Tag, error)
}

// VenueCache holds venue records. Get returns nil, nil on a miss. Invalidate
// advances the generation, and SetIfCurrent refuses a record read under an
// older generation.
type VenueCache interface {
	Get(ctx context.Context, id string) (*models.Venue, error)
	Generation(ctx context.Context, id string) (int64, error)
	SetIfCurrent(ctx context.Context, venue *models.Venue, generation int64) (bool, error)
	Invalidate(ctx context.Context, id string) error
}

type VenueLock interface {
	Acquire(ctx context.Context, venueID string) (release func(), err error)
}

type EventPublisher interface {
	PublishVenueCreated(ctx context.Context, venue models.Venue) error
	PublishVenueUpdated(ctx context.Context, venue models.Venue) error
	PublishVenueDeleted(ctx context.Context, venueID string) error
}

// VenueService runs venue queries and mutations. Cache, Lock and Events are optional.
type VenueService struct {
	DB     VenueDBLayer
	Cache  VenueCache
	Lock   VenueLock
	Events EventPublisher
	Logger *logger.Logger

	now func() time.Time
}

type Option func(*VenueService)

func WithCache(c VenueCache) Option {
	return func(s *VenueService) { s.Cache = c }
}

func WithLock(l VenueLock) Option {
	return func(s *VenueService) { s.Lock = l }
}

func WithEvents(p EventPublisher) Option {
	return func(s *VenueService) { s.Events = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *VenueService) { s.now = now }
}

func NewVenueService(database VenueDBLayer, log *logger.Logger, opts ...Option) *VenueService {
	if log == nil {
		log = logger.NewNop()
	}
	s := &VenueService{DB: database, Logger: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListResult is one page of venues plus the totals for the whole filtered set.
type ListResult struct {
	Venues     []models.Venue
	Count      int
	Page       int
	Limit      int
	TotalPages int
}

// List runs the page query and the count query for the same predicates concurrently.
func (s *VenueService) List(ctx context.Context, spec query.Spec) (*ListResult, error) {
	var (
		venues []models.Venue
		count  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		venues, err = s.DB.ListVenues(gctx, spec)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.DB.CountVenues(gctx, spec.Count())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal("failed to list venues", err)
	}

	if venues == nil {
		venues = []models.Venue{}
	}
	return &ListResult{
		Venues:     venues,
		Count:      count,
		Page:       spec.Page(),
		Limit:      spec.Limit(),
		TotalPages: query.TotalPages(count, spec.Limit()),
	}, nil
}

// GetByID returns the venue with its contacts, bookings, ratings and tags.
// Relations are always read from storage. A failed relation lookup fails the whole call.
func (s *VenueService) GetByID(ctx context.Context, id string) (*models.VenueDetail, error) {
	venue, err := s.loadVenue(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.VenueDetail{Venue: *venue}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail.Contacts, err = s.DB.GetContactsByVenue(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		detail.Bookings, err = s.DB.GetBookingsByVenue(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		detail.Ratings, err = s.DB.GetRatingsByVenue(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		detail.Tags, err = s.DB.GetTagsByVenue(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal("failed to fetch venue relations", err)
	}
	normalizeRelations(detail)
	return detail, nil
}

// loadVenue reads through the cache. The generation is taken before the
// storage read so a mutation committed in between blocks the write-back.
func (s *VenueService) loadVenue(ctx context.Context, id string) (*models.Venue, error) {
	if venue := s.cachedVenue(ctx, id); venue != nil {
		return venue, nil
	}
	generation, cacheable := s.cacheGeneration(ctx, id)

	venue, err := s.DB.GetVenueByID(ctx, id)
	if errors.Is(err, db.ErrVenueNotFound) {
		return nil, apperrors.VenueNotFound(id)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch venue", err)
	}

	if cacheable {
		s.storeVenue(ctx, venue, generation)
	}
	return venue, nil
}

func normalizeRelations(d *models.VenueDetail) {
	if d.Contacts == nil {
		d.Contacts = []models.Contact{}
	}
	if d.Bookings == nil {
		d.Bookings = []models.Booking{}
	}
	if d.Ratings == nil {
		d.Ratings = []models.Rating{}
	}
	if d.Tags == nil {
		d.Tags = []models.Tag{}
	}
}

// Create validates the patch as a new venue and persists it under a fresh identifier.
func (s *VenueService) Create(ctx context.Context, patch models.VenuePatch) (*models.Venue, error) {
	if !patch.HasName() {
		return nil, apperrors.Validation("name", "Venue name is required")
	}
	if err := patch.CheckReadOnly(); err != nil {
		return nil, err
	}

	venue := models.Venue{}
	patch.Apply(&venue)
	if err := models.ValidateVenue(&venue); err != nil {
		return nil, err
	}

	now := s.timestamp()
	venue.VenueID = uuid.NewString()
	venue.CreatedAt = now
	venue.UpdatedAt = now

	if err := s.DB.CreateVenue(ctx, &venue); err != nil {
		return nil, apperrors.Internal("failed to create venue", err)
	}

	s.Logger.LogVenue("create", venue.VenueID, "Venue created")
	s.publish("created", venue.VenueID, func(p EventPublisher) error {
		return p.PublishVenueCreated(ctx, venue)
	})
	return &venue, nil
}

// Update applies the keys present in patch to an existing venue and refreshes updated_at.
func (s *VenueService) Update(ctx context.Context, id string, patch models.VenuePatch) (*models.Venue, error) {
	if err := patch.CheckReadOnly(); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	venue, err := s.DB.GetVenueByID(ctx, id)
	if errors.Is(err, db.ErrVenueNotFound) {
		return nil, apperrors.VenueNotFound(id)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch venue", err)
	}

	previous := venue.UpdatedAt
	patch.Apply(venue)
	if err := models.ValidateVenue(venue); err != nil {
		return nil, err
	}
	venue.UpdatedAt = s.nextUpdatedAt(previous)

	err = s.DB.UpdateVenue(ctx, venue)
	if errors.Is(err, db.ErrVenueNotFound) {
		// deleted between the read and the write
		return nil, apperrors.VenueNotFound(id)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to update venue", err)
	}

	s.invalidate(ctx, id)
	s.Logger.LogVenue("update", id, "Venue updated")
	updated := *venue
	s.publish("updated", id, func(p EventPublisher) error {
		return p.PublishVenueUpdated(ctx, updated)
	})
	return venue, nil
}

// Delete removes an existing venue together with its contacts, bookings, ratings and tag links.
func (s *VenueService) Delete(ctx context.Context, id string) error {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	exists, err := s.DB.VenueExists(ctx, id)
	if err != nil {
		return apperrors.Internal("failed to fetch venue", err)
	}
	if !exists {
		return apperrors.VenueNotFound(id)
	}

	err = s.DB.DeleteVenue(ctx, id)
	if errors.Is(err, db.ErrVenueNotFound) {
		return apperrors.VenueNotFound(id)
	}
	if err != nil {
		return apperrors.Internal("failed to delete venue", err)
	}

	s.invalidate(ctx, id)
	s.Logger.LogVenue("delete", id, "Venue deleted")
	s.publish("deleted", id, func(p EventPublisher) error {
		return p.PublishVenueDeleted(ctx, id)
	})
	return nil
}

// timestamp is the current time at the precision Postgres stores.
func (s *VenueService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt is strictly after previous even when the clock has not advanced.
func (s *VenueService) nextUpdatedAt(previous time.Time) time.Time {
	now := s.timestamp()
	if !now.After(previous) {
		return previous.Add(time.Microsecond)
	}
	return now
}

func (s *VenueService) acquire(ctx context.Context, id string) (func(), error) {
	if s.Lock == nil {
		return func() {}, nil
	}
	release, err := s.Lock.Acquire(ctx, id)
	if errors.Is(err, cache.ErrLockTimeout) {
		return nil, apperrors.Conflict(fmt.Sprintf("Venue with ID %s is being modified by another request", id))
	}
	if err != nil {
		return nil, apperrors.Internal("failed to lock venue", err)
	}
	return release, nil
}

func (s *VenueService) cachedVenue(ctx context.Context, id string) *models.Venue {
	if s.Cache == nil {
		return nil
	}
	venue, err := s.Cache.Get(ctx, id)
	if err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Cache read failed for venue %s: %v", id, err))
		return nil
	}
	return venue
}

func (s *VenueService) cacheGeneration(ctx context.Context, id string) (int64, bool) {
	if s.Cache == nil {
		return 0, false
	}
	generation, err := s.Cache.Generation(ctx, id)
	if err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Cache generation read failed for venue %s: %v", id, err))
		return 0, false
	}
	return generation, true
}

func (s *VenueService) storeVenue(ctx context.Context, venue *models.Venue, generation int64) {
	written, err := s.Cache.SetIfCurrent(ctx, venue, generation)
	if err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Cache write failed for venue %s: %v", venue.VenueID, err))
		return
	}
	if !written {
		s.Logger.Debug("CACHE", fmt.Sprintf("Skipped caching venue %s: changed during read", venue.VenueID))
	}
}

func (s *VenueService) invalidate(ctx context.Context, id string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, id); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Cache invalidation failed for venue %s: %v", id, err))
	}
}

// publish never fails the caller; the write has already committed.
func (s *VenueService) publish(action, id string, send func(EventPublisher) error) {
	if s.Events == nil {
		return
	}
	if err := send(s.Events); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish venue %s event for %s: %v", action, id, err))
	}
}
