package venue_api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-venues/internal/apperrors"
	"ms-venues/internal/models"
	"ms-venues/internal/venues/query"
	"ms-venues/internal/venues/service"
	"ms-venues/internal/venues/venue_api"
)

// MockVenueService is a mock implementation of the VenueService interface
type MockVenueService struct {
	mock.Mock
}

func (m *MockVenueService) List(ctx context.Context, spec query.Spec) (*service.ListResult, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult), args.Error(1)
}

func (m *MockVenueService) GetByID(ctx context.Context, id string) (*models.VenueDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VenueDetail), args.Error(1)
}

func (m *MockVenueService) Create(ctx context.Context, patch models.VenuePatch) (*models.Venue, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Venue), args.Error(1)
}

func (m *MockVenueService) Update(ctx context.Context, id string, patch models.VenuePatch) (*models.Venue, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Venue), args.Error(1)
}

func (m *MockVenueService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newRouter(svc *MockVenueService) http.Handler {
	h := venue_api.NewHandler(svc, query.NewBuilder(query.Options{}), nil)
	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r
}

func do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

var stamp = time.Date(2025, 6, 19, 10, 0, 0, 0, time.UTC)

func TestListVenuesEnvelope(t *testing.T) {
	svc := new(MockVenueService)
	capacity := 500
	svc.On("List", mock.Anything, mock.MatchedBy(func(spec query.Spec) bool {
		return spec.Page() == 2 && spec.Limit() == 10 && len(spec.Predicates()) == 2
	})).Return(&service.ListResult{
		Venues:     []models.Venue{{VenueID: "v1", Name: "The Grand Hall", Capacity: &capacity}},
		Count:      11,
		Page:       2,
		Limit:      10,
		TotalPages: 2,
	}, nil)

	rec, body := do(t, newRouter(svc), http.MethodGet, "/api/venues/?name=hall&capacity_min=400&page=2&limit=10", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(11), body["count"])
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(10), body["limit"])
	assert.Equal(t, float64(2), body["total_pages"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "The Grand Hall", data[0].(map[string]any)["name"])
	svc.AssertExpectations(t)
}

func TestListVenuesInvalidQuery(t *testing.T) {
	svc := new(MockVenueService)
	router := newRouter(svc)

	for _, target := range []string{
		"/api/venues?capacity_min=abc",
		"/api/venues?sort_by=password",
		"/api/venues?sort_order=up",
		"/api/venues?page=0",
	} {
		rec, body := do(t, router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "validation", body["error"].(map[string]any)["kind"])
	}
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestListVenuesInternalError(t *testing.T) {
	svc := new(MockVenueService)
	svc.On("List", mock.Anything, mock.Anything).Return(nil, apperrors.Internal("failed to list venues", errors.New("pq: timeout")))

	rec, body := do(t, newRouter(svc), http.MethodGet, "/api/venues", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body["error"].(map[string]any)["message"])
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestGetVenue(t *testing.T) {
	svc := new(MockVenueService)
	svc.On("GetByID", mock.Anything, "v1").Return(&models.VenueDetail{
		Venue:    models.Venue{VenueID: "v1", Name: "The Grand Hall", CreatedAt: stamp, UpdatedAt: stamp},
		Contacts: []models.Contact{{ContactID: "c1", VenueID: "v1", FirstName: "Dana"}},
		Bookings: []models.Booking{},
		Ratings:  []models.Rating{},
		Tags:     []models.Tag{{TagID: "t1", Name: "ballroom"}},
	}, nil)
	svc.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.VenueNotFound("missing"))
	router := newRouter(svc)

	rec, body := do(t, router, http.MethodGet, "/api/venues/v1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "v1", data["venue_id"])
	assert.Len(t, data["contacts"], 1)
	assert.Len(t, data["bookings"], 0)
	assert.Len(t, data["tags"], 1)

	rec, body = do(t, router, http.MethodGet, "/api/venues/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Venue with ID missing not found", body["error"].(map[string]any)["message"])
}

func TestCreateVenue(t *testing.T) {
	svc := new(MockVenueService)
	capacity := 500
	svc.On("Create", mock.Anything, mock.MatchedBy(func(p models.VenuePatch) bool {
		return p.Name.Value == "The Grand Hall" && p.Capacity.Value == 500
	})).Return(&models.Venue{VenueID: "v1", Name: "The Grand Hall", Capacity: &capacity, CreatedAt: stamp, UpdatedAt: stamp}, nil)

	rec, body := do(t, newRouter(svc), http.MethodPost, "/api/venues", `{"name": "The Grand Hall", "capacity": 500}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "v1", data["venue_id"])
	assert.Equal(t, data["created_at"], data["updated_at"])
}

func TestCreateVenueRejectsBadBodies(t *testing.T) {
	svc := new(MockVenueService)
	svc.On("Create", mock.Anything, mock.Anything).Return(nil, apperrors.Validation("name", "Venue name is required"))
	router := newRouter(svc)

	cases := map[string]string{
		`{"capacity": 10}`:                     "name",
		`{"name": "Hall", "owner": "x"}`:       "owner",
		`{"name": "Hall", "venue_id": "mine"}`: "venue_id",
		`not json`:                             "body",
	}
	for payload, param := range cases {
		rec, body := do(t, router, http.MethodPost, "/api/venues", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		assert.Equal(t, param, body["error"].(map[string]any)["param"], payload)
	}
}

func TestOversizedBodyIsRejectedCleanly(t *testing.T) {
	svc := new(MockVenueService)
	router := newRouter(svc)
	body := `{"name": "Hall", "description": "` + strings.Repeat("x", 2<<20) + `"}`

	for _, method := range []string{http.MethodPost, http.MethodPut} {
		target := "/api/venues"
		if method == http.MethodPut {
			target = "/api/venues/v1"
		}
		rec, decoded := do(t, router, method, target, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		errBody := decoded["error"].(map[string]any)
		assert.Equal(t, "body", errBody["param"])
		assert.Equal(t, "request body must not exceed 1048576 bytes", errBody["message"])
		assert.NotContains(t, rec.Body.String(), "http:")
	}
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateVenue(t *testing.T) {
	svc := new(MockVenueService)
	capacity := 600
	svc.On("Update", mock.Anything, "v1", mock.MatchedBy(func(p models.VenuePatch) bool {
		return p.Capacity.Set && p.Capacity.Value == 600 && !p.Name.Set
	})).Return(&models.Venue{VenueID: "v1", Name: "The Grand Hall", Capacity: &capacity}, nil)
	svc.On("Update", mock.Anything, "missing", mock.Anything).Return(nil, apperrors.VenueNotFound("missing"))
	router := newRouter(svc)

	rec, body := do(t, router, http.MethodPut, "/api/venues/v1", `{"capacity": 600}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(600), body["data"].(map[string]any)["capacity"])

	rec, _ = do(t, router, http.MethodPut, "/api/venues/missing", `{"capacity": 600}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodPut, "/api/venues/v1", `{"created_at": "2020-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateVenueConflict(t *testing.T) {
	svc := new(MockVenueService)
	svc.On("Update", mock.Anything, "v1", mock.Anything).Return(nil, apperrors.Conflict("Venue with ID v1 is being modified by another request"))

	rec, _ := do(t, newRouter(svc), http.MethodPut, "/api/venues/v1", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteVenue(t *testing.T) {
	svc := new(MockVenueService)
	svc.On("Delete", mock.Anything, "v1").Return(nil)
	svc.On("Delete", mock.Anything, "missing").Return(apperrors.VenueNotFound("missing"))
	router := newRouter(svc)

	rec, body := do(t, router, http.MethodDelete, "/api/venues/v1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Venue with ID v1 deleted successfully", body["message"])
	assert.NotContains(t, body, "data")

	rec, _ = do(t, router, http.MethodDelete, "/api/venues/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
