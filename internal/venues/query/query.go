// Package query turns loosely-typed list parameters into a validated venue query specification.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"ms-venues/internal/apperrors"
	"ms-venues/internal/models"
)

type Operator string

const (
	// OpContains is a case-insensitive substring match.
	OpContains Operator = "contains"
	OpGTE      Operator = "gte"
	OpLTE      Operator = "lte"
)

type Predicate struct {
	Field string
	Op    Operator
	Value any
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Sort struct {
	Field     string
	Direction Direction
}

// Spec is a list query: predicates joined with AND, one sort key and a page window.
// It is immutable; accessors hand out copies.
type Spec struct {
	predicates []Predicate
	sort       Sort
	page       int
	limit      int
}

func (s Spec) Predicates() []Predicate {
	return append([]Predicate(nil), s.predicates...)
}

func (s Spec) Sort() Sort { return s.sort }

func (s Spec) Page() int { return s.page }

func (s Spec) Limit() int { return s.limit }

func (s Spec) Offset() int { return (s.page - 1) * s.limit }

// Count drops the sort and paging window and keeps the predicates.
func (s Spec) Count() CountSpec {
	return CountSpec{predicates: s.Predicates()}
}

type CountSpec struct {
	predicates []Predicate
}

func (c CountSpec) Predicates() []Predicate {
	return append([]Predicate(nil), c.predicates...)
}

// TotalPages is ceil(count / limit).
func TotalPages(count, limit int) int {
	if limit <= 0 || count <= 0 {
		return 0
	}
	return (count + limit - 1) / limit
}

const (
	DefaultSortField = "name"
	DefaultPage      = 1
	DefaultLimit     = 20
	MaxLimit         = 100
)

var textFilters = []string{"name", "city", "state", "country"}

type Options struct {
	DefaultLimit int
	MaxLimit     int
}

type Builder struct {
	defaultLimit int
	maxLimit     int
	sortable     map[string]struct{}
}

func NewBuilder(opts Options) *Builder {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}

	sortable := make(map[string]struct{}, len(models.SortableVenueColumns))
	for _, col := range models.SortableVenueColumns {
		sortable[col] = struct{}{}
	}

	return &Builder{
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		sortable:     sortable,
	}
}

// Build validates params and composes a Spec. Blank values count as absent.
// A limit above the maximum is clamped to the maximum.
func (b *Builder) Build(params url.Values) (Spec, error) {
	spec := Spec{
		sort:  Sort{Field: DefaultSortField, Direction: Asc},
		page:  DefaultPage,
		limit: b.defaultLimit,
	}

	for _, field := range textFilters {
		if v := param(params, field); v != "" {
			spec.predicates = append(spec.predicates, Predicate{Field: field, Op: OpContains, Value: v})
		}
	}

	minCap, hasMin, err := intParam(params, "capacity_min")
	if err != nil {
		return Spec{}, err
	}
	maxCap, hasMax, err := intParam(params, "capacity_max")
	if err != nil {
		return Spec{}, err
	}
	if hasMin && hasMax && minCap > maxCap {
		return Spec{}, apperrors.Validationf("capacity_min", "capacity_min (%d) must not exceed capacity_max (%d)", minCap, maxCap)
	}
	if hasMin {
		spec.predicates = append(spec.predicates, Predicate{Field: "capacity", Op: OpGTE, Value: minCap})
	}
	if hasMax {
		spec.predicates = append(spec.predicates, Predicate{Field: "capacity", Op: OpLTE, Value: maxCap})
	}

	if v := param(params, "sort_by"); v != "" {
		if _, ok := b.sortable[v]; !ok {
			return Spec{}, apperrors.Validationf("sort_by", "sort_by must be one of %s, got %q", strings.Join(models.SortableVenueColumns, ", "), v)
		}
		spec.sort.Field = v
	}

	if v := param(params, "sort_order"); v != "" {
		switch Direction(strings.ToLower(v)) {
		case Asc:
			spec.sort.Direction = Asc
		case Desc:
			spec.sort.Direction = Desc
		default:
			return Spec{}, apperrors.Validationf("sort_order", "sort_order must be asc or desc, got %q", v)
		}
	}

	page, hasPage, err := intParam(params, "page")
	if err != nil {
		return Spec{}, err
	}
	if hasPage {
		if page < 1 {
			return Spec{}, apperrors.Validationf("page", "page must be a positive integer, got %d", page)
		}
		spec.page = page
	}

	limit, hasLimit, err := intParam(params, "limit")
	if err != nil {
		return Spec{}, err
	}
	if hasLimit {
		if limit < 1 {
			return Spec{}, apperrors.Validationf("limit", "limit must be a positive integer, got %d", limit)
		}
		spec.limit = min(limit, b.maxLimit)
	}

	return spec, nil
}

func param(params url.Values, key string) string {
	return strings.TrimSpace(params.Get(key))
}

func intParam(params url.Values, key string) (int, bool, error) {
	raw := param(params, key)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, apperrors.Validationf(key, "%s must be an integer, got %q", key, raw)
	}
	return n, true, nil
}
