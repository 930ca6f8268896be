package repository

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"project-tracker-api/internal/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 200
)

// ErrInvalidSort is returned for a sort key outside the whitelist
var ErrInvalidSort = errors.New("invalid sort field")

// ErrInvalidPage is returned for a negative page or an out of range size
var ErrInvalidPage = errors.New("invalid page request")

// SortField orders results by one whitelisted project field
type SortField struct {
	Field string
	Desc  bool
}

var (
	// SortByID is the stable default order of manager-scoped listings
	SortByID = []SortField{{Field: "id"}}
	// SortByUpdatedDesc puts the most recently changed projects first
	SortByUpdatedDesc = []SortField{{Field: "updatedAt", Desc: true}}
)

// ProjectSortColumns maps sort keys to project table columns.
var ProjectSortColumns = map[string]string{
	"id":                   "project_id",
	"name":                 "name",
	"projectCode":          "project_code",
	"status":               "status",
	"priority":             "priority",
	"startDate":            "start_date",
	"endDate":              "end_date",
	"budget":               "budget",
	"clientName":           "client_name",
	"completionPercentage": "completion_percentage",
	"createdAt":            "created_at",
	"updatedAt":            "updated_at",
}

// sortAliases accepts the snake_case spelling of every sort key
var sortAliases = func() map[string]string {
	m := make(map[string]string, len(ProjectSortColumns))
	for key, col := range ProjectSortColumns {
		m[key] = key
		m[col] = key
	}
	m["project_id"] = "id"
	return m
}()

// ParseSortField resolves a camelCase or snake_case sort key.
// dir "desc" (any case) sorts descending; anything else ascending.
func ParseSortField(field, dir string) (SortField, error) {
	key, ok := sortAliases[strings.TrimSpace(field)]
	if !ok {
		return SortField{}, fmt.Errorf("%w: %q", ErrInvalidSort, field)
	}
	return SortField{Field: key, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")}, nil
}

// WithTieBreaker appends an id ordering, in the direction of the first key, unless
// id is already part of the sort.
func WithTieBreaker(sort []SortField) []SortField {
	if len(sort) == 0 {
		return SortByID
	}
	for _, s := range sort {
		if s.Field == "id" {
			return sort
		}
	}
	out := make([]SortField, 0, len(sort)+1)
	out = append(out, sort...)
	return append(out, SortField{Field: "id", Desc: sort[0].Desc})
}

// PageRequest selects one page of a sorted listing
type PageRequest struct {
	Page int
	Size int
	Sort []SortField
}

// NewPageRequest validates paging parameters
func NewPageRequest(page, size int, sortBy, sortDir string) (PageRequest, error) {
	if page < 0 {
		return PageRequest{}, fmt.Errorf("%w: page must be >= 0", ErrInvalidPage)
	}
	if size < 1 || size > MaxPageSize {
		return PageRequest{}, fmt.Errorf("%w: size must be between 1 and %d", ErrInvalidPage, MaxPageSize)
	}
	if page > MaxPage(size) {
		return PageRequest{}, fmt.Errorf("%w: page must be <= %d", ErrInvalidPage, MaxPage(size))
	}
	sf, err := ParseSortField(sortBy, sortDir)
	if err != nil {
		return PageRequest{}, err
	}
	return PageRequest{Page: page, Size: size, Sort: []SortField{sf}}, nil
}

// MaxPage is the largest page whose offset fits in an int32
func MaxPage(size int) int {
	return math.MaxInt32 / size
}

// Offset is the number of rows skipped before the page
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// TotalPages returns how many pages of p.Size hold total rows
func (p PageRequest) TotalPages(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// CompareProjects orders a and b by the given sort; it mirrors the SQL ORDER BY
// including NULLS LAST for ascending and NULLS FIRST for descending keys.
func CompareProjects(a, b *models.Project, sort []SortField) int {
	for _, s := range sort {
		c := compareField(a, b, s.Field)
		if s.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareField(a, b *models.Project, field string) int {
	switch field {
	case "id":
		return cmpInt64(a.ID, b.ID)
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "projectCode":
		return strings.Compare(a.ProjectCode, b.ProjectCode)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "priority":
		return strings.Compare(string(a.Priority), string(b.Priority))
	case "startDate":
		return a.StartDate.Time().Compare(b.StartDate.Time())
	case "endDate":
		return cmpNullable(a.EndDate == nil, b.EndDate == nil, func() int {
			return a.EndDate.Time().Compare(b.EndDate.Time())
		})
	case "budget":
		return cmpNullable(!a.Budget.Valid, !b.Budget.Valid, func() int {
			return a.Budget.Decimal.Cmp(b.Budget.Decimal)
		})
	case "clientName":
		return cmpNullable(a.ClientName == nil, b.ClientName == nil, func() int {
			return strings.Compare(*a.ClientName, *b.ClientName)
		})
	case "completionPercentage":
		return cmpInt64(int64(a.CompletionPercentage), int64(b.CompletionPercentage))
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}

// cmpNullable sorts nulls after values, as Postgres does for ascending order
func cmpNullable(aNull, bNull bool, cmp func() int) int {
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return 1
	case bNull:
		return -1
	}
	return cmp()
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
