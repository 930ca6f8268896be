package internal

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"
	"project-tracker-api/internal/service"

	"github.com/go-chi/chi/v5"
)

// pageParams holds the query parameters of paginated listings
type pageParams struct {
	page    int
	size    int
	sortBy  string
	sortDir string
}

// parsePageParams reads page, size, sort_by and sort_dir.
// Defaults: page=0, size=10, sort_by=updatedAt, sort_dir=desc
func parsePageParams(r *http.Request) (pageParams, error) {
	values := r.URL.Query()
	p := pageParams{
		page:    0,
		size:    repository.DefaultPageSize,
		sortBy:  "updatedAt",
		sortDir: "desc",
	}

	if s := strings.TrimSpace(values.Get("page")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return p, service.Invalid("page", "must be an integer")
		}
		p.page = v
	}
	if s := strings.TrimSpace(values.Get("size")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return p, service.Invalid("size", "must be an integer")
		}
		p.size = v
	}
	if s := strings.TrimSpace(values.Get("sort_by")); s != "" {
		p.sortBy = s
	}
	if s := strings.TrimSpace(values.Get("sort_dir")); s != "" {
		p.sortDir = s
	}
	return p, nil
}

// idParam reads a positive integer URL parameter
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// optionalString returns nil for an absent or blank query parameter
func optionalString(r *http.Request, name string) *string {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return nil
	}
	return &s
}

func optionalID(r *http.Request, name string) (*int64, error) {
	s := optionalString(r, name)
	if s == nil {
		return nil, nil
	}
	id, err := strconv.ParseInt(*s, 10, 64)
	if err != nil || id <= 0 {
		return nil, service.Invalid(name, "must be a positive integer")
	}
	return &id, nil
}

// dateParam reads a YYYY-MM-DD query parameter; absent yields the zero Date
func dateParam(r *http.Request, name string) (models.Date, error) {
	s := optionalString(r, name)
	if s == nil {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(*s)
	if err != nil {
		return models.Date{}, service.Invalid(name, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return service.Invalid("body", "invalid JSON: "+err.Error())
	}
	return nil
}
