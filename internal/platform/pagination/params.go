// Package pagination parses list query parameters and encodes the opaque cursors repositories
// hand back as page tokens.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPageSize    = 50
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
	ErrInvalidFilter    = errors.New("pagination: invalid filter")
)

// Params is the paging window requested by a client plus any list filters.
type Params struct {
	PageSize  int
	PageToken string
	Filters   map[string][]string
}

// Options bound what Parse accepts for one endpoint.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	// Filters maps an accepted query parameter to its allowed values. A nil value list accepts
	// anything.
	Filters map[string][]string
}

func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads pageSize, pageToken and the configured filters. Filter values may repeat or be
// comma separated.
func Parse(values url.Values, opts Options) (Params, error) {
	size, err := parsePageSize(values.Get("pageSize"), opts)
	if err != nil {
		return Params{}, err
	}
	params := Params{PageSize: size}

	if token := strings.TrimSpace(values.Get("pageToken")); token != "" {
		if _, _, err := DecodeTimeCursor(token); err != nil {
			return Params{}, err
		}
		params.PageToken = token
	}

	for name, allowed := range opts.Filters {
		list := splitValues(values[name])
		if len(list) == 0 {
			continue
		}
		if allowed != nil {
			for _, v := range list {
				if !contains(allowed, v) {
					return Params{}, fmt.Errorf("%w: %s=%q", ErrInvalidFilter, name, v)
				}
			}
		}
		if params.Filters == nil {
			params.Filters = make(map[string][]string)
		}
		params.Filters[name] = list
	}
	return params, nil
}

// Filter returns the values parsed for name.
func (p Params) Filter(name string) []string {
	return p.Filters[name]
}

func parsePageSize(raw string, opts Options) (int, error) {
	maxSize := opts.MaxPageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPageSize
	}
	def := opts.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	def = min(def, maxSize)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	return min(value, maxSize), nil
}

func splitValues(raw []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
