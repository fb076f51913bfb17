package certifications

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/certify/internal/store"
)

// Filters contains optional filtering criteria for certification queries.
// Search matches fullname and idnumber case-insensitively.
type Filters struct {
	Archived *bool   `json:"archived,omitempty"`
	Search   *string `json:"search,omitempty"`
}

func (f Filters) store() store.CertificationFilter {
	return store.CertificationFilter{Archived: f.Archived, Search: f.Search}
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if a := values.Get("archived"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.Archived = &v
		}
	}

	return f
}
