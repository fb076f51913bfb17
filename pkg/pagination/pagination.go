package pagination

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/JaimeStill/certify/pkg/query"
)

// SortFields accepts either "field,-field" or an array of query.SortField
// when decoded from JSON.
type SortFields []query.SortField

func (s *SortFields) UnmarshalJSON(data []byte) error {
	var spec string
	if err := json.Unmarshal(data, &spec); err == nil {
		*s = query.ParseSortFields(spec)
		return nil
	}

	var fields []query.SortField
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = fields
	return nil
}

// PageRequest asks for one page of a list.
type PageRequest struct {
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Search   *string    `json:"search,omitempty"`
	Sort     SortFields `json:"sort,omitempty"`
}

// Normalize clamps the page to at least 1 and the page size to the bounds
// of cfg.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	switch {
	case r.PageSize < 1:
		r.PageSize = cfg.DefaultPageSize
	case r.PageSize > cfg.MaxPageSize:
		r.PageSize = cfg.MaxPageSize
	}
}

// Offset is the number of rows before the page.
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// Limit is the number of rows in the page.
func (r *PageRequest) Limit() int {
	return r.PageSize
}

// PageRequestFromQuery reads page, page_size, search, and sort from values
// and normalizes the result.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	req := PageRequest{
		Sort: query.ParseSortFields(values.Get("sort")),
	}
	req.Page, _ = strconv.Atoi(values.Get("page"))
	req.PageSize, _ = strconv.Atoi(values.Get("page_size"))
	if s := values.Get("search"); s != "" {
		req.Search = &s
	}

	req.Normalize(cfg)
	return req
}

// PageResult is one page of a list with its position in the whole.
type PageResult[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPageResult builds a PageResult. There is always at least one page,
// and Data is never nil.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	pages := 1
	if pageSize > 0 && total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	if data == nil {
		data = []T{}
	}

	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// MapResult converts the data of a page and keeps its position. The first
// error of fn is returned unchanged.
func MapResult[T, U any](r PageResult[T], fn func(T) (U, error)) (PageResult[U], error) {
	out := PageResult[U]{
		Data:       make([]U, 0, len(r.Data)),
		Total:      r.Total,
		Page:       r.Page,
		PageSize:   r.PageSize,
		TotalPages: r.TotalPages,
		HasNext:    r.HasNext,
	}
	for _, v := range r.Data {
		u, err := fn(v)
		if err != nil {
			return PageResult[U]{}, err
		}
		out.Data = append(out.Data, u)
	}
	return out, nil
}
