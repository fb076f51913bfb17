package pagination_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/JaimeStill/certify/pkg/pagination"
)

func TestFinalizeEnv(t *testing.T) {
	t.Setenv("CERTIFY_PAGE_SIZE", "25")

	cfg := pagination.Config{}
	if err := cfg.Finalize(&pagination.ConfigEnv{DefaultPageSize: "CERTIFY_PAGE_SIZE"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.DefaultPageSize != 25 || cfg.MaxPageSize != 100 {
		t.Errorf("got %+v, want default 25 max 100", cfg)
	}

	bad := pagination.Config{DefaultPageSize: 500, MaxPageSize: 50}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected error when default exceeds max")
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	cfg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

	tests := []struct {
		name     string
		values   url.Values
		page     int
		pageSize int
		sorts    int
	}{
		{"defaults", url.Values{}, 1, 20, 0},
		{"clamped", url.Values{"page": {"3"}, "page_size": {"1000"}}, 3, 100, 0},
		{"sorted", url.Values{"sort": {"-CreatedAt,UserID"}}, 1, 20, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pagination.PageRequestFromQuery(tt.values, cfg)
			if req.Page != tt.page || req.PageSize != tt.pageSize {
				t.Errorf("got page %d size %d, want %d %d", req.Page, req.PageSize, tt.page, tt.pageSize)
			}
			if len(req.Sort) != tt.sorts {
				t.Errorf("got %d sort fields, want %d", len(req.Sort), tt.sorts)
			}
		})
	}

	req := pagination.PageRequestFromQuery(url.Values{"sort": {"-CreatedAt"}}, cfg)
	if req.Sort[0].Field != "CreatedAt" || !req.Sort[0].Descending {
		t.Errorf("got %+v, want descending CreatedAt", req.Sort[0])
	}
}

func TestNewPageResult(t *testing.T) {
	r := pagination.NewPageResult[int](nil, 41, 2, 20)
	if r.TotalPages != 3 {
		t.Errorf("got %d total pages, want 3", r.TotalPages)
	}
	if r.Data == nil {
		t.Error("got nil data, want empty slice")
	}
	if !r.HasNext {
		t.Error("page 2 of 3 should have a next page")
	}

	empty := pagination.NewPageResult[int](nil, 0, 1, 20)
	if empty.TotalPages != 1 || empty.HasNext {
		t.Errorf("got %+v, want one page without next", empty)
	}
}

func TestMapResult(t *testing.T) {
	src := pagination.NewPageResult([]int{1, 2, 3}, 23, 2, 3)

	t.Run("keeps metadata", func(t *testing.T) {
		got, err := pagination.MapResult(src, func(v int) (int, error) { return v * 10, nil })
		if err != nil {
			t.Fatalf("MapResult: %v", err)
		}
		if got.Total != 23 || got.Page != 2 || got.TotalPages != 8 {
			t.Errorf("got %+v, want metadata of source", got)
		}
		if got.Data[2] != 30 {
			t.Errorf("got %d, want 30", got.Data[2])
		}
	})

	t.Run("stops on error", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		_, err := pagination.MapResult(src, func(v int) (string, error) {
			calls++
			if v == 2 {
				return "", boom
			}
			return "ok", nil
		})
		if !errors.Is(err, boom) {
			t.Errorf("got %v, want boom", err)
		}
		if calls != 2 {
			t.Errorf("got %d calls, want 2", calls)
		}
	})
}
