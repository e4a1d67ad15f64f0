package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// Paging limits for GET /v1/distros.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Sort keys accepted by sort_by.
const (
	sortByRanking = "ranking"
	sortByName    = "name"
	sortByRating  = "rating"
)

type listQuery struct {
	Page         int
	PageSize     int
	Family       catalog.Family
	Desktop      catalog.DesktopEnvironment
	Search       string
	SortBy       string
	Desc         bool
	ForceRefresh bool
}

func parseListQuery(values url.Values) (listQuery, error) {
	q := listQuery{Page: 1, PageSize: defaultPageSize, SortBy: sortByRanking}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return listQuery{}, fmt.Errorf("page must be an integer >= 1")
		}
		q.Page = n
	}
	if raw := values.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			return listQuery{}, fmt.Errorf("page_size must be an integer between 1 and %d", maxPageSize)
		}
		q.PageSize = n
	}
	if raw := values.Get("family"); raw != "" {
		f, ok := catalog.ParseFamily(raw)
		if !ok {
			return listQuery{}, fmt.Errorf("unknown family %q", raw)
		}
		q.Family = f
	}
	if raw := values.Get("desktop_env"); raw != "" {
		de, ok := catalog.ParseDesktopEnvironment(raw)
		if !ok {
			return listQuery{}, fmt.Errorf("unknown desktop_env %q", raw)
		}
		q.Desktop = de
	}
	q.Search = strings.ToLower(strings.TrimSpace(values.Get("search")))

	if raw := strings.ToLower(values.Get("sort_by")); raw != "" {
		switch raw {
		case sortByRanking, sortByName, sortByRating:
			q.SortBy = raw
		default:
			return listQuery{}, fmt.Errorf("sort_by must be one of ranking, name, rating")
		}
	}
	switch strings.ToLower(values.Get("order")) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return listQuery{}, fmt.Errorf("order must be asc or desc")
	}
	if raw := values.Get("force_refresh"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return listQuery{}, fmt.Errorf("force_refresh must be a boolean")
		}
		q.ForceRefresh = b
	}
	return q, nil
}

// apply filters and sorts records, then returns the requested page and the
// filtered total. records is not modified.
func (q listQuery) apply(records []catalog.Record) ([]catalog.Record, int) {
	filtered := make([]catalog.Record, 0, len(records))
	for _, rec := range records {
		if q.matches(rec) {
			filtered = append(filtered, rec)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return q.less(filtered[i], filtered[j])
	})

	total := len(filtered)
	if q.Page < 1 || q.PageSize < 1 || q.Page > totalPages(total, q.PageSize) {
		return []catalog.Record{}, total
	}
	start := (q.Page - 1) * q.PageSize
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total
}

func (q listQuery) matches(rec catalog.Record) bool {
	if q.Family != "" && rec.Family != q.Family {
		return false
	}
	if q.Desktop != "" && !rec.HasDesktop(q.Desktop) {
		return false
	}
	if q.Search != "" &&
		!strings.Contains(strings.ToLower(rec.Name), q.Search) &&
		!strings.Contains(strings.ToLower(rec.Description), q.Search) {
		return false
	}
	return true
}

// less orders by the sort key. Records without a ranking or rating always
// sort last, whatever the direction.
func (q listQuery) less(a, b catalog.Record) bool {
	switch q.SortBy {
	case sortByName:
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if q.Desc {
			return an > bn
		}
		return an < bn
	case sortByRating:
		return lessOptional(a.Rating, b.Rating, q.Desc)
	default:
		return lessOptional(a.Ranking, b.Ranking, q.Desc)
	}
}

func lessOptional[T int | float64](a, b *T, desc bool) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return false
	case b == nil:
		return true
	case desc:
		return *a > *b
	default:
		return *a < *b
	}
}

func totalPages(total, pageSize int) int {
	if total == 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
