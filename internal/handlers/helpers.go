package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/orderdesk/api/internal/platform/httpx"
	"github.com/orderdesk/api/internal/services"
)

const defaultBodyLimit = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeParam(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

// PageLimits caps list page sizes for a handler group. Zero values fall back
// to the package defaults.
type PageLimits struct {
	Default int
	Max     int
}

func (l PageLimits) resolve(fallbackDefault, fallbackMax int) (int, int) {
	def, max := l.Default, l.Max
	if def <= 0 {
		def = fallbackDefault
	}
	if max <= 0 {
		max = fallbackMax
	}
	if def > max {
		def = max
	}
	return def, max
}

// parsePagination reads page_size and page_token query parameters, clamping
// the size between 1 and max.
func parsePagination(r *http.Request, defaultSize, maxSize int) (services.Pagination, *httpx.Error) {
	query := r.URL.Query()
	pageSize := defaultSize
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			e := httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest)
			return services.Pagination{}, &e
		}
		switch {
		case size <= 0:
			pageSize = defaultSize
		case size > maxSize:
			pageSize = maxSize
		default:
			pageSize = size
		}
	}
	return services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}, nil
}

// parseMoney accepts a JSON number or string and converts it into an exact decimal.
func parseMoney(raw json.Number) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw.String())
	if value == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	return decimal.NewFromString(value)
}
