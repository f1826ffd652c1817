package livequery

import (
	"math"
	"time"

	"clinic-booking/internal/repository"
)

var defaultTimeFields = []string{"createdAt", "updatedAt", "lastMessageTime", "addedAt", "reviewedAt"}

// Spec describes one live view.
type Spec struct {
	Collection string
	Filters    []repository.Filter
	OrderBy    string
	Descending bool
	Limit      int
	// Tail keeps the newest Limit documents of an ascending ordering.
	Tail bool
	// TimeFields are converted to UTC time.Time before delivery. Nil means the
	// default set of timestamp fields.
	TimeFields []string
	// Identity is the user the view is filtered for. A non-anonymous spec without
	// an identity never opens a feed.
	Identity  string
	Anonymous bool
}

func (s Spec) query() repository.Query {
	return repository.Query{
		Collection: s.Collection,
		Filters:    s.Filters,
		OrderBy:    s.OrderBy,
		Descending: s.Descending,
		Limit:      s.Limit,
		Tail:       s.Tail,
		Consistent: true,
	}
}

func (s Spec) timeFields() []string {
	if s.TimeFields == nil {
		return defaultTimeFields
	}
	return s.TimeFields
}

// millisThreshold separates epoch seconds from epoch milliseconds; 1e11 seconds is
// the year 5138.
const millisThreshold = 1e11

func normalizeTimes(docs []repository.Document, fields []string) {
	for _, doc := range docs {
		for _, field := range fields {
			v, ok := doc[field]
			if !ok {
				continue
			}
			if t, ok := NormalizeTime(v); ok {
				doc[field] = t
			}
		}
	}
}

// NormalizeTime converts a stored timestamp into UTC time. Epoch milliseconds,
// epoch seconds and RFC3339 strings are accepted; zero and unparsable values
// report false.
func NormalizeTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case int64:
		return fromEpoch(float64(x))
	case int:
		return fromEpoch(float64(x))
	case float64:
		return fromEpoch(x)
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

func fromEpoch(n float64) (time.Time, bool) {
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, false
	}
	if n >= millisThreshold {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
