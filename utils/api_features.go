package utils

import (
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Reserved query keys that control the query shape instead of filtering it.
const (
	paramPage   = "page"
	paramSort   = "sort"
	paramLimit  = "limit"
	paramFields = "fields"
)

const (
	DefaultPage  int64 = 1
	DefaultLimit int64 = 100
)

var comparisonOps = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

// APIFeatures turns raw request query parameters into a MongoDB filter plus
// find options: comparison filters, multi-key sorting, field projection and
// skip/limit pagination. It only builds the query description; executing it
// is the store's job.
//
// Typical use:
//
//	filter, opts := NewAPIFeatures(c.Request.URL.Query()).
//		Filter().Sort().LimitFields().Paginate().
//		Query()
type APIFeatures struct {
	params url.Values

	filter     bson.M
	sort       bson.D
	projection bson.M
	skip       int64
	limit      int64
}

func NewAPIFeatures(params url.Values) *APIFeatures {
	return &APIFeatures{
		params: params,
		filter: bson.M{},
		skip:   0,
		limit:  DefaultLimit,
	}
}

// Filter translates all non-reserved parameters into filter conditions.
// Keys of the form field[op] with op in {gte,gt,lte,lt} become comparison
// operators; bare keys become equality matches. Field names are passed
// through untouched; unknown fields are the store's problem.
func (f *APIFeatures) Filter() *APIFeatures {
	for key, values := range f.params {
		if len(values) == 0 {
			continue
		}
		switch key {
		case paramPage, paramSort, paramLimit, paramFields:
			continue
		}

		field, op := splitOperator(key)
		value := coerceValue(values[0])
		if op == "" {
			f.filter[field] = value
			continue
		}

		cond, ok := f.filter[field].(bson.M)
		if !ok {
			cond = bson.M{}
			f.filter[field] = cond
		}
		cond[op] = value
	}
	return f
}

// Sort parses the comma-separated sort parameter; a leading '-' means
// descending, and each subsequent field breaks ties in the previous one.
// Without a sort parameter, documents order by creation time (newest
// first) with _id as tie-break so pagination stays stable.
func (f *APIFeatures) Sort() *APIFeatures {
	raw := f.params.Get(paramSort)
	if raw == "" {
		f.sort = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
		return f
	}

	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		dir := 1
		if strings.HasPrefix(field, "-") {
			dir = -1
			field = field[1:]
		}
		f.sort = append(f.sort, bson.E{Key: field, Value: dir})
	}
	return f
}

// LimitFields builds the projection from the fields parameter. Absent, it
// only strips the internal __v revision field. The store keeps secret
// fields out of responses regardless of what is requested here.
func (f *APIFeatures) LimitFields() *APIFeatures {
	raw := f.params.Get(paramFields)
	if raw == "" {
		f.projection = bson.M{"__v": 0}
		return f
	}

	f.projection = bson.M{}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if strings.HasPrefix(field, "-") {
			f.projection[field[1:]] = 0
		} else {
			f.projection[field] = 1
		}
	}
	return f
}

// Paginate computes skip/limit from the 1-based page parameter. Values are
// not sanity-checked; negative or zero inputs pass straight through and the
// driver rejects them.
func (f *APIFeatures) Paginate() *APIFeatures {
	page := parseInt64(f.params.Get(paramPage), DefaultPage)
	limit := parseInt64(f.params.Get(paramLimit), DefaultLimit)

	f.skip = (page - 1) * limit
	f.limit = limit
	return f
}

// Query returns the accumulated filter and find options.
func (f *APIFeatures) Query() (bson.M, *options.FindOptions) {
	opts := options.Find().SetSkip(f.skip).SetLimit(f.limit)
	if len(f.sort) > 0 {
		opts.SetSort(f.sort)
	}
	if len(f.projection) > 0 {
		opts.SetProjection(f.projection)
	}
	return f.filter, opts
}

// FilterDoc exposes the built filter for callers that merge extra
// route-scoped conditions into it.
func (f *APIFeatures) FilterDoc() bson.M {
	return f.filter
}

func (f *APIFeatures) SortDoc() bson.D {
	return f.sort
}

func (f *APIFeatures) Projection() bson.M {
	return f.projection
}

func (f *APIFeatures) Skip() int64 {
	return f.skip
}

func (f *APIFeatures) Limit() int64 {
	return f.limit
}

// splitOperator recognizes the field[op] shape URL parsers produce for
// nested query parameters, e.g. price[gte]=500.
func splitOperator(key string) (field, op string) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	mongoOp, ok := comparisonOps[key[open+1:len(key)-1]]
	if !ok {
		return key, ""
	}
	return key[:open], mongoOp
}

// coerceValue converts the raw string to the narrowest matching type so
// numeric comparisons behave numerically in MongoDB.
func coerceValue(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if fl, err := strconv.ParseFloat(raw, 64); err == nil {
		return fl
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func parseInt64(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return fallback
}
