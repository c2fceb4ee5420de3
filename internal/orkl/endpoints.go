package orkl

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// OrderBy is a date field library entries can be sorted by.
type OrderBy string

const (
	OrderByCreatedAt            OrderBy = "created_at"
	OrderByUpdatedAt            OrderBy = "updated_at"
	OrderByFileCreationDate     OrderBy = "file_creation_date"
	OrderByFileModificationDate OrderBy = "file_modification_date"
)

// OrderByValues lists the accepted OrderBy values.
var OrderByValues = []OrderBy{OrderByCreatedAt, OrderByUpdatedAt, OrderByFileCreationDate, OrderByFileModificationDate}

// Order is a sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// DefaultSearchLimit is the result cap for SearchLibrary when none is given.
const DefaultSearchLimit = 1000

// LibraryEntriesParams selects a page of library entries. Zero Limit or
// Offset leaves the parameter to the server.
type LibraryEntriesParams struct {
	Limit   int
	Offset  int
	OrderBy OrderBy // default created_at
	Order   Order   // default desc
}

// SearchParams is a full-text library search.
type SearchParams struct {
	Query string
	// Full asks for the complete report including plain text.
	Full  bool
	Limit int // default DefaultSearchLimit
}

// VersionEntriesParams selects entries of the current library version.
type VersionEntriesParams struct {
	Limit  int
	Offset int
	Order  Order // default desc
}

// WorkEntriesParams selects entries still being processed.
type WorkEntriesParams struct {
	Limit int
}

// CallOption adjusts a single convenience call.
type CallOption func(*callOptions)

type callOptions struct {
	bypassCache bool
}

// BypassCache skips the cache lookup and does not store the response.
func BypassCache() CallOption {
	return func(o *callOptions) { o.bypassCache = true }
}

func (c *Client) get(ctx context.Context, req Request, opts []CallOption) (Envelope, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	req.Method = http.MethodGet
	if o.bypassCache {
		off := false
		req.UseCache = &off
	}
	return c.Do(ctx, req)
}

// LibraryEntries lists threat reports.
func (c *Client) LibraryEntries(ctx context.Context, p LibraryEntriesParams, opts ...CallOption) (Envelope, error) {
	if p.OrderBy == "" {
		p.OrderBy = OrderByCreatedAt
	}
	if p.Order == "" {
		p.Order = OrderDesc
	}
	if err := validateOrderBy(p.OrderBy); err != nil {
		return Envelope{}, err
	}
	if err := validateOrder(p.Order); err != nil {
		return Envelope{}, err
	}
	params := map[string]string{
		"order_by": string(p.OrderBy),
		"order":    string(p.Order),
	}
	if err := addPaging(params, p.Limit, p.Offset); err != nil {
		return Envelope{}, err
	}
	return c.get(ctx, Request{Path: "/library/entries", Query: toValues(params), CacheKey: prefixLibraryEntries+paramString(params)}, opts)
}

// LibraryEntry fetches one threat report by id.
func (c *Client) LibraryEntry(ctx context.Context, id string, opts ...CallOption) (Envelope, error) {
	if err := required("id", id); err != nil {
		return Envelope{}, err
	}
	return c.get(ctx, Request{Route: "/library/entry/{id}", Path: "/library/entry/"+url.PathEscape(id), CacheKey: prefixLibraryEntry+id}, opts)
}

// LibraryEntryBySHA1 fetches one threat report by the SHA1 of its file.
func (c *Client) LibraryEntryBySHA1(ctx context.Context, sha1 string, opts ...CallOption) (Envelope, error) {
	if err := required("sha1_hash", sha1); err != nil {
		return Envelope{}, err
	}
	return c.get(ctx, Request{Route: "/library/entry/sha1/{sha1}", Path: "/library/entry/sha1/"+url.PathEscape(sha1), CacheKey: prefixLibraryEntrySHA1+sha1}, opts)
}

// SearchLibrary runs a full-text search. Results are cached per TTL bucket,
// so repeated searches roll over on wall-clock bucket boundaries.
func (c *Client) SearchLibrary(ctx context.Context, p SearchParams, opts ...CallOption) (Envelope, error) {
	if err := required("query", p.Query); err != nil {
		return Envelope{}, err
	}
	if p.Limit < 0 {
		return Envelope{}, invalid("limit", "must not be negative")
	}
	if p.Limit == 0 {
		p.Limit = DefaultSearchLimit
	}
	full := strconv.FormatBool(p.Full)
	limit := strconv.Itoa(p.Limit)
	query := url.Values{"query": {p.Query}, "full": {full}, "limit": {limit}}
	key := prefixSearch + p.Query + ":" + full + ":" + limit + ":" + c.bucket()
	return c.get(ctx, Request{Path: "/library/search", Query: query, CacheKey: key}, opts)
}

// LibraryInfo returns library statistics.
func (c *Client) LibraryInfo(ctx context.Context, opts ...CallOption) (Envelope, error) {
	return c.get(ctx, Request{Path: "/library/info", CacheKey: prefixLibraryInfo+c.bucket()}, opts)
}

// LibraryVersion returns the current library version.
func (c *Client) LibraryVersion(ctx context.Context, opts ...CallOption) (Envelope, error) {
	return c.get(ctx, Request{Path: "/library/version", CacheKey: prefixLibraryVersion+c.bucket()}, opts)
}

// LibraryVersionEntries lists the entries of the current library version.
func (c *Client) LibraryVersionEntries(ctx context.Context, p VersionEntriesParams, opts ...CallOption) (Envelope, error) {
	if p.Order == "" {
		p.Order = OrderDesc
	}
	if err := validateOrder(p.Order); err != nil {
		return Envelope{}, err
	}
	params := map[string]string{"order": string(p.Order)}
	if err := addPaging(params, p.Limit, p.Offset); err != nil {
		return Envelope{}, err
	}
	return c.get(ctx, Request{Path: "/library/version/entries", Query: toValues(params), CacheKey: prefixLibraryVersionEntries+paramString(params)}, opts)
}

// LibraryWorkEntries lists entries still being processed.
func (c *Client) LibraryWorkEntries(ctx context.Context, p WorkEntriesParams, opts ...CallOption) (Envelope, error) {
	params := map[string]string{}
	if err := addPaging(params, p.Limit, 0); err != nil {
		return Envelope{}, err
	}
	return c.get(ctx, Request{Path: "/library/work/entries", Query: toValues(params), CacheKey: prefixLibraryWorkEntries+paramString(params)}, opts)
}

// SourceEntries lists all sources.
func (c *Client) SourceEntries(ctx context.Context, opts ...CallOption) (Envelope, error) {
	return c.get(ctx, Request{Path: "/source/entries", CacheKey: keySourceEntries}, opts)
}

// SourceEntry fetches one source; full includes its related reports.
func (c *Client) SourceEntry(ctx context.Context, id string, full bool, opts ...CallOption) (Envelope, error) {
	if err := required("id", id); err != nil {
		return Envelope{}, err
	}
	f := strconv.FormatBool(full)
	return c.get(ctx, Request{Route: "/source/entry/{id}", Path: "/source/entry/"+url.PathEscape(id), Query: url.Values{"full": {f}}, CacheKey: prefixSourceEntry+id+":"+f}, opts)
}

// ThreatActorEntries lists all threat actors.
func (c *Client) ThreatActorEntries(ctx context.Context, opts ...CallOption) (Envelope, error) {
	return c.get(ctx, Request{Path: "/ta/entries", CacheKey: keyThreatActorEntries}, opts)
}

// ThreatActorEntry fetches one threat actor profile.
func (c *Client) ThreatActorEntry(ctx context.Context, id string, opts ...CallOption) (Envelope, error) {
	if err := required("id", id); err != nil {
		return Envelope{}, err
	}
	return c.get(ctx, Request{Route: "/ta/entry/{id}", Path: "/ta/entry/"+url.PathEscape(id), CacheKey: prefixThreatActorEntry+id}, opts)
}

// bucket is floor(now / CacheTTL). Keys embedding it change on every
// TTL boundary of the wall clock.
func (c *Client) bucket() string {
	return strconv.FormatInt(c.now().UnixNano()/int64(c.cfg.CacheTTL), 10)
}

func validateOrderBy(v OrderBy) error {
	for _, ok := range OrderByValues {
		if v == ok {
			return nil
		}
	}
	names := make([]string, len(OrderByValues))
	for i, o := range OrderByValues {
		names[i] = string(o)
	}
	return invalid("order_by", "invalid value %q, valid values: %s", v, strings.Join(names, ", "))
}

func validateOrder(v Order) error {
	if v == OrderAsc || v == OrderDesc {
		return nil
	}
	return invalid("order", "invalid value %q, valid values: asc, desc", v)
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid(field, "is required")
	}
	return nil
}

func addPaging(params map[string]string, limit, offset int) error {
	if limit < 0 {
		return invalid("limit", "must not be negative")
	}
	if offset < 0 {
		return invalid("offset", "must not be negative")
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if offset > 0 {
		params["offset"] = strconv.Itoa(offset)
	}
	return nil
}

// paramString renders params as sorted k=v pairs joined by '&', unescaped.
func paramString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	return strings.Join(pairs, "&")
}

func toValues(params map[string]string) url.Values {
	if len(params) == 0 {
		return nil
	}
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return v
}
