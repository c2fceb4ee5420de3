package orkl

import (
	"strings"

	"github.com/oriys/orkl/internal/metrics"
)

// Cache key prefixes. Categories clear by prefix, so every key of a
// category must start with one of that category's prefixes.
const (
	prefixLibraryEntries        = "library_entries:"
	prefixLibraryEntry          = "library_entry:"
	prefixLibraryEntrySHA1      = "library_entry_sha1:"
	prefixLibraryInfo           = "library_info:"
	prefixLibraryVersion        = "library_version:"
	prefixLibraryVersionEntries = "library_version_entries:"
	prefixLibraryWorkEntries    = "library_work_entries:"
	prefixSearch                = "search:"
	keySourceEntries            = "source_entries"
	prefixSourceEntry           = "source_entry:"
	keyThreatActorEntries       = "ta_entries"
	prefixThreatActorEntry      = "ta_entry:"
)

// Category names a group of cached responses.
type Category string

const (
	CategoryAll           Category = "all"
	CategoryThreatReports Category = "threat_reports"
	CategoryThreatActors  Category = "threat_actors"
	CategorySources       Category = "sources"
)

// Categories lists the accepted cache categories.
var Categories = []Category{CategoryThreatReports, CategoryThreatActors, CategorySources, CategoryAll}

var categoryPrefixes = map[Category][]string{
	CategoryThreatReports: {"library_", prefixSearch},
	CategoryThreatActors:  {"ta_"},
	CategorySources:       {"source_"},
}

// ClearCache drops cached responses of category and returns how many were
// removed. An empty category means all. An unknown category is rejected
// and nothing is removed.
func (c *Client) ClearCache(category Category) (int, error) {
	if category == "" {
		category = CategoryAll
	}
	if category == CategoryAll {
		n := c.cache.Len()
		c.cache.Clear()
		metrics.RecordCacheClear(string(category))
		return n, nil
	}

	prefixes, ok := categoryPrefixes[category]
	if !ok {
		names := make([]string, len(Categories))
		for i, cat := range Categories {
			names[i] = "'" + string(cat) + "'"
		}
		return 0, invalid("category", "invalid cache category %q, valid values: %s", category, strings.Join(names, ", "))
	}

	removed := 0
	for _, p := range prefixes {
		removed += c.cache.ClearPrefix(p)
	}
	metrics.RecordCacheClear(string(category))
	return removed, nil
}

// CacheLen reports how many responses are cached.
func (c *Client) CacheLen() int {
	return c.cache.Len()
}
