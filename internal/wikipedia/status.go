package wikipedia

import (
	"sort"

	"github.com/wikigate/wikigate/internal/cache"
	"github.com/wikigate/wikigate/internal/upstream"
)

// Status is a read-only snapshot of the gateway core: per-endpoint
// circuit state for every language, cache occupancy and hit counters,
// and the number of in-flight deduplicated requests.
type Status struct {
	Languages       map[string][]upstream.EndpointStatus `json:"languages"`
	Cache           cache.Stats                          `json:"cache"`
	PendingRequests int                                  `json:"pending_requests"`
}

func (c *Client) Status() Status {
	languages := make(map[string][]upstream.EndpointStatus, len(c.managers))
	for language, manager := range c.managers {
		languages[language] = manager.Status()
	}
	return Status{
		Languages:       languages,
		Cache:           c.cache.Stats(),
		PendingRequests: c.group.Pending(),
	}
}

// Languages lists the configured language codes in sorted order.
func (c *Client) Languages() []string {
	languages := make([]string, 0, len(c.managers))
	for language := range c.managers {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	return languages
}
