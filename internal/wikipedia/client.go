package wikipedia

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/wikigate/wikigate/internal/cache"
	"github.com/wikigate/wikigate/internal/dedup"
	"github.com/wikigate/wikigate/internal/metrics"
	"github.com/wikigate/wikigate/internal/upstream"
)

const (
	defaultSearchLimit   = 10
	maxSearchLimit       = 50
	defaultCategoryLimit = 20
	maxCategoryLimit     = 500
	maxQueryLength       = 256
	maxTitleLength       = 255
)

// Characters MediaWiki forbids in page titles.
var titlePattern = regexp.MustCompile(`^[^|#<>\[\]{}]+$`)

// TTLs sets how long each operation's responses stay cached. Zero
// fields fall back to defaults.
type TTLs struct {
	Search   time.Duration
	Page     time.Duration
	Summary  time.Duration
	Category time.Duration
}

func (t TTLs) withDefaults() TTLs {
	if t.Search <= 0 {
		t.Search = 5 * time.Minute
	}
	if t.Page <= 0 {
		t.Page = 10 * time.Minute
	}
	if t.Summary <= 0 {
		t.Summary = 30 * time.Minute
	}
	if t.Category <= 0 {
		t.Category = 15 * time.Minute
	}
	return t
}

// Client is the service facade. Each operation runs the same pipeline:
// validate, check the cache, collapse concurrent identical misses into
// one upstream flight, fetch with failover and retries, write the
// payload back through both cache tiers, parse.
type Client struct {
	managers map[string]*upstream.Manager
	cache    *cache.Tiered
	group    *dedup.Group
	ttls     TTLs
	logger   *slog.Logger
	metrics  *metrics.Collector
}

func NewClient(managers map[string]*upstream.Manager, tiered *cache.Tiered, ttls TTLs, logger *slog.Logger, collector *metrics.Collector) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		managers: managers,
		cache:    tiered,
		group:    dedup.NewGroup(),
		ttls:     ttls.withDefaults(),
		logger:   logger,
		metrics:  collector,
	}
}

// Search runs a full-text search over one language edition. A zero
// limit selects the default page size.
func (c *Client) Search(ctx context.Context, language, query string, limit int) (*SearchResult, error) {
	manager, err := c.manager(language)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if err := validation.Validate(query,
		validation.Required.Error("must not be empty"),
		validation.RuneLength(1, maxQueryLength).Error("must be at most 256 characters"),
	); err != nil {
		return nil, &ValidationError{Field: "query", Message: err.Error()}
	}
	limit, err = normalizeLimit(limit, defaultSearchLimit, maxSearchLimit)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/w/rest.php/v1/search/page?q=%s&limit=%d", url.QueryEscape(query), limit)
	key := cacheKey("search", manager.Language(), query, fmt.Sprint(limit))

	body, err := c.fetchCached(ctx, manager, "search", key, path, c.ttls.Search)
	if err != nil {
		return nil, err
	}
	return parseSearch(query, body)
}

// Page fetches an article's metadata and wikitext source.
func (c *Client) Page(ctx context.Context, language, title string) (*Page, error) {
	manager, err := c.manager(language)
	if err != nil {
		return nil, err
	}
	title, err = normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	path := "/w/rest.php/v1/page/" + url.PathEscape(title)
	key := cacheKey("page", manager.Language(), title)

	body, err := c.fetchCached(ctx, manager, "page", key, path, c.ttls.Page)
	if err != nil {
		return nil, err
	}
	return parsePage(manager.Language(), body)
}

// Summary fetches an article's lead-section summary.
func (c *Client) Summary(ctx context.Context, language, title string) (*Summary, error) {
	manager, err := c.manager(language)
	if err != nil {
		return nil, err
	}
	title, err = normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	path := "/api/rest_v1/page/summary/" + url.PathEscape(title)
	key := cacheKey("summary", manager.Language(), title)

	body, err := c.fetchCached(ctx, manager, "summary", key, path, c.ttls.Summary)
	if err != nil {
		return nil, err
	}
	return parseSummary(manager.Language(), body)
}

// Category lists the members of a category. The "Category:" prefix is
// optional in the name.
func (c *Client) Category(ctx context.Context, language, name string, limit int) (*CategoryMembers, error) {
	manager, err := c.manager(language)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "Category:"))
	if err := validation.Validate(name,
		validation.Required.Error("must not be empty"),
		validation.RuneLength(1, maxTitleLength).Error("must be at most 255 characters"),
	); err != nil {
		return nil, &ValidationError{Field: "category", Message: err.Error()}
	}
	limit, err = normalizeLimit(limit, defaultCategoryLimit, maxCategoryLimit)
	if err != nil {
		return nil, err
	}

	canonical := "Category:" + name
	path := fmt.Sprintf(
		"/w/api.php?action=query&list=categorymembers&cmtitle=%s&cmlimit=%d&format=json&formatversion=2",
		url.QueryEscape(canonical), limit,
	)
	key := cacheKey("category", manager.Language(), name, fmt.Sprint(limit))

	body, err := c.fetchCached(ctx, manager, "category", key, path, c.ttls.Category)
	if err != nil {
		return nil, err
	}
	return parseCategory(canonical, body)
}

// Random fetches the summary of a random article. Responses are never
// cached or deduplicated; every call is an independent fetch.
func (c *Client) Random(ctx context.Context, language string) (*Summary, error) {
	manager, err := c.manager(language)
	if err != nil {
		return nil, err
	}

	body, err := manager.Fetch(ctx, "/api/rest_v1/page/random/summary")
	if err != nil {
		return nil, err
	}
	return parseSummary(manager.Language(), body)
}

// fetchCached is the shared miss path: cache lookup, then a single
// deduplicated flight that fetches and writes back through both tiers.
// The flight is detached from the first caller's cancellation so every
// waiter sees it run to completion or terminal failure.
func (c *Client) fetchCached(ctx context.Context, manager *upstream.Manager, op, key, path string, ttl time.Duration) ([]byte, error) {
	if value, ok := c.cache.Get(ctx, key); ok {
		c.metrics.CacheLookup(op, true)
		return value, nil
	}
	c.metrics.CacheLookup(op, false)

	led := false
	body, err := c.group.Do(key, func() ([]byte, error) {
		led = true
		flightCtx := context.WithoutCancel(ctx)

		// A flight that settled between our cache miss and joining the
		// group may have filled the cache already.
		if value, ok := c.cache.Get(flightCtx, key); ok {
			return value, nil
		}

		c.logger.Debug("fetching from upstream",
			slog.String("language", manager.Language()),
			slog.String("path", path),
			slog.String("key", key),
		)

		body, err := manager.Fetch(flightCtx, path)
		if err != nil {
			return nil, err
		}

		c.cache.Set(flightCtx, key, body, ttl)
		return body, nil
	})
	c.metrics.FlightResolved(op, !led)
	return body, err
}

func (c *Client) manager(language string) (*upstream.Manager, error) {
	lang := strings.ToLower(strings.TrimSpace(language))
	manager, ok := c.managers[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}
	return manager, nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if err := validation.Validate(title,
		validation.Required.Error("must not be empty"),
		validation.RuneLength(1, maxTitleLength).Error("must be at most 255 characters"),
		validation.Match(titlePattern).Error("contains characters not allowed in titles"),
	); err != nil {
		return "", &ValidationError{Field: "title", Message: err.Error()}
	}
	return title, nil
}

func normalizeLimit(limit, fallback, max int) (int, error) {
	if limit == 0 {
		return fallback, nil
	}
	if limit < 1 || limit > max {
		return 0, &ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("must be between 1 and %d", max),
		}
	}
	return limit, nil
}
