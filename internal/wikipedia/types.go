package wikipedia

import (
	"encoding/json"
	"fmt"
	"time"
)

// SearchResult is the normalized answer to a full-text search.
type SearchResult struct {
	Query   string       `json:"query"`
	Results []SearchItem `json:"results"`
}

type SearchItem struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Title       string `json:"title"`
	Excerpt     string `json:"excerpt,omitempty"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// Page is a full article: metadata plus wikitext source.
type Page struct {
	ID           int64     `json:"id"`
	Key          string    `json:"key"`
	Title        string    `json:"title"`
	Language     string    `json:"language"`
	Revision     int64     `json:"revision"`
	Timestamp    time.Time `json:"timestamp"`
	ContentModel string    `json:"content_model,omitempty"`
	License      string    `json:"license,omitempty"`
	Source       string    `json:"source"`
}

// Summary is the lead section of an article.
type Summary struct {
	Title        string    `json:"title"`
	DisplayTitle string    `json:"display_title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Extract      string    `json:"extract"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	Language     string    `json:"language"`
	URL          string    `json:"url,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// CategoryMembers lists the pages directly inside one category.
type CategoryMembers struct {
	Category string           `json:"category"`
	Members  []CategoryMember `json:"members"`
}

type CategoryMember struct {
	PageID    int64  `json:"page_id"`
	Title     string `json:"title"`
	Namespace int    `json:"namespace"`
}

func parseSearch(query string, body []byte) (*SearchResult, error) {
	var wire struct {
		Pages []struct {
			ID          int64  `json:"id"`
			Key         string `json:"key"`
			Title       string `json:"title"`
			Excerpt     string `json:"excerpt"`
			Description string `json:"description"`
			Thumbnail   *struct {
				URL string `json:"url"`
			} `json:"thumbnail"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	result := &SearchResult{
		Query:   query,
		Results: make([]SearchItem, 0, len(wire.Pages)),
	}
	for _, page := range wire.Pages {
		item := SearchItem{
			ID:          page.ID,
			Key:         page.Key,
			Title:       page.Title,
			Excerpt:     page.Excerpt,
			Description: page.Description,
		}
		if page.Thumbnail != nil {
			item.Thumbnail = page.Thumbnail.URL
		}
		result.Results = append(result.Results, item)
	}
	return result, nil
}

func parsePage(language string, body []byte) (*Page, error) {
	var wire struct {
		ID     int64  `json:"id"`
		Key    string `json:"key"`
		Title  string `json:"title"`
		Latest struct {
			ID        int64     `json:"id"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"latest"`
		ContentModel string `json:"content_model"`
		License      struct {
			Title string `json:"title"`
		} `json:"license"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parsing page response: %w", err)
	}

	return &Page{
		ID:           wire.ID,
		Key:          wire.Key,
		Title:        wire.Title,
		Language:     language,
		Revision:     wire.Latest.ID,
		Timestamp:    wire.Latest.Timestamp,
		ContentModel: wire.ContentModel,
		License:      wire.License.Title,
		Source:       wire.Source,
	}, nil
}

func parseSummary(language string, body []byte) (*Summary, error) {
	var wire struct {
		Title        string `json:"title"`
		DisplayTitle string `json:"displaytitle"`
		Description  string `json:"description"`
		Extract      string `json:"extract"`
		Thumbnail    *struct {
			Source string `json:"source"`
		} `json:"thumbnail"`
		Lang        string    `json:"lang"`
		Timestamp   time.Time `json:"timestamp"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parsing summary response: %w", err)
	}

	summary := &Summary{
		Title:        wire.Title,
		DisplayTitle: wire.DisplayTitle,
		Description:  wire.Description,
		Extract:      wire.Extract,
		Language:     wire.Lang,
		URL:          wire.ContentURLs.Desktop.Page,
		Timestamp:    wire.Timestamp,
	}
	if summary.Language == "" {
		summary.Language = language
	}
	if wire.Thumbnail != nil {
		summary.Thumbnail = wire.Thumbnail.Source
	}
	return summary, nil
}

func parseCategory(category string, body []byte) (*CategoryMembers, error) {
	var wire struct {
		Query struct {
			CategoryMembers []struct {
				PageID int64  `json:"pageid"`
				NS     int    `json:"ns"`
				Title  string `json:"title"`
			} `json:"categorymembers"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parsing category response: %w", err)
	}

	members := &CategoryMembers{
		Category: category,
		Members:  make([]CategoryMember, 0, len(wire.Query.CategoryMembers)),
	}
	for _, member := range wire.Query.CategoryMembers {
		members.Members = append(members.Members, CategoryMember{
			PageID:    member.PageID,
			Title:     member.Title,
			Namespace: member.NS,
		})
	}
	return members, nil
}
