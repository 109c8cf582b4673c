package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSearchURL is an HTML search endpoint that accepts a q parameter.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

const maxSearchResults = 8

// SearchResult is one hit from a web search.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a free-text web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// WebSearcher scrapes an HTML results page.
type WebSearcher struct {
	client  *http.Client
	baseURL string
}

// NewWebSearcher builds a searcher against baseURL; empty uses DefaultSearchURL.
func NewWebSearcher(client *http.Client, baseURL string) *WebSearcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultSearchURL
	}
	return &WebSearcher{client: client, baseURL: baseURL}
}

// Search fetches the results page for query and returns up to eight hits.
func (w *WebSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	pageURL, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	q := pageURL.Query()
	q.Set("q", query)
	pageURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "athena-backend/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return parseResults(doc), nil
}

func parseResults(doc *goquery.Document) []SearchResult {
	results := make([]SearchResult, 0, maxSearchResults)
	doc.Find(".result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, SearchResult{
			Title:   title,
			URL:     strings.TrimSpace(href),
			Snippet: strings.Join(strings.Fields(s.Find(".result__snippet").First().Text()), " "),
		})
		return len(results) < maxSearchResults
	})
	return results
}
