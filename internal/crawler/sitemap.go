package crawler

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yungbote/draftline-backend/internal/pkg/httpx"
	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

// maxIndexDepth caps sitemap-index recursion.
const maxIndexDepth = 3

// Entry is one URL discovered in a sitemap tree.
type Entry struct {
	URL     string
	LastMod string
}

// Fetcher discovers and parses a site's sitemap tree. Discovery order:
// robots.txt Sitemap lines, then /sitemap.xml, then /sitemap_index.xml.
type Fetcher struct {
	log      *logger.Logger
	http     *http.Client
	titleCli *http.Client
}

func NewFetcher(baseLog *logger.Logger) *Fetcher {
	return &Fetcher{
		log:      baseLog.With("service", "SitemapFetcher"),
		http:     &http.Client{Timeout: envutil.Dur("SITEMAP_TIMEOUT", 30*time.Second)},
		titleCli: &http.Client{Timeout: envutil.Dur("TITLE_TIMEOUT", 10*time.Second)},
	}
}

func (f *Fetcher) Discover(ctx context.Context, siteURL string) ([]Entry, error) {
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if base == "" {
		return nil, fmt.Errorf("empty site url")
	}

	candidates := f.robotsSitemaps(ctx, base)
	candidates = append(candidates, base+"/sitemap.xml", base+"/sitemap_index.xml")

	var lastErr error
	for _, cand := range candidates {
		entries, err := f.fetchTree(ctx, cand, 0)
		if err != nil {
			lastErr = err
			f.log.Debug("sitemap candidate failed", "url", cand, "error", err)
			continue
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no sitemap entries found for %s", base)
	}
	return nil, lastErr
}

// robotsSitemaps parses Sitemap: lines out of robots.txt. Best effort.
func (f *Fetcher) robotsSitemaps(ctx context.Context, base string) []string {
	body, err := f.get(ctx, base+"/robots.txt")
	if err != nil {
		return nil
	}
	defer body.Close()
	raw, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 8 && strings.EqualFold(line[:8], "sitemap:") {
			if u := strings.TrimSpace(line[8:]); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

func (f *Fetcher) fetchTree(ctx context.Context, sitemapURL string, depth int) ([]Entry, error) {
	if depth > maxIndexDepth {
		return nil, nil
	}
	body, err := f.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader := io.Reader(body)
	if strings.HasSuffix(strings.ToLower(sitemapURL), ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", sitemapURL, err)
		}
		defer gz.Close()
		reader = gz
	}

	urls, children, err := parseSitemap(reader)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", sitemapURL, err)
	}

	entries := urls
	for _, child := range children {
		childEntries, err := f.fetchTree(ctx, child, depth+1)
		if err != nil {
			f.log.Warn("nested sitemap failed", "url", child, "error", err)
			continue
		}
		entries = append(entries, childEntries...)
	}
	return entries, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "draftline-crawler/1.0")
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &httpx.StatusError{Status: resp.StatusCode}
	}
	return resp.Body, nil
}

type sitemapXML struct {
	XMLName xml.Name
	URLs    []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// parseSitemap handles both <urlset> and <sitemapindex> roots, returning
// page entries and child sitemap URLs.
func parseSitemap(r io.Reader) ([]Entry, []string, error) {
	var doc sitemapXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, err
	}
	var entries []Entry
	for _, u := range doc.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		entries = append(entries, Entry{URL: loc, LastMod: strings.TrimSpace(u.LastMod)})
	}
	var children []string
	for _, s := range doc.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			children = append(children, loc)
		}
	}
	return entries, children, nil
}

// FetchTitle grabs a page's <title> (falling back to the first h1).
// Best effort; "" when anything fails.
func (f *Fetcher) FetchTitle(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "draftline-crawler/1.0")
	resp, err := f.titleCli.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// SlugFromURL returns the last non-empty path segment.
func SlugFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
