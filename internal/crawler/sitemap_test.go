package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

const urlsetTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
%s
</urlset>`

func urlsetXML(urls ...string) string {
	var b strings.Builder
	for _, u := range urls {
		fmt.Fprintf(&b, "<url><loc>%s</loc><lastmod>2026-01-01</lastmod></url>\n", u)
	}
	return fmt.Sprintf(urlsetTemplate, b.String())
}

func TestDiscoverViaSitemapXML(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprint(w, urlsetXML(srv.URL+"/a/", srv.URL+"/b/"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(logger.Nop())
	entries, err := f.Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].URL != srv.URL+"/a/" || entries[0].LastMod != "2026-01-01" {
		t.Fatalf("entry = %+v", entries[0])
	}
}

func TestDiscoverPrefersRobotsTxt(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			fmt.Fprintf(w, "User-agent: *\nDisallow: /admin\nSitemap: %s/custom-map.xml\n", srv.URL)
		case "/custom-map.xml":
			fmt.Fprint(w, urlsetXML(srv.URL+"/from-robots/"))
		case "/sitemap.xml":
			fmt.Fprint(w, urlsetXML(srv.URL+"/from-default/"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(logger.Nop())
	entries, err := f.Discover(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != srv.URL+"/from-robots/" {
		t.Fatalf("entries = %+v, want the robots.txt sitemap", entries)
	}
}

func TestDiscoverFallsBackToSitemapIndex(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap_index.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<sitemap><loc>%s/posts.xml</loc></sitemap>
<sitemap><loc>%s/pages.xml</loc></sitemap>
</sitemapindex>`, srv.URL, srv.URL)
		case "/posts.xml":
			fmt.Fprint(w, urlsetXML(srv.URL+"/post-1/"))
		case "/pages.xml":
			fmt.Fprint(w, urlsetXML(srv.URL+"/about/"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(logger.Nop())
	entries, err := f.Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2", entries)
	}
}

func TestFetchTreeHandlesGzip(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml.gz":
			var buf bytes.Buffer
			gz := gzip.NewWriter(&buf)
			_, _ = gz.Write([]byte(urlsetXML(srv.URL + "/zipped/")))
			_ = gz.Close()
			_, _ = w.Write(buf.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(logger.Nop())
	entries, err := f.fetchTree(context.Background(), srv.URL+"/sitemap.xml.gz", 0)
	if err != nil {
		t.Fatalf("fetchTree: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != srv.URL+"/zipped/" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestFetchTreeCapsIndexRecursion(t *testing.T) {
	// A sitemap index that points at itself forever.
	var srv *httptest.Server
	hits := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprintf(w, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<sitemap><loc>%s/loop.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	}))
	defer srv.Close()

	f := NewFetcher(logger.Nop())
	entries, err := f.fetchTree(context.Background(), srv.URL+"/loop.xml", 0)
	if err != nil {
		t.Fatalf("fetchTree: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v, want none", entries)
	}
	if hits > maxIndexDepth+1 {
		t.Fatalf("fetched %d times, recursion cap not applied", hits)
	}
}

func TestDiscoverErrorsWhenNothingFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewFetcher(logger.Nop())
	if _, err := f.Discover(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error when no sitemap exists")
	}
}

func TestFetchTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/with-title":
			fmt.Fprint(w, `<html><head><title> Hello World </title></head><body></body></html>`)
		case "/h1-only":
			fmt.Fprint(w, `<html><body><h1>Fallback Heading</h1></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(logger.Nop())
	if got := f.FetchTitle(context.Background(), srv.URL+"/with-title"); got != "Hello World" {
		t.Fatalf("title = %q", got)
	}
	if got := f.FetchTitle(context.Background(), srv.URL+"/h1-only"); got != "Fallback Heading" {
		t.Fatalf("h1 fallback = %q", got)
	}
	if got := f.FetchTitle(context.Background(), srv.URL+"/missing"); got != "" {
		t.Fatalf("missing page title = %q, want empty", got)
	}
}

func TestSlugFromURL(t *testing.T) {
	cases := map[string]string{
		"https://acme.example/blog/go-routines/": "go-routines",
		"https://acme.example/go-routines":       "go-routines",
		"https://acme.example/":                  "",
		"://bad":                                 "",
	}
	for in, want := range cases {
		if got := SlugFromURL(in); got != want {
			t.Fatalf("SlugFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
