package lyrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sukalov/lyricstudio/internal/logger"
)

var ErrNoLyrics = errors.New("no lyrics found on page")

// Result is an imported lyric sheet.
type Result struct {
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Importer seeds a session from a lyrics page on the web.
type Importer struct {
	http *http.Client
	now  func() time.Time
}

func NewImporter() *Importer {
	return &Importer{http: newHTTPClient(), now: time.Now}
}

// NewImporterWithClient uses c for every request.
func NewImporterWithClient(c *http.Client) *Importer {
	return &Importer{http: c, now: time.Now}
}

func (im *Importer) Import(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid lyrics url %q", rawURL)
	}
	// mirror subdomains serve the same page without chord blocks
	u.Host = strings.Replace(u.Host, "123.amdm.ru", "amdm.ru", 1)

	logger.Debug(fmt.Sprintf("importing lyrics from %s", u))

	body, err := im.fetch(ctx, u.String())
	if err != nil {
		return nil, logger.LogWithErr(fmt.Sprintf("lyrics import failed for %s", u), err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	src := sourceFor(u.Hostname())
	text := src.extract(doc)
	if text == "" {
		return nil, fmt.Errorf("%s: %w", u, ErrNoLyrics)
	}

	logger.Debug(fmt.Sprintf("imported %d lines from %s", strings.Count(text, "\n")+1, u))

	return &Result{
		URL:       u.String(),
		Source:    src.name,
		Title:     pageTitle(doc),
		Text:      text,
		FetchedAt: im.now(),
	}, nil
}

func pageTitle(doc *goquery.Document) string {
	if h := strings.TrimSpace(doc.Find("h1").First().Text()); h != "" {
		return strings.Join(strings.Fields(h), " ")
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
