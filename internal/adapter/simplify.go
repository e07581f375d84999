package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/avirj/libra/internal/model"
	"github.com/avirj/libra/internal/normalize"
)

// DefaultSimplifyURL is the published listing document this adapter was built
// for. Overridable for forks and tests.
const DefaultSimplifyURL = "https://raw.githubusercontent.com/SimplifyJobs/Summer2026-Internships/dev/README.md"

// continuationMarker is the first-column placeholder a listing row uses to
// inherit the company of the row group it belongs to.
const continuationMarker = "↳"

// SimplifyAdapter scrapes the Simplify listing document: an HTML page of
// repeated tables where one company row is followed by marker rows for its
// additional openings.
type SimplifyAdapter struct {
	url    string
	client *http.Client
	onDrop func() // run-statistics hook for rejected rows, may be nil
	logger *slog.Logger
}

// NewSimplifyAdapter creates the table-source adapter. An empty url selects
// DefaultSimplifyURL. onDrop fires once per row rejected during validation.
func NewSimplifyAdapter(url string, client *http.Client, onDrop func(), logger *slog.Logger) *SimplifyAdapter {
	if url == "" {
		url = DefaultSimplifyURL
	}
	return &SimplifyAdapter{url: url, client: client, onDrop: onDrop, logger: logger}
}

func (a *SimplifyAdapter) Source() model.Source { return model.SourceSimplify }

// Fetch downloads the document and parses its tables into canonical jobs.
// Rows without a resolvable company, or missing any of company, title,
// location, or link, are dropped here rather than downstream.
func (a *SimplifyAdapter) Fetch(ctx context.Context) ([]model.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("simplify fetch: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("simplify fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("simplify parse: %w", err)
	}

	var jobs []model.Job
	dropped := 0

	doc.Find("table").Each(func(tableIdx int, table *goquery.Selection) {
		currentCompany := ""

		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			tds := tr.Find("td")
			if tds.Length() < 3 {
				return
			}

			first := strings.TrimSpace(tds.Eq(0).Text())
			if first != "" && first != continuationMarker {
				currentCompany = first
			}
			if currentCompany == "" {
				dropped += a.drop()
				return
			}

			row := normalize.TableRow{
				Company:  currentCompany,
				Title:    strings.TrimSpace(tds.Eq(1).Text()),
				Location: strings.TrimSpace(tds.Eq(2).Text()),
				Link:     applyLink(tds),
			}

			job, ok := normalize.FromTableRow(row)
			if !ok {
				dropped += a.drop()
				return
			}
			jobs = append(jobs, job)
		})
	})

	a.logger.Info("simplify tables parsed", "jobs", len(jobs), "dropped", dropped)
	return jobs, nil
}

func (a *SimplifyAdapter) drop() int {
	if a.onDrop != nil {
		a.onDrop()
	}
	return 1
}

// applyLink returns the first usable hyperlink in any column after the title
// column. Same-document anchors and links back to the hosting site are not
// application links.
func applyLink(tds *goquery.Selection) string {
	for i := 2; i < tds.Length(); i++ {
		link := ""
		tds.Eq(i).Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if usableLink(href) {
				link = href
				return false
			}
			return true
		})
		if link != "" {
			return link
		}
	}
	return ""
}

func usableLink(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	return !strings.Contains(href, "github.com")
}
