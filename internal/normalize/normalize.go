// Package normalize maps source-specific raw records into the canonical Job
// shape and owns the field-level normalization rules shared by the dedup key
// and the sponsorship lookup.
package normalize

import (
	"strings"
	"time"
	"unicode"

	"github.com/avirj/libra/internal/model"
)

// NotSpecified is the default for sources that give no location.
const NotSpecified = "Not specified"

// CleanCompany strips decorative glyphs (emoji, dingbats, variation
// selectors) from a company name and collapses whitespace, preserving the
// display casing.
func CleanCompany(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isDecorative(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// isDecorative reports whether a rune is cosmetic rather than part of a name:
// pictographs, symbol runes, and the invisible joiners that accompany them.
func isDecorative(r rune) bool {
	switch r {
	case '︎', '️', '‍': // variation selectors, zero-width joiner
		return true
	}
	if r >= 0x1F000 { // pictographic planes
		return true
	}
	return unicode.In(r, unicode.So, unicode.Sk, unicode.Co, unicode.Cs)
}

// Key casefolds a field into its comparison form.
func Key(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// DetectRemote infers remoteness from location text when the source has no
// explicit flag.
func DetectRemote(location string) bool {
	return strings.Contains(strings.ToLower(location), "remote")
}

// TableRow is the raw record emitted by the table source after row grouping.
type TableRow struct {
	Company  string
	Title    string
	Location string
	Link     string
}

// FromTableRow maps a table row into a canonical Job. The second return is
// false when the row is unusable downstream: table records need company,
// title, location, and link all present.
func FromTableRow(r TableRow) (model.Job, bool) {
	company := CleanCompany(r.Company)
	title := strings.TrimSpace(r.Title)
	location := strings.TrimSpace(r.Location)
	link := strings.TrimSpace(r.Link)

	if company == "" || title == "" || location == "" || link == "" {
		return model.Job{}, false
	}

	return model.Job{
		Company:  company,
		Title:    title,
		Location: location,
		Link:     link,
		Source:   model.SourceSimplify,
		Remote:   DetectRemote(location),
	}, true
}

// SearchJob is the raw record returned by the search API. Field names follow
// the upstream wire format.
type SearchJob struct {
	JobID           string   `json:"job_id"`
	EmployerName    string   `json:"employer_name"`
	JobTitle        string   `json:"job_title"`
	City            string   `json:"job_city"`
	State           string   `json:"job_state"`
	Country         string   `json:"job_country"`
	ApplyLink       string   `json:"job_apply_link"`
	IsRemote        bool     `json:"job_is_remote"`
	PostedAt        string   `json:"job_posted_at_datetime_utc"`
	Description     string   `json:"job_description"`
	EmploymentTypes []string `json:"job_employment_types"`
}

// Location joins the city/state/country parts the API provides.
func (s SearchJob) Location() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.City, s.State, s.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return NotSpecified
	}
	return strings.Join(parts, ", ")
}

// FromSearchJob maps a search API record into a canonical Job.
func FromSearchJob(s SearchJob) model.Job {
	location := s.Location()

	job := model.Job{
		Company:     CleanCompany(s.EmployerName),
		Title:       strings.TrimSpace(s.JobTitle),
		Location:    location,
		Link:        strings.TrimSpace(s.ApplyLink),
		Source:      model.SourceJSearch,
		Remote:      s.IsRemote || DetectRemote(location),
		Description: s.Description,
		Tags:        s.EmploymentTypes,
	}

	if s.PostedAt != "" {
		if t, err := time.Parse(time.RFC3339, s.PostedAt); err == nil {
			job.PostedAt = &t
		}
	}

	return job
}
