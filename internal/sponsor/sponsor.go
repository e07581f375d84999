// Package sponsor builds the employer reference set used to classify
// listings, from bulk filing files whose encoding, delimiter, and column
// naming are not guaranteed a priori.
package sponsor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMinCases is the minimum number of filings an employer needs before
// it counts as a strong sponsor. One-off filings are noise.
const DefaultMinCases = 3

// UnparseableFileError reports a reference file that no encoding/delimiter
// candidate could parse into more than one column.
type UnparseableFileError struct {
	Path string
}

func (e *UnparseableFileError) Error() string {
	return fmt.Sprintf("no supported encoding/delimiter parses reference file %s", e.Path)
}

// Candidate orders are fixed: first structurally valid parse wins.
var fileEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-16", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	{"utf-8", nil},
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
}

var delimiters = []rune{'\t', ',', ';'}

// employerColumns are the known aliases for the employer-name column, first
// match wins.
var employerColumns = []string{
	"EmployerName",
	"Employer",
	"Employer_Name",
	"CompanyName",
	"Employer (Petitioner) Name",
}

// Options configures reference-set construction.
type Options struct {
	ReferencePaths []string
	CachePath      string
	MinCases       int // 0 means DefaultMinCases
	Logger         *slog.Logger
}

func (o Options) minCases() int {
	if o.MinCases <= 0 {
		return DefaultMinCases
	}
	return o.MinCases
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Load returns the reference set, reusing the on-disk cache unless some
// reference file is newer than it.
func Load(opts Options) (*ReferenceSet, error) {
	log := opts.logger()

	if opts.CachePath != "" && !cacheStale(opts.CachePath, opts.ReferencePaths) {
		set, err := loadCache(opts.CachePath)
		if err == nil {
			log.Info("sponsor reference set loaded from cache", "employers", set.Len())
			return set, nil
		}
		log.Warn("sponsor cache unreadable, rebuilding", "error", err)
	}

	return Rebuild(opts)
}

// Rebuild parses every reference file, unions the strong-sponsor sets, and
// rewrites the cache.
func Rebuild(opts Options) (*ReferenceSet, error) {
	log := opts.logger()

	union := make(map[string]struct{})
	for _, path := range opts.ReferencePaths {
		employers, err := parseFile(path, opts.minCases())
		if err != nil {
			return nil, err
		}
		log.Info("reference file parsed", "path", path, "strong_sponsors", len(employers))
		for name := range employers {
			union[name] = struct{}{}
		}
	}

	set := newReferenceSet(union)

	if opts.CachePath != "" {
		if err := saveCache(opts.CachePath, set, opts.ReferencePaths); err != nil {
			log.Warn("could not write sponsor cache", "path", opts.CachePath, "error", err)
		}
	}

	log.Info("sponsor reference set built", "employers", set.Len(), "files", len(opts.ReferencePaths))
	return set, nil
}

// parseFile extracts the strong-sponsor employer names from one reference
// file: probe the parse, filter to approved sponsorship rows where the file
// carries status columns, locate the employer column, normalize and count.
func parseFile(path string, minCases int) (map[string]struct{}, error) {
	header, rows, err := probeParse(path)
	if err != nil {
		return nil, err
	}

	rows = filterSponsorships(header, rows)

	nameIdx := -1
	for _, alias := range employerColumns {
		if idx := columnIndex(header, alias); idx >= 0 {
			nameIdx = idx
			break
		}
	}
	if nameIdx < 0 {
		// No recognizable employer column: nothing to extract.
		return map[string]struct{}{}, nil
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if nameIdx >= len(row) {
			continue
		}
		name := NormalizeName(row[nameIdx])
		if name == "" {
			continue
		}
		counts[name]++
	}

	employers := make(map[string]struct{})
	for name, n := range counts {
		if n >= minCases {
			employers[name] = struct{}{}
		}
	}
	return employers, nil
}

// probeParse tries each encoding × delimiter pair in order and returns the
// first parse that yields more than one column.
func probeParse(path string) (header []string, rows [][]string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read reference file: %w", err)
	}

	for _, enc := range fileEncodings {
		decoded := data
		if enc.enc == nil {
			if !utf8.Valid(data) {
				continue
			}
		} else {
			decoded, _, err = transform.Bytes(enc.enc.NewDecoder(), data)
			if err != nil {
				continue
			}
		}

		for _, delim := range delimiters {
			h, r, ok := parseDelimited(decoded, delim)
			if ok {
				return h, r, nil
			}
		}
	}

	return nil, nil, &UnparseableFileError{Path: path}
}

// parseDelimited reads a delimited byte payload leniently, skipping rows that
// do not parse. A result is structurally valid only with >1 header column.
func parseDelimited(data []byte, delim rune) (header []string, rows [][]string, ok bool) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil || len(header) <= 1 {
		return nil, nil, false
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed lines, keep the rest.
			continue
		}
		rows = append(rows, row)
	}
	return header, rows, true
}

// filterSponsorships keeps only rows that represent an approved or certified
// sponsorship case. Files without the relevant columns pass through
// unfiltered.
func filterSponsorships(header []string, rows [][]string) [][]string {
	visaIdx := columnIndex(header, "VisaClass")
	statusIdx := columnIndex(header, "CaseStatus")
	if visaIdx < 0 && statusIdx < 0 {
		return rows
	}

	kept := rows[:0]
	for _, row := range rows {
		if visaIdx >= 0 && !cellContains(row, visaIdx, "h-1b") {
			continue
		}
		if statusIdx >= 0 && !cellContains(row, statusIdx, "approved", "certified") {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}

func cellContains(row []string, idx int, needles ...string) bool {
	if idx >= len(row) {
		return false
	}
	cell := strings.ToLower(row[idx])
	for _, n := range needles {
		if strings.Contains(cell, n) {
			return true
		}
	}
	return false
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")) == name {
			return i
		}
	}
	return -1
}

// corporate suffixes dropped during name normalization.
var corporateSuffixes = map[string]bool{
	"inc": true, "llc": true, "corp": true,
	"corporation": true, "incorporated": true, "ltd": true,
}

// NormalizeName reduces an employer name to its comparison form: casefolded,
// trimmed, punctuation removed, corporate suffix words dropped.
func NormalizeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	lowered = strings.NewReplacer(",", "", ".", "").Replace(lowered)

	fields := strings.Fields(lowered)
	for len(fields) > 0 && corporateSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}
