package importfeeds

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"xmlcustomizer/syndicator/internal/models"
)

// FeedCreator persists a batch of feeds, skipping known URLs.
type FeedCreator interface {
	CreateBatch(ctx context.Context, feeds []*models.Feed) (int, error)
}

// Summary reports the outcome of one import.
type Summary struct {
	Rows     int
	Imported int
	Skipped  int
	Errors   []string
}

// Importer handles the feed import process
type Importer struct {
	feeds FeedCreator
	fs    afero.Fs
	http  *http.Client
}

// NewImporter creates a new feed importer reading local files from fs.
func NewImporter(feeds FeedCreator, fs afero.Fs) *Importer {
	return &Importer{
		feeds: feeds,
		fs:    fs,
		http:  &http.Client{Timeout: time.Minute},
	}
}

// ImportFeeds registers the feeds listed in a name,url CSV. source is a
// path on the importer's filesystem or an http(s) URL to download.
func (i *Importer) ImportFeeds(ctx context.Context, source string) (*Summary, error) {
	log.Info().Str("source", source).Msg("Starting feed import")

	csvData, err := i.open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get CSV data: %w", err)
	}
	defer csvData.Close()

	summary, err := i.parseAndImportFeeds(ctx, csvData)
	if err != nil {
		return nil, fmt.Errorf("failed to import feeds: %w", err)
	}

	log.Info().
		Int("total", summary.Rows).
		Int("imported", summary.Imported).
		Int("skipped", summary.Skipped).
		Int("errors", len(summary.Errors)).
		Msg("Import summary")
	return summary, nil
}

func (i *Importer) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return i.download(ctx, source)
	}
	log.Debug().Str("path", source).Msg("Using local CSV file")
	return i.fs.Open(source)
}

func (i *Importer) download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	log.Debug().Str("url", rawURL).Msg("Downloading CSV file")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: HTTP status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (i *Importer) parseAndImportFeeds(ctx context.Context, csvData io.Reader) (*Summary, error) {
	reader := csv.NewReader(csvData)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	log.Debug().Strs("header", header).Msg("CSV header read")

	nameIdx := findColumnIndex(header, "name")
	urlIdx := findColumnIndex(header, "url")
	if urlIdx < 0 {
		return nil, errors.New("required column 'url' not found in CSV header")
	}

	summary := &Summary{}
	var feeds []*models.Feed
	lineCount := 1 // Header was already read

	for {
		lineCount++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("line", lineCount).Msg("Error reading CSV line")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		summary.Rows++

		feedURL := safeGetValue(record, urlIdx)
		if !models.ValidFeedURL(feedURL) {
			log.Warn().Int("line", lineCount).Str("url", feedURL).Msg("Skipping row with invalid URL")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: invalid URL %q", lineCount, feedURL))
			continue
		}
		name := safeGetValue(record, nameIdx)
		if name == "" {
			name = feedURL
		}
		feeds = append(feeds, models.NewFeed(name, feedURL))
	}

	if len(feeds) == 0 {
		return summary, nil
	}
	summary.Imported, err = i.feeds.CreateBatch(ctx, feeds)
	if err != nil {
		return nil, err
	}
	summary.Skipped = len(feeds) - summary.Imported
	return summary, nil
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), columnName) {
			return i
		}
	}
	return -1
}

// safeGetValue returns the trimmed value at index, or "" when out of bounds.
func safeGetValue(record []string, index int) string {
	if index >= 0 && index < len(record) {
		return strings.TrimSpace(record[index])
	}
	return ""
}
