// Package reference downloads the BLS CU taxonomy files (cu.area, cu.item)
// and stores their trimmed form as comma-delimited intermediates.
package reference

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
)

// Default feed locations.
const (
	DefaultAreaURL = "https://download.bls.gov/pub/time.series/cu/cu.area"
	DefaultItemURL = "https://download.bls.gov/pub/time.series/cu/cu.item"
)

// Feed is a raw taxonomy file split into its header and data lines.
type Feed struct {
	Source string
	Header string
	Lines  []string
}

// Fetcher reads feeds from HTTP(S) URLs or local paths.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. download.bls.gov rejects requests without a
// descriptive User-Agent, so userAgent should name a contact.
func NewFetcher(userAgent string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Fetch reads source, which is either a URL or a file path.
func (f *Fetcher) Fetch(ctx context.Context, source string) (Feed, error) {
	var (
		body io.ReadCloser
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = f.download(ctx, source)
	} else {
		body, err = os.Open(source)
	}
	if err != nil {
		return Feed{}, fmt.Errorf("fetch %s: %w", source, err)
	}
	defer body.Close()

	feed, err := readFeed(body)
	if err != nil {
		return Feed{}, fmt.Errorf("read %s: %w", source, err)
	}
	feed.Source = source

	f.logger.Info("reference feed fetched", "source", source, "rows", len(feed.Lines))
	return feed, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// readFeed splits a feed into its header and data lines. The first line is
// the header only when it looks like one (first column named "*_code"), so
// headerless local files keep every row.
func readFeed(r io.Reader) (Feed, error) {
	var feed Feed
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if isHeaderLine(line) {
				feed.Header = line
				continue
			}
		}
		feed.Lines = append(feed.Lines, line)
	}
	if err := sc.Err(); err != nil {
		return Feed{}, err
	}
	if first {
		return Feed{}, fmt.Errorf("%w: empty feed", domain.ErrMalformedReferenceData)
	}
	return feed, nil
}

func isHeaderLine(line string) bool {
	code, _, _ := strings.Cut(line, "\t")
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(code)), "_code")
}

// WriteIntermediate stores the feed with its metadata columns dropped as a
// comma-delimited file. Every row is kept; filtering happens when the catalog
// is built.
func WriteIntermediate(path string, feed Feed) error {
	rows, err := domain.ParseReferenceLines(feed.Lines)
	if err != nil {
		return fmt.Errorf("write intermediate %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if header := domain.TrimMetadataColumns(strings.Split(feed.Header, "\t")); len(header) > 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Code, r.Name}); err != nil {
			return fmt.Errorf("write row %s: %w", r.Code, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return out.Close()
}
