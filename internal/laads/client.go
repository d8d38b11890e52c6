// Package laads looks up and downloads daily VNP46 tiles from a LAADS-style
// archive that publishes one HTML directory listing per day.
package laads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/woozymasta/radiance/internal/raster"
	"github.com/woozymasta/radiance/internal/retry"
	"github.com/woozymasta/radiance/internal/stats"
)

// DefaultBaseURL is the VNP46A1 collection 5000 archive.
const DefaultBaseURL = "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData/5000/VNP46A1/{year}/{doy}/"

// ErrTileNotFound is returned when the day listing has no tile for a quadrant.
var ErrTileNotFound = errors.New("laads: tile not found")

// StatusError is a non-200 archive response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("laads: %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Options configures a Client.
type Options struct {
	// BaseURL is the day listing template; {year} expands to four digits and
	// {doy} (or {day}) to the zero-padded day of year.
	BaseURL string

	// Extension the tile file name must end with; defaults to
	// raster.DefaultExtension.
	Extension string

	// Token is sent as a bearer token when not empty.
	Token string

	// Timeout bounds a single request; zero keeps the http.Client default.
	Timeout time.Duration

	// RequestsPerSecond throttles archive requests; zero disables it.
	RequestsPerSecond float64

	Retry retry.Config
}

// Client talks to the archive. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	opts    Options
}

// New returns a Client using hc, or a fresh http.Client when hc is nil.
func New(hc *http.Client, opts Options) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Extension == "" {
		opts.Extension = raster.DefaultExtension
	}

	c := &Client{http: hc, opts: opts}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// DayURL expands the listing template for date.
func (c *Client) DayURL(date stats.Date) string {
	r := strings.NewReplacer(
		"{year}", fmt.Sprintf("%04d", date.Year),
		"{doy}", fmt.Sprintf("%03d", date.DayOfYear()),
		"{day}", fmt.Sprintf("%03d", date.DayOfYear()),
	)
	return r.Replace(c.opts.BaseURL)
}

// FindTile returns the absolute URL of the first tile in the day listing
// whose name contains quadrant and ends with the configured extension.
func (c *Client) FindTile(ctx context.Context, date stats.Date, quadrant string) (string, error) {
	dayURL := c.DayURL(date)

	base, err := url.Parse(dayURL)
	if err != nil {
		return "", fmt.Errorf("laads: listing url: %w", err)
	}

	hrefs, err := retry.DoVal(ctx, c.retryConfig("listing", dayURL), func(ctx context.Context) ([]string, error) {
		resp, err := c.get(ctx, dayURL)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		return parseLinks(resp.Body)
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s has no listing for %s", ErrTileNotFound, quadrant, date)
		}
		return "", err
	}

	for _, href := range hrefs {
		name := path.Base(href)
		if !strings.Contains(name, quadrant) || !strings.HasSuffix(name, c.opts.Extension) {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			log.Trace().Err(err).Str("href", href).Msg("Skipping malformed link")
			continue
		}
		return base.ResolveReference(ref).String(), nil
	}

	return "", fmt.Errorf("%w: %s on %s", ErrTileNotFound, quadrant, date)
}

// Download stores tileURL at dst and returns the number of bytes written.
// The file appears at dst only once complete.
func (c *Client) Download(ctx context.Context, tileURL, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}

	return retry.DoVal(ctx, c.retryConfig("download", tileURL), func(ctx context.Context) (int64, error) {
		resp, err := c.get(ctx, tileURL)
		if err != nil {
			return 0, err
		}
		defer func() { _ = resp.Body.Close() }()

		tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
		if err != nil {
			return 0, err
		}
		defer func() { _ = os.Remove(tmp.Name()) }()

		n, err := io.Copy(tmp, resp.Body)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return 0, fmt.Errorf("laads: download %s: %w", tileURL, err)
		}

		if err := os.Rename(tmp.Name(), dst); err != nil {
			return 0, err
		}
		return n, nil
	})
}

// Fetch finds the tile for (date, quadrant) and downloads it into dir under
// its archive file name, returning the local path.
func (c *Client) Fetch(ctx context.Context, date stats.Date, quadrant, dir string) (string, error) {
	tileURL, err := c.FindTile(ctx, date, quadrant)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, path.Base(tileURL))
	n, err := c.Download(ctx, tileURL, dst)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("quadrant", quadrant).
		Stringer("date", date).
		Str("path", dst).
		Int64("bytes", n).
		Msg("Tile downloaded")

	return dst, nil
}

func (c *Client) retryConfig(operation, target string) retry.Config {
	cfg := c.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = retry.LogRetries(operation, target)
	}
	return cfg
}

// get performs an authenticated GET. Non-200 responses are closed and
// returned as *StatusError, wrapped as transient for retryable statuses.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	log.Trace().Str("url", rawURL).Msg("GET")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		err := &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		if retry.IsTransientStatus(resp.StatusCode) {
			return nil, retry.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	return resp, nil
}

// parseLinks returns the trimmed href of every anchor in an HTML document.
func parseLinks(r io.Reader) ([]string, error) {
	var links []string

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("laads: parse listing: %w", err)
			}
			return links, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "href" {
					if href := cleanHref(string(val)); href != "" {
						links = append(links, href)
					}
				}
			}
		}
	}
}

// cleanHref drops whitespace the listing may wrap inside attribute values.
func cleanHref(s string) string {
	return strings.Join(strings.Fields(s), "")
}
