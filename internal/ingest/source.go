package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/lox/stravaexplorer/internal/dataset"
	"github.com/lox/stravaexplorer/internal/httputil"
	"github.com/lox/stravaexplorer/internal/log"
	"github.com/lox/stravaexplorer/internal/store"
)

// DBPrefix marks a source naming a dataset already imported into the store.
const DBPrefix = "db:"

const (
	DefaultFetchTimeout = 2 * time.Minute
	ftpDialTimeout      = 30 * time.Second
)

// ErrNoStore is returned for a db: source when no store is configured.
var ErrNoStore = errors.New("db source needs a store")

// Fetch returns the raw bytes of a local, ftp:// or http(s):// source.
// Remote fetches retry transient failures with exponential backoff until
// timeout has elapsed.
func Fetch(ctx context.Context, source string, timeout time.Duration) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return os.ReadFile(source)
	}

	switch u.Scheme {
	case "file":
		return os.ReadFile(u.Path)
	case "ftp":
		return retry(ctx, timeout, func() ([]byte, error) { return fetchFTP(ctx, u) })
	case "http", "https":
		client := httputil.NewClient(httputil.DefaultTimeout)
		return retry(ctx, timeout, func() ([]byte, error) { return fetchHTTP(ctx, client, u.String()) })
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

func retry(ctx context.Context, timeout time.Duration, fetch func() ([]byte, error)) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		b, err := fetch()
		if err != nil {
			log.Warnw("ingest: fetch failed", "attempt", attempt, "error", err)
			return err
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = timeout
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func fetchHTTP(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("fetch: status %d: %s", resp.StatusCode, string(b)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func fetchFTP(ctx context.Context, u *url.URL) ([]byte, error) {
	host := u.Host
	if u.Port() == "" {
		host += ":21"
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpDialTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		return nil, permanentFTP(fmt.Errorf("ftp login: %w", err))
	}

	resp, err := conn.Retr(strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return nil, permanentFTP(fmt.Errorf("ftp retr: %w", err))
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// permanentFTP stops retrying on 5xx replies, which the server will repeat.
func permanentFTP(err error) error {
	var te *textproto.Error
	if errors.As(err, &te) && te.Code >= 500 {
		return backoff.Permanent(err)
	}
	return err
}

// LoadTable reads source into a validated observation table. A db: source
// is read from st; every other source is fetched and parsed as CSV.
func LoadTable(ctx context.Context, source string, st *store.Store, timeout time.Duration) (*dataset.Table, error) {
	if name, ok := strings.CutPrefix(source, DBPrefix); ok {
		if st == nil {
			return nil, ErrNoStore
		}
		obs, err := st.GetObservations(name)
		if err != nil {
			return nil, fmt.Errorf("load dataset %q: %w", name, err)
		}
		return dataset.FromObservations(obs)
	}

	body, err := Fetch(ctx, source, timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}
	t, err := dataset.ReadCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	return t, nil
}
