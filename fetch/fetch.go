// Package fetch downloads asset-bundle archives into a staging area.
//
// Every URL yields exactly one DownloadResult, in input order. A failed
// download never aborts the sequence: network errors, malformed URLs and
// filesystem errors are converted into failed results so the caller can
// skip that bundle and continue the batch.
package fetch

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/mason/iox"
	"github.com/justapithecus/mason/types"
)

// Fetcher downloads URLs into <out>/tmp/<basename>.
type Fetcher struct {
	client *http.Client
	out    string
}

// NewFetcher creates a fetcher writing under out. A non-zero timeout
// bounds each individual download.
func NewFetcher(out string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		out:    out,
	}
}

// ReadLinks parses a newline-delimited URL list file.
// Blank lines are skipped silently and are not represented in the output.
func ReadLinks(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read link list %q: %w", path, err)
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}

// Fetch lazily downloads urls one at a time, yielding one result per URL
// in input order. Iteration may be stopped early; remaining URLs are then
// never fetched.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) iter.Seq[types.DownloadResult] {
	names := stagingNames(urls)
	return func(yield func(types.DownloadResult) bool) {
		for i, u := range urls {
			if !yield(f.fetchOne(ctx, u, names[i])) {
				return
			}
		}
	}
}

// FetchAll downloads urls with a bounded worker pool and returns results
// in input order. A concurrency of zero or one is sequential.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, concurrency int) []types.DownloadResult {
	if concurrency < 1 {
		concurrency = 1
	}

	names := stagingNames(urls)
	results := make([]types.DownloadResult, len(urls))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, u, names[i])
			return nil
		})
	}
	// Workers never return errors: per-URL failures are results.
	_ = g.Wait()

	return results
}

// deriveName extracts the staging file name from a URL path.
func deriveName(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("malformed URL %q: %w", rawURL, err)
	}

	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("cannot derive file name from URL %q", rawURL)
	}
	return name, nil
}

// stagingNames derives one staging file name per URL, suffixing repeats
// so concurrent downloads never share a target file. Underivable names
// stay empty; fetchOne surfaces the error for those.
func stagingNames(urls []string) []string {
	names := make([]string, len(urls))
	seen := make(map[string]int, len(urls))
	for i, u := range urls {
		name, err := deriveName(u)
		if err != nil {
			continue
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			ext := path.Ext(name)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		names[i] = name
	}
	return names
}

// fetchOne downloads a single URL. Any failure is folded into the result.
func (f *Fetcher) fetchOne(ctx context.Context, rawURL, name string) types.DownloadResult {
	target, err := f.download(ctx, rawURL, name)
	if err != nil {
		return types.DownloadResult{URL: rawURL, Succeeded: false, Message: err.Error()}
	}
	return types.DownloadResult{URL: rawURL, Succeeded: true, Message: "OK", LocalPath: target}
}

func (f *Fetcher) download(ctx context.Context, rawURL, name string) (string, error) {
	// Checked fresh per item, not cached: the directory could be removed
	// mid-run.
	if _, err := os.Stat(f.out); err != nil {
		return "", fmt.Errorf("output folder does not exist")
	}

	if name == "" {
		_, err := deriveName(rawURL)
		if err == nil {
			err = fmt.Errorf("cannot derive file name from URL %q", rawURL)
		}
		return "", err
	}
	target := filepath.Join(f.out, "tmp", name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, rawURL)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer iox.DiscardClose(dst)

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}

	return target, nil
}
