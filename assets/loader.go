// Package assets fetches model resources by URL through a cache and decodes
// them for the scene. Each fetch runs as a cancellable Task on its own
// goroutine, independent of frame rendering.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/richinsley/gosketch/cache"
	"github.com/richinsley/gosketch/scene"
)

// UserAgent is sent with every request.
const UserAgent = "gosketch (+https://github.com/richinsley/gosketch)"

// ErrCancelled is the result error of a task cancelled before it finished.
var ErrCancelled = errors.New("asset load cancelled")

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	return t.Transport.RoundTrip(req)
}

// Loader starts asset tasks.
type Loader struct {
	client  *http.Client
	cache   cache.Cache
	ttl     time.Duration
	backoff cache.Backoff
	decoder scene.Decoder
	logger  *log.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the HTTP client. Its transport is wrapped to set
// the User-Agent.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		cp := *c
		base := cp.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		cp.Transport = &headerTransport{Transport: base}
		l.client = &cp
	}
}

// WithTTL sets how long fetched assets stay cached. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(l *Loader) { l.ttl = ttl }
}

// WithBackoff sets the retry schedule for network failures.
func WithBackoff(b cache.Backoff) Option {
	return func(l *Loader) { l.backoff = b }
}

// WithDecoder sets the model decoder.
func WithDecoder(d scene.Decoder) Option {
	return func(l *Loader) { l.decoder = d }
}

// WithLogger sets the logger used to report failures.
func WithLogger(lg *log.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLoader returns a loader backed by c. A nil cache disables caching.
func NewLoader(c cache.Cache, opts ...Option) *Loader {
	if c == nil {
		c = cache.NewNullCache()
	}
	l := &Loader{
		client: &http.Client{
			Transport: &headerTransport{Transport: http.DefaultTransport},
			Timeout:   2 * time.Minute,
		},
		cache:   c,
		backoff: cache.DefaultBackoff,
		decoder: scene.ImageDecoder{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins loading rawURL in the background. The task stops when ctx is
// done or Cancel is called. Each callback runs with the result on the task's
// goroutine before Done is closed.
func (l *Loader) Start(ctx context.Context, rawURL string, callbacks ...func(Result)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{url: rawURL, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer cancel()
		res := l.load(ctx, t)
		// A task cancelled mid-decode still reports cancellation.
		if ctx.Err() != nil {
			res.Err = fmt.Errorf("%w: %s", ErrCancelled, rawURL)
			res.Model = nil
		}
		if res.Err != nil {
			l.logger.Error("asset load failed", "url", rawURL, "err", res.Err)
		} else {
			t.setProgress(1)
			l.logger.Info("asset loaded", "url", rawURL, "bytes", len(res.Data), "cached", res.FromCache)
		}
		for _, cb := range callbacks {
			cb(res)
		}
		t.finish(res)
	}()
	return t
}

// Load is Start followed by Wait.
func (l *Loader) Load(ctx context.Context, rawURL string) Result {
	t := l.Start(ctx, rawURL)
	<-t.Done()
	res, _ := t.Result()
	return res
}

func (l *Loader) load(ctx context.Context, t *Task) Result {
	res := Result{URL: t.url}

	data, fromCache, err := l.fetch(ctx, t)
	if err != nil {
		res.Err = err
		return res
	}
	res.Data = data
	res.FromCache = fromCache

	model, err := l.decoder.Decode(data)
	if err != nil {
		if fromCache {
			_ = l.cache.Delete(ctx, t.url)
		}
		res.Err = fmt.Errorf("failed to decode %s: %w", t.url, err)
		return res
	}
	res.Model = model
	return res
}

func (l *Loader) fetch(ctx context.Context, t *Task) ([]byte, bool, error) {
	u, err := url.Parse(t.url)
	if err != nil {
		return nil, false, fmt.Errorf("invalid asset url %q: %w", t.url, err)
	}

	switch u.Scheme {
	case "http", "https":
	case "file":
		data, err := os.ReadFile(u.Path)
		return data, false, err
	case "":
		data, err := os.ReadFile(t.url)
		return data, false, err
	default:
		// Windows drive letters parse as a scheme.
		if len(u.Scheme) == 1 {
			data, err := os.ReadFile(t.url)
			return data, false, err
		}
		return nil, false, fmt.Errorf("unsupported asset url scheme %q", u.Scheme)
	}

	if data, hit, err := l.cache.Get(ctx, t.url); err != nil {
		l.logger.Warn("asset cache read failed", "url", t.url, "err", err)
	} else if hit {
		return data, true, nil
	}

	var data []byte
	err = cache.RetryWithBackoff(ctx, l.backoff, func() error {
		t.setProgress(0)
		d, err := l.download(ctx, t)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if err := l.cache.Set(ctx, t.url, data, l.ttl); err != nil {
		l.logger.Warn("failed to save asset to cache", "url", t.url, "err", err)
	}
	return data, false, nil
}

func (l *Loader) download(ctx context.Context, t *Task) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, t.url)
	case resp.StatusCode >= 500:
		return nil, cache.Retryable(fmt.Errorf("%w: %s returned status %d", cache.ErrNetwork, t.url, resp.StatusCode))
	default:
		return nil, fmt.Errorf("failed to load %s, status code: %d", t.url, resp.StatusCode)
	}

	body := &progressReader{r: resp.Body, total: resp.ContentLength, task: t}
	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := io.Copy(&buf, body); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: reading %s: %v", cache.ErrNetwork, t.url, err))
	}
	return buf.Bytes(), nil
}

// progressReader reports the fraction read when the length is known.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	task  *Task
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		p.task.setProgress(min(1, float64(p.read)/float64(p.total)))
	}
	return n, err
}

// Result is the outcome of a Task.
type Result struct {
	URL       string
	Model     image.Image
	Data      []byte
	FromCache bool
	Err       error
}
