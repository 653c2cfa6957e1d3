package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/richinsley/gosketch/cache"
	"github.com/richinsley/gosketch/scene"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetRGBA(0, 0, color.RGBA{1, 2, 3, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestLoader(t *testing.T, c cache.Cache) *Loader {
	t.Helper()
	return NewLoader(c,
		WithBackoff(cache.Backoff{Attempts: 3, Delay: time.Millisecond}),
		WithLogger(log.New(io.Discard)),
	)
}

func wait(t *testing.T, task *Task) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, _ := task.Wait(ctx)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatal("task did not finish")
	}
	return res
}

func TestLoadCachesByURL(t *testing.T) {
	model := pngBytes(t, 4, 3)
	var hits atomic.Int32
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		agent.Store(r.UserAgent())
		w.Header().Set("Content-Length", strconv.Itoa(len(model)))
		w.Write(model)
	}))
	defer srv.Close()

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	l := newTestLoader(t, fc)
	url := srv.URL + "/teapot.png"

	first := l.Start(context.Background(), url)
	res := wait(t, first)
	if res.Err != nil {
		t.Fatalf("first load error = %v", res.Err)
	}
	if res.FromCache {
		t.Error("first load FromCache = true, want false")
	}
	if got := res.Model.Bounds().Size(); got != image.Pt(4, 3) {
		t.Errorf("Model size = %v, want (4,3)", got)
	}
	if p := first.Progress(); p != 1 {
		t.Errorf("Progress() = %v, want 1", p)
	}
	if ua, _ := agent.Load().(string); ua != UserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, UserAgent)
	}

	res = wait(t, l.Start(context.Background(), url))
	if res.Err != nil || !res.FromCache {
		t.Errorf("second load = %v, FromCache %v, want cache hit", res.Err, res.FromCache)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestLoadNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res := newTestLoader(t, nil).Load(context.Background(), srv.URL+"/missing.png")
	if !errors.Is(res.Err, cache.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", res.Err)
	}
	if res.Model != nil {
		t.Error("Load() returned a model on failure")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1 (no retry on 404)", n)
	}
}

func TestLoadRetriesServerErrors(t *testing.T) {
	model := pngBytes(t, 2, 2)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(model)
	}))
	defer srv.Close()

	res := newTestLoader(t, nil).Load(context.Background(), srv.URL+"/flaky.png")
	if res.Err != nil {
		t.Fatalf("Load() error = %v", res.Err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("server hits = %d, want 3", n)
	}
}

func TestTaskCancel(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	task := newTestLoader(t, nil).Start(context.Background(), srv.URL+"/slow.png")
	<-started
	task.Cancel()

	res := wait(t, task)
	if !errors.Is(res.Err, ErrCancelled) {
		t.Errorf("result error = %v, want ErrCancelled", res.Err)
	}
	if _, ok := task.Result(); !ok {
		t.Error("Result() not ready after Done")
	}
}

type decoderFunc func([]byte) (image.Image, error)

func (f decoderFunc) Decode(data []byte) (image.Image, error) { return f(data) }

func TestTaskCancelDuringDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.png")
	if err := os.WriteFile(path, pngBytes(t, 2, 2), 0644); err != nil {
		t.Fatal(err)
	}
	decoding := make(chan struct{})
	release := make(chan struct{})
	l := NewLoader(nil,
		WithLogger(log.New(io.Discard)),
		WithDecoder(decoderFunc(func(data []byte) (image.Image, error) {
			close(decoding)
			<-release
			return scene.ImageDecoder{}.Decode(data)
		})),
	)

	var got Result
	task := l.Start(context.Background(), path, func(r Result) { got = r })
	<-decoding
	task.Cancel()
	close(release)

	res := wait(t, task)
	if !errors.Is(res.Err, ErrCancelled) {
		t.Errorf("result error = %v, want ErrCancelled", res.Err)
	}
	if res.Model != nil {
		t.Error("cancelled task returned a model")
	}
	if !errors.Is(got.Err, ErrCancelled) || got.Model != nil {
		t.Errorf("callback result = %+v, want ErrCancelled without a model", got)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	task := &Task{url: "x", cancel: func() {}, done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := task.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if _, ok := task.Result(); ok {
		t.Error("Result() ready before the task finished")
	}
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.png")
	if err := os.WriteFile(path, pngBytes(t, 5, 5), 0644); err != nil {
		t.Fatal(err)
	}
	l := newTestLoader(t, nil)

	for _, url := range []string{path, "file://" + path} {
		res := l.Load(context.Background(), url)
		if res.Err != nil {
			t.Errorf("Load(%s) error = %v", url, res.Err)
			continue
		}
		if got := res.Model.Bounds().Dx(); got != 5 {
			t.Errorf("Load(%s) width = %d, want 5", url, got)
		}
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.glb")
	if err := os.WriteFile(path, []byte("glTF\x02\x00\x00\x00"), 0644); err != nil {
		t.Fatal(err)
	}
	res := newTestLoader(t, nil).Load(context.Background(), path)
	if !errors.Is(res.Err, scene.ErrUnsupportedFormat) {
		t.Errorf("Load() error = %v, want ErrUnsupportedFormat", res.Err)
	}
}
