package panel

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/options"
	"github.com/richinsley/gosketch/scene"
	"github.com/richinsley/gosketch/software"
	"github.com/richinsley/gosketch/viewer"
)

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *viewer.Session) {
	t.Helper()
	logger := log.New(io.Discard)
	o := options.Default()
	o.Width, o.Height = 8, 6
	sc := scene.New(scene.DefaultBackground)
	sess, err := viewer.New(software.New(sc), sc, o, viewer.WithLogger(logger))
	if err != nil {
		t.Fatalf("viewer.New() error = %v", err)
	}
	t.Cleanup(sess.Close)

	opts = append(opts, WithLogger(logger))
	srv := httptest.NewServer(New(context.Background(), sess, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv, sess
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestGetParams(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/params", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got viewer.Params
	decode(t, resp, &got)
	want := viewer.Params{Watercolor: effects.DefaultWatercolorParams(), Pencil: effects.DefaultPencilParams()}
	if got != want {
		t.Errorf("GET /api/params = %+v, want %+v", got, want)
	}
}

func TestPatchParamsClampsAndKeepsOthers(t *testing.T) {
	srv, sess := newTestServer(t)
	resp := do(t, http.MethodPatch, srv.URL+"/api/params",
		`{"watercolor":{"pigment":42},"pencil":{"sensitivity":0.4,"color":"#ff0000"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	got := sess.Params()
	if got.Watercolor.Pigment != effects.PigmentRange.Max {
		t.Errorf("pigment = %v, want clamped to %v", got.Watercolor.Pigment, effects.PigmentRange.Max)
	}
	if got.Watercolor.Threshold != 0.3 {
		t.Errorf("threshold = %v, want unchanged 0.3", got.Watercolor.Threshold)
	}
	if got.Pencil.Sensitivity != 0.4 || got.Pencil.Color.Hex() != "#ff0000" {
		t.Errorf("pencil = %+v, want sensitivity 0.4 color #ff0000", got.Pencil)
	}
	if got.Pencil.Thickness != 0.05 {
		t.Errorf("thickness = %v, want unchanged 0.05", got.Pencil.Thickness)
	}
}

func TestPatchParamsRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, body := range []string{
		`{"watercolor":`,
		`{"pencil":{"color":"nope"}}`,
		`{"sepia":{"amount":1}}`,
	} {
		if resp := do(t, http.MethodPatch, srv.URL+"/api/params", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("PATCH %s status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestConcurrentPatchesKeepEveryField(t *testing.T) {
	srv, sess := newTestServer(t)
	patch := func(body string) {
		req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/params", strings.NewReader(body))
		if err != nil {
			t.Error(err)
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Errorf("PATCH %s error = %v", body, err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("PATCH %s status = %d, want 200", body, resp.StatusCode)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			patch(`{"watercolor":{"pigment":2}}`)
		}()
		go func() {
			defer wg.Done()
			patch(`{"pencil":{"sensitivity":0.4}}`)
		}()
	}
	wg.Wait()

	got := sess.Params()
	if got.Watercolor.Pigment != 2 || got.Pencil.Sensitivity != 0.4 {
		t.Errorf("Params() = %+v, want pigment 2 and sensitivity 0.4", got)
	}
}

func TestSceneBackground(t *testing.T) {
	srv, sess := newTestServer(t)

	var st struct {
		Background string `json:"background"`
	}
	decode(t, do(t, http.MethodGet, srv.URL+"/api/scene", ""), &st)
	if st.Background != "#f0f0f0" {
		t.Errorf("GET /api/scene background = %q, want #f0f0f0", st.Background)
	}

	resp := do(t, http.MethodPut, srv.URL+"/api/scene", `{"background":"#102030"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := sess.Background().Hex(); got != "#102030" {
		t.Errorf("Background() = %s, want #102030", got)
	}

	for _, body := range []string{`{}`, `{"background":"teal"}`} {
		if resp := do(t, http.MethodPut, srv.URL+"/api/scene", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("PUT %s status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestPutPass(t *testing.T) {
	srv, sess := newTestServer(t)

	resp := do(t, http.MethodPut, srv.URL+"/api/passes/pencil", `{"enabled":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	passes := sess.Passes()
	if len(passes) != 2 || !passes[1].Enabled {
		t.Errorf("Passes() = %v, want pencil enabled", passes)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/passes", "")
	var listed []chain.PassState
	decode(t, resp, &listed)
	if len(listed) != 2 || listed[0].ID != effects.WatercolorID || listed[1].ID != effects.PencilID {
		t.Errorf("GET /api/passes = %v", listed)
	}

	if resp := do(t, http.MethodPut, srv.URL+"/api/passes/sepia", `{"enabled":true}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown pass status = %d, want 404", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/passes/pencil", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing enabled status = %d, want 400", resp.StatusCode)
	}
}

func TestResize(t *testing.T) {
	srv, sess := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/resize", `{"width":16,"height":12}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if w, h := sess.Size(); w != 16 || h != 12 {
		t.Errorf("Size() = %dx%d, want 16x12", w, h)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/resize", `{"width":0,"height":12}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("zero width status = %d, want 400", resp.StatusCode)
	}
}

func TestAssetStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/asset", "")
	var st viewer.AssetStatus
	decode(t, resp, &st)
	if st.Loaded || st.Done {
		t.Errorf("GET /api/asset = %+v, want nothing loaded", st)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/asset", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing url status = %d, want 400", resp.StatusCode)
	}
}

func TestFrameOnlyWithSource(t *testing.T) {
	srv, _ := newTestServer(t)
	if resp := do(t, http.MethodGet, srv.URL+"/frame.png", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("frame without source status = %d, want 404", resp.StatusCode)
	}

	var sess *viewer.Session
	srv, sess = newTestServer(t, WithFrames(func() (image.Image, error) {
		out, err := sess.RenderFrame()
		if err != nil {
			return nil, err
		}
		return out.(*software.Image).RGBA(), nil
	}))
	resp := do(t, http.MethodGet, srv.URL+"/frame.png", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if got := img.Bounds().Size(); got != image.Pt(8, 6) {
		t.Errorf("frame size = %v, want (8,6)", got)
	}
}
