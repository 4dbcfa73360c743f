package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Zuo-Peng/ai-memory-search/internal/config"
)

// fakeSidecar serves 384-dim vectors and records how many texts it was
// actually asked to encode.
func fakeSidecar(t *testing.T, encoded *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Texts []string `json:"texts"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		encoded.Add(int32(len(req.Texts)))

		vecs := make([][]float32, len(req.Texts))
		for i := range vecs {
			vecs[i] = make([]float32, localDimension)
			vecs[i][0] = float32(len(req.Texts[i]))
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	}))
}

func localConfig(url string) *config.Config {
	cfg := config.Defaults("/tmp")
	cfg.PreferLocal = true
	cfg.LocalEmbeddingURL = url
	return cfg
}

func TestEmbedOneAndCache(t *testing.T) {
	var encoded atomic.Int32
	srv := fakeSidecar(t, &encoded)
	defer srv.Close()

	m := NewManager(localConfig(srv.URL))
	ctx := context.Background()

	v, err := m.EmbedOne(ctx, "fix the login bug")
	if err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if len(v) != localDimension {
		t.Fatalf("dimension = %d, want %d", len(v), localDimension)
	}
	after := encoded.Load() // probe "ping" plus the real text

	if _, err := m.EmbedOne(ctx, "fix the login bug"); err != nil {
		t.Fatalf("cached EmbedOne: %v", err)
	}
	if encoded.Load() != after {
		t.Errorf("repeat embed hit the backend: %d encodes, was %d", encoded.Load(), after)
	}
}

func TestEmbedBatchSkipsCachedTexts(t *testing.T) {
	var encoded atomic.Int32
	srv := fakeSidecar(t, &encoded)
	defer srv.Close()

	m := NewManager(localConfig(srv.URL))
	ctx := context.Background()

	if _, err := m.Embed(ctx, []string{"alpha", "beta"}); err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	before := encoded.Load()

	vecs, err := m.Embed(ctx, []string{"beta", "gamma"})
	if err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != localDimension || len(vecs[1]) != localDimension {
		t.Fatalf("vecs = %v", len(vecs))
	}
	if got := encoded.Load() - before; got != 1 {
		t.Errorf("second batch encoded %d texts, want 1 (only gamma)", got)
	}
	// cached vector keeps its original value
	if vecs[0][0] != float32(len("beta")) {
		t.Errorf("cached beta vector = %f", vecs[0][0])
	}
}

func TestSwitchCloudWithoutCredential(t *testing.T) {
	m := NewManager(localConfig("http://127.0.0.1:1"))
	if err := m.Switch(ModeCloud); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Switch(cloud) = %v, want ErrNoCredential", err)
	}
	if info := m.Current(); info.Backend != "local" {
		t.Errorf("failed switch changed mode to %s", info.Backend)
	}
}

func TestSwitchModes(t *testing.T) {
	cfg := localConfig("http://127.0.0.1:1")
	cfg.VoyageKey = "vk-test"
	m := NewManager(cfg)

	if err := m.Switch(ModeCloud); err != nil {
		t.Fatalf("Switch(cloud): %v", err)
	}
	info := m.Current()
	if info.Backend != "cloud" || info.WriteSuffix != "voyage" || info.Dimension != voyageDimension {
		t.Errorf("cloud info = %+v", info)
	}
	if !info.HasCredential {
		t.Error("HasCredential = false with key set")
	}

	if err := m.Switch(ModeLocal); err != nil {
		t.Fatalf("Switch(local): %v", err)
	}
	info = m.Current()
	if info.Backend != "local" || info.WriteSuffix != "local" || info.Dimension != localDimension {
		t.Errorf("local info = %+v", info)
	}

	if err := m.Switch(Mode("gpu")); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestDefaultModeSelection(t *testing.T) {
	cfg := config.Defaults("/tmp")
	cfg.VoyageKey = ""
	if info := NewManager(cfg).Current(); info.Backend != "local" {
		t.Errorf("no credential: backend = %s, want local", info.Backend)
	}

	cfg = config.Defaults("/tmp")
	cfg.VoyageKey = "vk-test"
	cfg.PreferLocal = false
	if info := NewManager(cfg).Current(); info.Backend != "cloud" {
		t.Errorf("credential present: backend = %s, want cloud", info.Backend)
	}

	cfg.PreferLocal = true
	if info := NewManager(cfg).Current(); info.Backend != "local" {
		t.Errorf("prefer local: backend = %s", info.Backend)
	}
}

func TestActiveFailsWhenNothingAvailable(t *testing.T) {
	// dead local sidecar, no cloud credential
	cfg := localConfig("http://127.0.0.1:1")
	m := NewManager(cfg)
	if _, err := m.Active(context.Background()); err == nil {
		t.Fatal("Active succeeded with no usable backend")
	}
}

func TestProbeRejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{make([]float32, 8)}})
	}))
	defer srv.Close()

	m := NewManager(localConfig(srv.URL))
	if _, err := m.Active(context.Background()); err == nil {
		t.Fatal("backend with wrong dimension adopted")
	}
}
