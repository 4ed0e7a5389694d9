package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/app"
	"github.com/kailas-cloud/moviedex/internal/config"
	"github.com/kailas-cloud/moviedex/internal/db/meili/meilitest"
)

func run(t *testing.T, backend *meilitest.Server, args ...string) (string, error) {
	t.Helper()

	build := func(ctx context.Context, _ string) (*app.App, error) {
		cfg := config.Config{Search: config.SearchConfig{Address: backend.URL, APIKey: "masterKey"}}
		cfg.ApplyDefaults()
		return app.Build(ctx, cfg, zap.NewNop())
	}

	root := newRootCmd(build)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedAndSearch(t *testing.T) {
	backend := meilitest.NewServer("masterKey")
	defer backend.Close()

	out, err := run(t, backend, "seed", "--wait")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "Movies have been added. task=1 status=succeeded") {
		t.Errorf("unexpected seed output: %q", out)
	}

	out, err = run(t, backend, "search", "Drama")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var resp struct {
		Movies []struct {
			Title string `json:"title"`
		} `json:"movies"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode search output: %v", err)
	}
	if len(resp.Movies) != 3 || resp.Movies[0].Title != "Carol" {
		t.Errorf("unexpected search output: %s", out)
	}
}

func TestSeed_NoWait(t *testing.T) {
	backend := meilitest.NewServer("masterKey")
	defer backend.Close()

	out, err := run(t, backend, "seed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "status=enqueued") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestTask(t *testing.T) {
	backend := meilitest.NewServer("masterKey")
	defer backend.Close()

	if _, err := run(t, backend, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out, err := run(t, backend, "task", "1")
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if !strings.Contains(out, `"status": "succeeded"`) {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := run(t, backend, "task", "-3"); err == nil {
		t.Error("expected error for negative uid")
	}
	if _, err := run(t, backend, "task", "42"); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestHealth(t *testing.T) {
	backend := meilitest.NewServer("masterKey")

	out, err := run(t, backend, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, `"search": "ok"`) {
		t.Errorf("unexpected output: %s", out)
	}

	backend.Close()
	if _, err := run(t, backend, "health"); err == nil {
		t.Error("expected error when backend is down")
	}
}

func TestArgsValidation(t *testing.T) {
	backend := meilitest.NewServer("masterKey")
	defer backend.Close()

	if _, err := run(t, backend, "search"); err == nil {
		t.Error("search without query must fail")
	}
	if _, err := run(t, backend, "seed", "extra"); err == nil {
		t.Error("seed with args must fail")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "moviectl dev") {
		t.Errorf("unexpected output: %q", out)
	}
}
