package doctor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/formrelay/internal/core/config"
	"github.com/hay-kot/formrelay/internal/core/submission"
	"github.com/hay-kot/formrelay/internal/store/jsonfile"
)

func statuses(r Result) []Status {
	out := make([]Status, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, item.Status)
	}
	return out
}

func TestConfigCheck(t *testing.T) {
	t.Run("valid defaults", func(t *testing.T) {
		cfg := config.DefaultConfig()

		result := NewConfigCheck(&cfg).Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, "Config valid", result.Items[0].Label)
		assert.Equal(t, StatusPass, result.Items[0].Status)
	})

	t.Run("not loaded", func(t *testing.T) {
		result := NewConfigCheck(nil).Run(context.Background())
		assert.Equal(t, []Status{StatusFail}, statuses(result))
	})

	t.Run("errors and warnings", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.HTTP.Port = 70000
		cfg.Storage.InPlace = true

		result := NewConfigCheck(&cfg).Run(context.Background())

		require.NotEmpty(t, result.Items)
		assert.Equal(t, "http.port", result.Items[0].Label)
		assert.Equal(t, StatusFail, result.Items[0].Status)
		assert.Contains(t, statuses(result), StatusWarn)
	})
}

func TestStorageCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("missing document in missing dir", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "storage", "data.json")

		result := NewStorageCheck(path, jsonfile.New(path)).Run(ctx)

		assert.Equal(t, []Status{StatusPass, StatusWarn}, statuses(result))
	})

	t.Run("existing document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		store := jsonfile.New(path)
		require.NoError(t, store.Append(ctx, "2024-07-04 18:00:00", submission.Submission{"a": "b"}))

		result := NewStorageCheck(path, store).Run(ctx)

		assert.Equal(t, []Status{StatusPass, StatusPass}, statuses(result))
		assert.Contains(t, result.Items[0].Detail, "1 record(s)")
	})

	t.Run("corrupt document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		result := NewStorageCheck(path, jsonfile.New(path)).Run(ctx)

		assert.Equal(t, []Status{StatusFail, StatusPass}, statuses(result))
	})

	t.Run("path is a directory", func(t *testing.T) {
		path := t.TempDir()

		result := NewStorageCheck(path, jsonfile.New(path)).Run(ctx)

		assert.Equal(t, []Status{StatusFail}, statuses(result))
	})
}

type fakeAssets map[string]bool

func (f fakeAssets) Exists(name string) bool { return f[name] }

func TestStaticCheck(t *testing.T) {
	static := config.StaticConfig{
		Routes: []config.Route{
			{Path: "/", File: "index.html"},
			{Path: "/logo.png", File: "logo.png"},
		},
		NotFound: "error.html",
	}

	t.Run("all present", func(t *testing.T) {
		assets := fakeAssets{"index.html": true, "logo.png": true, "error.html": true}

		result := NewStaticCheck(static, assets).Run(context.Background())

		assert.Equal(t, []Status{StatusPass, StatusPass, StatusPass}, statuses(result))
	})

	t.Run("missing route file and error page", func(t *testing.T) {
		assets := fakeAssets{"index.html": true}

		result := NewStaticCheck(static, assets).Run(context.Background())

		assert.Equal(t, []Status{StatusPass, StatusFail, StatusWarn}, statuses(result))
		assert.Equal(t, "/logo.png", result.Items[1].Label)
	})
}

func TestRunAllAndSummary(t *testing.T) {
	cfg := config.DefaultConfig()
	static := config.StaticConfig{Routes: []config.Route{{Path: "/", File: "index.html"}}, NotFound: "error.html"}

	results := RunAll(context.Background(), []Check{
		NewConfigCheck(&cfg),
		NewStaticCheck(static, fakeAssets{}),
	})

	require.Len(t, results, 2)
	assert.Equal(t, StatusFail, results[1].Items[0].Status)

	data, err := json.Marshal(results[1].Items[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"/","status":"fail","detail":"index.html not found in embedded"}`, string(data))

	passed, warned, failed := Summary(results)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, warned)
	assert.Equal(t, 1, failed)
}

func TestRunAll_StopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunAll(ctx, []Check{NewConfigCheck(&cfg)})
	assert.Empty(t, results)
}
