package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/formrelay/internal/core/record"
	"github.com/hay-kot/formrelay/internal/core/submission"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is empty document", func(t *testing.T) {
		store := New(filepath.Join(t.TempDir(), "storage", "data.json"))

		doc, err := store.Document(ctx)
		require.NoError(t, err)
		assert.Empty(t, doc)
	})

	t.Run("reading a missing document writes nothing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "storage")
		store := New(filepath.Join(dir, "data.json"))

		doc, err := store.Document(ctx)
		require.NoError(t, err)
		assert.Empty(t, doc)

		_, err = os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "storage directory should not be created")
		_, err = os.Stat(store.lockPath())
		assert.True(t, os.IsNotExist(err), "lock file should not be created")
	})

	t.Run("reading without a lock file does not create one", func(t *testing.T) {
		dir := t.TempDir()
		store := New(filepath.Join(dir, "data.json"))
		require.NoError(t, store.Append(ctx, "k", submission.Submission{"a": "b"}))
		require.NoError(t, os.Remove(store.lockPath()))

		require.NoError(t, os.Chmod(dir, 0o555))
		t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

		doc, err := store.Document(ctx)
		require.NoError(t, err)
		assert.Equal(t, record.Document{"k": {"a": "b"}}, doc)

		_, err = os.Stat(store.lockPath())
		assert.True(t, os.IsNotExist(err), "lock file should not be created")
	})

	t.Run("empty file is empty document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, os.WriteFile(path, []byte("\n"), 0o644))

		doc, err := New(path).Document(ctx)
		require.NoError(t, err)
		assert.Empty(t, doc)
	})

	t.Run("append creates file and directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "storage", "data.json")
		store := New(path)

		err := store.Append(ctx, "2024-05-01 10:00:00", submission.Submission{"name": "Alice", "msg": "hello world"})
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc map[string]map[string]string
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, map[string]map[string]string{
			"2024-05-01 10:00:00": {"name": "Alice", "msg": "hello world"},
		}, doc)

		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
	})

	t.Run("append merges with existing entries", func(t *testing.T) {
		store := New(filepath.Join(t.TempDir(), "data.json"))

		require.NoError(t, store.Append(ctx, "2024-05-01 10:00:00", submission.Submission{"n": "1"}))
		require.NoError(t, store.Append(ctx, "2024-05-01 10:00:01", submission.Submission{"n": "2"}))

		doc, err := store.Document(ctx)
		require.NoError(t, err)
		assert.Len(t, doc, 2)
		assert.Equal(t, "1", doc["2024-05-01 10:00:00"]["n"])
		assert.Equal(t, "2", doc["2024-05-01 10:00:01"]["n"])
	})

	t.Run("same key twice keeps one entry", func(t *testing.T) {
		store := New(filepath.Join(t.TempDir(), "data.json"))
		sub := submission.Submission{"name": "Bob"}

		require.NoError(t, store.Append(ctx, "2024-05-01 10:00:00", sub))
		require.NoError(t, store.Append(ctx, "2024-05-01 10:00:00", sub))

		doc, err := store.Document(ctx)
		require.NoError(t, err)
		assert.Equal(t, record.Document{"2024-05-01 10:00:00": sub}, doc)
	})

	t.Run("colliding key last write wins", func(t *testing.T) {
		store := New(filepath.Join(t.TempDir(), "data.json"))

		require.NoError(t, store.Append(ctx, "k", submission.Submission{"v": "first"}))
		require.NoError(t, store.Append(ctx, "k", submission.Submission{"v": "second"}))

		doc, err := store.Document(ctx)
		require.NoError(t, err)
		require.Len(t, doc, 1)
		assert.Equal(t, "second", doc["k"]["v"])
	})

	t.Run("pretty printed with verbatim characters", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		store := New(path)

		require.NoError(t, store.Append(ctx, "k", submission.Submission{"msg": "Привіт <b>&</b>"}))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		text := string(data)
		assert.Contains(t, text, "Привіт <b>&</b>")
		assert.Contains(t, text, "\n  \"k\": {\n    \"msg\"")
		assert.NotContains(t, text, `\u`)
	})

	t.Run("in place writes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		store := New(path).WithInPlaceWrites(true)

		require.NoError(t, store.Append(ctx, "k", submission.Submission{"a": "b"}))

		doc, err := store.Document(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", doc["k"]["a"])
	})

	t.Run("corrupt document is an error and left untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"k": {"a": `), 0o644))
		store := New(path)

		_, err := store.Document(ctx)
		require.Error(t, err)

		err = store.Append(ctx, "k2", submission.Submission{"a": "b"})
		require.Error(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, `{"k": {"a": `, string(data))
	})

	t.Run("unwritable directory", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		store := New(filepath.Join(blocker, "data.json"))
		err := store.Append(ctx, "k", submission.Submission{})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "create storage directory"), err.Error())
	})

	t.Run("concurrent appends are serialized", func(t *testing.T) {
		store := New(filepath.Join(t.TempDir(), "data.json"))

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.Append(ctx, fmt.Sprintf("key-%02d", i), submission.Submission{"i": fmt.Sprint(i)})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		doc, err := store.Document(ctx)
		require.NoError(t, err)
		assert.Len(t, doc, 20)
	})
}
