package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rootle-api/pkg/storage"
)

type pathCheckerStub struct {
	referenced map[string]bool
	err        error
}

func (p pathCheckerStub) FilePathsExist(ctx context.Context, paths []string) (map[string]bool, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]bool, len(paths))
	for _, path := range paths {
		if p.referenced[path] {
			out[path] = true
		}
	}
	return out, nil
}

func TestJanitorSweepRemovesOnlyOldOrphans(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	for _, key := range []string{"resources/kept.pdf", "resources/orphan.pdf", "resources/fresh.pdf"} {
		_, err := store.SaveStream(ctx, key, strings.NewReader("x"), 1, "")
		require.NoError(t, err)
	}
	past := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"kept.pdf", "orphan.pdf"} {
		require.NoError(t, os.Chtimes(filepath.Join(dir, "resources", name), past, past))
	}

	janitor := NewJanitor(store, pathCheckerStub{referenced: map[string]bool{"resources/kept.pdf": true}}, "", 24*time.Hour, nil)
	removed, err := janitor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Open(ctx, "resources/orphan.pdf")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	for _, key := range []string{"resources/kept.pdf", "resources/fresh.pdf"} {
		rc, err := store.Open(ctx, key)
		require.NoError(t, err)
		rc.Close()
	}
}

func TestJanitorSweepStopsOnLookupError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	_, err = store.SaveStream(ctx, "a.pdf", strings.NewReader("x"), 1, "")
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.pdf"), past, past))

	janitor := NewJanitor(store, pathCheckerStub{err: errors.New("db down")}, "", time.Hour, nil)
	_, err = janitor.Sweep(ctx)
	assert.Error(t, err)
	rc, err := store.Open(ctx, "a.pdf")
	require.NoError(t, err)
	rc.Close()
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	janitor := NewJanitor(nil, nil, "not a schedule", time.Hour, nil)
	assert.Error(t, janitor.Start(context.Background()))
	janitor.Stop()
}
