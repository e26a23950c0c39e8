// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStateStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, tc := range []struct {
		backend string
		target  string
	}{
		{BackendMemory, ""},
		{BackendSqlite, filepath.Join(dir, "s.sqlite")},
		{"", filepath.Join(dir, "default.sqlite")},
		{BackendBadger, filepath.Join(dir, "badger")},
	} {
		s, err := OpenStateStore(ctx, tc.backend, tc.target)
		require.NoError(t, err, tc.backend)
		_, ok := s.(*instrumentedStore)
		assert.True(t, ok)
		require.NoError(t, s.Close())
	}

	_, err := OpenStateStore(ctx, "bolt", "")
	assert.Error(t, err)
}
