// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBlobStore(t *testing.T) *BlobStore {
	t.Helper()
	b, err := OpenBlobStore(filepath.Join(t.TempDir(), "audio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBlobPutGetRoundTrip(t *testing.T) {
	b := openTestBlobStore(t)

	payload := []byte{0xFF, 0xF3, 0x00, 0x01, 0x02}
	require.NoError(t, b.Put("audio-1-1", payload, 0))

	got, err := b.Get("audio-1-1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestBlobGetMissing(t *testing.T) {
	b := openTestBlobStore(t)

	_, err := b.Get("audio-0-0")
	assert.True(t, errors.Is(err, ErrBlobNotFound))
}

func TestBlobPutReplacesExisting(t *testing.T) {
	b := openTestBlobStore(t)

	require.NoError(t, b.Put("audio-1-1", []byte("old"), 0))
	require.NoError(t, b.Put("audio-1-1", []byte("new"), 0))

	got, err := b.Get("audio-1-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestBlobList(t *testing.T) {
	b := openTestBlobStore(t)

	require.NoError(t, b.Put("audio-1-1", []byte("a"), 0))
	require.NoError(t, b.Put("audio-2-2", []byte("b"), 1))

	ids, err := b.List()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "audio-1-1")
	assert.Contains(t, ids, "audio-2-2")
}

func TestBlobClear(t *testing.T) {
	b := openTestBlobStore(t)

	require.NoError(t, b.Put("audio-1-1", []byte("a"), 0))
	require.NoError(t, b.Clear())

	ids, err := b.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBlobSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.db")

	b, err := OpenBlobStore(path)
	require.NoError(t, err)
	require.NoError(t, b.Put("audio-1-1", []byte("kept"), 0))
	require.NoError(t, b.Close())

	b2, err := OpenBlobStore(path)
	require.NoError(t, err)
	defer b2.Close()

	got, err := b2.Get("audio-1-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), got)
}

func TestNewAudioIDFormat(t *testing.T) {
	id := NewAudioID()
	assert.True(t, strings.HasPrefix(id, "audio-"))

	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)

	millis, err := strconv.ParseInt(parts[1], 10, 64)
	require.NoError(t, err)
	assert.Greater(t, millis, int64(0))

	n, err := strconv.ParseUint(parts[2], 10, 64)
	require.NoError(t, err)
	assert.Less(t, n, uint64(10000))
}
