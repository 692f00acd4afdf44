package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func TestVideoAssetLifecycle(t *testing.T) {
	src := filepath.Join(t.TempDir(), "talk.mp4")
	writeFile(t, src, 32)

	asset, err := NewVideoAsset(src, "video/mp4", 32)
	require.NoError(t, err)

	assert.Equal(t, "talk", asset.Name)
	assert.Equal(t, src, asset.Original())
	assert.Equal(t, src, asset.Working())
	assert.EqualValues(t, 32, asset.WorkingSize())

	derived := asset.DerivativePath("compressed.mp4")
	writeFile(t, derived, 8)
	require.NoError(t, asset.Replace(derived, 8))
	assert.Equal(t, derived, asset.Working())
	assert.Equal(t, src, asset.Original())
	assert.EqualValues(t, 32, asset.OriginalSize())

	asset.Reset()
	assert.Equal(t, src, asset.Working())
	_, err = os.Stat(derived)
	assert.True(t, os.IsNotExist(err), "derivative should be removed on reset")

	require.NoError(t, asset.Release())
	require.NoError(t, asset.Release())
	assert.True(t, asset.Released())

	_, err = os.Stat(filepath.Dir(derived))
	assert.True(t, os.IsNotExist(err), "work directory should be removed on release")

	_, err = os.Stat(src)
	assert.NoError(t, err, "the original must survive release")

	assert.Error(t, asset.Replace(derived, 8))
}

func TestProcessingStateString(t *testing.T) {
	assert.Equal(t, "compressing", Compressing.String())
	assert.Equal(t, "error", Error.String())
	assert.True(t, Analyzing.Active())
	assert.False(t, Complete.Active())
	assert.False(t, Idle.Active())
}

func TestSegmentSeconds(t *testing.T) {
	assert.Equal(t, 5, TimelineSegment{Timestamp: "00:05"}.Seconds())
	assert.Equal(t, 0, TimelineSegment{}.Seconds())
}

func TestPayloadBytes(t *testing.T) {
	p := Payload{Encoded: "aGVsbG8="}
	b, err := p.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}
