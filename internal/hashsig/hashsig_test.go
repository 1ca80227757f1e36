package hashsig

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/corona10/goimagehash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/imagegate/internal/corpus"
)

// testImage renders a small gradient PNG so dHash has structure to latch onto.
func testImage(t *testing.T) ([]byte, image.Image) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes(), img
}

func TestCompute_DigestsAlwaysPresent(t *testing.T) {
	p := New(nil, 0)

	sig := p.Compute(context.Background(), []byte("not an image"))
	assert.Len(t, sig.MD5, 32)
	assert.Len(t, sig.SHA256, 64)
	assert.Empty(t, sig.PerceptualHash)
	assert.Zero(t, sig.Similarity)
	assert.False(t, sig.IsMatched)
}

func TestCompute_NoCorpusIsNeutral(t *testing.T) {
	data, _ := testImage(t)
	p := New(nil, 0)

	sig := p.Compute(context.Background(), data)
	assert.NotEmpty(t, sig.PerceptualHash)
	assert.Zero(t, sig.Similarity)
	assert.False(t, sig.IsMatched)
}

func TestCompute_CorpusMatch(t *testing.T) {
	ctx := context.Background()
	data, img := testImage(t)

	store, err := corpus.Open(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	hash, err := goimagehash.DifferenceHash(img)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, hash.GetHash(), "test", ""))

	p := New(store, 0)
	sig := p.Compute(ctx, data)
	assert.Equal(t, 1.0, sig.Similarity)
	assert.True(t, sig.IsMatched)
}

func TestCompute_EmptyCorpusLowSimilarity(t *testing.T) {
	ctx := context.Background()
	data, _ := testImage(t)

	store, err := corpus.Open(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	p := New(store, 0)
	sig := p.Compute(ctx, data)
	assert.Zero(t, sig.Similarity)
	assert.False(t, sig.IsMatched)
}

func TestPerceptualHash(t *testing.T) {
	data, img := testImage(t)

	got, err := PerceptualHash(data)
	require.NoError(t, err)

	want, err := goimagehash.DifferenceHash(img)
	require.NoError(t, err)
	assert.Equal(t, want.GetHash(), got)

	_, err = PerceptualHash([]byte("not an image"))
	assert.Error(t, err)
}
