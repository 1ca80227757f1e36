// Package hashsig produces the hash-similarity evidence signal: cryptographic
// digests plus a perceptual-hash similarity against the reference corpus of
// known-generated images.
package hashsig

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/sells-group/imagegate/internal/corpus"
	"github.com/sells-group/imagegate/internal/model"
)

// DefaultMatchThreshold marks similarities at or above it as corpus matches.
const DefaultMatchThreshold = 0.85

// Provider computes HashSignals. A nil corpus disables similarity lookups;
// the signal then carries digests only, with similarity 0.
type Provider struct {
	corpus         *corpus.Store
	matchThreshold float64
}

// New creates a Provider. threshold <= 0 selects DefaultMatchThreshold.
func New(store *corpus.Store, threshold float64) *Provider {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Provider{corpus: store, matchThreshold: threshold}
}

// PerceptualHash decodes the image bytes and returns the 64-bit difference
// hash used for corpus lookups.
func PerceptualHash(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, eris.Wrap(err, "hashsig: decode image")
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, eris.Wrap(err, "hashsig: difference hash")
	}
	return hash.GetHash(), nil
}

// Compute returns the hash signal for the image bytes. It never fails across
// the provider boundary: decode or lookup problems degrade to a neutral
// signal with similarity 0.
func (p *Provider) Compute(ctx context.Context, data []byte) model.HashSignal {
	md5Sum := md5.Sum(data)
	shaSum := sha256.Sum256(data)
	sig := model.HashSignal{
		MD5:    hex.EncodeToString(md5Sum[:]),
		SHA256: hex.EncodeToString(shaSum[:]),
	}

	hash, err := PerceptualHash(data)
	if err != nil {
		zap.L().Debug("hashsig: perceptual hash unavailable", zap.Error(err))
		return sig
	}
	sig.PerceptualHash = fmt.Sprintf("%016x", hash)

	if p.corpus == nil {
		return sig
	}

	similarity, err := p.corpus.Nearest(ctx, hash)
	if err != nil {
		zap.L().Warn("hashsig: corpus lookup failed", zap.Error(err))
		return sig
	}

	sig.Similarity = similarity
	sig.IsMatched = similarity >= p.matchThreshold
	return sig
}
