// Package screen provides platform-agnostic screen capture
package screen

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/corona10/goimagehash"
)

// errCaptureFailed means the OS-level backend call produced no data.
var errCaptureFailed = errors.New("screen: capture backend returned no data")

// Capturer captures screenshots with perceptual change detection.
type Capturer interface {
	// Capture attempts one OS-level screenshot. err is non-nil only when the
	// underlying backend call itself failed; (nil, false, nil) means the
	// call succeeded but the frame is unchanged from the last one.
	Capture() (data []byte, changed bool, err error)
	CaptureAlways() ([]byte, error)
	Close()
}

// backend implements platform-specific raw capture
type backend interface {
	captureRaw() []byte
	cleanup()
}

// HashDistanceThreshold is the maximum Hamming distance between successive
// perceptual hashes still considered "unchanged". goimagehash.PerceptionHash
// produces a 64-bit hash; empirically 3 bits of drift covers re-encoding
// noise without masking real content changes.
const HashDistanceThreshold = 3

// baseCapturer provides shared perceptual-hash change detection. It replaces
// a raw-byte MD5 prefix hash (sensitive to JPEG re-encoding noise) with a
// hash over visual content, so an unchanged screen re-captured by a
// different encoder pass still compares equal.
type baseCapturer struct {
	backend
	lastHash *goimagehash.ImageHash
	tempDir  string
}

func newBase(b backend, tempDir string) *baseCapturer {
	return &baseCapturer{backend: b, tempDir: tempDir}
}

func (c *baseCapturer) Capture() ([]byte, bool, error) {
	data := c.captureRaw()
	if data == nil {
		return nil, false, errCaptureFailed
	}
	hash, err := perceptualHash(data)
	if err != nil {
		// Undecodable frame: treat as changed so callers still see it.
		return data, true, nil
	}
	if c.lastHash != nil {
		if dist, derr := c.lastHash.Distance(hash); derr == nil && dist <= HashDistanceThreshold {
			return nil, false, nil
		}
	}
	c.lastHash = hash
	return data, true, nil
}

func (c *baseCapturer) CaptureAlways() ([]byte, error) {
	data := c.captureRaw()
	if data == nil {
		return nil, errCaptureFailed
	}
	if hash, err := perceptualHash(data); err == nil {
		c.lastHash = hash
	}
	return data, nil
}

func (c *baseCapturer) Close() {
	c.cleanup()
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}

func perceptualHash(data []byte) (*goimagehash.ImageHash, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return goimagehash.PerceptionHash(img)
}
