package capture

import (
	"errors"
	"image"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/rs/zerolog/log"
)

// ErrUnchanged signals that the screen looks the same as it did on the
// previous scan, so running OCR again would only repeat the last result.
var ErrUnchanged = errors.New("screen unchanged since last scan")

// DefaultMaxHashDistance is the Hamming distance on the 64-bit perception
// hash at or below which two frames count as the same screen.
const DefaultMaxHashDistance = 3

// ChangeDetector remembers the perceptual hash of the last frame that went
// through and reports whether a new frame differs enough to be worth a scan.
// Hash failures count as changed so a broken hash never silently drops scans.
type ChangeDetector struct {
	mu          sync.Mutex
	last        *goimagehash.ImageHash
	maxDistance int
}

func NewChangeDetector(maxDistance int) *ChangeDetector {
	if maxDistance < 0 {
		maxDistance = DefaultMaxHashDistance
	}
	return &ChangeDetector{maxDistance: maxDistance}
}

// Changed hashes img against the previous frame. The remembered hash only
// advances when the frame is accepted, so a slow fade eventually registers
// as a change instead of creeping under the threshold forever.
func (d *ChangeDetector) Changed(img image.Image) bool {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last == nil {
		d.last = hash
		return true
	}
	dist, err := d.last.Distance(hash)
	if err != nil {
		d.last = hash
		return true
	}
	if dist <= d.maxDistance {
		log.Debug().Int("distance", dist).Msg("frame unchanged, skipping scan")
		return false
	}
	d.last = hash
	return true
}

// Reset forgets the last frame; the next Changed call always reports true.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	d.last = nil
	d.mu.Unlock()
}
