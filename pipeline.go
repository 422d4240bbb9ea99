package main

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"umaka/models"
	"umaka/pkg/capture"
	"umaka/pkg/ocr"
	"umaka/pkg/rating"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrScanBusy rejects a device trigger that arrives while another scan is
// still running. Triggers are never queued.
var ErrScanBusy = errors.New("scan already in progress")

// Pipeline runs the device-side capture path: grab the screen, skip the run
// when the frame matches the previous one, store the image and hand it to
// the same scan-and-store step uploads go through. At most one device run is
// in flight at a time; uploads are not serialized by it.
type Pipeline struct {
	mu       sync.Mutex
	source   capture.Source
	detector *capture.ChangeDetector
}

func newPipeline(src capture.Source, det *capture.ChangeDetector) *Pipeline {
	return &Pipeline{source: src, detector: det}
}

// Available reports whether a screen source was configured at startup.
func (p *Pipeline) Available() bool { return p.source != nil }

// Busy reports whether a device run is in flight right now.
func (p *Pipeline) Busy() bool {
	if p.mu.TryLock() {
		p.mu.Unlock()
		return false
	}
	return true
}

// Run executes one device scan owned by the given user and profile. force
// skips the unchanged-frame check. origin tags the stored capture record
// (screen, hotkey, overlay, import).
func (p *Pipeline) Run(user *models.User, profile *models.Profile, force bool, origin string) (*models.StatSheet, error) {
	if p.source == nil {
		return nil, capture.ErrNoDisplay
	}
	if !p.mu.TryLock() {
		return nil, ErrScanBusy
	}
	defer p.mu.Unlock()

	img, err := p.source.Capture()
	if err != nil {
		return nil, fmt.Errorf("screen capture: %w", err)
	}
	if !force && !p.detector.Changed(img) {
		return nil, capture.ErrUnchanged
	}

	fileName := uuid.NewString() + ".png"
	relPath := filepath.Join("screen", fileName)
	fullPath := filepath.Join(captureBaseDir(), relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("screen dir: %w", err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("store frame: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	f.Close()

	capt := models.Capture{
		ProfileID:   profile.ID,
		FileName:    fileName,
		StorePath:   relPath,
		ContentType: "image/png",
		Source:      origin,
	}
	if err := db.Create(&capt).Error; err != nil {
		return nil, fmt.Errorf("store capture: %w", err)
	}
	log.Info().Str("origin", origin).Str("file", relPath).Msg("screen frame captured")
	return runScanAndStore(user, &capt, fullPath, defaultDistance, defaultStrategy)
}

// runScanAndStore OCRs a stored capture and materializes the resulting
// sheet. Too few recognized values is not an engine error: the sheet is
// created zeroed and flagged for review so the stats can be typed in by
// hand. Engine failures leave the capture marked failed with no sheet.
func runScanAndStore(user *models.User, capt *models.Capture, fullPath string, d rating.Distance, s rating.Strategy) (*models.StatSheet, error) {
	block, _, err := ocr.ScanImage(fullPath, ocrLangs()...)
	needsReview := false
	if err != nil {
		if !errors.Is(err, ocr.ErrInsufficientStats) {
			capt.Failed = true
			capt.FailedReason = "ocr engine failure"
			db.Save(capt)
			return nil, err
		}
		needsReview = true
		capt.Failed = true
		capt.FailedReason = err.Error()
		block = rating.StatBlock{}
	}

	sheet, err := upsertSheet(user.ID, capt.FileName, block, d, s, needsReview)
	if err != nil {
		return nil, err
	}
	capt.SheetID = &sheet.ID
	db.Save(capt)
	if overlayHub != nil {
		overlayHub.BroadcastSheet(sheet)
	}
	return sheet, nil
}

// upsertSheet creates the sheet for (user, file) or refreshes the stats of
// an existing one, re-evaluating either way.
func upsertSheet(userID uint, fileName string, block rating.StatBlock, d rating.Distance, s rating.Strategy, needsReview bool) (*models.StatSheet, error) {
	var sheet models.StatSheet
	if err := db.Where("user_id = ? AND file_name = ?", userID, fileName).First(&sheet).Error; err != nil {
		sheet = models.StatSheet{UserID: userID, FileName: fileName}
	}
	sheet.SetBlock(block)
	sheet.Distance = string(d)
	sheet.Strategy = string(s)
	sheet.NeedsReview = needsReview
	sheet.ScannedAt = time.Now()
	sheet.Reevaluate()
	if err := db.Save(&sheet).Error; err != nil {
		return nil, fmt.Errorf("store sheet: %w", err)
	}
	return &sheet, nil
}
