package rescan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"umaka/models"
	"umaka/pkg/ocr"
	"umaka/pkg/rating"
)

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal().Msg("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Msgf("open db: %v", err)
	}
	return gdb
}

// baseDir mirrors the server's capture store root. Local copy; this binary
// does not link the server package.
func baseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "captures"
}

func scanLangs() []string {
	raw := os.Getenv("OCR_LANGS")
	if raw == "" {
		raw = "eng"
	}
	var langs []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			langs = append(langs, p)
		}
	}
	return langs
}

func defaultCategories() (rating.Distance, rating.Strategy) {
	d := rating.Middle
	if v := os.Getenv("DEFAULT_DISTANCE"); v != "" {
		if pd, err := rating.ParseDistance(v); err == nil {
			d = pd
		}
	}
	s := rating.PaceChaser
	if v := os.Getenv("DEFAULT_STRATEGY"); v != "" {
		if ps, err := rating.ParseStrategy(v); err == nil {
			s = ps
		}
	}
	return d, s
}

// Run re-scans captures that failed OCR or never got linked to a sheet,
// reading each image back out of the capture store. If dry is true it only
// prints proposed changes. onlyID narrows the run to one capture; limit 0
// means no cap.
func Run(dry bool, limit int, onlyID uint) error {
	gdb := mustDBFromEnv()

	q := gdb.Where("failed = ? OR sheet_id IS NULL", true).Order("id")
	if onlyID != 0 {
		q = gdb.Where("id = ?", onlyID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var capts []models.Capture
	if err := q.Find(&capts).Error; err != nil {
		return fmt.Errorf("query captures: %w", err)
	}
	log.Info().Msgf("rescan candidates: %d", len(capts))

	defDist, defStrat := defaultCategories()
	for i := range capts {
		capt := &capts[i]
		full := filepath.Join(baseDir(), filepath.FromSlash(capt.StorePath))
		if _, err := os.Stat(full); err != nil {
			log.Warn().Msgf("capture id=%d file missing from store: %s", capt.ID, capt.StorePath)
			continue
		}

		var profile models.Profile
		if err := gdb.First(&profile, capt.ProfileID).Error; err != nil {
			log.Warn().Msgf("capture id=%d has no profile: %v", capt.ID, err)
			continue
		}

		block, _, err := ocr.ScanImage(full, scanLangs()...)
		needsReview := false
		if err != nil {
			if !errors.Is(err, ocr.ErrInsufficientStats) {
				log.Error().Msgf("ocr error capture id=%d %s: %v", capt.ID, capt.FileName, err)
				continue
			}
			needsReview = true
			block = rating.StatBlock{}
		}

		// keep the sheet's categories if it already has them
		var sheet models.StatSheet
		fresh := false
		if err := gdb.Where("user_id = ? AND file_name = ?", profile.UserID, capt.FileName).First(&sheet).Error; err != nil {
			sheet = models.StatSheet{UserID: profile.UserID, FileName: capt.FileName}
			fresh = true
		}
		if sheet.Distance == "" {
			sheet.Distance = string(defDist)
		}
		if sheet.Strategy == "" {
			sheet.Strategy = string(defStrat)
		}
		oldTotal := sheet.TotalScore
		sheet.SetBlock(block)
		sheet.NeedsReview = needsReview
		sheet.ScannedAt = time.Now()
		sheet.Reevaluate()

		if dry {
			fmt.Printf("DRY: would update capture id=%d file=%s old_total=%d new_total=%d rank=%s review=%v fresh_sheet=%v\n",
				capt.ID, capt.FileName, oldTotal, sheet.TotalScore, sheet.Rank, needsReview, fresh)
			continue
		}

		if err := gdb.Save(&sheet).Error; err != nil {
			log.Warn().Msgf("failed save sheet for capture id=%d: %v", capt.ID, err)
			continue
		}
		capt.SheetID = &sheet.ID
		if needsReview {
			capt.Failed = true
			capt.FailedReason = ocr.ErrInsufficientStats.Error()
		} else {
			capt.Failed = false
			capt.FailedReason = ""
		}
		if err := gdb.Save(capt).Error; err != nil {
			log.Warn().Msgf("failed save capture id=%d: %v", capt.ID, err)
			continue
		}
		fmt.Printf("updated capture id=%d file=%s sheet=%d total=%d rank=%s review=%v\n",
			capt.ID, capt.FileName, sheet.ID, sheet.TotalScore, sheet.Rank, needsReview)
	}
	return nil
}
