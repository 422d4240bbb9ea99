package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"umaka/models"
	"umaka/pkg/capture"
	"umaka/pkg/logger"
	"umaka/pkg/overlay"
	"umaka/pkg/rating"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)
	startedAt time.Time

	scanner    *Pipeline
	overlayHub *Hub
	hotkeyOn   bool

	defaultDistance = rating.Middle
	defaultStrategy = rating.PaceChaser
)

func main() {
	_ = godotenv.Load()
	logger.Setup(logger.Config{Level: getEnv("LOG_LEVEL", "info"), Pretty: os.Getenv("LOG_PRETTY") == "1"})

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./umaka migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()
	loadCategoryDefaults()
	startedAt = time.Now()

	scanner = newPipeline(buildScreenSource(), capture.NewChangeDetector(capture.DefaultMaxHashDistance))
	overlayHub = newOverlayHub()
	go overlayHub.run()
	startHotkey()

	r := gin.Default()

	setupRoutes(r)

	r.Run(":" + getEnv("PORT", "8081"))
}

// buildScreenSource resolves the configured capture region. A headless
// machine is not an error; the service then only accepts uploads.
func buildScreenSource() capture.Source {
	display := 0
	if v := os.Getenv("CAPTURE_DISPLAY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Msgf("bad CAPTURE_DISPLAY %q: %v", v, err)
		} else {
			display = n
		}
	}
	if display < 0 {
		log.Info().Msg("screen capture disabled (CAPTURE_DISPLAY < 0)")
		return nil
	}
	region := capture.Region{Display: display}
	if v := os.Getenv("CAPTURE_REGION"); v != "" {
		r, err := capture.ParseRegion(v)
		if err != nil {
			log.Warn().Msgf("bad CAPTURE_REGION %q: %v", v, err)
		} else {
			region.X, region.Y, region.W, region.H = r.X, r.Y, r.W, r.H
		}
	}
	src, err := capture.NewScreenSource(region)
	if err != nil {
		log.Warn().Msgf("screen capture unavailable, scans limited to uploads: %v", err)
		return nil
	}
	log.Info().Str("bounds", src.Bounds().String()).Msg("screen capture ready")
	return src
}

// startHotkey installs the global capture hotkey where the platform has one.
func startHotkey() {
	key := getEnv("OVERLAY_HOTKEY", "f8")
	trig, err := overlay.NewHotkey(key)
	if err != nil {
		if errors.Is(err, overlay.ErrUnsupported) {
			log.Info().Msg("hotkey trigger not available on this platform")
		} else {
			log.Warn().Msgf("hotkey %s unavailable: %v", key, err)
		}
		return
	}
	if err := trig.Start(); err != nil {
		log.Warn().Msgf("hotkey install failed: %v", err)
		return
	}
	hotkeyOn = true
	log.Info().Str("key", key).Msg("capture hotkey ready")
	go func() {
		for range trig.Requests() {
			if _, err := runDeviceScan(false, "hotkey"); err != nil {
				log.Info().Msgf("hotkey scan skipped: %v", err)
			}
		}
	}()
}

// runDeviceScan executes one trigger-initiated scan. Device scans are filed
// under the configured scan user (SCAN_USERNAME, default admin) since the
// hotkey and the overlay carry no session.
func runDeviceScan(force bool, origin string) (*models.StatSheet, error) {
	username := getEnv("SCAN_USERNAME", "admin")
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("scan user %q: %w", username, err)
	}
	var profile models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		return nil, fmt.Errorf("scan user %q has no profile: %w", username, err)
	}
	return scanner.Run(&user, &profile, force, origin)
}

// loadCategoryDefaults reads DEFAULT_DISTANCE and DEFAULT_STRATEGY once at
// startup. Bad values keep the middle / pace-chaser defaults.
func loadCategoryDefaults() {
	if v := os.Getenv("DEFAULT_DISTANCE"); v != "" {
		d, err := rating.ParseDistance(v)
		if err != nil {
			log.Warn().Msgf("bad DEFAULT_DISTANCE %q, keeping %s", v, defaultDistance)
		} else {
			defaultDistance = d
		}
	}
	if v := os.Getenv("DEFAULT_STRATEGY"); v != "" {
		s, err := rating.ParseStrategy(v)
		if err != nil {
			log.Warn().Msgf("bad DEFAULT_STRATEGY %q, keeping %s", v, defaultStrategy)
		} else {
			defaultStrategy = s
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ocrLangs returns the tesseract language hints from OCR_LANGS.
func ocrLangs() []string {
	v := os.Getenv("OCR_LANGS")
	if v == "" {
		return []string{"eng"}
	}
	var langs []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			langs = append(langs, p)
		}
	}
	if len(langs) == 0 {
		return []string{"eng"}
	}
	return langs
}
