package main

import (
	"errors"
	"flag"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"umaka/models"
	"umaka/pkg/logger"
	"umaka/pkg/ocr"
	"umaka/pkg/rating"
)

// Global DB handle for helper funcs
var db *gorm.DB

// global flags (parsed in main)
var (
	verbose     bool
	simulateOCR bool
)

// categories applied to imported sheets, resolved once in main
var (
	importDistance = rating.Middle
	importStrategy = rating.PaceChaser
)

// MIME mapping to avoid opening files repeatedly
var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// preload caches
type preloadState struct {
	capturesByFile map[string]*models.Capture   // fileName -> capture
	sheetsByFile   map[string]*models.StatSheet // fileName -> sheet
	mu             sync.RWMutex
}

func newPreloadState() *preloadState {
	return &preloadState{
		capturesByFile: make(map[string]*models.Capture, 1024),
		sheetsByFile:   make(map[string]*models.StatSheet, 1024),
	}
}

func (ps *preloadState) getCapture(name string) (*models.Capture, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	c, ok := ps.capturesByFile[name]
	return c, ok
}
func (ps *preloadState) putCapture(c *models.Capture) {
	ps.mu.Lock()
	ps.capturesByFile[c.FileName] = c
	ps.mu.Unlock()
}
func (ps *preloadState) getSheet(name string) (*models.StatSheet, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	s, ok := ps.sheetsByFile[name]
	return s, ok
}
func (ps *preloadState) putSheet(s *models.StatSheet) {
	ps.mu.Lock()
	ps.sheetsByFile[s.FileName] = s
	ps.mu.Unlock()
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal().Msg("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Msgf("failed to connect to database: %v", err)
	}
	return gdb
}

// Main: scans a directory of dropped stat screenshots, creates Capture rows,
// runs the scan to create/link StatSheets, optional watch mode with a
// periodic reconcile sweep.
func main() {
	_ = godotenv.Load()
	logger.Setup(logger.Config{Level: envOr("LOG_LEVEL", "info"), Pretty: os.Getenv("LOG_PRETTY") == "1"})

	dirFlag := flag.String("dir", "incoming", "directory to scan for stat screenshots")
	profileID := flag.Uint("profile-id", 0, "Profile ID to assign captures to (if omitted attempts admin profile)")
	dryRun := flag.Bool("dry-run", false, "Skip all DB queries and writes; just list / optionally OCR (see --simulate-ocr)")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	distFlag := flag.String("distance", "", "distance category for imported sheets (default DEFAULT_DISTANCE or middle)")
	stratFlag := flag.String("strategy", "", "strategy category for imported sheets (default DEFAULT_STRATEGY or pace-chaser)")
	inspectFKs := flag.Bool("inspect-fks", false, "Print foreign key constraints and exit")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.BoolVar(&simulateOCR, "simulate-ocr", false, "In dry-run: actually run OCR to show candidate stat values")
	flag.Parse()

	if *inspectFKs {
		if err := RunInspectFKs(os.Getenv("DB_DSN")); err != nil {
			log.Fatal().Msgf("inspect fks: %v", err)
		}
		return
	}

	resolveCategories(*distFlag, *stratFlag)

	if *dryRun {
		// fast dry-run path, no DB interaction
		log.Info().Msgf("Dry-run: scanning %s (no DB interaction)", *dirFlag)
		files := listImageFiles(*dirFlag)
		log.Info().Msgf("Found %d candidate files", len(files))
		if simulateOCR {
			for _, f := range files {
				block, _, err := ocr.ScanImage(filepath.Join(*dirFlag, f), scanLangs()...)
				if err != nil {
					logV("OCR %s failed: %v", f, err)
					continue
				}
				ev := rating.Evaluate(block, importDistance, importStrategy)
				logV("OCR %s currents=%v total=%d rank=%s", f, block.Currents(), ev.Total, ev.Rank)
			}
		}
		return
	}

	db = mustInitDBFromEnv()
	profile := resolveProfile(*profileID)
	// preload all captures & sheets
	ps := preloadAll(profile)
	log.Info().Msgf("Preloaded: captures=%d sheets=%d", len(ps.capturesByFile), len(ps.sheetsByFile))

	// gather initial file list
	files := listImageFiles(*dirFlag)
	log.Info().Msgf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, profile, ps, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, profile, ps, effectiveWorkers(*workers)); err != nil {
			log.Fatal().Msgf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Info().Msgf(format, args...)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func scanLangs() []string {
	var langs []string
	for _, p := range strings.Split(envOr("OCR_LANGS", "eng"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			langs = append(langs, p)
		}
	}
	return langs
}

// resolveCategories fills importDistance/importStrategy from flags, falling
// back to the env defaults.
func resolveCategories(distFlag, stratFlag string) {
	dv := distFlag
	if dv == "" {
		dv = os.Getenv("DEFAULT_DISTANCE")
	}
	if dv != "" {
		d, err := rating.ParseDistance(dv)
		if err != nil {
			log.Fatal().Msgf("bad distance %q: %v", dv, err)
		}
		importDistance = d
	}
	sv := stratFlag
	if sv == "" {
		sv = os.Getenv("DEFAULT_STRATEGY")
	}
	if sv != "" {
		s, err := rating.ParseStrategy(sv)
		if err != nil {
			log.Fatal().Msgf("bad strategy %q: %v", sv, err)
		}
		importStrategy = s
	}
}

// preloadAll fetches existing captures and sheets to minimize per-file queries.
func preloadAll(profile models.Profile) *preloadState {
	ps := newPreloadState()
	var capts []models.Capture
	if err := db.Where("profile_id = ?", profile.ID).Find(&capts).Error; err == nil {
		for i := range capts {
			c := capts[i]
			ps.capturesByFile[c.FileName] = &c
		}
	}
	var sheets []models.StatSheet
	if err := db.Where("user_id = ?", profile.UserID).Find(&sheets).Error; err == nil {
		for i := range sheets {
			s := sheets[i]
			ps.sheetsByFile[s.FileName] = &s
		}
	}
	return ps
}

// resolveProfile finds the profile either by explicit id or by admin username.
func resolveProfile(id uint) models.Profile {
	var p models.Profile
	if id != 0 {
		if err := db.First(&p, id).Error; err != nil {
			log.Fatal().Msgf("failed to find profile id %d: %v", id, err)
		}
		return p
	}
	var admin models.User
	if err := db.Where("username = ?", "admin").First(&admin).Error; err != nil {
		log.Fatal().Msgf("no --profile-id provided and admin user not found: %v", err)
	}
	if err := db.Where("user_id = ?", admin.ID).First(&p).Error; err != nil {
		log.Fatal().Msgf("admin profile not found: %v", err)
	}
	return p
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func watchDirectory(dir string, profile models.Profile, ps *preloadState, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Info().Msgf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files; a file counts as stable once
		// no event has touched it for half a second
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 500*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Warn().Msgf("watch error: %v", err)
			}
		}
	}()

	// Reconcile sweep for files whose events were missed while the queue
	// was busy; processed files have been moved out, so a quiet directory
	// makes this a no-op.
	cr := cron.New()
	if _, err := cr.AddFunc("@every 5m", func() {
		files := listImageFiles(dir)
		queued := 0
		for _, name := range files {
			select {
			case fileCh <- name:
				queued++
			default:
			}
		}
		if queued > 0 {
			log.Info().Msgf("reconcile sweep queued %d files", queued)
		}
	}); err != nil {
		return err
	}
	cr.Start()
	defer cr.Stop()

	// Use worker pool for watch events too
	go runWorkerPool(dir, profile, ps, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

func isSupportedExt(name string) bool {
	// ignore OCR-generated temp files to avoid recursive processing
	if strings.Contains(name, ".ocr.") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// worker pool orchestrator
func runWorkerPool(dir string, profile models.Profile, ps *preloadState, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				processSingleFile(dir, name, profile, ps)
			}
		}()
	}
	// feed initial
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		// also relay from extra channels if provided
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		// if no extraCh (scan only) close when done
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

// processSingleFile handles one dropped screenshot idempotently: ensure the
// Capture row, scan it, upsert the sheet, then move the file into the
// capture store so it is only picked up once.
func processSingleFile(dir, name string, profile models.Profile, ps *preloadState) {
	filePath := filepath.Join(dir, name)
	storePath := filepath.ToSlash(filepath.Join("import", name))

	if sheet, ok := ps.getSheet(name); ok && !sheet.NeedsReview {
		logV("SKIP sheet exists %s", name)
		return
	}

	capt, exists := ps.getCapture(name)
	if !exists {
		newCapt := models.Capture{ProfileID: profile.ID, FileName: name, StorePath: storePath, Source: "import"}
		if ct := mimeFromExt(name); ct != "" {
			newCapt.ContentType = ct
		} else {
			newCapt.ContentType = sniffContentType(filePath)
		}
		if err := db.Create(&newCapt).Error; err != nil {
			if isUniqueConstraintError(err) { // race: someone else created
				if err2 := db.Where("profile_id = ? AND file_name = ?", profile.ID, name).First(&newCapt).Error; err2 != nil {
					log.Warn().Msgf("fetch after race failed %s: %v", name, err2)
					return
				}
			} else {
				log.Error().Msgf("create capture %s: %v", name, err)
				return
			}
		}
		ps.putCapture(&newCapt)
		capt = &newCapt
		log.Info().Msgf("NEW capture id=%d file=%s", newCapt.ID, name)
	}

	block, _, err := ocr.ScanImage(filePath, scanLangs()...)
	needsReview := false
	if err != nil {
		if !errors.Is(err, ocr.ErrInsufficientStats) {
			// engine failure: keep the capture on record and bank the file so
			// the sweep does not retry it forever; rescan can pick it up later
			capt.Failed = true
			capt.FailedReason = "ocr engine failure"
			_ = db.Save(capt).Error
			log.Error().Msgf("OCR fail %s: %v", name, err)
			if err := moveToStore(filePath, storePath); err != nil {
				log.Warn().Msgf("failed to move %s into store: %v", name, err)
			}
			return
		}
		needsReview = true
		capt.Failed = true
		capt.FailedReason = err.Error()
		block = rating.StatBlock{}
	}

	sheet := upsertSheet(profile.UserID, name, block, needsReview, ps)
	if sheet == nil {
		return
	}
	capt.SheetID = &sheet.ID
	_ = db.Save(capt).Error
	log.Info().Msgf("SHEET total=%d rank=%s review=%v file=%s capture=%d", sheet.TotalScore, sheet.Rank, needsReview, name, capt.ID)

	if err := moveToStore(filePath, storePath); err != nil {
		log.Warn().Msgf("failed to move processed file %s: %v", name, err)
	} else {
		logV("moved processed %s into capture store", name)
	}
}

// upsertSheet creates or refreshes the sheet for (user, file). Local to this
// binary; the server has its own copy.
func upsertSheet(userID uint, name string, block rating.StatBlock, needsReview bool, ps *preloadState) *models.StatSheet {
	var sheet models.StatSheet
	if err := db.Where("user_id = ? AND file_name = ?", userID, name).First(&sheet).Error; err != nil {
		sheet = models.StatSheet{UserID: userID, FileName: name}
	}
	sheet.SetBlock(block)
	sheet.Distance = string(importDistance)
	sheet.Strategy = string(importStrategy)
	sheet.NeedsReview = needsReview
	sheet.ScannedAt = time.Now()
	sheet.Reevaluate()
	if err := db.Save(&sheet).Error; err != nil {
		if isUniqueConstraintError(err) { // race: fetch winner
			if err2 := db.Where("user_id = ? AND file_name = ?", userID, name).First(&sheet).Error; err2 != nil {
				log.Warn().Msgf("fetch sheet after race failed %s: %v", name, err2)
				return nil
			}
		} else {
			log.Error().Msgf("save sheet %s: %v", name, err)
			return nil
		}
	}
	ps.putSheet(&sheet)
	return &sheet
}

// sniffContentType reads first 512 bytes and returns MIME type.
func sniffContentType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if n == 0 {
		return ""
	}
	return http.DetectContentType(buf[:n])
}

func mimeFromExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if m, ok := extMime[ext]; ok {
		return m
	}
	return ""
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}

func captureBase() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "captures"
}

// moveToStore moves a processed file into the capture store under relPath,
// shrinking big images on the way. It attempts an atomic rename and falls
// back to copy+remove when necessary.
func moveToStore(srcFullPath, relPath string) error {
	const maxBytes = 1_000_000 // 1 MB budget
	dst := filepath.Join(captureBase(), filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	fi, err := os.Stat(srcFullPath)
	if err != nil {
		return err
	}
	// Fast path: already small enough -> attempt rename/copy
	if fi.Size() <= maxBytes {
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	// Need compression / resizing
	img, err := imaging.Open(srcFullPath)
	if err != nil { // fallback to raw move if cannot decode
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	// Estimate scale factor based on sqrt(max/current) (size roughly scales with area)
	scale := math.Sqrt(float64(maxBytes) / float64(fi.Size()))
	if scale > 0.95 { // still enforce some small reduction to help container formats
		scale = 0.95
	}
	if scale < 0.1 { // avoid absurd downscale
		scale = 0.1
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	newW := int(math.Max(1, math.Round(float64(w)*scale)))
	newH := int(math.Max(1, math.Round(float64(h)*scale)))
	img = imaging.Resize(img, newW, newH, imaging.Lanczos)
	// Save to dst (overwrite if exists)
	if err := imaging.Save(img, dst); err != nil {
		// fallback to original move
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	// Remove original after successful save
	_ = os.Remove(srcFullPath)
	return nil
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	_ = out.Close()
	if err := os.Remove(src); err != nil {
		return err
	}
	return nil
}
