package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"umaka/models"
	"umaka/pkg/capture"
	"umaka/pkg/rating"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	r.GET("/health", healthHandler)
	r.GET("/overlay/ws", overlayWSHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/profile", createProfileHandler)
	authGroup.GET("/profile", getProfileHandler)
	authGroup.POST("/captures", uploadCaptureHandler)
	authGroup.POST("/captures/screen", screenCaptureHandler)
	authGroup.GET("/captures", listCapturesHandler)
	authGroup.GET("/captures/:id", getCaptureHandler)
	authGroup.POST("/sheets", createSheetHandler)
	authGroup.GET("/sheets", listSheetsHandler)
	authGroup.GET("/sheets/summary", sheetSummaryHandler)
	authGroup.GET("/sheets/:id", getSheetHandler)
	authGroup.PUT("/sheets/:id", updateSheetHandler)
	authGroup.POST("/evaluate", evaluateHandler)
	authGroup.GET("/system/status", systemStatusHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	username := usernameVal.(string)
	c.JSON(http.StatusOK, gin.H{"username": username})
}

// getUserFromContext fetches the currently authenticated user using the username set by jwtAuthMiddleware
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return nil, false
	}
	uname := unameVal.(string)
	var user models.User
	if err := db.Where("username = ?", uname).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

// FlexInt decodes a JSON number or string into an int. Anything that does
// not parse cleanly becomes zero: a hand-typed stat field with garbage in it
// is an empty field, never a rejected request. Negative values clamp to
// zero since stats cannot go below it.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	v := 0
	s := strings.TrimSpace(string(data))
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if n, err := strconv.Atoi(s); err == nil {
		v = n
	} else if fl, err := strconv.ParseFloat(s, 64); err == nil {
		v = int(fl)
	}
	if v < 0 {
		v = 0
	}
	*f = FlexInt(v)
	return nil
}

// statFields is the wire shape for the ten stat numbers on create and
// evaluate requests.
type statFields struct {
	SpeedCurrent   FlexInt `json:"speed_current"`
	SpeedMax       FlexInt `json:"speed_max"`
	StaminaCurrent FlexInt `json:"stamina_current"`
	StaminaMax     FlexInt `json:"stamina_max"`
	PowerCurrent   FlexInt `json:"power_current"`
	PowerMax       FlexInt `json:"power_max"`
	GutsCurrent    FlexInt `json:"guts_current"`
	GutsMax        FlexInt `json:"guts_max"`
	WisdomCurrent  FlexInt `json:"wisdom_current"`
	WisdomMax      FlexInt `json:"wisdom_max"`
}

func (f statFields) block() rating.StatBlock {
	return rating.FromValues([10]int{
		int(f.SpeedCurrent), int(f.SpeedMax),
		int(f.StaminaCurrent), int(f.StaminaMax),
		int(f.PowerCurrent), int(f.PowerMax),
		int(f.GutsCurrent), int(f.GutsMax),
		int(f.WisdomCurrent), int(f.WisdomMax),
	})
}

// statPatch is the update-request variant: only fields present in the body
// are applied.
type statPatch struct {
	SpeedCurrent   *FlexInt `json:"speed_current"`
	SpeedMax       *FlexInt `json:"speed_max"`
	StaminaCurrent *FlexInt `json:"stamina_current"`
	StaminaMax     *FlexInt `json:"stamina_max"`
	PowerCurrent   *FlexInt `json:"power_current"`
	PowerMax       *FlexInt `json:"power_max"`
	GutsCurrent    *FlexInt `json:"guts_current"`
	GutsMax        *FlexInt `json:"guts_max"`
	WisdomCurrent  *FlexInt `json:"wisdom_current"`
	WisdomMax      *FlexInt `json:"wisdom_max"`
}

func (p statPatch) apply(s *models.StatSheet) bool {
	changed := false
	set := func(dst *int, v *FlexInt) {
		if v != nil {
			*dst = int(*v)
			changed = true
		}
	}
	set(&s.SpeedCurrent, p.SpeedCurrent)
	set(&s.SpeedMax, p.SpeedMax)
	set(&s.StaminaCurrent, p.StaminaCurrent)
	set(&s.StaminaMax, p.StaminaMax)
	set(&s.PowerCurrent, p.PowerCurrent)
	set(&s.PowerMax, p.PowerMax)
	set(&s.GutsCurrent, p.GutsCurrent)
	set(&s.GutsMax, p.GutsMax)
	set(&s.WisdomCurrent, p.WisdomCurrent)
	set(&s.WisdomMax, p.WisdomMax)
	return changed
}

// resolveCategories parses distance and strategy inputs, falling back to the
// configured defaults when a field is empty.
func resolveCategories(d, s string) (rating.Distance, rating.Strategy, error) {
	dist := defaultDistance
	strat := defaultStrategy
	if strings.TrimSpace(d) != "" {
		v, err := rating.ParseDistance(d)
		if err != nil {
			return "", "", err
		}
		dist = v
	}
	if strings.TrimSpace(s) != "" {
		v, err := rating.ParseStrategy(s)
		if err != nil {
			return "", "", err
		}
		strat = v
	}
	return dist, strat, nil
}

// sheetJSON renders a sheet with its evaluation recomputed from the stored
// stats. The stored TotalScore and Rank are never echoed back directly; the
// fresh evaluation is authoritative.
func sheetJSON(s *models.StatSheet) gin.H {
	ev := rating.Evaluate(s.Block(), rating.Distance(s.Distance), rating.Strategy(s.Strategy))
	return gin.H{
		"id":           s.ID,
		"user_id":      s.UserID,
		"file_name":    s.FileName,
		"label":        s.Label,
		"stats":        s.Block(),
		"distance":     s.Distance,
		"strategy":     s.Strategy,
		"evaluation":   ev,
		"needs_review": s.NeedsReview,
		"scanned_at":   s.ScannedAt,
	}
}

// createSheetHandler records a hand-entered sheet for the authenticated user
func createSheetHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		statFields
		FileName  string `json:"file_name"`
		Label     string `json:"label"`
		Distance  string `json:"distance"`
		Strategy  string `json:"strategy"`
		ScannedAt string `json:"scanned_at"` // optional RFC3339
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dist, strat, err := resolveCategories(req.Distance, req.Strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = "manual-" + uuid.NewString()
	}
	// prevent duplicate file for the same user
	var existing models.StatSheet
	if err := db.Where("user_id = ? AND file_name = ?", user.ID, fileName).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "file already recorded"})
		return
	}

	sheet := models.StatSheet{
		UserID:    user.ID,
		FileName:  fileName,
		Label:     req.Label,
		Distance:  string(dist),
		Strategy:  string(strat),
		ScannedAt: time.Now(),
	}
	if req.ScannedAt != "" {
		if t, err := time.Parse(time.RFC3339, req.ScannedAt); err == nil {
			sheet.ScannedAt = t
		}
	}
	sheet.SetBlock(req.statFields.block())
	sheet.Reevaluate()
	if err := db.Create(&sheet).Error; err != nil {
		if isUniqueConstraintError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "file already recorded"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, sheetJSON(&sheet))
}

// listSheetsHandler lists recent sheets for the authenticated user (admin sees all)
func listSheetsHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var items []models.StatSheet
	q := db.Model(&models.StatSheet{})
	if role != models.RoleAdmin {
		q = q.Where("user_id = ?", user.ID)
	}
	if err := q.Order("id desc").Limit(200).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(items))
	for i := range items {
		out = append(out, sheetJSON(&items[i]))
	}
	c.JSON(http.StatusOK, out)
}

func getSheetHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id := c.Param("id")
	var sheet models.StatSheet
	if err := db.First(&sheet, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if role != models.RoleAdmin && sheet.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, sheetJSON(&sheet))
}

// updateSheetHandler applies a manual correction and re-evaluates before save.
func updateSheetHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id := c.Param("id")
	var sheet models.StatSheet
	if err := db.First(&sheet, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if role != models.RoleAdmin && sheet.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var req struct {
		statPatch
		Label    *string `json:"label"`
		Distance *string `json:"distance"`
		Strategy *string `json:"strategy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Distance != nil {
		v, err := rating.ParseDistance(*req.Distance)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sheet.Distance = string(v)
	}
	if req.Strategy != nil {
		v, err := rating.ParseStrategy(*req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sheet.Strategy = string(v)
	}
	if req.Label != nil {
		sheet.Label = *req.Label
	}
	if req.statPatch.apply(&sheet) {
		// manual entry arrived, the sheet no longer waits for review
		sheet.NeedsReview = false
	}
	sheet.Reevaluate()
	if err := db.Save(&sheet).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, sheetJSON(&sheet))
}

// sheetSummaryHandler returns sheet count, best total and its rank per
// distance/strategy pairing
func sheetSummaryHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	type Result struct {
		Distance string
		Strategy string
		Sheets   int64
		Best     int64
	}
	results := []gin.H{}
	q := db.Model(&models.StatSheet{})
	if role != models.RoleAdmin {
		q = q.Where("user_id = ?", user.ID)
	}
	rows, err := q.Select("distance, strategy, count(*) as sheets, max(total_score) as best").Group("distance, strategy").Rows()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	defer rows.Close()
	for rows.Next() {
		var r Result
		rows.Scan(&r.Distance, &r.Strategy, &r.Sheets, &r.Best)
		results = append(results, gin.H{
			"distance": r.Distance,
			"strategy": r.Strategy,
			"sheets":   r.Sheets,
			"best":     r.Best,
			"rank":     rating.RankFor(int(r.Best)),
		})
	}
	c.JSON(http.StatusOK, results)
}

// evaluateHandler computes a rating without persisting anything.
func evaluateHandler(c *gin.Context) {
	var req struct {
		statFields
		Distance string `json:"distance"`
		Strategy string `json:"strategy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dist, strat, err := resolveCategories(req.Distance, req.Strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	block := req.statFields.block()
	c.JSON(http.StatusOK, gin.H{"stats": block, "evaluation": rating.Evaluate(block, dist, strat)})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := RegisterUser(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func createProfileHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Name      string `json:"name" binding:"required"`
		TrainerID string `json:"trainer_id"`
		Circle    string `json:"circle"`
		Note      string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile := models.Profile{UserID: user.ID, Name: req.Name, TrainerID: req.TrainerID, Circle: req.Circle, Note: req.Note}
	if err := db.Create(&profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": profile.ID})
}

func getProfileHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var p models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&p).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	// Generate JWT token. Resolve role name from RoleID (we only store role_id now).
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// create refresh token
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	// generate random 32-byte token (hex)
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	// hash for storage
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// helper to find refresh token record by raw token string
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || !rt.Usable(time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	// load user
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	// create access token
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

// uploadCaptureHandler accepts a multipart stat screen image, stores it under
// the current user's profile and runs the scan pipeline on it.
func uploadCaptureHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	// ensure profile exists
	var profile models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile missing"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 5*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}
	dist, strat, err := resolveCategories(c.PostForm("distance"), c.PostForm("strategy"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// simple content type sniff via header
	ct := file.Header.Get("Content-Type")
	relPath := filepath.Join("upload", uuid.NewString()+filepath.Ext(file.Filename))
	fullPath := filepath.Join(captureBaseDir(), relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	// A re-upload of the same file name replaces the stored image; it only
	// rescans when the earlier attempt produced nothing usable.
	var capt models.Capture
	if err := db.Where("profile_id = ? AND file_name = ?", profile.ID, file.Filename).First(&capt).Error; err == nil {
		capt.StorePath = relPath
		capt.ContentType = ct
		db.Save(&capt)
		if capt.SheetID == nil || sheetNeedsReview(capt.SheetID) {
			sheet, err := runScanAndStore(user, &capt, fullPath, dist, strat)
			if err != nil {
				log.Error().Err(err).Str("file", file.Filename).Msg("upload rescan failed")
				c.JSON(http.StatusBadGateway, gin.H{"error": "scan failed"})
				return
			}
			c.JSON(http.StatusOK, captureResponse(&capt, sheet))
			return
		}
		var sheet models.StatSheet
		db.First(&sheet, *capt.SheetID)
		c.JSON(http.StatusOK, captureResponse(&capt, &sheet))
		return
	}

	capt = models.Capture{ProfileID: profile.ID, FileName: file.Filename, StorePath: relPath, ContentType: ct, Source: "upload"}
	if err := db.Create(&capt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	sheet, err := runScanAndStore(user, &capt, fullPath, dist, strat)
	if err != nil {
		log.Error().Err(err).Str("file", file.Filename).Msg("upload scan failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "scan failed"})
		return
	}
	c.JSON(http.StatusOK, captureResponse(&capt, sheet))
}

func sheetNeedsReview(id *uint) bool {
	if id == nil {
		return true
	}
	var sheet models.StatSheet
	if err := db.First(&sheet, *id).Error; err != nil {
		return true
	}
	return sheet.NeedsReview
}

// captureResponse is the common reply shape for upload and screen scans.
func captureResponse(capt *models.Capture, sheet *models.StatSheet) gin.H {
	resp := gin.H{"id": capt.ID, "store_path": capt.StorePath, "sheet_id": capt.SheetID}
	if sheet != nil {
		resp["needs_review"] = sheet.NeedsReview
		resp["sheet"] = sheetJSON(sheet)
	}
	return resp
}

// screenCaptureHandler triggers a device scan over HTTP. The capture lands
// under the caller's own profile.
func screenCaptureHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var profile models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile missing"})
		return
	}
	var req struct {
		Force bool `json:"force"`
	}
	_ = c.ShouldBindJSON(&req) // body is optional
	sheet, err := scanner.Run(user, &profile, req.Force, "screen")
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"needs_review": sheet.NeedsReview, "sheet": sheetJSON(sheet)})
	case errors.Is(err, ErrScanBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
	case errors.Is(err, capture.ErrNoDisplay):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no screen source available; configure CAPTURE_DISPLAY on a machine with a display"})
	case errors.Is(err, capture.ErrUnchanged):
		c.JSON(http.StatusOK, gin.H{"skipped": true, "message": "screen unchanged since last scan"})
	default:
		log.Error().Err(err).Msg("screen scan failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "scan failed"})
	}
}

// listCapturesHandler returns captures; admin sees all, user only own profile's captures.
func listCapturesHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var profile models.Profile
	db.Where("user_id = ?", user.ID).First(&profile)
	var captures []models.Capture
	q := db.Model(&models.Capture{})
	if role != models.RoleAdmin {
		q = q.Where("profile_id = ?", profile.ID)
	}
	if err := q.Order("id desc").Limit(100).Find(&captures).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, captures)
}

// getCaptureHandler returns a single capture if admin or owner.
func getCaptureHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var profile models.Profile
	db.Where("user_id = ?", user.ID).First(&profile)
	id := c.Param("id")
	var capt models.Capture
	if err := db.First(&capt, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if role != models.RoleAdmin && capt.ProfileID != profile.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, capt)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// systemStatusHandler reports process health and which scan triggers are live.
func systemStatusHandler(c *gin.Context) {
	status := gin.H{
		"status":          "ok",
		"uptime_seconds":  int(time.Since(startedAt).Seconds()),
		"screen_source":   scanner.Available(),
		"scan_busy":       scanner.Busy(),
		"hotkey":          hotkeyOn,
		"overlay_clients": overlayHub.ClientCount(),
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = math.Round(percents[0]*10) / 10
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_used_percent"] = math.Round(vm.UsedPercent*10) / 10
	}
	c.JSON(http.StatusOK, status)
}
