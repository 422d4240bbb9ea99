package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"umaka/pkg/capture"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	// allow callers to pass nil for body safely
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	tmp := t.TempDir()
	_ = os.Setenv("UPLOAD_BASE", tmp)
	initDB()
	seedDB()
	// no display in test runs; the screen trigger must answer 503
	scanner = newPipeline(nil, capture.NewChangeDetector(capture.DefaultMaxHashDistance))
	overlayHub = newOverlayHub()
	go overlayHub.run()
	r := gin.Default()
	setupRoutes(r)
	return r
}

// blank stat screen stand-in: scans run but find no digit runs
func testPNG(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 240, 100))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "trainer1", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		b := resp.Body.String()
		t.Fatalf("register failed status=%d body=%s", resp.Code, b)
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "trainer1", "password": "pass123"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("login failed status=%d body=%s", resp.Code, b)
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Create profile
	profBody, _ := json.Marshal(map[string]string{"name": "Trainer One", "trainer_id": "123 456 789"})
	resp = performRequest(r, http.MethodPost, "/profile", bytes.NewBuffer(profBody), token, "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("create profile failed status=%d body=%s", resp.Code, b)
	}

	// 4. Upload a capture (multipart). The blank image cannot yield ten stat
	// values, so the sheet must come back zeroed and flagged for review.
	uploadName := fmt.Sprintf("career-%d.png", time.Now().UnixNano())
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	_ = mw.WriteField("distance", "middle")
	_ = mw.WriteField("strategy", "front-runner")
	w, _ := mw.CreateFormFile("file", uploadName)
	_, _ = w.Write(testPNG(t))
	_ = mw.Close()
	resp = performRequest(r, http.MethodPost, "/captures", buf, token, mw.FormDataContentType())
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("upload failed status=%d body=%s", resp.Code, b)
	}
	var uploadResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &uploadResp)
	if nr, _ := uploadResp["needs_review"].(bool); !nr {
		t.Fatalf("blank capture should need review: %+v", uploadResp)
	}
	sheetID, _ := uploadResp["sheet_id"].(float64)
	if sheetID == 0 {
		t.Fatalf("upload response missing sheet_id: %+v", uploadResp)
	}

	// 5. Correct the flagged sheet by hand; a string value must coerce
	putBody := []byte(`{"speed_current": "800", "speed_max": 1000, "stamina_current": 700, "stamina_max": 900}`)
	resp = performRequest(r, http.MethodPut, fmt.Sprintf("/sheets/%d", int(sheetID)), bytes.NewBuffer(putBody), token, "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("update sheet failed status=%d body=%s", resp.Code, b)
	}
	var putResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &putResp)
	if nr, _ := putResp["needs_review"].(bool); nr {
		t.Fatalf("manual correction should clear the review flag: %+v", putResp)
	}

	// 6. Create a manual sheet
	sheetBody, _ := json.Marshal(map[string]any{
		"file_name":       fmt.Sprintf("manual-%d.png", time.Now().UnixNano()),
		"distance":        "long",
		"strategy":        "closer",
		"speed_current":   900, "speed_max": 1200,
		"stamina_current": 1000, "stamina_max": 1200,
		"power_current":   800, "power_max": 1200,
		"guts_current":    1200, "guts_max": 1200,
		"wisdom_current":  1200, "wisdom_max": 1200,
	})
	resp = performRequest(r, http.MethodPost, "/sheets", bytes.NewBuffer(sheetBody), token, "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("create sheet failed status=%d body=%s", resp.Code, b)
	}

	// 7. List sheets
	resp = performRequest(r, http.MethodGet, "/sheets", nil, token, "")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("list sheets failed status=%d body=%s", resp.Code, b)
	}

	// 8. Summary per distance/strategy
	resp = performRequest(r, http.MethodGet, "/sheets/summary", nil, token, "")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("sheet summary failed status=%d body=%s", resp.Code, b)
	}

	// 9. Stateless evaluate
	evalBody, _ := json.Marshal(map[string]any{
		"distance":        "middle",
		"strategy":        "front-runner",
		"speed_current":   1000, "speed_max": 1200,
		"stamina_current": 1000, "stamina_max": 1200,
		"power_current":   1000, "power_max": 1200,
		"guts_current":    1000, "guts_max": 1200,
		"wisdom_current":  1000, "wisdom_max": 1200,
	})
	resp = performRequest(r, http.MethodPost, "/evaluate", bytes.NewBuffer(evalBody), token, "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("evaluate failed status=%d body=%s", resp.Code, b)
	}
	var evalResp struct {
		Evaluation struct {
			Total int    `json:"total"`
			Rank  string `json:"rank"`
		} `json:"evaluation"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &evalResp)
	if evalResp.Evaluation.Total != 5200 || evalResp.Evaluation.Rank != "A+" {
		t.Fatalf("evaluate wrong result: %+v", evalResp.Evaluation)
	}

	// 10. List captures
	resp = performRequest(r, http.MethodGet, "/captures", nil, token, "")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("list captures failed status=%d body=%s", resp.Code, b)
	}

	// 11. Screen trigger without a display must be unavailable
	resp = performRequest(r, http.MethodPost, "/captures/screen", bytes.NewBufferString("{}"), token, "application/json")
	if resp.Code != http.StatusServiceUnavailable {
		b := resp.Body.String()
		t.Fatalf("expected 503 for screen trigger, got %d body=%s", resp.Code, b)
	}

	// 12. System status
	resp = performRequest(r, http.MethodGet, "/system/status", nil, token, "")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("system status failed status=%d body=%s", resp.Code, b)
	}
	var statusResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &statusResp)
	if ss, _ := statusResp["screen_source"].(bool); ss {
		t.Fatalf("screen_source should be false in tests: %+v", statusResp)
	}

	// 13. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/sheets", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list sheets got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
