package app_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"proctor-quiz-service/internal/app"
	"proctor-quiz-service/internal/domain"
)

func TestFingerprintRoundTrips(t *testing.T) {
	fp := app.Fingerprint(domain.DeviceInfo{
		UserAgent:    "Mozilla/5.0",
		Language:     "en-GB",
		Platform:     "Linux x86_64",
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		Timezone:     "Africa/Lagos",
		CanvasHash:   "abc123",
	})
	raw, err := base64.StdEncoding.DecodeString(fp)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var info domain.DeviceInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.UserAgent != "Mozilla/5.0" || info.ScreenWidth != 1920 {
		t.Fatalf("fields lost: %+v", info)
	}
}

func TestFingerprintTruncatesCanvasHash(t *testing.T) {
	long := strings.Repeat("x", 80) + "TAIL"
	fp := app.Fingerprint(domain.DeviceInfo{CanvasHash: long})
	raw, _ := base64.StdEncoding.DecodeString(fp)
	var info domain.DeviceInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(info.CanvasHash) != 50 || !strings.HasSuffix(info.CanvasHash, "TAIL") {
		t.Fatalf("expected 50-char tail, got %q", info.CanvasHash)
	}
}
