package app

import (
	"encoding/base64"
	"encoding/json"

	"proctor-quiz-service/internal/domain"
)

// Fingerprint serializes client-reported device characteristics into the
// opaque string stored on the attempt record: base64 over the JSON form,
// matching what the portal always persisted.
func Fingerprint(info domain.DeviceInfo) string {
	const canvasTail = 50
	if len(info.CanvasHash) > canvasTail {
		info.CanvasHash = info.CanvasHash[len(info.CanvasHash)-canvasTail:]
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}
