package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"proctor-quiz-service/internal/app"
	"proctor-quiz-service/internal/domain"
	"proctor-quiz-service/internal/infra/memory"
	"proctor-quiz-service/internal/proctor"
)

func testFactory(profiles *memory.ProfileStore) SessionFactory {
	bank := memory.NewStaticQuestionBank(map[string][]domain.Question{
		"general": {
			{ID: "q1", Prompt: "What is 2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "22", CorrectLabel: domain.LabelB, Category: "general"},
			{ID: "q2", Prompt: "Derivative of x^2?", OptionA: "2x", OptionB: "x", OptionC: "x^2", OptionD: "2", CorrectLabel: domain.LabelA, Category: "general"},
		},
	})
	attempts := memory.NewAttemptStore()
	cfg := app.SessionConfig{
		Duration: time.Minute,
		Quotas:   map[string]int{"general": 2},
	}
	return func(userID string, env *proctor.SignalBus) *app.Controller {
		return app.NewController(userID, cfg, env, bank, attempts, profiles)
	}
}

func dialTest(t *testing.T, profiles *memory.ProfileStore, userID string) *websocket.Conn {
	t.Helper()
	handler := NewWSHandler(testFactory(profiles))
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	u := "ws" + server.URL[len("http"):] + "/ws?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips interleaved frames (ticks, violations) until the wanted
// type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) (string, json.RawMessage) {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type == want {
			return msg.Type, msg.Payload
		}
	}
	t.Fatalf("never received %q", want)
	return "", nil
}

func TestFullQuizSessionOverWebSocket(t *testing.T) {
	profiles := memory.NewProfileStore(memory.Profile{UserID: "u1", PaymentVerified: true})
	conn := dialTest(t, profiles, "u1")

	_, payload := readUntil(t, conn, "questions")
	if strings.Contains(string(payload), "correctLabel") {
		t.Fatalf("correct labels leaked to the client: %s", payload)
	}
	var qp struct {
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(payload, &qp); err != nil {
		t.Fatalf("unmarshal questions: %v", err)
	}
	if len(qp.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qp.Questions))
	}

	if err := conn.WriteJSON(map[string]any{"type": "start", "payload": domain.DeviceInfo{UserAgent: "test"}}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	readUntil(t, conn, "started")

	answers := map[string]domain.Label{"q1": domain.LabelB, "q2": domain.LabelA}
	for _, q := range qp.Questions {
		if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{
			"questionId": q.ID,
			"label":      answers[q.ID],
		}}); err != nil {
			t.Fatalf("write answer: %v", err)
		}
	}

	if err := conn.WriteJSON(map[string]any{"type": "submit"}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	_, payload = readUntil(t, conn, "submitted")
	var result struct {
		Score          int  `json:"score"`
		TotalQuestions int  `json:"totalQuestions"`
		Forced         bool `json:"forced"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Score != 2 || result.TotalQuestions != 2 || result.Forced {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestViolationSignalsAreReported(t *testing.T) {
	profiles := memory.NewProfileStore(memory.Profile{UserID: "u1", PaymentVerified: true})
	conn := dialTest(t, profiles, "u1")

	readUntil(t, conn, "questions")
	if err := conn.WriteJSON(map[string]any{"type": "start", "payload": map[string]any{}}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	readUntil(t, conn, "started")

	if err := conn.WriteJSON(map[string]any{"type": "signal", "payload": map[string]any{"kind": "copy"}}); err != nil {
		t.Fatalf("write signal: %v", err)
	}
	_, payload := readUntil(t, conn, "violation")
	var vp struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(payload, &vp); err != nil {
		t.Fatalf("unmarshal violation: %v", err)
	}
	if vp.Tag != proctor.TagCopyAttempted {
		t.Fatalf("expected copy-attempted, got %q", vp.Tag)
	}
}

func TestBlockedUserGetsReason(t *testing.T) {
	profiles := memory.NewProfileStore(memory.Profile{UserID: "u1", PaymentVerified: true, HasAttempted: true})
	conn := dialTest(t, profiles, "u1")

	_, payload := readUntil(t, conn, "blocked")
	var bp struct {
		Reason    domain.BlockReason `json:"reason"`
		Retryable bool               `json:"retryable"`
	}
	if err := json.Unmarshal(payload, &bp); err != nil {
		t.Fatalf("unmarshal blocked: %v", err)
	}
	if bp.Reason != domain.BlockAlreadyAttempted || bp.Retryable {
		t.Fatalf("unexpected block payload %+v", bp)
	}
}
