package http

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"medquiz-service/internal/app"
)

type wsMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	seen map[string]int
	ads  []string
}

func dialWS(t *testing.T, srv *testServer, query url.Values) *wsClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn, seen: map[string]int{}}
}

func (c *wsClient) send(typ string, payload any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		c.t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil reads messages until match accepts one, recording every type seen.
func (c *wsClient) readUntil(desc string, match func(wsMessage) bool) wsMessage {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.t.Fatalf("waiting for %s: %v", desc, err)
		}
		c.seen[msg.Type]++
		if msg.Type == "ad" {
			c.ads = append(c.ads, msg.Payload["kind"].(string))
		}
		if match(msg) {
			return msg
		}
	}
}

func statePhase(phase string) func(wsMessage) bool {
	return func(m wsMessage) bool { return m.Type == "state" && m.Payload["phase"] == phase }
}

func ofType(typ string) func(wsMessage) bool {
	return func(m wsMessage) bool { return m.Type == typ }
}

func errorCode(code string) func(wsMessage) bool {
	return func(m wsMessage) bool { return m.Type == "error" && m.Payload["code"] == code }
}

func TestWebSocketCustomAttemptFlow(t *testing.T) {
	srv := newTestServer(t)
	quiz := srv.createQuiz(t)
	c := dialWS(t, srv, url.Values{"quizId": {quiz.ID}})

	first := c.readUntil("first question", statePhase("presented"))
	question := first.Payload["question"].(map[string]any)
	if _, leaked := question["correctLabel"]; leaked {
		t.Fatalf("answer key must be withheld before selection: %+v", question)
	}

	c.send("select", map[string]any{"label": "a"})
	answered := c.readUntil("answered state", statePhase("answered"))
	if answered.Payload["correct"] != true || answered.Payload["score"].(float64) != 1 {
		t.Fatalf("expected correct answer scored, got %+v", answered.Payload)
	}
	if answered.Payload["question"].(map[string]any)["correctLabel"] != "A" {
		t.Fatalf("expected answer key after selection")
	}

	c.send("advance", nil)
	second := c.readUntil("second question", func(m wsMessage) bool {
		return m.Type == "state" && m.Payload["phase"] == "presented" && m.Payload["questionIndex"].(float64) == 2
	})
	if second.Payload["selectedLabel"] != nil {
		t.Fatalf("selection must be cleared on advance")
	}

	c.send("select", map[string]any{"label": "B"})
	c.readUntil("answered state", statePhase("answered"))
	c.send("advance", nil)
	c.readUntil("complete state", statePhase("complete"))
	if c.seen["result"] != 0 {
		t.Fatalf("result delivered before the complete state")
	}
	c.readUntil("pending result", ofType("result"))

	c.send("submit", nil)
	result := c.readUntil("recorded result", func(m wsMessage) bool {
		return m.Type == "result" && m.Payload["recorded"] == true
	})
	if result.Payload["percentage"].(float64) != 50 || result.Payload["total"].(float64) != 2 {
		t.Fatalf("unexpected result %+v", result.Payload)
	}

	if c.seen["ad"] == 0 {
		c.readUntil("completion interstitial", ofType("ad"))
	}
	if c.ads[0] != "interstitial" {
		t.Fatalf("expected completion interstitial, got %v", c.ads)
	}
}

func TestWebSocketPracticeDoubtFlow(t *testing.T) {
	srv := newTestServer(t)
	c := dialWS(t, srv, url.Values{"subject": {"Complete MBBS"}, "questionCount": {"1"}, "difficulty": {"Hard"}})

	presented := c.readUntil("first question", statePhase("presented"))
	if presented.Payload["question"].(map[string]any)["subject"] != "Complete MBBS" {
		t.Fatalf("unexpected scope in %+v", presented.Payload)
	}

	c.send("doubt", map[string]any{"text": "why?"})
	c.readUntil("phase error", errorCode("conflict"))

	c.send("select", map[string]any{"label": "B"})
	c.readUntil("answered state", statePhase("answered"))
	c.send("explanation", nil)
	c.readUntil("explanation visible", func(m wsMessage) bool {
		return m.Type == "state" && m.Payload["explanationVisible"] == true
	})

	c.send("doubt", map[string]any{"text": "why not atropine?"})
	resolved := c.readUntil("doubt answer", func(m wsMessage) bool {
		if m.Type != "state" {
			return false
		}
		transcript, _ := m.Payload["doubtTranscript"].([]any)
		return len(transcript) == 2
	})
	answer := resolved.Payload["doubtTranscript"].([]any)[1].(map[string]any)
	if answer["role"] != "answer" || answer["text"] != "Answer to: why not atropine?" {
		t.Fatalf("unexpected transcript entry %+v", answer)
	}

	c.send("doubt", map[string]any{"text": "   "})
	c.readUntil("empty doubt rejected", errorCode("badrequest"))

	c.send("advance", nil)
	c.readUntil("complete state", statePhase("complete"))
	if c.seen["result"] != 0 {
		t.Fatalf("result delivered before the complete state")
	}
	result := c.readUntil("practice result", ofType("result"))
	if result.Payload["recorded"] != false {
		t.Fatalf("practice results are not persisted: %+v", result.Payload)
	}

	c.send("submit", nil)
	c.readUntil("nothing to submit", errorCode("conflict"))
}

func TestWebSocketRejectsBadSettings(t *testing.T) {
	srv := newTestServer(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?subject=Anatomy"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	srv := newTestServer(t)
	c := dialWS(t, srv, url.Values{"quizId": {"missing"}})
	c.readUntil("not found error", errorCode("notfound"))
}

func TestWebSocketAttributesAuthenticatedUser(t *testing.T) {
	srv := newTestServer(t)
	quiz := srv.createQuiz(t)
	token := srv.token(t, userAsha)
	c := dialWS(t, srv, url.Values{"quizId": {quiz.ID}, "access_token": {token}})

	c.readUntil("first question", statePhase("presented"))
	c.send("finish", nil)
	result := c.readUntil("result", ofType("result"))
	participant := result.Payload["participant"].(map[string]any)
	if participant["userId"] != userAsha.ID || participant["displayName"] != userAsha.Name {
		t.Fatalf("expected result attributed to the token user, got %+v", participant)
	}
}

func TestWebSocketTimedAttemptReportsResultOnExpiry(t *testing.T) {
	srv := newTestServerWith(t, func(cfg *app.Config) { cfg.TickInterval = 10 * time.Millisecond })
	quiz := srv.createTimedQuiz(t, 1)
	c := dialWS(t, srv, url.Values{"quizId": {quiz.ID}})

	// No input: both questions expire and auto-advance to completion.
	c.readUntil("complete state", statePhase("complete"))
	if c.seen["result"] != 0 {
		t.Fatalf("result delivered before the complete state")
	}
	result := c.readUntil("result", ofType("result"))
	participant := result.Payload["participant"].(map[string]any)
	if participant["score"].(float64) != 0 || result.Payload["total"].(float64) != 2 {
		t.Fatalf("unexpected result %+v", result.Payload)
	}
}

func TestWebSocketPracticeUsesConfiguredQuestionCount(t *testing.T) {
	srv := newTestServerWith(t, func(cfg *app.Config) { cfg.DefaultQuestionCount = 1 })
	c := dialWS(t, srv, url.Values{"subject": {"Complete MBBS"}})

	presented := c.readUntil("first question", statePhase("presented"))
	if presented.Payload["questionCount"].(float64) != 1 {
		t.Fatalf("expected configured question count, got %+v", presented.Payload)
	}
	c.send("select", map[string]any{"label": "A"})
	c.readUntil("answered state", statePhase("answered"))
	c.send("advance", nil)
	c.readUntil("complete state", statePhase("complete"))
}
