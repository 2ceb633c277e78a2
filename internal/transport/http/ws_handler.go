package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"medquiz-service/internal/app"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/identity"
	"medquiz-service/internal/session"
	"medquiz-service/internal/setup"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
	sendBuffer   = 32
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

// NewWSHandler builds the session endpoint. A nil checkOrigin accepts every
// origin.
func NewWSHandler(service *app.QuizService, checkOrigin func(*http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Label string `json:"label"`
}

type doubtPayload struct {
	Text string `json:"text"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type noticePayload struct {
	Message string `json:"message"`
}

type adPayload struct {
	Kind         string `json:"kind"`
	ContainerRef string `json:"containerRef,omitempty"`
}

var errConnClosed = errors.New("websocket closed")

// wsConn funnels every outbound message through one writer goroutine.
// send is never closed; senders give up once done is closed.
type wsConn struct {
	send chan outboundMessage[any]
	done chan struct{}
	once sync.Once
}

func newWSConn() *wsConn {
	return &wsConn{
		send: make(chan outboundMessage[any], sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) push(typ string, payload any) bool {
	select {
	case <-c.done:
		return false
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
		return true
	}
}

func (c *wsConn) pushError(err error) bool {
	_, code := classify(err)
	return c.push("error", errorPayload{Code: code, Message: err.Error()})
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsConn) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.done:
			c.drain(conn)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case msg := <-c.send:
			if !c.write(conn, msg) {
				return
			}
		}
	}
}

// drain flushes messages queued before close, such as a final error.
func (c *wsConn) drain(conn *websocket.Conn) {
	for {
		select {
		case msg := <-c.send:
			if !c.write(conn, msg) {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(conn *websocket.Conn, msg outboundMessage[any]) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		glog.V(1).Infof("ws write error: %v", err)
		c.close()
		return false
	}
	return true
}

// adPlatform delivers ad requests to the connected client, which owns the
// native ad SDK.
type adPlatform struct {
	conn *wsConn
}

func (p adPlatform) RequestInterstitial(ctx context.Context) error {
	return p.request(ctx, adPayload{Kind: "interstitial"})
}

func (p adPlatform) RequestNative(ctx context.Context, containerRef string) error {
	return p.request(ctx, adPayload{Kind: "native", ContainerRef: containerRef})
}

func (p adPlatform) RequestRewarded(ctx context.Context) error {
	return p.request(ctx, adPayload{Kind: "rewarded"})
}

func (p adPlatform) request(ctx context.Context, ad adPayload) error {
	select {
	case <-p.conn.done:
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.conn.send <- outboundMessage[any]{Type: "ad", Payload: ad}:
		return nil
	}
}

// ServeWS upgrades the request and runs one quiz session over it.
// ?quizId=... attempts a custom quiz; otherwise the query carries practice
// settings (subject, chapter, topic, difficulty, questionCount, timeLimit).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user := identity.FromContext(r.Context())
	query := r.URL.Query()

	var settings domain.QuizSettings
	quizID := query.Get("quizId")
	if quizID == "" {
		var err error
		if settings, err = h.service.PracticeSettings(rawSettings(query)); err != nil {
			ReturnError(w, r, err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newWSConn()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(conn)
	}()
	defer func() {
		c.close()
		<-writerDone
	}()

	var sess *app.Session
	if quizID != "" {
		sess, err = h.service.StartAttempt(ctx, quizID, user, adPlatform{conn: c})
	} else {
		sess, err = h.service.StartPractice(ctx, settings, user, adPlatform{conn: c})
	}
	if sess == nil {
		c.pushError(err)
		return
	}
	defer h.service.CloseSession(sess.ID())
	glog.V(1).Infof("ws session %s opened for user %s", sess.ID(), sess.User().ID)

	ctrl := sess.Controller()
	events, unsubscribe := ctrl.Subscribe()
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for ev := range events {
			if ev.Type == session.EventTimeUp && ev.Notice != "" {
				c.push("notice", noticePayload{Message: ev.Notice})
			}
			c.push("state", newStateView(ev.State))
			if ev.Type == session.EventComplete {
				pushResult(c, sess)
			}
		}
	}()
	defer func() {
		unsubscribe()
		<-pumpDone
	}()

	if err != nil {
		// First question failed to load; the client may send reload.
		c.pushError(err)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.V(1).Infof("ws session %s read error: %v", sess.ID(), err)
			}
			break
		}
		h.handle(ctx, c, sess, inbound)
	}
	glog.V(1).Infof("ws session %s closed", sess.ID())
}

func (h *WSHandler) handle(ctx context.Context, c *wsConn, sess *app.Session, msg inboundMessage) {
	ctrl := sess.Controller()
	switch msg.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.push("error", errorPayload{Code: "badrequest", Message: "invalid select payload"})
			return
		}
		label, err := domain.ParseLabel(payload.Label)
		if err != nil {
			c.pushError(err)
			return
		}
		// A rejected repeat selection is a silent no-op.
		if _, err := ctrl.SelectAnswer(label); err != nil {
			c.pushError(err)
		}
	case "explanation":
		if _, err := ctrl.ToggleExplanation(); err != nil {
			c.pushError(err)
		}
	case "advance":
		phase, err := ctrl.Advance()
		if err != nil {
			c.pushError(err)
			return
		}
		// Completion is reported by the event pump, after the complete state.
		if phase == domain.PhaseLoading {
			go h.load(ctx, c, ctrl)
		}
	case "reload":
		go h.load(ctx, c, ctrl)
	case "doubt":
		var payload doubtPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.push("error", errorPayload{Code: "badrequest", Message: "invalid doubt payload"})
			return
		}
		go func() {
			if err := ctrl.AskDoubt(ctx, payload.Text); err != nil {
				c.pushError(err)
			}
		}()
	case "finish":
		if err := ctrl.Finish(); err != nil {
			c.pushError(err)
		}
	case "submit":
		go func() {
			result, err := h.service.SubmitResult(ctx, sess.ID())
			if err != nil {
				c.pushError(err)
				return
			}
			c.push("result", result)
		}()
	default:
		c.push("error", errorPayload{Code: "badrequest", Message: "unsupported message type"})
	}
}

func (h *WSHandler) load(ctx context.Context, c *wsConn, ctrl *session.Controller) {
	if err := ctrl.Load(ctx); err != nil {
		c.pushError(err)
	}
}

func pushResult(c *wsConn, sess *app.Session) {
	if result, ok := sess.Result(); ok {
		c.push("result", result)
	}
}

func rawSettings(q url.Values) setup.Raw {
	return setup.Raw{
		Subject:       q.Get("subject"),
		Chapter:       q.Get("chapter"),
		Topic:         q.Get("topic"),
		Difficulty:    q.Get("difficulty"),
		QuestionCount: q.Get("questionCount"),
		TimeLimit:     q.Get("timeLimit"),
	}
}
