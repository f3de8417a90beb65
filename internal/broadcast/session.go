package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SessionPhase is a session's position in the state machine from
// spec.md §4.9.
type SessionPhase int

const (
	Handshaking SessionPhase = iota
	Live
	Closing
)

func (p SessionPhase) String() string {
	switch p {
	case Live:
		return "live"
	case Closing:
		return "closing"
	default:
		return "handshaking"
	}
}

// heartbeatTimeout is the idle duration after which a Live session
// transitions to Closing (spec.md §4.9).
const heartbeatTimeout = 60 * time.Second

// UserUpdate is the peer-supplied bodyweight/lift/sex tuple a session
// carries once handshaked.
type UserUpdate struct {
	BodyweightKg float64 `json:"bodyweight_kg"`
	Squat        float64 `json:"squat_kg,omitempty"`
	Bench        float64 `json:"bench_kg,omitempty"`
	Deadlift     float64 `json:"deadlift_kg,omitempty"`
	LiftType     string  `json:"lift_type"`
	Sex          string  `json:"sex"`
}

// connectFrame is the wire shape of the peer's initial Connect message.
type connectFrame struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	UserAgent     string `json:"user_agent"`
	SupportsArrow bool   `json:"supports_arrow"`
}

// userUpdateFrame is the wire shape of a peer's UserUpdate message.
type userUpdateFrame struct {
	Type         string  `json:"type"`
	BodyweightKg float64 `json:"bodyweight_kg"`
	Squat        float64 `json:"squat_kg"`
	Bench        float64 `json:"bench_kg"`
	Deadlift     float64 `json:"deadlift_kg"`
	LiftType     string  `json:"lift_type"`
	Sex          string  `json:"sex"`
}

// Session is one open websocket connection's server-side bookkeeping
// (spec.md §3 "Session record").
type Session struct {
	ID            string
	CreatedAt     time.Time
	SupportsArrow bool

	conn *websocket.Conn
	log  zerolog.Logger

	mu       sync.Mutex
	phase    SessionPhase
	lastSeen time.Time
	lastUpdate *UserUpdate

	sendMu sync.Mutex
}

func newSession(conn *websocket.Conn, log zerolog.Logger) *Session {
	return &Session{
		conn:      conn,
		log:       log,
		phase:     Handshaking,
		CreatedAt: time.Now(),
		lastSeen:  time.Now(),
	}
}

// Phase returns the session's current state-machine phase.
func (s *Session) Phase() SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastUpdate returns the most recent UserUpdate the session reported,
// if any.
func (s *Session) LastUpdate() (*UserUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastUpdate == nil {
		return nil, false
	}
	cp := *s.lastUpdate
	return &cp, true
}

// idleFor reports how long the session has gone without a peer message.
func (s *Session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}

// touch records that a message was just received from the peer.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// handleConnect processes the peer's first message. Only a well-formed
// Connect frame (session id, user agent, supports_arrow) transitions
// Handshaking to Live (spec.md §4.9); anything else is logged and
// ignored, leaving the session in Handshaking.
func (s *Session) handleConnect(raw []byte) bool {
	var f connectFrame
	if err := json.Unmarshal(raw, &f); err != nil || f.Type != "connect" || f.SessionID == "" {
		s.log.Warn().Err(err).Msg("malformed connect frame, ignoring")
		return false
	}
	s.mu.Lock()
	s.ID = f.SessionID
	s.SupportsArrow = f.SupportsArrow
	s.phase = Live
	s.mu.Unlock()
	return true
}

// handleUserUpdate parses a UserUpdate frame. Returns the update and
// true on success; a malformed frame is logged and ignored without
// changing phase.
func (s *Session) handleUserUpdate(raw []byte) (*UserUpdate, bool) {
	var f userUpdateFrame
	if err := json.Unmarshal(raw, &f); err != nil || f.Type != "user_update" || f.BodyweightKg <= 0 {
		s.log.Warn().Err(err).Msg("malformed user_update frame, ignoring")
		return nil, false
	}
	u := &UserUpdate{
		BodyweightKg: f.BodyweightKg,
		Squat:        f.Squat,
		Bench:        f.Bench,
		Deadlift:     f.Deadlift,
		LiftType:     f.LiftType,
		Sex:          f.Sex,
	}
	s.mu.Lock()
	s.lastUpdate = u
	s.mu.Unlock()
	return u, true
}

// close transitions the session to Closing and sends a close frame,
// best-effort.
func (s *Session) close(reason string) {
	s.mu.Lock()
	if s.phase == Closing {
		s.mu.Unlock()
		return
	}
	s.phase = Closing
	s.mu.Unlock()

	s.sendMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(time.Second))
	s.sendMu.Unlock()
	_ = s.conn.Close()
}

// send writes a message to the peer, best-effort: a write that would
// block is treated as a slow receiver and the session is closed rather
// than allowed to stall the broadcaster (spec.md §4.9).
func (s *Session) send(payload []byte, binary bool) bool {
	if s.Phase() != Live {
		return false
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	msgType := websocket.TextMessage
	if binary {
		msgType = websocket.BinaryMessage
	}
	if err := s.conn.WriteMessage(msgType, payload); err != nil {
		s.log.Debug().Err(err).Str("session_id", s.ID).Msg("dropping slow or closed session")
		go s.close("write failed")
		return false
	}
	return true
}
