package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ironinsights/iron-insights/internal/ipc"
	"github.com/ironinsights/iron-insights/internal/scoring"
)

// statsTickInterval is how often a StatsUpdate is broadcast (spec.md §4.9).
const statsTickInterval = 5 * time.Second

// Hub owns the set of live sessions and the periodic broadcasts sent to
// them, grounded in the teacher's atomic-counter bookkeeping
// (internal/eval/tablebase_pool.go) generalized from a single evaluation
// pool to a set of independently-driven reader/writer goroutines per
// session, the idiomatic Go shape for a websocket fan-out hub.
type Hub struct {
	log     zerolog.Logger
	state   *ActivityState
	upgrade websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// NewHub builds a Hub backed by state.
func NewHub(state *ActivityState, log zerolog.Logger) *Hub {
	return &Hub{
		log:      log,
		state:    state,
		sessions: make(map[*Session]struct{}),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the periodic StatsUpdate ticker; it blocks until ctx is
// cancelled, at which point every live session is sent a close frame
// (spec.md §5 "the broadcaster's final tick is allowed to drain").
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(statsTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll("server shutting down")
			return
		case <-ticker.C:
			h.broadcastStats()
			h.reapIdleSessions()
		}
	}
}

// ServeWS upgrades r to a websocket, registers the session, and drives
// its read loop until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := newSession(conn, h.log)
	h.state.OnConnect()
	defer h.state.OnDisconnect()

	h.addSession(s)
	defer h.removeSession(s)

	h.readLoop(s)
}

func (h *Hub) addSession(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) removeSession(s *Session) {
	h.mu.Lock()
	_, existed := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()
	if existed && s.Phase() == Live {
		h.state.OnSessionClosed()
	}
	s.close("connection closed")
}

func (h *Hub) readLoop(s *Session) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.touch()

		switch s.Phase() {
		case Handshaking:
			if s.handleConnect(raw) {
				h.state.OnSessionLive()
			}
		case Live:
			update, ok := s.handleUserUpdate(raw)
			if !ok {
				continue
			}
			h.onUserUpdate(s, update)
		case Closing:
			return
		}
	}
}

// onUserUpdate computes the resulting DOTS score and strength level,
// records it in the activity ring buffer, and broadcasts DotsCalculation
// and UserActivity to every live session including the originator
// (spec.md §9 open question, resolved as self-echo).
func (h *Hub) onUserUpdate(origin *Session, u *UserUpdate) {
	sex, ok := scoring.ParseSex(u.Sex)
	if !ok {
		return
	}
	lift, liftType := u.Squat, "squat"
	switch u.LiftType {
	case "bench":
		lift, liftType = u.Bench, "bench"
	case "deadlift":
		lift, liftType = u.Deadlift, "deadlift"
	case "squat", "":
		lift, liftType = u.Squat, "squat"
	}
	if lift <= 0 {
		return
	}

	dots := scoring.DOTS(sex, lift, u.BodyweightKg)
	if !(dots > 0) {
		return
	}
	liftKind, _ := scoring.ParseLiftType(liftType)
	level := scoring.StrengthLevel(dots, liftKind, sex)

	h.state.RecordCalculation(Calculation{
		Timestamp: time.Now(),
		Sex:       u.Sex,
		LiftType:  liftType,
		DOTS:      dots,
		Level:     level,
	})

	h.broadcastDotsCalculation(level, dots, liftType)
	h.broadcastUserActivity()
}

func (h *Hub) liveSessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		if s.Phase() == Live {
			out = append(out, s)
		}
	}
	return out
}

type statsUpdateMsg struct {
	Type              string  `json:"type"`
	ActiveUsers       int64   `json:"active_users"`
	TotalConnections  int64   `json:"total_connections"`
	ServerLoad        float64 `json:"server_load"`
}

func (h *Hub) broadcastStats() {
	h.state.UpdateLoadEstimate(1000)
	snap := h.state.Snapshot()
	msg := statsUpdateMsg{
		Type:             "stats_update",
		ActiveUsers:      snap.ActiveSessions,
		TotalConnections: snap.Connections,
		ServerLoad:       snap.ServerLoad,
	}
	h.broadcastEvent(msg, ipc.EventRow{
		Type:             "stats_update",
		ActiveUsers:      float64(snap.ActiveSessions),
		TotalConnections: float64(snap.Connections),
		ServerLoad:       snap.ServerLoad,
	})
}

type userActivityMsg struct {
	Type             string        `json:"type"`
	RecentCalculations []Calculation `json:"recent_calculations"`
	UserCount        int64         `json:"user_count"`
}

func (h *Hub) broadcastUserActivity() {
	userCount := h.state.Snapshot().ActiveSessions
	msg := userActivityMsg{
		Type:               "user_activity",
		RecentCalculations: h.state.RecentCalculations(),
		UserCount:          userCount,
	}
	h.broadcastEvent(msg, ipc.EventRow{
		Type:        "user_activity",
		ActiveUsers: float64(userCount),
	})
}

type dotsCalculationMsg struct {
	Type          string  `json:"type"`
	StrengthLevel string  `json:"strength_level"`
	DotsScore     float64 `json:"dots_score"`
	LiftType      string  `json:"lift_type"`
}

func (h *Hub) broadcastDotsCalculation(level scoring.Level, dots float64, liftType string) {
	msg := dotsCalculationMsg{
		Type:          "dots_calculation",
		StrengthLevel: level.String(),
		DotsScore:     dots,
		LiftType:      liftType,
	}
	h.broadcastEvent(msg, ipc.EventRow{
		Type:          "dots_calculation",
		StrengthLevel: level.String(),
		DotsScore:     dots,
		LiftType:      liftType,
	})
}

// broadcastEvent sends msg to every live session that did not negotiate
// supports_arrow, and the equivalent one-row columnar IPC frame (built
// from row) to every session that did (spec.md §4.9: "broadcasts are
// sent as a compact columnar IPC frame" for arrow-capable peers; §6:
// "binary frames are columnar IPC with a fixed schema whose first
// column is the event discriminant"). The JSON encode and IPC encode
// each run at most once per broadcast regardless of session count.
func (h *Hub) broadcastEvent(msg any, row ipc.EventRow) {
	sessions := h.liveSessions()

	var jsonData []byte
	var binaryData []byte

	for _, s := range sessions {
		if s.SupportsArrow {
			if binaryData == nil {
				encoded, err := ipc.EncodeEvents([]ipc.EventRow{row})
				if err != nil {
					h.log.Error().Err(err).Msg("failed to encode broadcast event")
					return
				}
				binaryData = encoded
			}
			s.send(binaryData, true)
			continue
		}
		if jsonData == nil {
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error().Err(err).Msg("failed to marshal broadcast message")
				return
			}
			jsonData = data
		}
		s.send(jsonData, false)
	}
}

func (h *Hub) reapIdleSessions() {
	for _, s := range h.liveSessions() {
		if s.idleFor() > heartbeatTimeout {
			h.log.Info().Str("session_id", s.ID).Msg("closing session on heartbeat timeout")
			h.removeSession(s)
		}
	}
}

func (h *Hub) closeAll(reason string) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()
	for _, s := range sessions {
		s.close(reason)
	}
}
