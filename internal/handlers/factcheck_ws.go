package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/news-guard/newsguard/internal/auth"
	"github.com/news-guard/newsguard/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	checkWSReadLimit    = 16 << 20 // image data URIs are large
	checkWSReadTimeout  = 10 * time.Minute
	checkWSWriteTimeout = 30 * time.Second
)

var checkWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// checkWSInMessage is the JSON shape sent from the client.
type checkWSInMessage struct {
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// checkWSOutMessage is the JSON shape sent to the client.
type checkWSOutMessage struct {
	Type     string      `json:"type"`
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// CheckWS handles GET /v1/factcheck/ws — WebSocket surface for clients that
// keep a connection open across multiple (long-running) checks. Auth happens
// at upgrade time via the normal middleware.
func (h *Handler) CheckWS(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := checkWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("factcheck ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(checkWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(checkWSReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(checkWSReadTimeout))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Debug().Err(err).Msg("factcheck ws read")
			return
		}
		conn.SetReadDeadline(time.Now().Add(checkWSReadTimeout))

		var in checkWSInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = writeWSJSON(conn, checkWSOutMessage{Type: "result", Error: "invalid JSON: " + err.Error()})
			continue
		}
		if in.Type != "call" {
			_ = writeWSJSON(conn, checkWSOutMessage{Type: "result", Error: "expected type: call"})
			continue
		}

		out := h.dispatchWSCall(r, userID, in)
		if err := writeWSJSON(conn, out); err != nil {
			log.Debug().Err(err).Msg("factcheck ws write")
			return
		}
	}
}

func (h *Handler) dispatchWSCall(r *http.Request, userID uuid.UUID, in checkWSInMessage) checkWSOutMessage {
	switch in.Action {
	case "check_text":
		var req models.TextCheckRequest
		if err := json.Unmarshal(in.Params, &req); err != nil {
			return checkWSOutMessage{Type: "result", Error: "invalid params: " + err.Error()}
		}
		if err := validateTextRequest(&req); err != nil {
			return checkWSOutMessage{Type: "result", Error: err.Error()}
		}
		result, err := h.analysis.AnalyzeText(r.Context(), userID, &req)
		if err != nil {
			return checkWSOutMessage{Type: "result", Error: err.Error()}
		}
		return checkWSOutMessage{Type: "result", Response: result}
	case "check_image":
		var req models.ImageCheckRequest
		if err := json.Unmarshal(in.Params, &req); err != nil {
			return checkWSOutMessage{Type: "result", Error: "invalid params: " + err.Error()}
		}
		if err := validateImageRequest(&req); err != nil {
			return checkWSOutMessage{Type: "result", Error: err.Error()}
		}
		result, err := h.analysis.AnalyzeImage(r.Context(), userID, &req)
		if err != nil {
			return checkWSOutMessage{Type: "result", Error: err.Error()}
		}
		return checkWSOutMessage{Type: "result", Response: result}
	default:
		return checkWSOutMessage{Type: "result", Error: "unknown action: " + in.Action}
	}
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(checkWSWriteTimeout))
	return conn.WriteJSON(v)
}
