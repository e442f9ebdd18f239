package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

// BaseRestSuite drives a live server over its public HTTP and
// WebSocket surface, with logging, colors, and JSON debugging.
type BaseRestSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRestSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.Addr == "" {
		s.T().Skip("MESSENGER_ADDR is not set, skipping e2e")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}
}

// Step prints a colorized header for a scenario step in logs
func (s *BaseRestSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Do sends one JSON request, decodes the JSON answer into out when both
// are non-nil, and returns the status code. Bodies are logged when
// E2E_DEBUG_JSON is enabled.
func (s *BaseRestSuite) Do(method, path, token string, body, out any) int {
	var reader io.Reader
	var sent []byte
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		sent = raw
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, "http://"+s.Config.Addr+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "Failed to reach "+path)
	defer resp.Body.Close()

	answer, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		if sent != nil {
			fmt.Fprintln(&logBuilder, "\nREQUEST:")
			fmt.Fprint(&logBuilder, string(sent))
		}
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprint(&logBuilder, string(answer))
	}
	s.T().Log(logBuilder.String())

	if out != nil && len(answer) > 0 {
		s.Require().NoError(json.Unmarshal(answer, out))
	}
	return resp.StatusCode
}

// wireFrame is the client-side view of every socket frame, inbound and
// outbound. Type selects which fields matter.
type wireFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Chat      string `json:"chat,omitempty"`
	Sender    string `json:"sender,omitempty"`
	User      string `json:"user,omitempty"`
	Seq       uint64 `json:"seq,omitempty"`
	Text      string `json:"text,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SocketURL builds the upgrade URL for a chat, optionally resuming
// after lastSeq.
func (s *BaseRestSuite) SocketURL(chatID, token string, lastSeq *uint64) string {
	url := fmt.Sprintf("ws://%s/ws/%s?token=%s", s.Config.Addr, chatID, token)
	if lastSeq != nil {
		url = fmt.Sprintf("%s&last_seq=%d", url, *lastSeq)
	}
	return url
}

// Socket opens a websocket on a chat and fails the suite if the
// handshake is refused.
func (s *BaseRestSuite) Socket(chatID, token string, lastSeq *uint64) *websocket.Conn {
	url := s.SocketURL(chatID, token, lastSeq)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	s.Require().NoError(err, "Failed to open websocket at "+url)
	return conn
}

// NextFrame reads one frame off the socket within the deadline
func (s *BaseRestSuite) NextFrame(conn *websocket.Conn, timeout time.Duration) wireFrame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(timeout)))
	var frame wireFrame
	s.Require().NoError(conn.ReadJSON(&frame))
	return frame
}

func (s *BaseRestSuite) SendFrame(conn *websocket.Conn, frame wireFrame) {
	s.Require().NoError(conn.WriteJSON(frame))
}
