package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/fasthttp/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string  `env:"MESSENGER_ADDR,default=localhost:8080"`
	Email         string  `env:"CHAT_EMAIL,required=true"`
	Password      string  `env:"CHAT_PASSWORD,required=true"`
	ChatID        string  `env:"CHAT_ID,required=true"`
	LastSeq       *uint64 `env:"CHAT_LAST_SEQ"`
	LogLevel      string  `env:"LOG_LEVEL,required=true"`
}

// frame mirrors the socket protocol. Type selects which fields matter.
type frame struct {
	Type      string    `json:"type"`
	Sender    string    `json:"sender,omitempty"`
	User      string    `json:"user,omitempty"`
	Seq       uint64    `json:"seq,omitempty"`
	Text      string    `json:"text,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the session lifecycle: configuration, login, the websocket
// stream, and the stdin send loop. Received messages go straight to stdout;
// everything operational goes through the logger.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Exchange credentials for an access token.
	self, token, err := login(ctx, config)
	if err != nil {
		return exitRuntime, fmt.Errorf("login failed: %w", err)
	}

	// 4. Open the chat socket, resuming from CHAT_LAST_SEQ when set.
	socketURL := fmt.Sprintf("ws://%s/ws/%s?token=%s", config.ServerAddress, config.ChatID, token)
	if config.LastSeq != nil {
		socketURL = fmt.Sprintf("%s&last_seq=%d", socketURL, *config.LastSeq)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	log.Info("Connected, type a line to send it", "chat", config.ChatID, "user", self)

	// 5. Reception loop, feeding stdout. Runs until the server closes the
	// stream or the context is canceled.
	errs := make(chan error, 1)
	go func() {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				errs <- err
				return
			}
			display(f, self)
		}
	}()

	// 6. Send loop: every stdin line becomes one message frame.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if err := conn.WriteJSON(frame{Type: "message", Text: text}); err != nil {
				errs <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		return exitOK, nil
	case err := <-errs:
		// Normal exit if the user triggered a shutdown.
		if ctx.Err() != nil {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("stream error: %w", err)
	}
}

// login resolves the account's id and an access token through the REST API.
func login(ctx context.Context, config Config) (string, string, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    config.Email,
		"password": config.Password,
	})
	if err != nil {
		return "", "", err
	}

	url := fmt.Sprintf("http://%s/api/v1/auth/login", config.ServerAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var auth struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", "", err
	}
	return auth.User.ID, auth.Tokens.AccessToken, nil
}

// display renders one incoming frame for the terminal.
func display(f frame, self string) {
	switch f.Type {
	case "message":
		sender := shorten(f.Sender)
		if f.Sender == self {
			sender = "you"
		}
		fmt.Printf("[%s] %s: %s\n", f.CreatedAt.Local().Format(time.TimeOnly), sender, f.Text)
	case "read":
		fmt.Printf("    ✓ %s read up to #%d\n", shorten(f.User), f.Seq)
	case "error":
		fmt.Printf("    ! server: %s\n", f.Reason)
	}
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
