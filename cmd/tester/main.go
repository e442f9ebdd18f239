package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

// Shared by every generated account; strong enough for the register validator.
const password = "LoadTest123!"

type account struct {
	ID    string
	Email string
	Token string
}

func main() {
	addr := flag.String("addr", "localhost:8080", "Server address")
	users := flag.Int("users", 5, "Number of accounts")
	messages := flag.Int("messages", 20, "Messages sent per account")
	interval := flag.Duration("interval", 50*time.Millisecond, "Delay between two sends of one account")
	timeout := flag.Duration("timeout", 30*time.Second, "Delivery wait limit")
	flag.Parse()

	// 1. Enregistrement des comptes de charge (emails uniques par run)
	run := uuid.New().String()[:8]
	accounts := make([]account, *users)
	for i := range accounts {
		accounts[i] = register(*addr, fmt.Sprintf("load-%s-%d@tester.local", run, i), i)
	}
	fmt.Printf("Registered %d accounts\n", len(accounts))

	// 2. Le premier compte ouvre un salon avec tout le monde
	chatID := createGroup(*addr, accounts, "load-"+run)
	fmt.Printf("Group chat %s ready\n", chatID)

	// 3. Une socket par compte; chacune compte les frames reçues
	var delivered atomic.Int64
	conns := make([]*websocket.Conn, len(accounts))
	for i, acc := range accounts {
		socketURL := fmt.Sprintf("ws://%s/ws/%s?token=%s", *addr, chatID, acc.Token)
		conn, _, err := websocket.DefaultDialer.Dial(socketURL, nil)
		if err != nil {
			log.Fatalf("socket %d: %v", i, err)
		}
		conns[i] = conn
		go func(conn *websocket.Conn) {
			for {
				var frame struct {
					Type string `json:"type"`
				}
				if err := conn.ReadJSON(&frame); err != nil {
					return
				}
				if frame.Type == "message" {
					delivered.Add(1)
				}
			}
		}(conn)
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	// 4. Envoi de la charge, un expéditeur par compte
	start := time.Now()
	var wg sync.WaitGroup
	for i := range accounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 1; n <= *messages; n++ {
				frame := map[string]string{
					"type": "message",
					"text": fmt.Sprintf("load %d from account %d", n, i),
				}
				if err := conns[i].WriteJSON(frame); err != nil {
					log.Fatalf("send from %d: %v", i, err)
				}
				time.Sleep(*interval)
			}
		}(i)
	}
	wg.Wait()
	sent := int64(*users) * int64(*messages)

	// 5. Attente de la livraison complète: chaque message doit atteindre
	// chaque socket, y compris celle de l'expéditeur
	expected := sent * int64(*users)
	deadline := time.Now().Add(*timeout)
	for delivered.Load() < expected && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	elapsed := time.Since(start)

	// 6. Bilan
	fmt.Printf("\n--- [Bilan] ---\n")
	fmt.Printf("Sent:      %d messages\n", sent)
	fmt.Printf("Delivered: %d/%d frames\n", delivered.Load(), expected)
	fmt.Printf("Duration:  %v (%.0f msg/s accepted)\n", elapsed.Round(time.Millisecond), float64(sent)/elapsed.Seconds())
	printHealth(*addr)

	if delivered.Load() < expected {
		log.Fatal("incomplete delivery, see /healthz counters")
	}
}

func register(addr, email string, n int) account {
	payload := map[string]string{
		"email":        email,
		"display_name": fmt.Sprintf("Load %d", n),
		"password":     password,
	}
	var out struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	post(addr, "/api/v1/users", "", payload, &out, http.StatusCreated)
	return account{ID: out.User.ID, Email: email, Token: out.Tokens.AccessToken}
}

func createGroup(addr string, accounts []account, name string) string {
	members := make([]string, len(accounts))
	for i, acc := range accounts {
		members[i] = acc.ID
	}
	payload := map[string]any{"kind": "group", "name": name, "member_ids": members}
	var out struct {
		ID string `json:"id"`
	}
	post(addr, "/api/v1/chats", accounts[0].Token, payload, &out, http.StatusCreated)
	return out.ID
}

func post(addr, path, token string, payload, out any, want int) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, "http://"+addr+path, bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		log.Fatalf("POST %s: status %d: %s", path, resp.StatusCode, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("POST %s: decode: %v", path, err)
	}
}

func printHealth(addr string) {
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		log.Printf("healthz: %v", err)
		return
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	fmt.Printf("Server:    %s\n", raw)
}
