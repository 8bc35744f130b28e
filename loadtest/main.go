package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type AuthResponse struct {
	Token    string `json:"accessToken"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var (
	baseURL   = flag.String("base", "http://localhost:8080", "server base url")
	userCount = flag.Int("pairs", 500, "number of user pairs") // ⚠️ Start small. Postgres might choke on 1000 immediately.
	msgCount  = flag.Int("messages", 20, "messages per user")

	sent      atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
)

func main() {
	flag.Parse()
	log.Printf("🔥 STARTING STRESS TEST: %d Users, %d Messages each...", *userCount*2, *msgCount)
	start := time.Now()
	var wg sync.WaitGroup

	// We will create pairs: User 0a talks to User 0b, User 1a talks to User 1b...
	for i := 0; i < *userCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Printf("✅ LOAD TEST COMPLETE in %s: sent=%d delivered=%d failed=%d",
		time.Since(start).Round(time.Millisecond), sent.Load(), delivered.Load(), failed.Load())
}

func runPair(pairID int) {
	// 1. Define Users (usernames must be alphanumeric)
	userA := fmt.Sprintf("lt%da", pairID)
	userB := fmt.Sprintf("lt%db", pairID)
	pass := "password123"

	// 2. Register & Login
	a := authenticate(userA, pass)
	b := authenticate(userB, pass)
	if a == nil || b == nil {
		failed.Add(1)
		return
	}

	// 3. Connect both sides before anyone talks, so nothing lands offline
	connA := connect(a)
	connB := connect(b)
	if connA == nil || connB == nil {
		failed.Add(1)
		return
	}
	defer connA.Close()
	defer connB.Close()

	// 4. Start WebSocket Spam (Both sides)
	var wsWg sync.WaitGroup
	wsWg.Add(4)
	go spamChat(&wsWg, connA, a, b.ID)
	go spamChat(&wsWg, connB, b, a.ID)
	go drain(&wsWg, connA, a.Username)
	go drain(&wsWg, connB, b.Username)
	wsWg.Wait()
}

// authenticate registers (ignores error if exists) and logs in
func authenticate(username, password string) *AuthResponse {
	creds := map[string]string{"username": username, "password": password}
	if resp, err := postJSON("/api/auth/register", creds); err == nil {
		resp.Body.Close()
	}

	resp, err := postJSON("/api/auth/login", creds)
	if err != nil {
		log.Printf("❌ Login Failed [%s]: %v", username, err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ Login Failed [%s]: status %d", username, resp.StatusCode)
		return nil
	}

	var data AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Printf("❌ Login Decode Failed [%s]: %v", username, err)
		return nil
	}
	return &data
}

func connect(user *AuthResponse) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(*baseURL, "http") + "/ws?token=" + user.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", user.Username, err)
		return nil
	}
	return conn
}

func spamChat(wg *sync.WaitGroup, conn *websocket.Conn, from *AuthResponse, toID string) {
	defer wg.Done()

	// Spam Loop
	for i := 0; i < *msgCount; i++ {
		msg := map[string]any{
			"event": "private_message",
			"data": map[string]string{
				"recipientId": toID,
				"content":     fmt.Sprintf("LoadTest Msg %d from %s", i, from.Username),
			},
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("❌ Send Fail [%s]: %v", from.Username, err)
			failed.Add(1)
			return
		}
		sent.Add(1)
		// Small sleep to prevent instant localhost bottleneck (simulate real network)
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("✅ %s finished sending %d msgs", from.Username, *msgCount)
}

// drain reads until the peer's messages all arrived or the line goes quiet.
func drain(wg *sync.WaitGroup, conn *websocket.Conn, user string) {
	defer wg.Done()

	received := 0
	for received < *msgCount {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			log.Printf("❌ Receive Fail [%s] after %d msgs: %v", user, received, err)
			failed.Add(1)
			return
		}
		switch env.Event {
		case "new_message":
			received++
			delivered.Add(1)
		case "error":
			log.Printf("❌ Server Error [%s]: %s", user, env.Data)
			failed.Add(1)
		}
	}
}

func postJSON(endpoint string, data any) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	return http.Post(*baseURL+endpoint, "application/json", bytes.NewBuffer(jsonData))
}
