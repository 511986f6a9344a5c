// Package main is a terminal call simulator: you play the prospect, the agent
// answers over the live session socket.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/transport/ws"
)

// Client is a live session connection.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	done      chan struct{}
}

// startSession creates a session over the REST API and returns its id.
func startSession(baseURL, name, phone string, ring bool) (string, error) {
	body, _ := json.Marshal(domain.StartSessionRequest{
		Contact: domain.ContactSnapshot{Name: name, Phone: phone},
		Ring:    ring,
	})
	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Post(strings.TrimRight(baseURL, "/")+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return "", fmt.Errorf("start session: status %d: %s", resp.StatusCode, e.Error)
	}
	var started domain.StartSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	if started.RingStatus != domain.RingStatusSkipped {
		fmt.Printf("Ring: %s %s\n", started.RingStatus, started.RingError)
	}
	return started.Session.ID, nil
}

// NewClient connects to the live socket of a session.
func NewClient(baseURL, sessionID string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/v1/sessions/" + sessionID + "/live")
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{
		conn:      conn,
		sessionID: sessionID,
		done:      make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes one client frame.
func (c *Client) Send(frameType, content string) error {
	return c.conn.WriteJSON(ws.ClientFrame{Type: frameType, Content: content})
}

// ReadFrames prints server frames until the call ends or the socket closes.
func (c *Client) ReadFrames() {
	defer close(c.done)
	for {
		var frame ws.ServerFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch frame.Type {
		case ws.TypeReady:
			fmt.Printf("Connected to session %s. Type what the prospect says; /hangup ends the call.\n", frame.SessionID)
		case ws.TypeAgent:
			fmt.Printf("\nAgent: %s\n", frame.Text)
			if frame.EndCall {
				fmt.Println("(agent ended the call)")
			}
		case ws.TypeEnded:
			fmt.Println("Call ended.")
			return
		case ws.TypeError:
			fmt.Printf("\n[error %s] %s\n", frame.Code, frame.Message)
		}
		fmt.Print("> ")
	}
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Server base address")
	sessionID := flag.String("session", "", "Existing session ID (a new one is started when empty)")
	name := flag.String("name", "", "Contact name for a new session")
	phone := flag.String("phone", "", "Contact phone for a new session")
	ring := flag.Bool("ring", false, "Ring the contact's phone when starting a new session")
	flag.Parse()

	log.SetFlags(log.Ltime)

	id := *sessionID
	if id == "" {
		var err error
		id, err = startSession(*addr, *name, *phone, *ring)
		if err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
	}

	client, err := NewClient(*addr, id)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	go client.ReadFrames()

	if err := client.Send(ws.TypeOpen, ""); err != nil {
		log.Fatalf("Failed to open call: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-client.done:
			return
		case <-interrupt:
			_ = client.Send(ws.TypeHangup, "")
			<-client.done
			return
		case line, ok := <-lines:
			if !ok {
				_ = client.Send(ws.TypeHangup, "")
				<-client.done
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				fmt.Print("> ")
			case line == "/hangup":
				if err := client.Send(ws.TypeHangup, ""); err != nil {
					log.Printf("Failed to hang up: %v", err)
					return
				}
			default:
				if err := client.Send(ws.TypeUser, line); err != nil {
					log.Printf("Failed to send: %v", err)
					return
				}
			}
		}
	}
}
