// Package main watches live vote events from the feed WebSocket.
// With -clients > 1 it doubles as a fan-out load check.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"pulse/internal/notifications"

	"github.com/gorilla/websocket"
)

// Metrics tracks the watch results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	scope := flag.String("scope", "all", "Feed scope: all, forum:<id> or post:<id>")
	token := flag.String("token", "", "Optional bearer token")
	clients := flag.Int("clients", 1, "Number of concurrent watchers")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	flag.Parse()

	log.Printf("👀 Watching %s on %s with %d client(s)", *scope, *host, *clients)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runWatcher(feedURL(*host, *scope, *token), i, *clients == 1, stopChan, &wg)
	}

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}
	select {
	case <-timeout:
		log.Println("⏱️  Duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	wg.Wait()

	printMetrics()
}

func feedURL(host, scope, token string) string {
	q := url.Values{}
	q.Set("scope", scope)
	if token != "" {
		q.Set("token", token)
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws/feed", RawQuery: q.Encode()}
	return u.String()
}

func runWatcher(target string, id int, verbose bool, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		log.Printf("Client %d: dial failed: %v", id, err)
		return
	}
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					select {
					case <-stopChan:
					default:
						atomic.AddInt64(&metrics.Errors, 1)
						log.Printf("Client %d: read error: %v", id, err)
					}
				}
				return
			}

			var evt notifications.VoteEvent
			if err := json.Unmarshal(msg, &evt); err != nil || evt.Type != notifications.EventVoteUpdated {
				if verbose {
					log.Printf("ℹ️  %s", msg)
				}
				continue
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
			if verbose {
				log.Printf("🗳️  %s %d  ▲%d ▼%d  (net %+d)", evt.SubjectType, evt.SubjectID,
					evt.Upvotes, evt.Downvotes, evt.Upvotes-evt.Downvotes)
			}
		}
	}()

	select {
	case <-stopChan:
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
	}
	_ = conn.Close()
}

func printMetrics() {
	fmt.Println("\n📊 Watch Results")
	fmt.Println("================")
	fmt.Printf("Connections Attempted: %d\n", metrics.ConnectionsAttempted)
	fmt.Printf("Connections Success:   %d\n", metrics.ConnectionsSuccess)
	fmt.Printf("Connections Failed:    %d\n", metrics.ConnectionsFailed)
	fmt.Printf("Events Received:       %d\n", metrics.EventsReceived)
	fmt.Printf("Errors:                %d\n", metrics.Errors)
}
