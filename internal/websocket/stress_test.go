package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/protocol"
)

func TestStressConcurrentBroadcast(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	const (
		numClients        = 50
		messagesPerClient = 20
		total             = numClients * messagesPerClient
	)

	server, url := newTestServer(t, &ServerConfig{
		RateLimitConfig: &RateLimitConfig{MessagesPerSecond: 1000, Burst: 2000, Enabled: true},
	})
	err := server.Handle(protocol.KindChat, func(ctx context.Context, conn realmnet.Conn, msg protocol.ClientMessage) error {
		in := msg.(*protocol.Chat)
		_, err := server.Broadcast(ctx, &protocol.ChatReceived{
			Channel:  in.Channel,
			SenderID: conn.ID(),
			Content:  in.Content,
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	conns := make([]*websocket.Conn, numClients)
	for i := range conns {
		conns[i] = dial(t, url)
		if kind := readMessage(t, conns[i]).Kind(); kind != protocol.KindSystemNotice {
			t.Fatalf("expected welcome notice, got %s", kind)
		}
	}
	waitFor(t, func() bool { return server.Connections() == numClients })

	received := make([]atomic.Int64, numClients)
	var readers sync.WaitGroup
	for i, conn := range conns {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if msg, err := protocol.ParseServer(data); err == nil && msg.Kind() == protocol.KindChatReceived {
					if received[i].Add(1) == total {
						return
					}
				}
			}
		}()
	}

	start := time.Now()
	var senders sync.WaitGroup
	var sent atomic.Int64
	for i, conn := range conns {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for j := 0; j < messagesPerClient; j++ {
				frame := fmt.Sprintf(`{"type":"chat:message","timestamp":1,"channel":"global","content":"user_%d message %d"}`, i, j)
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
				sent.Add(1)
			}
		}()
	}
	senders.Wait()

	done := make(chan struct{})
	go func() {
		readers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
	}

	t.Logf("clients=%d sent=%d duration=%v", numClients, sent.Load(), time.Since(start))
	if sent.Load() != total {
		t.Fatalf("sent %d messages, want %d", sent.Load(), total)
	}
	for i := range received {
		if got := received[i].Load(); got != total {
			t.Errorf("client %d received %d broadcasts, want %d", i, got, total)
		}
	}
}
