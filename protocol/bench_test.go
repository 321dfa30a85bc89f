package protocol

import "testing"

var benchChat = []byte(`{"type":"chat:message","timestamp":1700000000000,"correlationId":"c-1","channel":"global","content":"benchmark payload data"}`)

func BenchmarkEncode(b *testing.B) {
	msg := &ChatReceived{Channel: ChannelGlobal, SenderID: "p1", SenderName: "alice", Content: "benchmark payload data"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Encode(msg)
	}
}

func BenchmarkParseClient(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = ParseClient(benchChat)
	}
}

func BenchmarkEncodeParseRoundtrip(b *testing.B) {
	msg := &Move{Envelope: Envelope{Timestamp: 1}, Direction: DirectionUp, Running: true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := Encode(msg)
		_, _ = ParseClient(data)
	}
}
