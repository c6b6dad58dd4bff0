package httpapi

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/sse"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStreamEvents_HelloThenMessages(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	messages := make(chan sse.Message, 2)
	messages <- sse.Message{ID: 1, Type: sse.EventPoint, Data: sse.PointData{Series: "wind", X: 1, Y: 20.4}}
	messages <- sse.Message{ID: 2, Type: sse.EventStatus, Data: map[string]string{"state": "finished"}}
	close(messages)

	hello := sse.Message{Type: sse.EventConnected, Data: map[string]string{"client_id": "abc"}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		streamEvents(w, hello, messages, time.Hour, discardLogger())
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("streamEvents did not return after the channel closed")
	}

	want := "id: 0\nevent: connected\ndata: {\"client_id\":\"abc\"}\n\n" +
		"id: 1\nevent: point\ndata: {\"series\":\"wind\",\"x\":1,\"y\":20.4}\n\n" +
		"id: 2\nevent: status\ndata: {\"state\":\"finished\"}\n\n"
	if got := buf.String(); got != want {
		t.Fatalf("unexpected stream:\n%q\nwant:\n%q", got, want)
	}
}

func TestStreamEvents_Keepalive(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	messages := make(chan sse.Message)
	time.AfterFunc(60*time.Millisecond, func() { close(messages) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		streamEvents(w, sse.Message{Type: sse.EventConnected}, messages, 10*time.Millisecond, discardLogger())
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("streamEvents did not return after the channel closed")
	}

	out := buf.String()
	if !strings.HasPrefix(out, "id: 0\nevent: connected\n") {
		t.Fatalf("expected hello first, got %q", out)
	}
	if !strings.Contains(out, ": keepalive\n\n") {
		t.Fatalf("expected at least one keepalive comment, got %q", out)
	}
}
