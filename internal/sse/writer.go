package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// WriteMessage writes msg in event-stream framing.
func WriteMessage(w *bufio.Writer, msg Message) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", msg.ID); err != nil {
		return err
	}
	if msg.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", msg.Type); err != nil {
			return err
		}
	}

	data := []byte("{}")
	if msg.Data != nil {
		b, err := json.Marshal(msg.Data)
		if err != nil {
			return fmt.Errorf("marshal sse data: %w", err)
		}
		data = b
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

// WriteKeepalive writes a comment line that clients ignore.
func WriteKeepalive(w *bufio.Writer) error {
	if _, err := w.WriteString(": keepalive\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
