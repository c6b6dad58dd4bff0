package mqtt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/chart"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	msgs []published
	err  error
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return newDoneToken(f.err)
}

func newTestPublisher(c publishClient) *Publisher {
	return &Publisher{
		client: c,
		cfg:    Config{TopicPrefix: "stations", Station: "8721604"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestTopic(t *testing.T) {
	p := newTestPublisher(&fakeClient{})
	if got := p.Topic("water_level"); got != "stations/8721604/water_level" {
		t.Fatalf("unexpected topic %q", got)
	}
}

func TestOnPoint_PublishesJSON(t *testing.T) {
	fc := &fakeClient{}
	p := newTestPublisher(fc)

	x := float64(time.Date(2024, 10, 10, 9, 30, 0, 0, time.UTC).UnixMilli())
	p.OnPoint("wind", chart.Point{X: x, Y: 20.4})

	if len(fc.msgs) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.msgs))
	}
	m := fc.msgs[0]
	if m.topic != "stations/8721604/wind" || m.qos != 0 || m.retained {
		t.Errorf("unexpected publish options %+v", m)
	}

	var msg PointMessage
	if err := json.Unmarshal(m.payload, &msg); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if msg.Parameter != "wind" || msg.Y != 20.4 || msg.Timestamp != "2024-10-10T09:30:00Z" {
		t.Errorf("unexpected payload %+v", msg)
	}
}

func TestOnPoint_PublishErrorIsLogged(t *testing.T) {
	fc := &fakeClient{err: errors.New("not connected")}
	p := newTestPublisher(fc)

	p.OnPoint("air_pressure", chart.Point{X: 0, Y: 1012.8})
	if len(fc.msgs) != 1 {
		t.Fatalf("expected publish attempt, got %d", len(fc.msgs))
	}
}
