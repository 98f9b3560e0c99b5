// internal/events/mqtt/mqtt_test.go
package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/fingerprint-terminal/internal/events"
)

// fakeClient records publishes. Methods not used by Publisher come
// from the embedded interface and must not be called.
type fakeClient struct {
	paho.Client
	topic    string
	payload  []byte
	retained bool
	closed   bool
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.topic = topic
	f.retained = retained
	f.payload = payload.([]byte)
	return doneToken{}
}

func (f *fakeClient) Disconnect(uint) { f.closed = true }

type doneToken struct{ paho.Token }

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func TestTopicFor(t *testing.T) {
	if got := topicFor("terminal/%s/access", "gate-01"); got != "terminal/gate-01/access" {
		t.Fatalf("got %q", got)
	}
	if got := topicFor("access", "gate-01"); got != "access" {
		t.Fatalf("got %q", got)
	}
}

func TestPublish_JSONToExpandedTopic(t *testing.T) {
	fc := &fakeClient{}
	p := newWithClient(fc, DefaultTopic)

	e := events.Event{Terminal: "gate-01", Kind: events.KindAccess, Slot: 5, Decision: "accepted"}
	if err := p.Publish(e); err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	if fc.topic != "terminal/gate-01/access" {
		t.Fatalf("topic=%q", fc.topic)
	}
	if fc.retained {
		t.Fatalf("access events must not be retained")
	}

	var got events.Event
	if err := json.Unmarshal(fc.payload, &got); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if got.Slot != 5 || got.Decision != "accepted" {
		t.Fatalf("payload=%+v", got)
	}

	_ = p.Close()
	if !fc.closed {
		t.Fatalf("Close must disconnect")
	}
}
