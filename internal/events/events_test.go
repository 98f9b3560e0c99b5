// internal/events/events_test.go
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func (r *recorder) Close() error { return r.err }

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	a := &recorder{}
	b := &recorder{err: errors.New("broker down")}
	m := Multi{a, b}

	err := m.Publish(Event{Kind: KindAccess})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("every publisher must receive the event")
	}
}

func TestLog_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(zerolog.New(&buf))

	_ = l.Publish(Event{
		Terminal:   "gate-01",
		Kind:       KindAccess,
		Slot:       5,
		Confidence: 88,
		Decision:   "accepted",
		ObjectC:    Float(36.5),
		At:         time.Now(),
	})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not json: %v", err)
	}
	if line["decision"] != "accepted" || line["slot"] != float64(5) || line["object_c"] != 36.5 {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestEvent_JSONOmitsMissingReadings(t *testing.T) {
	b, err := json.Marshal(Event{Terminal: "t", Kind: KindEnrolled, Slot: 3})
	if err != nil {
		t.Fatalf("marshal err=%v", err)
	}
	if bytes.Contains(b, []byte("object_c")) || bytes.Contains(b, []byte("confidence")) {
		t.Fatalf("unexpected optional fields: %s", b)
	}
}
