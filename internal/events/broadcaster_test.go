package events

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	initial := SubscriberCount()

	sub1 := Subscribe()
	if SubscriberCount() != initial+1 {
		t.Errorf("expected %d subscribers after first subscribe, got %d", initial+1, SubscriberCount())
	}

	sub2 := Subscribe()
	if SubscriberCount() != initial+2 {
		t.Errorf("expected %d subscribers after second subscribe, got %d", initial+2, SubscriberCount())
	}

	Unsubscribe(sub1)
	if SubscriberCount() != initial+1 {
		t.Errorf("expected %d subscribers after unsubscribe, got %d", initial+1, SubscriberCount())
	}

	Unsubscribe(sub2)
	if SubscriberCount() != initial {
		t.Errorf("expected %d subscribers after all unsubscribed, got %d", initial, SubscriberCount())
	}
}

func TestBroadcastToSubscribers(t *testing.T) {
	sub := Subscribe()
	defer Unsubscribe(sub)

	Emit("info", "state.activated", "test", map[string]interface{}{"state_id": "s1"})

	select {
	case e := <-sub:
		if e.Name != "state.activated" {
			t.Errorf("expected event name 'state.activated', got '%s'", e.Name)
		}
		if e.Fields["state_id"] != "s1" {
			t.Errorf("expected state_id 's1', got '%v'", e.Fields["state_id"])
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for broadcast event")
	}
}

func TestEmitRejectsUnknownEvent(t *testing.T) {
	Clear()
	if _, err := Emit("info", "scene.started", "", nil); err == nil {
		t.Fatal("expected error for unknown event")
	}
	if len(Snapshot()) != 0 {
		t.Error("unknown event should not be buffered")
	}
}

func TestRecentEvents(t *testing.T) {
	Clear()

	for i := 0; i < 10; i++ {
		Emit("info", "transition.taken", "", map[string]interface{}{"i": i})
	}

	recent := RecentEvents(5)
	if len(recent) != 5 {
		t.Fatalf("expected 5 recent events, got %d", len(recent))
	}

	// last five are i=5..9
	if recent[0].Fields["i"] != 5 {
		t.Errorf("expected first recent event i=5, got %v", recent[0].Fields["i"])
	}

	all := RecentEvents(100)
	if len(all) != 10 {
		t.Errorf("expected 10 events when requesting 100, got %d", len(all))
	}

	zero := RecentEvents(0)
	if len(zero) != 10 {
		t.Errorf("expected 10 events when requesting 0, got %d", len(zero))
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, name := range []string{"a", "b", "c", "d"} {
		rb.Add(Event{Name: name})
	}
	snap := rb.Snapshot()
	if len(snap) != 3 || snap[0].Name != "b" || snap[2].Name != "d" {
		t.Errorf("unexpected snapshot order: %+v", snap)
	}

	rb.Clear()
	if len(rb.Snapshot()) != 0 {
		t.Error("expected empty buffer after Clear")
	}
}

func TestForTestRun(t *testing.T) {
	Clear()
	Emit("info", "testrun.started", "", map[string]interface{}{"testrun_id": "r1"})
	Emit("info", "testrun.started", "", map[string]interface{}{"testrun_id": "r2"})
	Emit("info", "testrun.passed", "", map[string]interface{}{"testrun_id": "r1"})

	got := ForTestRun("r1")
	if len(got) != 2 {
		t.Fatalf("expected 2 events for r1, got %d", len(got))
	}
	if got[1].Name != "testrun.passed" {
		t.Errorf("expected testrun.passed last, got %s", got[1].Name)
	}
}

func TestLoggerMirror(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	SetLogger(l)
	defer SetLogger(nil)

	Emit("warn", "codegen.failed", "language not supported", map[string]interface{}{"language": "rust"})

	out := buf.String()
	if !strings.Contains(out, `"event":"codegen.failed"`) {
		t.Errorf("expected event name in log output, got %s", out)
	}
	if !strings.Contains(out, `"level":"warning"`) {
		t.Errorf("expected warning level, got %s", out)
	}
	if !strings.Contains(out, `"language":"rust"`) {
		t.Errorf("expected fields in log output, got %s", out)
	}
}

func TestMultipleSubscribersReceiveEvents(t *testing.T) {
	sub1 := Subscribe()
	sub2 := Subscribe()
	defer Unsubscribe(sub1)
	defer Unsubscribe(sub2)

	Emit("info", "scenario.started", "", map[string]interface{}{"scenario_id": "intro"})

	for i, sub := range []Subscriber{sub1, sub2} {
		select {
		case e := <-sub:
			if e.Name != "scenario.started" {
				t.Errorf("sub%d: expected 'scenario.started', got '%s'", i+1, e.Name)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("sub%d: timeout waiting for event", i+1)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	sub := Subscribe()
	Unsubscribe(sub)

	_, ok := <-sub
	if ok {
		t.Error("expected channel to be closed after unsubscribe")
	}

	// second unsubscribe is a no-op
	Unsubscribe(sub)
}

func TestCloseAllSubscribers(t *testing.T) {
	CloseAllSubscribers()

	sub1 := Subscribe()
	sub2 := Subscribe()
	sub3 := Subscribe()

	if SubscriberCount() != 3 {
		t.Errorf("expected 3 subscribers, got %d", SubscriberCount())
	}

	CloseAllSubscribers()

	_, ok1 := <-sub1
	_, ok2 := <-sub2
	_, ok3 := <-sub3

	if ok1 || ok2 || ok3 {
		t.Error("expected all channels to be closed")
	}

	if SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after CloseAllSubscribers, got %d", SubscriberCount())
	}
}

func TestTotalCountCountsAcceptedEvents(t *testing.T) {
	before := TotalCount()
	Emit("info", "system.startup", "", nil)
	Emit("info", "not.an.event", "", nil)
	if got := TotalCount() - before; got != 1 {
		t.Errorf("expected 1 counted event, got %d", got)
	}
}
