package game

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readEvents(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestEventLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLog()
	if err := el.StartWriter(&buf); err != nil {
		t.Fatalf("StartWriter: %v", err)
	}

	el.EmitSimple(EventTypeKill, 7, "actor-1", KillPayload{TriggerID: "actor-1", VictimID: "actor-2"})
	el.EmitSimple(EventTypeRefill, 8, "", RefillPayload{Placed: 3, Crates: 40})
	el.Stop()

	events := readEvents(t, buf.Bytes())
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0]["type"] != "kill" || events[0]["actorId"] != "actor-1" || events[0]["tick"] != float64(7) {
		t.Errorf("first event = %v", events[0])
	}
	payload, ok := events[0]["payload"].(map[string]interface{})
	if !ok || payload["victimId"] != "actor-2" {
		t.Errorf("payload = %v", events[0]["payload"])
	}
	if _, ok := events[1]["actorId"]; ok {
		t.Error("arena-wide events carry no actor")
	}
}

func TestEventLogNotRunning(t *testing.T) {
	el := NewEventLog()
	if el.EmitSimple(EventTypeActorJoin, 1, "a", nil) {
		t.Error("emit before start should fail")
	}
	el.Stop() // stopping a journal that never started is fine
}

func TestEventLogPerActorLimit(t *testing.T) {
	el := NewEventLog()
	if err := el.StartWriter(&bytes.Buffer{}); err != nil {
		t.Fatalf("StartWriter: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < MaxEventsPerActor*2; i++ {
		if el.EmitSimple(EventTypeBombPlaced, 1, "spammer", BombPayload{}) {
			accepted++
		}
	}
	if accepted >= MaxEventsPerActor*2 {
		t.Error("per-actor limiter never kicked in")
	}
	if el.GetDroppedCount() == 0 {
		t.Error("drops not counted")
	}
	if el.GetTotalCount() != uint64(accepted) {
		t.Errorf("total = %d, accepted = %d", el.GetTotalCount(), accepted)
	}
}

func TestEventLogFromArena(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rules := testRules()
	a, clock := newTestArena(t, rules)
	a.eventLog = el

	killer := joinAt(t, a, 3, 3)
	joinAt(t, a, 4, 3)
	a.PlaceBomb(killer)
	teleport(a, killer, 9, 9)
	tickAt(a, clock, rules.FuseDuration)
	el.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	seen := map[string]int{}
	for _, ev := range readEvents(t, data) {
		seen[ev["type"].(string)]++
	}
	for _, want := range []string{"actor_join", "bomb_placed", "detonation", "kill"} {
		if seen[want] == 0 {
			t.Errorf("missing %s event, got %v", want, seen)
		}
	}
}
