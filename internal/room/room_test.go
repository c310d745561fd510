package room

import "testing"

func TestRoomAddReplacesDuplicateID(t *testing.T) {
	t.Parallel()
	rm := NewRoom("r1")

	first := NewHuman("p1", "alice")
	if _, replaced := rm.Add(first); replaced != nil {
		t.Fatalf("first Add replaced %v, want nil", replaced)
	}

	second := NewHuman("p1", "alice-again")
	_, replaced := rm.Add(second)
	if replaced != Participant(first) {
		t.Fatalf("second Add replaced %v, want the first participant", replaced)
	}
	if got := rm.Get("p1"); got != Participant(second) {
		t.Fatalf("Get after replace returned the old participant")
	}
	if rm.Len() != 1 {
		t.Errorf("Len() = %d, want 1", rm.Len())
	}
}

func TestRoomGenerationIncrementsOnMembershipChange(t *testing.T) {
	t.Parallel()
	rm := NewRoom("r1")
	if rm.Generation() != 0 {
		t.Fatalf("new room generation = %d, want 0", rm.Generation())
	}

	rm.Add(NewHuman("p1", "alice"))
	rm.Add(NewHuman("p2", "bob"))
	rm.Remove("p1")

	if got := rm.Generation(); got != 3 {
		t.Errorf("Generation() = %d, want 3", got)
	}
}

func TestRoomRemoveUnknownID(t *testing.T) {
	t.Parallel()
	rm := NewRoom("r1")
	if rm.Remove("ghost") {
		t.Error("Remove of unknown id reported true")
	}
	if rm.Generation() != 0 {
		t.Error("Remove of unknown id bumped the generation")
	}
}

func TestRoomRemoveMatchingChecksIdentity(t *testing.T) {
	t.Parallel()
	rm := NewRoom("r1")
	old := NewHuman("p1", "alice")
	rm.Add(old)
	current := NewHuman("p1", "alice-again")
	rm.Add(current)

	// A stale handle must not remove its replacement.
	if got := rm.removeMatching("p1", old); got != nil {
		t.Fatalf("removeMatching with stale instance removed %v", got)
	}
	if rm.Get("p1") == nil {
		t.Fatal("replacement participant was removed")
	}

	if got := rm.removeMatching("p1", current); got != Participant(current) {
		t.Fatalf("removeMatching with current instance = %v", got)
	}
	if rm.Get("p1") != nil {
		t.Fatal("participant still present after removeMatching")
	}
}

func TestRoomSnapshotIsIndependent(t *testing.T) {
	t.Parallel()
	rm := NewRoom("r1")
	rm.Add(NewHuman("p1", "alice"))
	rm.Add(NewHuman("p2", "bob"))

	snap := rm.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snap))
	}

	rm.Remove("p1")
	rm.Remove("p2")
	if len(snap) != 2 {
		t.Error("snapshot changed after membership mutation")
	}
}

func TestRoomEmptyOfHumans(t *testing.T) {
	t.Parallel()
	rm := NewRoom("ai-r1")
	if !rm.EmptyOfHumans() {
		t.Error("empty room should report EmptyOfHumans")
	}

	rm.Add(NewVirtual("agent-abc123", "AI-echo", 1))
	if !rm.EmptyOfHumans() {
		t.Error("agent-only room should report EmptyOfHumans")
	}

	rm.Add(NewHuman("p1", "alice"))
	if rm.EmptyOfHumans() {
		t.Error("room with a human should not report EmptyOfHumans")
	}
}

func TestRoomSnapshotWithGeneration(t *testing.T) {
	t.Parallel()
	rm := NewRoom("r1")

	rm.Add(NewHuman("p1", "alice"))
	rm.Add(NewHuman("p2", "bob"))
	snap, gen := rm.SnapshotWithGeneration()
	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snap))
	}
	if gen != 2 {
		t.Errorf("generation = %d, want 2", gen)
	}

	rm.Remove("p2")
	_, gen2 := rm.SnapshotWithGeneration()
	if gen2 != 3 {
		t.Errorf("generation after removal = %d, want 3", gen2)
	}
}
