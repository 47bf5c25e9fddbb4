package store

import (
	"fmt"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestPutAndListOrdering(t *testing.T) {
	db := testDB(t)

	// Insert out of order; list must come back sorted by created_at.
	msgs := []Message{
		{MsgID: "m3", Body: "third", CreatedAt: 3000},
		{MsgID: "m1", Body: "first", CreatedAt: 1000},
		{MsgID: "m2", Body: "second", CreatedAt: 2000},
	}
	for i := range msgs {
		if _, err := db.Put("alice", &msgs[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListByConversation("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt < got[i-1].CreatedAt {
			t.Errorf("messages out of order: %d before %d", got[i-1].CreatedAt, got[i].CreatedAt)
		}
	}
	if got[0].MsgID != "m1" || got[2].MsgID != "m3" {
		t.Errorf("order = [%s %s %s], want [m1 m2 m3]", got[0].MsgID, got[1].MsgID, got[2].MsgID)
	}
}

func TestPutOverwritesByID(t *testing.T) {
	db := testDB(t)

	key1, err := db.Put("alice", &Message{MsgID: "m1", Body: "hello", CreatedAt: 1000})
	if err != nil {
		t.Fatal(err)
	}

	// Same id again: overwrite in place, keep the storage key.
	key2, err := db.Put("alice", &Message{MsgID: "m1", Body: "hello edited", CreatedAt: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if key1 != key2 {
		t.Errorf("key changed on overwrite: %q != %q", key1, key2)
	}

	got, err := db.ListByConversation("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1 (overwrite-by-id)", len(got))
	}
	if got[0].Body != "hello edited" {
		t.Errorf("body = %q, want hello edited", got[0].Body)
	}
}

// Put resolves its storage key in the same statement as the write, so a
// clear racing between them can never make a successful Put report failure.
func TestPutAtomicUnderConcurrentClear(t *testing.T) {
	db := testDB(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = db.Clear("alice")
		}
	}()

	for i := 0; i < 50; i++ {
		if _, err := db.Put("alice", &Message{MsgID: fmt.Sprintf("m%d", i), CreatedAt: int64(i)}); err != nil {
			t.Fatalf("Put during concurrent clear: %v", err)
		}
	}
	<-done
}

func TestSameIDDifferentConversations(t *testing.T) {
	db := testDB(t)

	if _, err := db.Put("alice", &Message{MsgID: "m1", CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Put("bob", &Message{MsgID: "m1", CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d messages, want 2 (id unique per conversation only)", len(all))
	}
}

func TestListOffline(t *testing.T) {
	db := testDB(t)

	if _, err := db.Put("alice", &Message{MsgID: "s1", CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Put("alice", &Message{MsgID: "offline_2000", IsOffline: true, CreatedAt: 2000}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Put("bob", &Message{MsgID: "offline_3000", IsOffline: true, CreatedAt: 3000}); err != nil {
		t.Fatal(err)
	}

	offline, err := db.ListOffline()
	if err != nil {
		t.Fatal(err)
	}
	if len(offline) != 2 {
		t.Fatalf("got %d offline messages, want 2", len(offline))
	}
	for _, m := range offline {
		if m.DeliveryState() != PendingOffline {
			t.Errorf("delivery state = %q, want %q", m.DeliveryState(), PendingOffline)
		}
	}
}

func TestDeleteByMessageID(t *testing.T) {
	db := testDB(t)

	if _, err := db.Put("alice", &Message{MsgID: "m1", CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteByMessageID("alice", "m1"); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListByConversation("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages after delete, want 0", len(got))
	}

	// Deleting an absent record is a no-op, not an error.
	if err := db.DeleteByMessageID("alice", "missing"); err != nil {
		t.Errorf("DeleteByMessageID(missing) error = %v, want nil", err)
	}
}

func TestClearSingleConversation(t *testing.T) {
	db := testDB(t)

	for i, conv := range []string{"alice", "alice", "bob"} {
		if _, err := db.Put(conv, &Message{MsgID: string(rune('a' + i)), CreatedAt: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.Clear("alice"); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d messages after clear, want 1", len(all))
	}
	if all[0].ConversationID != "bob" {
		t.Errorf("surviving conversation = %q, want bob", all[0].ConversationID)
	}
}

func TestClearAll(t *testing.T) {
	db := testDB(t)

	if _, err := db.Put("alice", &Message{MsgID: "m1", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Put("bob", &Message{MsgID: "m2", CreatedAt: 2}); err != nil {
		t.Fatal(err)
	}
	if err := db.ClearAll(); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("got %d messages after ClearAll, want 0", len(all))
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)

	for i, conv := range []string{"alice", "alice", "bob"} {
		if _, err := db.Put(conv, &Message{MsgID: string(rune('a' + i)), CreatedAt: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3", stats.TotalMessages)
	}
	if stats.UniqueConversations != 2 {
		t.Errorf("UniqueConversations = %d, want 2", stats.UniqueConversations)
	}
	if stats.PerConversation["alice"] != 2 || stats.PerConversation["bob"] != 1 {
		t.Errorf("PerConversation = %v, want alice:2 bob:1", stats.PerConversation)
	}
}
