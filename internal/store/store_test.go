package store

import (
	"errors"
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

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 || result.From != 2 {
		t.Errorf("got from %d to %d, want 2 to 2 (init + translations)", result.From, result.Version)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sim.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed || result.From != 0 || result.Version != 2 {
		t.Errorf("got %+v, want a fresh migration from 0 to 2", result)
	}
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func seed(t *testing.T, db *DB, room string, n int) []int64 {
	t.Helper()
	var ids []int64
	for i := 1; i <= n; i++ {
		m := &Message{Room: room, SenderID: "u1", SenderName: "ana", Body: fmt.Sprintf("msg %d", i), CreatedAt: int64(1000 + i)}
		if err := db.InsertMessage(m); err != nil {
			t.Fatalf("InsertMessage() error = %v", err)
		}
		ids = append(ids, m.ID)
	}
	return ids
}

func TestInsertAndGetMessage(t *testing.T) {
	db := testDB(t)

	reply := int64(42)
	m := &Message{Room: "alpha", SenderID: "u1", SenderName: "ana", MessageType: "image", MediaURL: "https://cdn/x.png", ReplyTo: &reply}
	if err := db.InsertMessage(m); err != nil {
		t.Fatal(err)
	}
	if m.ID == 0 || m.CreatedAt == 0 {
		t.Fatalf("InsertMessage() did not assign ID/CreatedAt: %+v", m)
	}

	got, err := db.GetMessage(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.MediaURL != "https://cdn/x.png" || got.MessageType != "image" {
		t.Errorf("GetMessage() = %+v, want media preserved", got)
	}
	if got.ReplyTo == nil || *got.ReplyTo != 42 {
		t.Errorf("ReplyTo = %v, want 42", got.ReplyTo)
	}

	if _, err := db.GetMessage(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMessage(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListMessagesKeyset(t *testing.T) {
	db := testDB(t)
	ids := seed(t, db, "alpha", 5)
	seed(t, db, "beta", 3)

	page, hasMore, err := db.ListMessages("alpha", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != ids[4] || page[1].ID != ids[3] {
		t.Fatalf("first page = %v, want newest two of alpha", page)
	}
	if !hasMore {
		t.Error("hasMore = false, want true")
	}

	page, hasMore, err = db.ListMessages("alpha", page[1].ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != ids[2] || page[1].ID != ids[1] {
		t.Fatalf("second page = %v, want ids %d,%d", page, ids[2], ids[1])
	}
	if !hasMore {
		t.Error("hasMore = false on second page, want true")
	}

	page, hasMore, err = db.ListMessages("alpha", page[1].ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != ids[0] {
		t.Fatalf("last page = %v, want only id %d", page, ids[0])
	}
	if hasMore {
		t.Error("hasMore = true on last page")
	}

	for _, m := range page {
		if m.Room != "alpha" {
			t.Errorf("message from room %q leaked into alpha", m.Room)
		}
	}
}

func TestRoomSummary(t *testing.T) {
	db := testDB(t)
	seed(t, db, "alpha", 2)
	seed(t, db, "beta", 1)
	if err := db.UpsertRoom(&Room{Slug: "beta", Name: "Beta Room"}); err != nil {
		t.Fatal(err)
	}

	rooms, err := db.ListRooms(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 {
		t.Fatalf("len(rooms) = %d, want 2", len(rooms))
	}

	alpha, err := db.GetRoom("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if alpha.LastMessagePreview != "msg 2" {
		t.Errorf("alpha preview = %q, want %q", alpha.LastMessagePreview, "msg 2")
	}
	if alpha.Name != "alpha" {
		t.Errorf("alpha name = %q, want slug fallback", alpha.Name)
	}

	beta, err := db.GetRoom("beta")
	if err != nil {
		t.Fatal(err)
	}
	if beta.Name != "Beta Room" || beta.LastMessagePreview != "msg 1" {
		t.Errorf("beta = %+v, want renamed with preview kept", beta)
	}

	if _, err := db.GetRoom("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRoom(ghost) error = %v, want ErrNotFound", err)
	}

	count, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("MessageCount() = %d, want 3", count)
	}
}

func TestTranslations(t *testing.T) {
	db := testDB(t)
	ids := seed(t, db, "alpha", 1)

	if _, ok, err := db.GetTranslation(ids[0], "pt"); err != nil || ok {
		t.Fatalf("GetTranslation() before set = ok %v err %v", ok, err)
	}
	if err := db.SetTranslation(ids[0], "pt", "olá"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetTranslation(ids[0], "pt", "oi"); err != nil {
		t.Fatal(err)
	}

	got, ok, err := db.GetTranslation(ids[0], "pt")
	if err != nil || !ok {
		t.Fatalf("GetTranslation() ok %v err %v", ok, err)
	}
	if got != "oi" {
		t.Errorf("GetTranslation() = %q, want latest %q", got, "oi")
	}

	if err := db.SetTranslation(9999, "pt", "x"); err == nil {
		t.Error("SetTranslation() for unknown message should violate the foreign key")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 10); got != "héllo" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("héllo world", 5); got != "héllo..." {
		t.Errorf("truncate long = %q, want %q", got, "héllo...")
	}
}

func TestInsertMessagesBatch(t *testing.T) {
	db := testDB(t)

	batch := []*Message{
		{Room: "alpha", SenderID: "u1", SenderName: "ana", Body: "one", CreatedAt: 10},
		{Room: "beta", SenderID: "u2", SenderName: "bo", Body: "two", CreatedAt: 20},
		{Room: "alpha", SenderID: "u2", SenderName: "bo", Body: "three", CreatedAt: 30},
	}
	if err := db.InsertMessages(batch); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(batch); i++ {
		if batch[i].ID <= batch[i-1].ID {
			t.Errorf("ids not increasing: %d then %d", batch[i-1].ID, batch[i].ID)
		}
	}

	r, err := db.GetRoom("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if r.LastMessagePreview != "three" {
		t.Errorf("preview = %q, want %q", r.LastMessagePreview, "three")
	}
	count, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
