package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"notes-api/domain"
)

// runRepositoryContract exercises the behaviour every binding must share.
func runRepositoryContract(t *testing.T, repo NoteRepository) {
	t.Helper()
	ctx := context.Background()

	t.Run("create_find_delete", func(t *testing.T) {
		created, err := repo.Create(ctx, domain.CreateNoteInput{Content: "Hello world", Confidential: true})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.ID == uuid.Nil {
			t.Fatal("expected generated id")
		}
		if created.Content != "Hello world" || !created.Confidential {
			t.Fatalf("unexpected created note: %+v", created)
		}

		found, ok, err := repo.Find(ctx, created.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if !ok {
			t.Fatal("expected created note to be found")
		}
		if found != created {
			t.Fatalf("found %+v, want %+v", found, created)
		}

		if err := repo.Delete(ctx, created.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, ok, err := repo.Find(ctx, created.ID); err != nil || ok {
			t.Fatalf("expected note to be gone, found=%v err=%v", ok, err)
		}
	})

	t.Run("delete_is_idempotent", func(t *testing.T) {
		created, err := repo.Create(ctx, domain.CreateNoteInput{Content: "twice"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := repo.Delete(ctx, created.ID); err != nil {
				t.Fatalf("delete #%d: %v", i+1, err)
			}
			if _, ok, err := repo.Find(ctx, created.ID); err != nil || ok {
				t.Fatalf("after delete #%d: found=%v err=%v", i+1, ok, err)
			}
		}
	})

	t.Run("create_assigns_distinct_ids", func(t *testing.T) {
		in := domain.CreateNoteInput{Content: "same", Confidential: false}
		first, err := repo.Create(ctx, in)
		if err != nil {
			t.Fatalf("create first: %v", err)
		}
		second, err := repo.Create(ctx, in)
		if err != nil {
			t.Fatalf("create second: %v", err)
		}
		if first.ID == second.ID {
			t.Fatalf("expected distinct ids, both %s", first.ID)
		}
	})

	t.Run("find_missing_is_not_error", func(t *testing.T) {
		note, ok, err := repo.Find(ctx, uuid.New())
		if err != nil {
			t.Fatalf("find missing: %v", err)
		}
		if ok {
			t.Fatalf("expected absence, got %+v", note)
		}
	})

	t.Run("delete_missing_is_not_error", func(t *testing.T) {
		if err := repo.Delete(ctx, uuid.New()); err != nil {
			t.Fatalf("delete missing: %v", err)
		}
	})

	t.Run("empty_content", func(t *testing.T) {
		created, err := repo.Create(ctx, domain.CreateNoteInput{Content: "", Confidential: false})
		if err != nil {
			t.Fatalf("create empty: %v", err)
		}
		found, ok, err := repo.Find(ctx, created.ID)
		if err != nil || !ok {
			t.Fatalf("find empty: found=%v err=%v", ok, err)
		}
		if found.Content != "" || found.Confidential {
			t.Fatalf("unexpected note: %+v", found)
		}
	})
}
