package repository

import (
	"context"
	"encoding/json"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/zhirschtritt/eventapi/internal/domain"
)

// testEventRepository runs the behaviour every EventRepository adapter must
// share against an empty store.
func testEventRepository(t *testing.T, repo domain.EventRepository) {
	ctx := context.Background()

	t.Run("insert then find", func(t *testing.T) {
		id, err := repo.Insert(ctx, domain.Event{"schedule": 100, "name": "A"})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := domain.ParseID(id); err != nil {
			t.Fatalf("store returned a malformed id: %v", err)
		}

		event, err := repo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if event.ID() != id || event["name"] != "A" || numberValue(t, event["schedule"]) != 100 {
			t.Fatalf("unexpected event: %#v", event)
		}
	})

	t.Run("find missing", func(t *testing.T) {
		event, err := repo.FindByID(ctx, "00000000-0000-4000-8000-000000000000")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if event != nil {
			t.Fatalf("expected no event, got %#v", event)
		}
	})

	t.Run("update merges top-level fields", func(t *testing.T) {
		id, err := repo.Insert(ctx, domain.Event{
			"schedule": 5,
			"name":     "before",
			"venue":    map[string]any{"city": "Oslo", "room": 2},
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}

		patch := domain.Event{"name": "after", "venue": map[string]any{"city": "Bergen"}, "note": nil}
		for i := 0; i < 2; i++ {
			if err := repo.Update(ctx, id, patch); err != nil {
				t.Fatalf("update: %v", err)
			}
		}

		event, err := repo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if event["name"] != "after" || numberValue(t, event["schedule"]) != 5 {
			t.Fatalf("unexpected merged event: %#v", event)
		}
		venue, _ := event["venue"].(map[string]any)
		if len(venue) != 1 || venue["city"] != "Bergen" {
			t.Fatalf("nested objects must be replaced, got %#v", event["venue"])
		}
		if note, ok := event["note"]; !ok || note != nil {
			t.Fatalf("expected explicit null note, got %#v", event)
		}

		if err := repo.Delete(ctx, id); err != nil {
			t.Fatalf("delete: %v", err)
		}
	})

	t.Run("update and delete of missing id succeed", func(t *testing.T) {
		missing := "6b0f5c1e-2d3a-4f7b-8c9d-0e1f2a3b4c5d"
		if err := repo.Update(ctx, missing, domain.Event{"name": "ghost"}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := repo.Delete(ctx, missing); err != nil {
			t.Fatalf("delete: %v", err)
		}
		event, err := repo.FindByID(ctx, missing)
		if err != nil || event != nil {
			t.Fatalf("update must not create an event: %#v %v", event, err)
		}
	})

	t.Run("malformed id is a store error", func(t *testing.T) {
		if err := repo.Update(ctx, "nope", domain.Event{"name": "x"}); err == nil {
			t.Fatalf("expected update error for malformed id")
		}
		if err := repo.Delete(ctx, "nope"); err == nil {
			t.Fatalf("expected delete error for malformed id")
		}
	})

	t.Run("list latest orders by schedule", func(t *testing.T) {
		n, err := repo.BulkInsert(ctx, []domain.Event{
			{"schedule": 200, "name": "B"},
			{"schedule": 50, "name": "C"},
			{"name": "unscheduled"},
		})
		if err != nil {
			t.Fatalf("bulk insert: %v", err)
		}
		if n != 3 {
			t.Fatalf("unexpected inserted count: got %d want 3", n)
		}

		first, err := repo.ListLatest(ctx, 2, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if got := names(first); len(got) != 2 || got[0] != "B" || got[1] != "A" {
			t.Fatalf("unexpected first page: %v", got)
		}

		second, err := repo.ListLatest(ctx, 2, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if got := names(second); len(got) != 2 || got[0] != "C" || got[1] != "unscheduled" {
			t.Fatalf("unexpected second page: %v", got)
		}

		beyond, err := repo.ListLatest(ctx, 2, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if beyond == nil || len(beyond) != 0 {
			t.Fatalf("expected empty page, got %#v", beyond)
		}

		farBeyond, err := repo.ListLatest(ctx, 2, domain.NewPage(2, math.MaxInt).Offset())
		if err != nil {
			t.Fatalf("list at max offset: %v", err)
		}
		if len(farBeyond) != 0 {
			t.Fatalf("expected empty page at max offset, got %v", names(farBeyond))
		}
	})

	t.Run("list latest ranks schedule types", func(t *testing.T) {
		_, err := repo.BulkInsert(ctx, []domain.Event{
			{"schedule": "tomorrow", "name": "mixed-string"},
			{"name": "mixed-missing"},
			{"schedule": 1000, "name": "mixed-number"},
			{"schedule": true, "name": "mixed-bool"},
			{"schedule": nil, "name": "mixed-null"},
			{"schedule": 7, "name": "tie-older"},
			{"schedule": 7, "name": "tie-newer"},
		})
		if err != nil {
			t.Fatalf("bulk insert: %v", err)
		}

		all, err := repo.ListLatest(ctx, 100, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}

		want := []string{"mixed-bool", "mixed-string", "mixed-number", "tie-newer", "tie-older"}
		var got []string
		for _, name := range names(all) {
			if slices.Contains(want, name) {
				got = append(got, name)
			}
		}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("unexpected order: got %v want %v", got, want)
		}

		// Events with no usable schedule are at the tail.
		tail := names(all[len(all)-3:])
		for _, name := range tail {
			if name != "mixed-missing" && name != "mixed-null" && name != "unscheduled" {
				t.Fatalf("unexpected tail: %v", tail)
			}
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func numberValue(t *testing.T, v any) float64 {
	t.Helper()
	n, ok := v.(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", v)
	}
	f, err := n.Float64()
	if err != nil {
		t.Fatalf("parse number: %v", err)
	}
	return f
}

func names(events []domain.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		name, _ := e["name"].(string)
		out = append(out, name)
	}
	return out
}
