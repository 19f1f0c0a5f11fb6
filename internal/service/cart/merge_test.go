package cart

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"lavenderlily/internal/domain"
)

func guestSlot(lines ...domain.CartLine) *stubGuestStore {
	store := newStubGuestStore()
	store.slots["g1"] = lines
	return store
}

func findLine(lines []domain.CartLine, productID string, variant domain.Variant) *domain.CartLine {
	for i := range lines {
		if lines[i].Matches(productID, variant) {
			return &lines[i]
		}
	}
	return nil
}

func TestSignInMergesAdditively(t *testing.T) {
	m := domain.Variant{Size: "M"}
	guests := guestSlot(
		domain.CartLine{ID: "guest_a", ProductID: "p1", Quantity: 1, Variant: m},
		domain.CartLine{ID: "guest_b", ProductID: "p2", Quantity: 3},
	)
	lines := newStubLineRepo()
	lines.lines = []domain.CartLine{{ID: "line-1", ProductID: "p1", Quantity: 2, Variant: m}}
	svc := newTestService(guests, lines, catalogWith())

	svc.SignIn(context.Background(), "g1", "u1")

	if got := findLine(lines.lines, "p1", m); got == nil || got.Quantity != 3 {
		t.Fatalf("expected p1 quantity 3, got %+v", got)
	}
	if got := findLine(lines.lines, "p2", domain.Variant{}); got == nil || got.Quantity != 3 {
		t.Fatalf("expected p2 quantity 3, got %+v", got)
	}
	if slot, ok := guests.slots["g1"]; ok && len(slot) > 0 {
		t.Fatalf("expected guest slot cleared, got %+v", slot)
	}
}

func TestSignInEmptyGuestCartIsNoop(t *testing.T) {
	guests := newStubGuestStore()
	lines := newStubLineRepo()
	lines.lines = []domain.CartLine{{ID: "line-1", ProductID: "p1", Quantity: 2}}
	svc := newTestService(guests, lines, catalogWith())

	svc.SignIn(context.Background(), "g1", "u1")

	if len(lines.lines) != 1 || lines.lines[0].Quantity != 2 {
		t.Fatalf("expected persisted cart untouched, got %+v", lines.lines)
	}
	if guests.writes != 0 || guests.clears != 0 {
		t.Fatalf("expected no slot writes, got writes=%d clears=%d", guests.writes, guests.clears)
	}
}

func TestSignInDistinctVariantsBecomeSeparateLines(t *testing.T) {
	guests := guestSlot(domain.CartLine{ID: "guest_a", ProductID: "p1", Quantity: 1, Variant: domain.Variant{Size: "L"}})
	lines := newStubLineRepo()
	lines.lines = []domain.CartLine{{ID: "line-1", ProductID: "p1", Quantity: 2, Variant: domain.Variant{Size: "M"}}}
	svc := newTestService(guests, lines, catalogWith())

	svc.SignIn(context.Background(), "g1", "u1")

	if len(lines.lines) != 2 {
		t.Fatalf("expected two lines, got %+v", lines.lines)
	}
	if got := findLine(lines.lines, "p1", domain.Variant{Size: "M"}); got == nil || got.Quantity != 2 {
		t.Fatalf("expected M untouched at 2, got %+v", got)
	}
}

func TestSignInFailedLineStaysInSlot(t *testing.T) {
	guests := guestSlot(
		domain.CartLine{ID: "guest_a", ProductID: "p1", Quantity: 2},
		domain.CartLine{ID: "guest_b", ProductID: "p2", Quantity: 1},
	)
	lines := newStubLineRepo()
	lines.insertErr["p2"] = errors.New("insert failed")
	svc := newTestService(guests, lines, catalogWith())

	svc.SignIn(context.Background(), "g1", "u1")

	// p1 applied and left the slot; p2 stayed behind for a retry.
	if got := findLine(lines.lines, "p1", domain.Variant{}); got == nil || got.Quantity != 2 {
		t.Fatalf("expected p1 applied, got %+v", got)
	}
	slot := guests.slots["g1"]
	if len(slot) != 1 || slot[0].ProductID != "p2" {
		t.Fatalf("expected only p2 left in slot, got %+v", slot)
	}

	// A retry applies the remainder without doubling p1.
	lines.insertErr = map[string]error{}
	svc.SignIn(context.Background(), "g1", "u1")

	if got := findLine(lines.lines, "p1", domain.Variant{}); got == nil || got.Quantity != 2 {
		t.Fatalf("expected p1 still at 2 after retry, got %+v", got)
	}
	if got := findLine(lines.lines, "p2", domain.Variant{}); got == nil || got.Quantity != 1 {
		t.Fatalf("expected p2 applied on retry, got %+v", got)
	}
	if slot, ok := guests.slots["g1"]; ok && len(slot) > 0 {
		t.Fatalf("expected slot cleared after retry, got %+v", slot)
	}
}

func TestSignInGuestReadFailureLeavesEverythingAlone(t *testing.T) {
	guests := newStubGuestStore()
	guests.readErr = errors.New("redis down")
	lines := newStubLineRepo()
	lines.lines = []domain.CartLine{{ID: "line-1", ProductID: "p1", Quantity: 2}}
	svc := newTestService(guests, lines, catalogWith())

	svc.SignIn(context.Background(), "g1", "u1")

	if len(lines.lines) != 1 || lines.lines[0].Quantity != 2 {
		t.Fatalf("expected persisted cart untouched, got %+v", lines.lines)
	}
}

func TestSignInInsertRaceIncrements(t *testing.T) {
	guests := guestSlot(domain.CartLine{ID: "guest_a", ProductID: "p1", Quantity: 1})
	lines := newStubLineRepo()
	// The line exists in the store but not in the snapshot the merge
	// read, as when another device inserts it mid-merge.
	svc := newTestService(guests, lines, catalogWith())
	lines.lines = []domain.CartLine{}
	preInserted := domain.CartLine{ID: "line-race", ProductID: "p1", Quantity: 4}

	// applyGuestLine sees an empty persisted snapshot but the insert
	// hits the unique constraint.
	lines.lines = append(lines.lines, preInserted)
	err := svc.applyGuestLine(context.Background(), "u1", nil, domain.CartLine{ProductID: "p1", Quantity: 1})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := findLine(lines.lines, "p1", domain.Variant{}); got == nil || got.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %+v", got)
	}
}

// gatedGuestStore parks the first Read so a test can line up work
// against a merge that is mid-flight.
type gatedGuestStore struct {
	*stubGuestStore
	reads   int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedGuestStore) Read(ctx context.Context, guestID string) ([]domain.CartLine, error) {
	if atomic.AddInt32(&g.reads, 1) == 1 {
		close(g.entered)
		<-g.release
	}
	return g.stubGuestStore.Read(ctx, guestID)
}

func TestSignInHoldsGuestSlotAgainstConcurrentAdds(t *testing.T) {
	m := domain.Variant{Size: "M"}
	guests := guestSlot(domain.CartLine{ID: "guest_a", ProductID: "p1", Quantity: 2, Variant: m})
	gated := &gatedGuestStore{
		stubGuestStore: guests,
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	lines := newStubLineRepo()
	svc := New(gated, lines, catalogWith(domain.Product{ID: "p1"}, domain.Product{ID: "p2"}), NewNotifier(testLogger()), testLogger())
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		svc.SignIn(ctx, "g1", "u1")
		close(done)
	}()
	<-gated.entered

	added := make(chan error, 1)
	go func() {
		added <- svc.AddLine(ctx, guest, "p2", 1, domain.Variant{})
	}()

	// The add must wait for the merge to finish with the slot; if it
	// sneaks in, its rewrite either resurrects the merged line or is
	// wiped by the merge's clear.
	time.Sleep(20 * time.Millisecond)
	close(gated.release)
	<-done
	if err := <-added; err != nil {
		t.Fatalf("add: %v", err)
	}

	slot := guests.slots["g1"]
	if len(slot) != 1 || slot[0].ProductID != "p2" {
		t.Fatalf("expected only the post-merge line, got %+v", slot)
	}
	if merged := findLine(lines.lines, "p1", m); merged == nil || merged.Quantity != 2 {
		t.Fatalf("expected merged line quantity 2, got %+v", lines.lines)
	}
}
