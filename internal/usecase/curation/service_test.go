package curation

import (
	"context"
	"errors"
	"testing"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
)

func TestApprove_PromotesRawValue(t *testing.T) {
	svc, store, writer, reloader := newTestCuration(t,
		pendingItem(1, segment.Industries, "climate tech"))

	ua, err := svc.Approve(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if ua.Status != domain.UnknownApproved {
		t.Errorf("status = %s, want approved", ua.Status)
	}
	if len(writer.canonicals) != 1 || writer.canonicals[0] != "climate tech" {
		t.Errorf("canonicals = %v, want the raw phrase", writer.canonicals)
	}
	if len(writer.aliases) != 0 {
		t.Errorf("no alias expected when the raw phrase is the canonical, got %v", writer.aliases)
	}
	if store.items[1].Status != domain.UnknownApproved {
		t.Error("status not persisted")
	}
	if reloader.calls != 1 {
		t.Errorf("reload calls = %d, want 1", reloader.calls)
	}
}

func TestApprove_NameOverridesSpelling(t *testing.T) {
	svc, _, writer, _ := newTestCuration(t,
		pendingItem(1, segment.Industries, "climate tech"))

	if _, err := svc.Approve(context.Background(), 1, "Climate Tech"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(writer.canonicals) != 1 || writer.canonicals[0] != "Climate Tech" {
		t.Errorf("canonicals = %v, want curated spelling", writer.canonicals)
	}
	// The raw phrase becomes an alias of the curated spelling.
	if len(writer.aliases) != 1 || writer.aliases[0] != [2]string{"Climate Tech", "climate tech"} {
		t.Errorf("aliases = %v", writer.aliases)
	}
}

func TestApprove_IdempotentOnApproved(t *testing.T) {
	item := pendingItem(1, segment.Industries, "climate tech")
	item.Status = domain.UnknownApproved
	svc, _, writer, reloader := newTestCuration(t, item)

	ua, err := svc.Approve(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("repeat approve should be a no-op: %v", err)
	}
	if ua.Status != domain.UnknownApproved {
		t.Errorf("status = %s", ua.Status)
	}
	if len(writer.canonicals) != 0 || reloader.calls != 0 {
		t.Error("no writes or reloads expected on a repeat approve")
	}
}

func TestApprove_ConflictsWithMapped(t *testing.T) {
	item := pendingItem(1, segment.Industries, "climate tech")
	item.Status = domain.UnknownMapped
	item.MappedTo = "Climate Tech"
	svc, _, _, _ := newTestCuration(t, item)

	_, err := svc.Approve(context.Background(), 1, "")
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestApprove_NotFound(t *testing.T) {
	svc, _, _, _ := newTestCuration(t)
	_, err := svc.Approve(context.Background(), 42, "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMapToExisting(t *testing.T) {
	svc, store, writer, reloader := newTestCuration(t,
		pendingItem(1, segment.Industries, "health it"))

	ua, err := svc.MapToExisting(context.Background(), 1, "Healthcare IT")
	if err != nil {
		t.Fatalf("MapToExisting: %v", err)
	}
	if ua.Status != domain.UnknownMapped || ua.MappedTo != "Healthcare IT" {
		t.Errorf("unexpected result: %+v", ua)
	}
	if len(writer.aliases) != 1 || writer.aliases[0] != [2]string{"Healthcare IT", "health it"} {
		t.Errorf("aliases = %v", writer.aliases)
	}
	if len(writer.canonicals) != 0 {
		t.Error("mapping must not create a new canonical value")
	}
	if store.items[1].MappedTo != "Healthcare IT" {
		t.Error("mapped_to not persisted")
	}
	if reloader.calls != 1 {
		t.Errorf("reload calls = %d, want 1", reloader.calls)
	}
}

func TestMapToExisting_IdempotentSameTarget(t *testing.T) {
	item := pendingItem(1, segment.Industries, "health it")
	item.Status = domain.UnknownMapped
	item.MappedTo = "Healthcare IT"
	svc, _, writer, reloader := newTestCuration(t, item)

	if _, err := svc.MapToExisting(context.Background(), 1, "Healthcare IT"); err != nil {
		t.Fatalf("repeat map to the same target should be a no-op: %v", err)
	}
	if len(writer.aliases) != 0 || reloader.calls != 0 {
		t.Error("no writes expected on a repeat map")
	}
}

func TestMapToExisting_ConflictsWithDifferentResolution(t *testing.T) {
	item := pendingItem(1, segment.Industries, "health it")
	item.Status = domain.UnknownMapped
	item.MappedTo = "Healthcare IT"
	svc, _, _, _ := newTestCuration(t, item)

	_, err := svc.MapToExisting(context.Background(), 1, "Fintech")
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMapToExisting_UnknownCanonical(t *testing.T) {
	svc, store, writer, vocabs := newTestCuration(t,
		pendingItem(1, segment.Industries, "health it"))

	_, err := svc.MapToExisting(context.Background(), 1, "Quantum Synergy")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a nonexistent canonical, got %v", err)
	}
	if len(writer.aliases) != 0 || vocabs.calls != 0 {
		t.Error("no writes expected when the target does not exist")
	}
	if store.items[1].Status != domain.UnknownPending {
		t.Error("entry should stay pending")
	}
}

func TestMapToExisting_ResolvesAliasSpelling(t *testing.T) {
	svc, _, writer, _ := newTestCuration(t,
		pendingItem(1, segment.Industries, "hospital software"))

	ua, err := svc.MapToExisting(context.Background(), 1, "health it")
	if err != nil {
		t.Fatalf("MapToExisting: %v", err)
	}
	if ua.MappedTo != "Healthcare IT" {
		t.Errorf("MappedTo = %q, want the resolved canonical", ua.MappedTo)
	}
	if len(writer.aliases) != 1 || writer.aliases[0] != [2]string{"Healthcare IT", "hospital software"} {
		t.Errorf("aliases = %v", writer.aliases)
	}
}

func TestCommit_SurvivesReloadFailure(t *testing.T) {
	svc, store, _, reloader := newTestCuration(t,
		pendingItem(1, segment.Industries, "climate tech"))
	reloader.err = errors.New("db down")

	ua, err := svc.Approve(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("a reload failure must not fail the commit: %v", err)
	}
	if ua.Status != domain.UnknownApproved || store.items[1].Status != domain.UnknownApproved {
		t.Error("commit should persist despite the reload failure")
	}
}

func TestList_DefaultsToPending(t *testing.T) {
	approved := pendingItem(2, segment.Industries, "done")
	approved.Status = domain.UnknownApproved
	svc, _, _, _ := newTestCuration(t,
		pendingItem(1, segment.Industries, "climate tech"), approved)

	items, err := svc.List(context.Background(), "", "", 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Errorf("expected only the pending item, got %v", items)
	}
}

func TestList_RejectsUnknownSegment(t *testing.T) {
	svc, _, _, _ := newTestCuration(t)
	_, err := svc.List(context.Background(), "founded_year", "", 50)
	if !errors.Is(err, domain.ErrUnknownSegment) {
		t.Fatalf("expected ErrUnknownSegment, got %v", err)
	}
}
