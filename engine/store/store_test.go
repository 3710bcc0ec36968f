package store

import (
	"context"
	"errors"
	"testing"

	"github.com/knowledgebench/bench/engine/domain"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustProfile(t *testing.T, s *Store, name string, size, overlap int) domain.ChunkProfile {
	t.Helper()
	p, err := s.CreateProfile(context.Background(), domain.ChunkProfile{Name: name, ChunkSize: size, ChunkOverlap: overlap})
	if err != nil {
		t.Fatalf("create profile %s: %v", name, err)
	}
	return p
}

func TestCreateProfile_Validates(t *testing.T) {
	s := openTest(t)
	_, err := s.CreateProfile(context.Background(), domain.ChunkProfile{Name: "bad", ChunkSize: 0})
	if !errors.Is(err, domain.ErrChunkSizeNotPositive) {
		t.Errorf("got %v", err)
	}
}

func TestActivateProfile_SingleActive(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	a := mustProfile(t, s, "a", 512, 128)
	b := mustProfile(t, s, "b", 256, 64)

	if err := s.ActivateProfile(ctx, a.ID); err != nil {
		t.Fatalf("activate a: %v", err)
	}
	if err := s.ActivateProfile(ctx, b.ID); err != nil {
		t.Fatalf("activate b: %v", err)
	}

	active, err := s.ActiveProfile(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != b.ID {
		t.Errorf("active = %s, want %s", active.ID, b.ID)
	}

	all, err := s.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	count := 0
	for _, p := range all {
		if p.Active {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d active profiles, want exactly 1", count)
	}
}

func TestActivateProfile_NotFound(t *testing.T) {
	s := openTest(t)
	err := s.ActivateProfile(context.Background(), "missing")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestActiveProfile_NoneActive(t *testing.T) {
	s := openTest(t)
	_, err := s.ActiveProfile(context.Background())
	if !errors.Is(err, domain.ErrNoActiveProfile) {
		t.Errorf("got %v", err)
	}
}

func TestEnsureDefaultProfile(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	p, err := s.EnsureDefaultProfile(ctx, 512, 128)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if p.Name != "default" || p.ChunkSize != 512 || p.ChunkOverlap != 128 || !p.Active {
		t.Errorf("unexpected profile: %+v", p)
	}

	// Second call returns the same profile, no duplicate.
	again, err := s.EnsureDefaultProfile(ctx, 999, 1)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.ID != p.ID {
		t.Errorf("got new profile %s, want %s", again.ID, p.ID)
	}
	all, _ := s.ListProfiles(ctx)
	if len(all) != 1 {
		t.Errorf("%d profiles, want 1", len(all))
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	d, err := s.CreateDocument(ctx, "manual.pdf")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", d.Status)
	}

	if err := s.SetDocumentStatus(ctx, d.ID, domain.StatusIngesting, ""); err != nil {
		t.Fatalf("set ingesting: %v", err)
	}
	if err := s.SetDocumentStatus(ctx, d.ID, domain.StatusFailed, "parse error"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := s.GetDocument(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusFailed || got.ErrorMessage != "parse error" {
		t.Errorf("got %+v", got)
	}

	// Moving back to ready clears the error.
	if err := s.SetDocumentStatus(ctx, d.ID, domain.StatusReady, "stale"); err != nil {
		t.Fatalf("set ready: %v", err)
	}
	got, _ = s.GetDocument(ctx, d.ID)
	if got.Status != domain.StatusReady || got.ErrorMessage != "" {
		t.Errorf("got %+v", got)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.GetDocument(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("got %v", err)
	}
	err = s.SetDocumentStatus(context.Background(), "missing", domain.StatusReady, "")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestReplaceSections_RoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	d, _ := s.CreateDocument(ctx, "a.md")

	sections := []domain.Section{
		{SourceRef: "page=1", Content: "first", Metadata: map[string]string{"lang": "en"}},
		{SourceRef: "page=2", Content: "second"},
	}
	if err := s.ReplaceSections(ctx, d.ID, sections); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.SectionsByDocument(ctx, d.ID)
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sections", len(got))
	}
	if got[0].SourceRef != "page=1" || got[0].Metadata["lang"] != "en" {
		t.Errorf("section 0 wrong: %+v", got[0])
	}

	// Replacing again swaps the whole set.
	if err := s.ReplaceSections(ctx, d.ID, sections[:1]); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	got, _ = s.SectionsByDocument(ctx, d.ID)
	if len(got) != 1 {
		t.Errorf("got %d sections after replace, want 1", len(got))
	}
}

func TestReplaceSections_InvalidRollsBack(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	d, _ := s.CreateDocument(ctx, "a.md")

	good := []domain.Section{{SourceRef: "page=1", Content: "ok"}}
	if err := s.ReplaceSections(ctx, d.ID, good); err != nil {
		t.Fatalf("seed: %v", err)
	}

	bad := []domain.Section{{SourceRef: "", Content: "no ref"}}
	if err := s.ReplaceSections(ctx, d.ID, bad); !errors.Is(err, domain.ErrInvalidSection) {
		t.Fatalf("got %v", err)
	}

	got, _ := s.SectionsByDocument(ctx, d.ID)
	if len(got) != 1 || got[0].Content != "ok" {
		t.Errorf("original sections lost: %+v", got)
	}
}

func TestChunks_InsertDeleteCount(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	d, _ := s.CreateDocument(ctx, "a.md")
	p := mustProfile(t, s, "p", 512, 128)
	if err := s.ReplaceSections(ctx, d.ID, []domain.Section{{ID: "sec-1", SourceRef: "page=1", Content: "x"}}); err != nil {
		t.Fatalf("sections: %v", err)
	}

	chunks := []domain.Chunk{
		{ID: "c-1", DocumentID: d.ID, SectionID: "sec-1", ProfileID: p.ID, Content: "one", SourceRef: "page=1", Index: 0},
		{ID: "c-2", DocumentID: d.ID, SectionID: "sec-1", ProfileID: p.ID, Content: "two", SourceRef: "page=1", Index: 1},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.ChunksByDocument(ctx, d.ID, p.ID)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(got) != 2 || got[0].Index != 0 || got[1].Index != 1 {
		t.Errorf("got %+v", got)
	}

	n, err := s.CountChunks(ctx, p.ID)
	if err != nil || n != 2 {
		t.Errorf("count = %d, %v", n, err)
	}

	if err := s.DeleteChunks(ctx, d.ID, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, _ = s.CountChunks(ctx, p.ID)
	if n != 0 {
		t.Errorf("count after delete = %d", n)
	}
}

func TestInsertChunks_EmptyIsNoop(t *testing.T) {
	s := openTest(t)
	if err := s.InsertChunks(context.Background(), nil); err != nil {
		t.Errorf("got %v", err)
	}
}
