package timeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/frameloom/frameloom-studio/internal/db"
	"github.com/frameloom/frameloom-studio/internal/project"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBlobs struct {
	copied  [][2]string
	deleted []string
	dupErr  error
	delErr  error
}

func (b *fakeBlobs) DuplicateFrame(projectID, fromFilename, toFilename string) (string, error) {
	if b.dupErr != nil {
		return "", b.dupErr
	}
	b.copied = append(b.copied, [2]string{fromFilename, toFilename})
	return toFilename, nil
}

func (b *fakeBlobs) DeleteFrame(projectID, filename string) error {
	if b.delErr != nil {
		return b.delErr
	}
	b.deleted = append(b.deleted, filename)
	return nil
}

type fakeLimits struct {
	max     int
	limited bool
}

func (l *fakeLimits) MaxAllowedFrames(fps int) (int, bool) {
	return l.max, l.limited
}

func setupEngine(t *testing.T) (*Engine, project.Repository, *project.Project, *fakeBlobs, *fakeLimits) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := project.NewRepository(database.Conn())
	now := time.Now().UTC()
	p := &project.Project{
		ID:          "proj-1",
		Title:       "Test Movie",
		FPS:         5,
		CreditsMode: project.CreditsModePlain,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	blobs := &fakeBlobs{}
	limits := &fakeLimits{}
	return NewEngine(repo, blobs, limits, testLogger()), repo, p, blobs, limits
}

// seedFrames inserts n frames named f0..f(n-1) in order.
func seedFrames(t *testing.T, repo project.Repository, projectID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f := &project.FrameAsset{
			ID:         fmt.Sprintf("f%d", i),
			ProjectID:  projectID,
			Filename:   fmt.Sprintf("frame_%d.png", i),
			OrderIndex: i,
			Source:     project.SourcePhotoImport,
			CreatedAt:  time.Now().UTC(),
		}
		if err := repo.CreateFrame(context.Background(), f); err != nil {
			t.Fatalf("failed to create frame %d: %v", i, err)
		}
	}
}

// assertOrder reloads the project's frames and checks both the id
// sequence and that order_index runs 0..N-1 with no gaps.
func assertOrder(t *testing.T, repo project.Repository, projectID string, wantIDs ...string) {
	t.Helper()
	frames, err := repo.ListFrames(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to list frames: %v", err)
	}
	if len(frames) != len(wantIDs) {
		t.Fatalf("got %d frames, want %d", len(frames), len(wantIDs))
	}
	for i, f := range frames {
		if f.ID != wantIDs[i] {
			t.Errorf("frames[%d].ID = %s, want %s", i, f.ID, wantIDs[i])
		}
		if f.OrderIndex != i {
			t.Errorf("frames[%d].OrderIndex = %d, want %d", i, f.OrderIndex, i)
		}
	}
}

func TestMoveFrame_ShiftsBetween(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 5)

	frames, err := engine.MoveFrame(context.Background(), p, 0, 3)
	if err != nil {
		t.Fatalf("MoveFrame() error = %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("got %d frames, want 5", len(frames))
	}
	assertOrder(t, repo, p.ID, "f1", "f2", "f3", "f0", "f4")
}

func TestMoveFrame_RoundTrip(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 5)

	ctx := context.Background()
	if _, err := engine.MoveFrame(ctx, p, 0, 3); err != nil {
		t.Fatalf("MoveFrame() error = %v", err)
	}
	if _, err := engine.MoveFrame(ctx, p, 3, 0); err != nil {
		t.Fatalf("MoveFrame() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f2", "f3", "f4")
}

func TestMoveFrame_OutOfRangeNoOp(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)

	ctx := context.Background()
	for _, move := range [][2]int{{-1, 1}, {0, 3}, {5, 0}, {0, -2}, {1, 1}} {
		frames, err := engine.MoveFrame(ctx, p, move[0], move[1])
		if err != nil {
			t.Fatalf("MoveFrame(%d, %d) error = %v", move[0], move[1], err)
		}
		if len(frames) != 3 {
			t.Fatalf("MoveFrame(%d, %d) returned %d frames", move[0], move[1], len(frames))
		}
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f2")
}

func TestMoveFrame_ClearsStackID(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)

	ctx := context.Background()
	if err := repo.UpdateFrameStackID(ctx, "f1", "stack-a"); err != nil {
		t.Fatalf("failed to set stack id: %v", err)
	}

	if _, err := engine.MoveFrame(ctx, p, 1, 2); err != nil {
		t.Fatalf("MoveFrame() error = %v", err)
	}

	f, err := repo.GetFrame(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}
	if f.StackID != "" {
		t.Errorf("StackID = %q, want empty after move", f.StackID)
	}
}

func TestMoveFrameByID_ClampsDestination(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 4)

	ctx := context.Background()
	if _, err := engine.MoveFrameByID(ctx, p, "f0", 99); err != nil {
		t.Fatalf("MoveFrameByID() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f1", "f2", "f3", "f0")

	if _, err := engine.MoveFrameByID(ctx, p, "f0", -5); err != nil {
		t.Fatalf("MoveFrameByID() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f2", "f3")
}

func TestMoveFrameByID_MissingNoOp(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)

	frames, err := engine.MoveFrameByID(context.Background(), p, "nope", 0)
	if err != nil {
		t.Fatalf("MoveFrameByID() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f2")
}

func TestMoveItem_SingleFramesMatchMoveFrame(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 5)

	if _, err := engine.MoveItem(context.Background(), p, 0, 3); err != nil {
		t.Fatalf("MoveItem() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f1", "f2", "f3", "f0", "f4")
}

func TestMoveItem_MovesWholeStack(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 4)

	ctx := context.Background()
	// f0 and f1 form one stack; items are [f0 f1], [f2], [f3].
	for _, id := range []string{"f0", "f1"} {
		if err := repo.UpdateFrameStackID(ctx, id, "stack-a"); err != nil {
			t.Fatalf("failed to set stack id: %v", err)
		}
	}

	if _, err := engine.MoveItem(ctx, p, 0, 2); err != nil {
		t.Fatalf("MoveItem() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f2", "f3", "f0", "f1")

	// Items are now [f2], [f3], [f0 f1]; move the stack back to front.
	if _, err := engine.MoveItem(ctx, p, 2, 0); err != nil {
		t.Fatalf("MoveItem() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f2", "f3")
}

func TestMoveItem_OutOfRangeNoOp(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)

	ctx := context.Background()
	for _, move := range [][2]int{{-1, 0}, {0, 3}, {4, 1}, {2, 2}} {
		if _, err := engine.MoveItem(ctx, p, move[0], move[1]); err != nil {
			t.Fatalf("MoveItem(%d, %d) error = %v", move[0], move[1], err)
		}
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f2")
}

func TestDeleteFrame_RemovesAndRenumbers(t *testing.T) {
	engine, repo, p, blobs, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 4)

	frames, err := engine.DeleteFrame(context.Background(), p, 2)
	if err != nil {
		t.Fatalf("DeleteFrame() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f3")

	if len(blobs.deleted) != 1 || blobs.deleted[0] != "frame_2.png" {
		t.Errorf("deleted files = %v, want [frame_2.png]", blobs.deleted)
	}
}

func TestDeleteFrame_OutOfRangeNoOp(t *testing.T) {
	engine, repo, p, blobs, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)

	ctx := context.Background()
	for _, idx := range []int{-1, 3, 10} {
		if _, err := engine.DeleteFrame(ctx, p, idx); err != nil {
			t.Fatalf("DeleteFrame(%d) error = %v", idx, err)
		}
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f2")
	if len(blobs.deleted) != 0 {
		t.Errorf("deleted files = %v, want none", blobs.deleted)
	}
}

func TestDeleteFrame_BlobErrorStillDeletesRow(t *testing.T) {
	engine, repo, p, blobs, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 2)
	blobs.delErr = errors.New("disk gone")

	if _, err := engine.DeleteFrame(context.Background(), p, 0); err != nil {
		t.Fatalf("DeleteFrame() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f1")
}

func TestDeleteFrameByID(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)

	ctx := context.Background()
	if _, err := engine.DeleteFrameByID(ctx, p, "f1"); err != nil {
		t.Fatalf("DeleteFrameByID() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f0", "f2")

	if _, err := engine.DeleteFrameByID(ctx, p, "nope"); err != nil {
		t.Fatalf("DeleteFrameByID() error = %v", err)
	}
	assertOrder(t, repo, p.ID, "f0", "f2")
}

func TestDuplicateFrame(t *testing.T) {
	engine, repo, p, blobs, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)

	dup, err := engine.DuplicateFrame(context.Background(), p, "f1")
	if err != nil {
		t.Fatalf("DuplicateFrame() error = %v", err)
	}
	if dup == nil {
		t.Fatal("DuplicateFrame() returned nil frame")
	}
	if dup.ID == "f1" {
		t.Error("duplicate reused the source id")
	}
	if dup.Filename == "frame_1.png" {
		t.Error("duplicate reused the source filename")
	}
	if dup.Source != project.SourcePhotoImport {
		t.Errorf("Source = %s, want %s", dup.Source, project.SourcePhotoImport)
	}

	assertOrder(t, repo, p.ID, "f0", "f1", dup.ID, "f2")

	if len(blobs.copied) != 1 || blobs.copied[0][0] != "frame_1.png" || blobs.copied[0][1] != dup.Filename {
		t.Errorf("copied = %v, want frame_1.png -> %s", blobs.copied, dup.Filename)
	}
}

func TestDuplicateFrame_KeepsStackID(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 2)

	ctx := context.Background()
	if err := repo.UpdateFrameStackID(ctx, "f0", "stack-a"); err != nil {
		t.Fatalf("failed to set stack id: %v", err)
	}

	dup, err := engine.DuplicateFrame(ctx, p, "f0")
	if err != nil {
		t.Fatalf("DuplicateFrame() error = %v", err)
	}
	if dup.StackID != "stack-a" {
		t.Errorf("StackID = %q, want stack-a", dup.StackID)
	}
}

func TestDuplicateFrame_CapacityDenied(t *testing.T) {
	engine, repo, p, blobs, limits := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)
	limits.max = 3
	limits.limited = true

	dup, err := engine.DuplicateFrame(context.Background(), p, "f0")
	if err != nil {
		t.Fatalf("DuplicateFrame() error = %v", err)
	}
	if dup != nil {
		t.Fatalf("DuplicateFrame() = %+v, want nil when at capacity", dup)
	}
	assertOrder(t, repo, p.ID, "f0", "f1", "f2")
	if len(blobs.copied) != 0 {
		t.Errorf("copied = %v, want none", blobs.copied)
	}
}

func TestDuplicateFrame_MissingNoOp(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 2)

	dup, err := engine.DuplicateFrame(context.Background(), p, "nope")
	if err != nil {
		t.Fatalf("DuplicateFrame() error = %v", err)
	}
	if dup != nil {
		t.Fatalf("DuplicateFrame() = %+v, want nil for unknown id", dup)
	}
	assertOrder(t, repo, p.ID, "f0", "f1")
}

func TestMutationsBumpUpdatedAt(t *testing.T) {
	engine, repo, p, _, _ := setupEngine(t)
	seedFrames(t, repo, p.ID, 3)

	ctx := context.Background()
	before, err := repo.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}

	// Stored timestamps have one second resolution.
	time.Sleep(1100 * time.Millisecond)

	if _, err := engine.MoveFrame(ctx, p, 0, 2); err != nil {
		t.Fatalf("MoveFrame() error = %v", err)
	}

	after, err := repo.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("UpdatedAt %v not after %v", after.UpdatedAt, before.UpdatedAt)
	}
}
