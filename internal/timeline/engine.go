package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/frameloom/frameloom-studio/internal/project"
)

// CapacityOracle reports the frame ceiling for a project at a given
// fps. limited is false when there is no ceiling.
type CapacityOracle interface {
	MaxAllowedFrames(fps int) (max int, limited bool)
}

// BlobStore is the slice of the frame store the engine needs: deleting
// and duplicating the image files behind frame rows.
type BlobStore interface {
	DuplicateFrame(projectID, fromFilename, toFilename string) (string, error)
	DeleteFrame(projectID, filename string) error
}

// Engine applies ordering mutations to a project's frames. Every
// mutation leaves order_index dense (0..N-1) and bumps the project's
// updated_at. Out-of-range positions are ignored rather than rejected
// so stale UI state cannot surface errors for moves that no longer
// mean anything.
type Engine struct {
	repo   project.Repository
	blobs  BlobStore
	limits CapacityOracle
	logger *slog.Logger
}

func NewEngine(repo project.Repository, blobs BlobStore, limits CapacityOracle, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, blobs: blobs, limits: limits, logger: logger}
}

// SortedFrames returns the project's frames in timeline order.
func (e *Engine) SortedFrames(ctx context.Context, projectID string) ([]*project.FrameAsset, error) {
	return e.repo.ListFrames(ctx, projectID)
}

// MoveFrame removes the frame at from and reinserts it at to, shifting
// the frames between them by one. Out-of-range indexes are a no-op.
// Moving a frame tears it out of its capture stack, so its stack id is
// cleared.
func (e *Engine) MoveFrame(ctx context.Context, p *project.Project, from, to int) ([]*project.FrameAsset, error) {
	frames, err := e.repo.ListFrames(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	n := len(frames)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return frames, nil
	}

	moved := frames[from]
	without := make([]*project.FrameAsset, 0, n-1)
	without = append(without, frames[:from]...)
	without = append(without, frames[from+1:]...)

	reordered := make([]*project.FrameAsset, 0, n)
	reordered = append(reordered, without[:to]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, without[to:]...)

	if moved.StackID != "" {
		if err := e.repo.UpdateFrameStackID(ctx, moved.ID, ""); err != nil {
			return nil, fmt.Errorf("clear stack id: %w", err)
		}
		moved.StackID = ""
	}

	return e.commitOrder(ctx, p.ID, reordered)
}

// MoveFrameByID moves a frame to the given index, clamping the target
// into range. The id form is what drag and drop uses; by the time the
// drop lands other edits may have shifted indexes, so the destination
// clamps instead of no-opping. A missing frame is a no-op.
func (e *Engine) MoveFrameByID(ctx context.Context, p *project.Project, frameID string, to int) ([]*project.FrameAsset, error) {
	frames, err := e.repo.ListFrames(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	from := -1
	for i, f := range frames {
		if f.ID == frameID {
			from = i
			break
		}
	}
	if from == -1 {
		return frames, nil
	}

	if to < 0 {
		to = 0
	}
	if to > len(frames)-1 {
		to = len(frames) - 1
	}

	return e.MoveFrame(ctx, p, from, to)
}

// MoveItem moves one grouped item (a capture stack, or a lone frame)
// to a new item position. The destination index refers to the item
// list as the user saw it, before the move, so the insert offset is
// corrected for the removal: moving right, the moved block settles
// after the original item at to; moving left, before it.
func (e *Engine) MoveItem(ctx context.Context, p *project.Project, from, to int) ([]*project.FrameAsset, error) {
	frames, err := e.repo.ListFrames(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	items := groupFrames(frames)
	n := len(items)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return frames, nil
	}

	block := items[from]
	var offset int
	if from < to {
		for i := 0; i <= to; i++ {
			offset += len(items[i])
		}
		offset -= len(block)
	} else {
		for i := 0; i < to; i++ {
			offset += len(items[i])
		}
	}

	rest := make([]*project.FrameAsset, 0, len(frames)-len(block))
	for i, item := range items {
		if i == from {
			continue
		}
		rest = append(rest, item...)
	}

	reordered := make([]*project.FrameAsset, 0, len(frames))
	reordered = append(reordered, rest[:offset]...)
	reordered = append(reordered, block...)
	reordered = append(reordered, rest[offset:]...)

	return e.commitOrder(ctx, p.ID, reordered)
}

// groupFrames collapses consecutive frames sharing a stack id into one
// item. Frames without a stack id are items of their own.
func groupFrames(frames []*project.FrameAsset) [][]*project.FrameAsset {
	var items [][]*project.FrameAsset
	for _, f := range frames {
		last := len(items) - 1
		if f.StackID != "" && last >= 0 && items[last][0].StackID == f.StackID {
			items[last] = append(items[last], f)
			continue
		}
		items = append(items, []*project.FrameAsset{f})
	}
	return items
}

// DeleteFrame removes the frame at index: the image file is deleted
// best effort (a missing or stuck file never blocks the row delete),
// the row goes, and the remaining frames are renumbered densely.
func (e *Engine) DeleteFrame(ctx context.Context, p *project.Project, index int) ([]*project.FrameAsset, error) {
	frames, err := e.repo.ListFrames(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(frames) {
		return frames, nil
	}

	target := frames[index]
	if err := e.blobs.DeleteFrame(p.ID, target.Filename); err != nil {
		e.logger.Warn("failed to delete frame file",
			"project_id", p.ID,
			"filename", target.Filename,
			"error", err)
	}

	if err := e.repo.DeleteFrame(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("delete frame: %w", err)
	}

	remaining := make([]*project.FrameAsset, 0, len(frames)-1)
	remaining = append(remaining, frames[:index]...)
	remaining = append(remaining, frames[index+1:]...)

	return e.commitOrder(ctx, p.ID, remaining)
}

// DeleteFrameByID deletes the frame with the given id. A missing id is
// a no-op.
func (e *Engine) DeleteFrameByID(ctx context.Context, p *project.Project, frameID string) ([]*project.FrameAsset, error) {
	frames, err := e.repo.ListFrames(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for i, f := range frames {
		if f.ID == frameID {
			return e.DeleteFrame(ctx, p, i)
		}
	}
	return frames, nil
}

// DuplicateFrame copies the frame with the given id, file and row, and
// inserts the copy directly after the original. The copy gets a fresh
// id and filename but keeps the source's stack id, so duplicating a
// stacked frame grows the stack. Returns nil without error when the
// frame does not exist or the capacity ceiling is reached.
func (e *Engine) DuplicateFrame(ctx context.Context, p *project.Project, frameID string) (*project.FrameAsset, error) {
	frames, err := e.repo.ListFrames(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var source *project.FrameAsset
	for _, f := range frames {
		if f.ID == frameID {
			source = f
			break
		}
	}
	if source == nil {
		return nil, nil
	}

	if max, limited := e.limits.MaxAllowedFrames(p.FPS); limited && len(frames)+1 > max {
		e.logger.Info("duplicate denied by frame limit",
			"project_id", p.ID,
			"frames", len(frames),
			"max", max)
		return nil, nil
	}

	dup := &project.FrameAsset{
		ID:        project.NewID(),
		ProjectID: p.ID,
		Filename:  project.NewFrameFilename(filepath.Ext(source.Filename)),
		Source:    source.Source,
		StackID:   source.StackID,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := e.blobs.DuplicateFrame(p.ID, source.Filename, dup.Filename); err != nil {
		e.logger.Warn("failed to copy frame file",
			"project_id", p.ID,
			"from", source.Filename,
			"to", dup.Filename,
			"error", err)
	}

	if err := e.repo.InsertFrameAt(ctx, dup, source.OrderIndex+1); err != nil {
		return nil, fmt.Errorf("insert duplicate: %w", err)
	}

	if err := e.repo.TouchProject(ctx, p.ID); err != nil {
		e.logger.Warn("failed to touch project", "project_id", p.ID, "error", err)
	}
	return dup, nil
}

// commitOrder persists the given sequence as order_index 0..N-1 and
// returns it with the in-memory indexes fixed up to match.
func (e *Engine) commitOrder(ctx context.Context, projectID string, frames []*project.FrameAsset) ([]*project.FrameAsset, error) {
	ids := make([]string, len(frames))
	for i, f := range frames {
		ids[i] = f.ID
	}
	if err := e.repo.ReorderFrames(ctx, projectID, ids); err != nil {
		return nil, fmt.Errorf("reorder frames: %w", err)
	}
	for i, f := range frames {
		f.OrderIndex = i
	}
	if err := e.repo.TouchProject(ctx, projectID); err != nil {
		e.logger.Warn("failed to touch project", "project_id", projectID, "error", err)
	}
	return frames, nil
}
