// Package store is the on-disk blob store for frame images, audio
// attachments, and exported videos. Frame and audio blobs live under
// <dataDir>/projects/<projectID>/, exported videos under
// <moviesDir>/<projectID>/export.mp4 — the latter is a stable path
// contract other components rely on without a stored reference.
package store

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const ExportedVideoName = "export.mp4"

type Store interface {
	SaveFrame(projectID, filename string, data []byte) (string, error)
	LoadFrame(projectID, filename string) ([]byte, error)
	LoadFrameImage(projectID, filename string) (image.Image, error)
	FramePath(projectID, filename string) string
	DuplicateFrame(projectID, fromFilename, toFilename string) (string, error)
	DeleteFrame(projectID, filename string) error

	SaveAudio(projectID, filename string, r io.Reader) (string, error)
	AudioPath(projectID, filename string) string
	DeleteAudio(projectID, filename string) error

	SaveExportedVideo(projectID, tempPath string) (string, error)
	LocateExportedVideo(projectID string) string

	ScratchPath(name string) string
	DeleteProjectData(projectID string) error
}

type DiskStore struct {
	root      string
	moviesDir string
	logger    *slog.Logger
}

func New(dataDir, moviesDir string, logger *slog.Logger) (*DiskStore, error) {
	s := &DiskStore{
		root:      dataDir,
		moviesDir: moviesDir,
		logger:    logger,
	}
	for _, dir := range []string{s.projectsDir(), s.moviesDir, s.scratchDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *DiskStore) projectsDir() string {
	return filepath.Join(s.root, "projects")
}

// scratchDir lives under the data root so renames into the movies dir
// never cross filesystems.
func (s *DiskStore) scratchDir() string {
	return filepath.Join(s.root, "tmp")
}

func (s *DiskStore) framesDir(projectID string) string {
	return filepath.Join(s.projectsDir(), projectID, "frames")
}

func (s *DiskStore) audioDir(projectID string) string {
	return filepath.Join(s.projectsDir(), projectID, "audio")
}

func (s *DiskStore) FramePath(projectID, filename string) string {
	return filepath.Join(s.framesDir(projectID), filename)
}

func (s *DiskStore) AudioPath(projectID, filename string) string {
	return filepath.Join(s.audioDir(projectID), filename)
}

func (s *DiskStore) SaveFrame(projectID, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.framesDir(projectID), 0755); err != nil {
		return "", fmt.Errorf("failed to create frames directory: %w", err)
	}
	path := s.FramePath(projectID, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write frame %s: %w", filename, err)
	}
	return path, nil
}

func (s *DiskStore) LoadFrame(projectID, filename string) ([]byte, error) {
	data, err := os.ReadFile(s.FramePath(projectID, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %s: %w", filename, err)
	}
	return data, nil
}

func (s *DiskStore) LoadFrameImage(projectID, filename string) (image.Image, error) {
	data, err := s.LoadFrame(projectID, filename)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

func (s *DiskStore) DuplicateFrame(projectID, fromFilename, toFilename string) (string, error) {
	src, err := os.Open(s.FramePath(projectID, fromFilename))
	if err != nil {
		return "", fmt.Errorf("failed to open source frame %s: %w", fromFilename, err)
	}
	defer src.Close()

	dstPath := s.FramePath(projectID, toFilename)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create frame copy %s: %w", toFilename, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy frame bytes: %w", err)
	}
	return dstPath, nil
}

// DeleteFrame removes a frame blob. A file that is already gone is not
// an error; the database row is the authoritative state.
func (s *DiskStore) DeleteFrame(projectID, filename string) error {
	err := os.Remove(s.FramePath(projectID, filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskStore) SaveAudio(projectID, filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.audioDir(projectID), 0755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}
	path := s.AudioPath(projectID, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create audio file %s: %w", filename, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write audio bytes: %w", err)
	}
	return path, nil
}

func (s *DiskStore) DeleteAudio(projectID, filename string) error {
	err := os.Remove(s.AudioPath(projectID, filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SaveExportedVideo moves a finished render into its published location,
// replacing any previous export.
func (s *DiskStore) SaveExportedVideo(projectID, tempPath string) (string, error) {
	dir := filepath.Join(s.moviesDir, projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create movies directory: %w", err)
	}
	finalPath := filepath.Join(dir, ExportedVideoName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("failed to publish exported video: %w", err)
	}
	return finalPath, nil
}

// LocateExportedVideo computes the published path. Deterministic; the
// file may or may not exist.
func (s *DiskStore) LocateExportedVideo(projectID string) string {
	return filepath.Join(s.moviesDir, projectID, ExportedVideoName)
}

// ScratchPath returns a path in the scratch area for render temp files.
func (s *DiskStore) ScratchPath(name string) string {
	return filepath.Join(s.scratchDir(), name)
}

// DeleteProjectData removes all blobs belonging to a project. Used on
// project deletion; best-effort by contract, callers log and continue.
func (s *DiskStore) DeleteProjectData(projectID string) error {
	var firstErr error
	for _, dir := range []string{
		filepath.Join(s.projectsDir(), projectID),
		filepath.Join(s.moviesDir, projectID),
	} {
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
