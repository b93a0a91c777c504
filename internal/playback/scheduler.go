// Package playback runs live preview sessions and streams stored media
// over HTTP. A session steps through the same timeline the renderer
// writes to disk: title card, content frames, credits crawl, then loops.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/frameloom/frameloom-studio/internal/project"
	"github.com/frameloom/frameloom-studio/internal/timeline"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNothingToPlay   = errors.New("project has no frames to play")
)

// Phase names the part of the timeline a session is currently showing.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseTitle   Phase = "title"
	PhaseFrames  Phase = "frames"
	PhaseCredits Phase = "credits"
)

// Snapshot is a point-in-time view of a session. TimelineIndex counts
// across title, content and credits slots; ContentIndex indexes the
// frame list and is only meaningful while content is showing. Progress
// is the credits scroll position in [0,1).
type Snapshot struct {
	Phase         Phase   `json:"phase"`
	TimelineIndex int     `json:"timeline_index"`
	ContentIndex  int     `json:"content_index"`
	FrameFilename string  `json:"frame_filename,omitempty"`
	Progress      float64 `json:"progress"`
}

// ProjectSource loads the project and frame list a session plays.
type ProjectSource interface {
	GetProject(ctx context.Context, id string) (*project.Project, error)
	ListFrames(ctx context.Context, projectID string) ([]*project.FrameAsset, error)
}

// AudioLocator resolves a stored audio filename to an absolute path.
type AudioLocator interface {
	AudioPath(projectID, filename string) string
}

// AudioPlayer plays one window of an audio file during the content
// phase. Play must not block for the duration of the clip; Stop kills
// whatever is currently playing and is safe to call when nothing is.
type AudioPlayer interface {
	Play(ctx context.Context, path string, startSeconds, durationSeconds float64) error
	Stop()
}

// Session is one running preview loop. All timeline state lives inside
// the loop goroutine; readers only ever see it through Snapshot copies.
type Session struct {
	projectID string
	source    ProjectSource
	locator   AudioLocator
	player    AudioPlayer
	clock     Clock
	logger    *slog.Logger

	mu   sync.Mutex
	snap Snapshot
	subs map[chan Snapshot]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(projectID string, source ProjectSource, locator AudioLocator, player AudioPlayer, clock Clock, logger *slog.Logger) *Session {
	return &Session{
		projectID: projectID,
		source:    source,
		locator:   locator,
		player:    player,
		clock:     clock,
		logger:    logger,
		subs:      make(map[chan Snapshot]struct{}),
	}
}

// loopState is the per-loop view of the timeline. It is rebuilt from
// the database every time the session wraps around, so edits made while
// the preview runs show up on the next pass.
type loopState struct {
	proj             *project.Project
	frames           []*project.FrameAsset
	titleCount       int
	creditsCount     int
	phase            Phase
	titleRemaining   int
	contentIndex     int
	creditsRemaining int
	audioStarted     bool
}

func (st *loopState) clampedContent() int {
	idx := st.contentIndex
	if idx >= len(st.frames) {
		idx = len(st.frames) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func (st *loopState) snapshot() Snapshot {
	switch st.phase {
	case PhaseTitle:
		return Snapshot{
			Phase:         PhaseTitle,
			TimelineIndex: st.titleCount - st.titleRemaining,
		}
	case PhaseFrames:
		idx := st.clampedContent()
		return Snapshot{
			Phase:         PhaseFrames,
			TimelineIndex: st.titleCount + idx,
			ContentIndex:  idx,
			FrameFilename: st.frames[idx].Filename,
		}
	case PhaseCredits:
		shown := st.creditsCount - st.creditsRemaining
		return Snapshot{
			Phase:         PhaseCredits,
			TimelineIndex: st.titleCount + len(st.frames) + shown,
			ContentIndex:  st.clampedContent(),
			Progress:      float64(shown) / float64(st.creditsCount),
		}
	}
	return Snapshot{Phase: PhaseIdle}
}

// Start validates the project, publishes the first snapshot and spawns
// the tick loop. It returns ErrNothingToPlay for an empty project.
func (s *Session) Start(ctx context.Context) error {
	st, err := s.beginLoop(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.publish(st.snapshot())
	s.maybeStartAudio(runCtx, st)

	go s.run(runCtx, st)
	return nil
}

// Stop cancels the loop and blocks until it has fully unwound, so no
// tick lands after Stop returns. The overlay is reset to idle.
func (s *Session) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Done is closed once the loop has exited, whether by Stop or on error.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the most recently published state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers a listener fed one Snapshot per tick, starting
// with the current state. Slow listeners miss intermediate snapshots
// rather than stalling the loop. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.snap
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

func (s *Session) publish(sn Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = sn
	for ch := range s.subs {
		select {
		case ch <- sn:
		default:
		}
	}
}

func (s *Session) run(ctx context.Context, st *loopState) {
	defer close(s.done)
	defer s.publish(Snapshot{Phase: PhaseIdle})
	defer s.stopAudio()

	fps := project.ClampFPS(st.proj.FPS)
	ticks, stopTicks := s.clock.Tick(time.Second / time.Duration(fps))
	defer func() { stopTicks() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			next, wrapped, err := s.advance(ctx, st)
			if err != nil {
				s.logger.Warn("playback loop ended",
					"project_id", s.projectID,
					"error", err)
				return
			}
			st = next
			if wrapped {
				if newFPS := project.ClampFPS(st.proj.FPS); newFPS != fps {
					stopTicks()
					fps = newFPS
					ticks, stopTicks = s.clock.Tick(time.Second / time.Duration(fps))
				}
			}
			s.publish(st.snapshot())
			s.maybeStartAudio(ctx, st)
		}
	}
}

// advance applies one tick. wrapped reports that the loop restarted
// from a freshly loaded project.
func (s *Session) advance(ctx context.Context, st *loopState) (next *loopState, wrapped bool, err error) {
	switch st.phase {
	case PhaseTitle:
		st.titleRemaining--
		if st.titleRemaining <= 0 {
			st.phase = PhaseFrames
			st.contentIndex = 0
		}
	case PhaseFrames:
		st.contentIndex++
		if st.contentIndex >= len(st.frames) {
			s.stopAudio()
			if st.creditsCount > 0 {
				st.phase = PhaseCredits
				st.creditsRemaining = st.creditsCount
			} else {
				next, err = s.beginLoop(ctx)
				return next, true, err
			}
		}
	case PhaseCredits:
		st.creditsRemaining--
		if st.creditsRemaining <= 0 {
			next, err = s.beginLoop(ctx)
			return next, true, err
		}
	}
	return st, false, nil
}

// beginLoop reloads the project and frame list and positions the state
// at the top of the timeline.
func (s *Session) beginLoop(ctx context.Context) (*loopState, error) {
	proj, err := s.source.GetProject(ctx, s.projectID)
	if err != nil {
		return nil, err
	}
	if proj == nil {
		return nil, ErrProjectNotFound
	}
	frames, err := s.source.ListFrames(ctx, s.projectID)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, ErrNothingToPlay
	}

	st := &loopState{
		proj:         proj,
		frames:       frames,
		titleCount:   timeline.TitleFrameCount(proj),
		creditsCount: timeline.CreditsFrameCount(proj),
	}
	if st.titleCount > 0 {
		st.phase = PhaseTitle
		st.titleRemaining = st.titleCount
	} else {
		st.phase = PhaseFrames
	}
	return st, nil
}

// maybeStartAudio kicks off the audio window the first time a loop pass
// shows a content frame. The window is clipped so it never outlasts the
// content itself.
func (s *Session) maybeStartAudio(ctx context.Context, st *loopState) {
	if st.phase != PhaseFrames || st.audioStarted {
		return
	}
	st.audioStarted = true

	audio := st.proj.Audio
	if audio == nil || s.player == nil {
		return
	}
	duration := audio.SelectionLength()
	if content := st.proj.ContentSeconds(len(st.frames)); duration > content {
		duration = content
	}
	if duration <= 0 {
		return
	}
	path := s.locator.AudioPath(s.projectID, audio.Filename)
	if err := s.player.Play(ctx, path, audio.SelectionStart, duration); err != nil {
		s.logger.Warn("failed to start audio playback",
			"project_id", s.projectID,
			"error", err)
	}
}

func (s *Session) stopAudio() {
	if s.player != nil {
		s.player.Stop()
	}
}

// Manager owns at most one session per project. Starting a project that
// is already playing stops the old session before the new one begins.
type Manager struct {
	ctx       context.Context
	source    ProjectSource
	locator   AudioLocator
	newPlayer func() AudioPlayer
	clock     Clock
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires a manager. ctx bounds every session it starts;
// newPlayer is invoked once per session so players are never shared.
func NewManager(ctx context.Context, source ProjectSource, locator AudioLocator, newPlayer func() AudioPlayer, clock Clock, logger *slog.Logger) *Manager {
	return &Manager{
		ctx:       ctx,
		source:    source,
		locator:   locator,
		newPlayer: newPlayer,
		clock:     clock,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Start begins playback for a project, replacing any prior session.
func (m *Manager) Start(projectID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[projectID]; ok {
		existing.Stop()
		delete(m.sessions, projectID)
	}

	var player AudioPlayer
	if m.newPlayer != nil {
		player = m.newPlayer()
	}
	session := newSession(projectID, m.source, m.locator, player, m.clock, m.logger)
	if err := session.Start(m.ctx); err != nil {
		return nil, err
	}
	m.sessions[projectID] = session
	m.logger.Info("playback started", "project_id", projectID)
	return session, nil
}

// Stop ends the project's session if one is running and reports whether
// there was one.
func (m *Manager) Stop(projectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[projectID]
	if !ok {
		return false
	}
	session.Stop()
	delete(m.sessions, projectID)
	m.logger.Info("playback stopped", "project_id", projectID)
	return true
}

// Get returns the project's session, or nil when none is running.
func (m *Manager) Get(projectID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[projectID]
}

// StopAll ends every session. Called on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		session.Stop()
		delete(m.sessions, id)
	}
}
