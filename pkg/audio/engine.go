package audio

import (
	"context"
	"encoding/base64"
	"log/slog"
	"slices"
	"sync"

	"github.com/papercomputeco/murmur/pkg/logger"
)

// State is a point in time view of the playback queue.
type State struct {
	IsPlaying   bool
	QueueLength int
	IsMuted     bool
	IsPaused    bool
}

// Engine reorders sequenced PCM fragments, packs contiguous audio into WAV
// units once the flush threshold is crossed and plays the units strictly in
// queue order through a Player.
//
// All methods are safe for concurrent use. The state listener is called
// without the engine lock held.
type Engine struct {
	player    Player
	format    Format
	threshold int
	logger    *slog.Logger
	listener  func(State)

	mu       sync.Mutex
	nextSeq  int
	pending  map[int][]byte
	acc      []byte
	queue    []*Unit
	draining bool
	paused   bool
	muted    bool
	closed   bool

	// epoch identifies the current playback generation. A drain goroutine
	// that observes a different epoch never starts another unit.
	epoch  uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFormat sets the PCM format of incoming fragments.
func WithFormat(f Format) EngineOption {
	return func(e *Engine) {
		e.format = f
	}
}

// WithFlushThreshold sets how many contiguous bytes are buffered before a
// unit is queued.
func WithFlushThreshold(n int) EngineOption {
	return func(e *Engine) {
		e.threshold = n
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStateListener registers fn to receive every state change.
func WithStateListener(fn func(State)) EngineOption {
	return func(e *Engine) {
		e.listener = fn
	}
}

// NewEngine creates an Engine playing through player.
func NewEngine(player Player, opts ...EngineOption) *Engine {
	e := &Engine{
		player:  player,
		format:  DefaultFormat,
		logger:  logger.Nop(),
		pending: make(map[int][]byte),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.threshold <= 0 {
		e.threshold = e.format.ByteRate()
	}

	return e
}

// AddSequencedChunk decodes one base64 fragment and feeds it to the reorder
// buffer. A fragment whose sequence was already assembled is ignored; a
// duplicate of a pending fragment replaces it.
func (e *Engine) AddSequencedChunk(payload string, sequence int) error {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decodeErr := &DecodeError{Sequence: sequence, Err: err}
		e.logger.Warn("dropping audio fragment", "sequence", sequence, "error", err)
		return decodeErr
	}

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return nil
	}

	if sequence < e.nextSeq {
		e.mu.Unlock()
		e.logger.Debug("ignoring already assembled audio fragment",
			"sequence", sequence,
			"next", e.nextSeq,
		)
		return nil
	}

	e.pending[sequence] = data
	for {
		frag, ok := e.pending[e.nextSeq]
		if !ok {
			break
		}
		delete(e.pending, e.nextSeq)
		e.acc = append(e.acc, frag...)
		e.nextSeq++
	}

	queued := false
	if len(e.acc) >= e.threshold {
		queued = e.flushLocked()
		e.startLocked()
	}
	st := e.stateLocked()
	e.mu.Unlock()

	if queued {
		e.notify(st)
	}
	return nil
}

// FinalizeStream queues whatever contiguous audio is buffered, discards
// fragments still waiting behind a gap and resets the sequence counter for
// the next stream.
func (e *Engine) FinalizeStream() {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return
	}

	e.flushLocked()

	if len(e.pending) > 0 {
		discarded := make([]int, 0, len(e.pending))
		for seq := range e.pending {
			discarded = append(discarded, seq)
		}
		slices.Sort(discarded)
		e.logger.Warn("discarding non-contiguous audio fragments",
			"expected", e.nextSeq,
			"sequences", discarded,
		)
	}

	// a trailing odd byte is half a sample
	e.acc = nil
	e.pending = make(map[int][]byte)
	e.nextSeq = 0

	e.startLocked()
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
}

// Pause freezes the playing unit. Queued units stay queued.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.player.Pause()
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
}

// Resume continues a paused unit.
func (e *Engine) Resume() {
	e.mu.Lock()
	if !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	e.player.Resume()
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
}

// SetMuted silences output without discarding audio.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	if e.muted == muted {
		e.mu.Unlock()
		return
	}
	e.muted = muted
	e.player.SetMuted(muted)
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
}

// Stop cancels the playing unit, releases every queued unit and clears the
// reorder and accumulation buffers. Mute is kept; pause is cleared.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopLocked()
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
}

// Close stops playback and waits for the playback goroutine to exit. The
// engine ignores fragments afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.stopLocked()
	e.mu.Unlock()

	e.wg.Wait()
}

// State returns the current playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// stopLocked resets playback. Player controls run under e.mu so the
// player's pause state always matches e.paused.
func (e *Engine) stopLocked() {
	e.epoch++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.draining = false

	for _, u := range e.queue {
		u.Release()
	}
	e.queue = nil
	e.acc = nil
	e.pending = make(map[int][]byte)
	e.nextSeq = 0

	if e.paused {
		e.paused = false
		e.player.Resume()
	}
}

// flushLocked queues the whole-sample prefix of the accumulation buffer.
func (e *Engine) flushLocked() bool {
	n := len(e.acc)
	n -= n % e.format.BlockAlign()
	if n == 0 {
		return false
	}

	u := NewUnit(e.acc[:n], e.format)
	e.acc = append([]byte(nil), e.acc[n:]...)
	e.queue = append(e.queue, u)

	e.logger.Debug("queued audio unit",
		"unit", u.ID,
		"samples", u.Samples,
		"duration", u.Duration,
		"queue", len(e.queue),
	)
	return true
}

func (e *Engine) startLocked() {
	if e.draining || e.closed || len(e.queue) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.draining = true

	e.wg.Add(1)
	go e.drain(ctx, cancel, e.epoch)
}

func (e *Engine) drain(ctx context.Context, cancel context.CancelFunc, epoch uint64) {
	defer e.wg.Done()
	defer cancel()

	for {
		e.mu.Lock()
		if e.epoch != epoch {
			e.mu.Unlock()
			return
		}
		if len(e.queue) == 0 {
			e.draining = false
			e.cancel = nil
			st := e.stateLocked()
			e.mu.Unlock()

			e.notify(st)
			return
		}

		u := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		st := e.stateLocked()
		e.mu.Unlock()

		e.notify(st)

		err := e.player.Play(ctx, u)
		u.Release()

		if err != nil && ctx.Err() == nil {
			e.logger.Warn("audio playback failed",
				"error", &PlaybackError{UnitID: u.ID, Err: err},
			)
		}
	}
}

func (e *Engine) stateLocked() State {
	return State{
		IsPlaying:   e.draining && !e.paused,
		QueueLength: len(e.queue),
		IsMuted:     e.muted,
		IsPaused:    e.paused,
	}
}

func (e *Engine) notify(st State) {
	if e.listener != nil {
		e.listener(st)
	}
}
