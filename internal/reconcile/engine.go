package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/codepair/codepair/internal/editor"
	"github.com/codepair/codepair/internal/types"
)

// State is the engine's sync state. A single state with timed
// auto-return to Idle replaces the original trio of in-flight flags so
// overlapping guard combinations are unrepresentable.
type State int

const (
	StateIdle State = iota
	StateEmittingLocal
	StateApplyingRemote
	StateEmittingLanguage
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEmittingLocal:
		return "emitting-local"
	case StateApplyingRemote:
		return "applying-remote"
	case StateEmittingLanguage:
		return "emitting-language"
	default:
		return "unknown"
	}
}

const (
	// codeGuardDelay absorbs the editor's own change notification
	// after a remote write, and re-arms local emission. Code changes
	// are high frequency, so this window stays short.
	codeGuardDelay = 50 * time.Millisecond
	// languageGuardDelay is longer since language switches are rare
	// and their downstream effects settle more slowly.
	languageGuardDelay = 100 * time.Millisecond
	// emitTimeout bounds every outward call so a dead server surfaces
	// a failure instead of hanging the engine.
	emitTimeout = 5 * time.Second
)

// Emitter propagates locally-originated edits outward, either by
// writing to the room store or by sending to the broadcast server.
type Emitter interface {
	SendCode(ctx context.Context, code string) error
	SendLanguage(ctx context.Context, language string) error
}

type emissionKind int

const (
	emitCode emissionKind = iota
	emitLanguage
)

// emission is one queued outward send. A single worker drains the
// queue, so emissions reach the server in the order they were
// produced even when an earlier send is slow.
type emission struct {
	kind     emissionKind
	code     string
	language string
	gen      uint64
}

// Engine merges externally-observed room snapshots with local editor
// state without feedback loops. It assumes cooperative, one-at-a-time
// delivery of editor change notifications, matching a UI event loop.
type Engine struct {
	log     *log.Logger
	editor  editor.Editor
	emitter Emitter

	codeGuardDelay     time.Duration
	languageGuardDelay time.Duration

	sendQueue chan emission
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	state    State
	gen      uint64
	language string
	// last is the most recent snapshot already reconciled, used to
	// tell genuinely new remote state from an echo of our own write.
	last *types.Snapshot

	onCode     func(code string)
	onLanguage func(language string)
}

// NewEngine wires the engine to the editor's change notifications.
// language is the locally active language at connect time.
func NewEngine(logger *log.Logger, ed editor.Editor, em Emitter, language string) *Engine {
	e := &Engine{
		log:                logger,
		editor:             ed,
		emitter:            em,
		codeGuardDelay:     codeGuardDelay,
		languageGuardDelay: languageGuardDelay,
		sendQueue:          make(chan emission, 64),
		done:               make(chan struct{}),
		state:              StateIdle,
		language:           language,
	}
	ed.OnChange(e.LocalChange)
	go e.emitLoop()

	return e
}

// Close stops the emission worker. Queued sends are dropped.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
}

// OnCodeUpdate registers a downstream observer for remotely-applied
// code, e.g. the surrounding editor state store.
func (e *Engine) OnCodeUpdate(fn func(code string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCode = fn
}

// OnLanguageUpdate registers a downstream observer for
// remotely-applied language changes.
func (e *Engine) OnLanguageUpdate(fn func(language string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLanguage = fn
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Language() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.language
}

// enterStateLocked transitions to s and, when delay is non-zero,
// schedules the auto-return to Idle. The returned generation lets
// callers schedule their own deferred clear; a stale generation never
// clobbers a newer state.
func (e *Engine) enterStateLocked(s State, delay time.Duration) uint64 {
	e.gen++
	e.state = s
	gen := e.gen

	if delay > 0 {
		time.AfterFunc(delay, func() {
			e.clearGuard(gen)
		})
	}

	return gen
}

func (e *Engine) clearGuard(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen == gen && e.state != StateIdle {
		e.state = StateIdle
	}
}

// ApplySnapshot reconciles an observed or pushed whole-state snapshot
// with the editor. The snapshot always replaces prior state, never
// diffs against it.
func (e *Engine) ApplySnapshot(snap types.Snapshot) {
	e.mu.Lock()
	// mid-send: our own forthcoming write will reconcile this
	if e.state == StateEmittingLocal {
		e.mu.Unlock()
		return
	}

	current := e.editor.Text()
	applyCode := snap.Code != current && (e.last == nil || snap.Code != e.last.Code)
	if applyCode {
		e.enterStateLocked(StateApplyingRemote, e.codeGuardDelay)
	}
	e.mu.Unlock()

	if applyCode {
		// the guard is already up, so the change notification SetText
		// triggers is swallowed by LocalChange
		pos := e.editor.Cursor()
		top := e.editor.ScrollTop()
		e.editor.SetText(snap.Code)
		e.editor.SetCursor(pos)
		e.editor.SetScrollTop(top)

		e.mu.Lock()
		notify := e.onCode
		e.mu.Unlock()
		if notify != nil {
			notify(snap.Code)
		}
	}

	e.mu.Lock()
	applyLang := snap.Language != e.language &&
		(e.last == nil || snap.Language != e.last.Language) &&
		e.state != StateEmittingLanguage
	if applyLang {
		e.language = snap.Language
		if applyCode {
			// the remote-apply guard keeps its full window; the
			// language guard takes over only once it expires
			gen := e.gen
			time.AfterFunc(e.codeGuardDelay, func() {
				e.mu.Lock()
				if e.gen == gen {
					e.enterStateLocked(StateEmittingLanguage, e.languageGuardDelay)
				}
				e.mu.Unlock()
			})
		} else {
			e.enterStateLocked(StateEmittingLanguage, e.languageGuardDelay)
		}
	}
	e.last = &types.Snapshot{Code: snap.Code, Language: snap.Language}
	notifyLang := e.onLanguage
	e.mu.Unlock()

	if applyLang && notifyLang != nil {
		notifyLang(snap.Language)
	}
}

// ApplyRemoteCode reconciles a pushed code-only event.
func (e *Engine) ApplyRemoteCode(code string) {
	e.ApplySnapshot(types.Snapshot{Code: code, Language: e.Language()})
}

// ApplyRemoteLanguage reconciles a pushed language-only event.
func (e *Engine) ApplyRemoteLanguage(language string) {
	e.ApplySnapshot(types.Snapshot{Code: e.editor.Text(), Language: language})
}

// LocalChange handles the editor's change notification. Every
// keystroke emits independently; there is no coalescing, so a second
// change while a send is in flight re-arms the guard and queues
// another emission behind it.
func (e *Engine) LocalChange() {
	e.mu.Lock()
	// this notification is the echo of a remote write being applied
	if e.state == StateApplyingRemote {
		e.mu.Unlock()
		return
	}

	gen := e.enterStateLocked(StateEmittingLocal, 0)
	e.mu.Unlock()

	select {
	case e.sendQueue <- emission{kind: emitCode, code: e.editor.Text(), gen: gen}:
	case <-e.done:
		e.clearGuard(gen)
	}
}

// LocalLanguageChange handles a locally-selected language switch.
func (e *Engine) LocalLanguageChange(language string) {
	e.mu.Lock()
	if e.state == StateEmittingLanguage || (e.last != nil && e.last.Language == language) {
		e.mu.Unlock()
		return
	}

	e.language = language
	e.mu.Unlock()

	select {
	case e.sendQueue <- emission{kind: emitLanguage, language: language}:
	case <-e.done:
	}
}

// emitLoop sends queued emissions one at a time. The ordering matters:
// with concurrent sends a slow early keystroke could land after the
// final one and a last-write-wins store would keep the stale text.
func (e *Engine) emitLoop() {
	for {
		select {
		case <-e.done:
			return
		case em := <-e.sendQueue:
			ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)

			switch em.kind {
			case emitCode:
				if err := e.emitter.SendCode(ctx, em.code); err != nil {
					// a lost edit is superseded by the next successful
					// emission
					e.log.Printf("send code: %v", err)
				}

				// the guard clears on success and failure alike so the
				// engine never sticks in a state that suppresses future
				// echoes
				time.AfterFunc(e.codeGuardDelay, func() {
					e.clearGuard(em.gen)
				})
			case emitLanguage:
				if err := e.emitter.SendLanguage(ctx, em.language); err != nil {
					e.log.Printf("send language: %v", err)
				}
			}

			cancel()
		}
	}
}
