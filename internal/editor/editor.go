package editor

import (
	"sync"

	"github.com/codepair/codepair/internal/types"
)

// Editor is the opaque text-editing component the reconciliation
// engine drives. Implementations notify registered change handlers on
// every text mutation, including programmatic SetText calls, which is
// exactly the echo the engine has to suppress.
type Editor interface {
	Text() string
	SetText(text string)
	Cursor() types.CursorPosition
	SetCursor(pos types.CursorPosition)
	ScrollTop() int
	SetScrollTop(top int)
	OnChange(fn func())
}

// Buffer is an in-memory Editor used by tests and headless clients.
type Buffer struct {
	mu        sync.Mutex
	text      string
	cursor    types.CursorPosition
	scrollTop int
	onChange  []func()
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	b.text = text
	handlers := make([]func(), len(b.onChange))
	copy(handlers, b.onChange)
	b.mu.Unlock()

	// change handlers fire for programmatic writes too, like a real
	// editor widget does
	for _, fn := range handlers {
		fn()
	}
}

func (b *Buffer) Cursor() types.CursorPosition {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

func (b *Buffer) SetCursor(pos types.CursorPosition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = pos
}

func (b *Buffer) ScrollTop() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scrollTop
}

func (b *Buffer) SetScrollTop(top int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrollTop = top
}

func (b *Buffer) OnChange(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = append(b.onChange, fn)
}
