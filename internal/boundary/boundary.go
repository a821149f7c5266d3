// Package boundary catches failures at the edge of a user action and shows a
// localized fallback instead of crashing.
package boundary

import (
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
)

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type Boundary struct {
	mu      sync.Mutex
	lastErr error

	out  io.Writer
	lang func() domain.Lang
	log  *slog.Logger
}

// New creates a boundary that writes fallback notices to out in the language lang returns.
func New(out io.Writer, lang func() domain.Lang, log *slog.Logger) *Boundary {
	return &Boundary{out: out, lang: lang, log: log}
}

// Run calls fn. An error or panic is stored as the last error, logged and
// replaced by the fallback notice. It reports whether fn succeeded.
func (b *Boundary) Run(fn func() error) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			b.fail(&PanicError{Value: rec, Stack: debug.Stack()})
			ok = false
		}
	}()

	if err := fn(); err != nil {
		b.fail(err)
		return false
	}
	return true
}

// Retry clears the last error and runs fn again.
func (b *Boundary) Retry(fn func() error) bool {
	b.Reset()
	return b.Run(fn)
}

func (b *Boundary) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastErr = nil
}

func (b *Boundary) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Boundary) fail(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	b.log.Error("Action failed", "error", err)
	fmt.Fprintln(b.out, FallbackMessage(b.lang()))
}

// FallbackMessage is the notice shown in place of a failed action.
func FallbackMessage(lang domain.Lang) string {
	if lang == domain.LangEN {
		return "Something went wrong. Your data is safe; please try again."
	}
	return "Bir şeyler ters gitti. Verileriniz güvende; lütfen tekrar deneyin."
}
