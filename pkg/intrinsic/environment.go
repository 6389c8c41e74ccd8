package intrinsic

import (
	"strings"
	"sync"

	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// Environment binds the two input scopes an intrinsic-function
// expression can reference: FuncInput (the "$…" root, the current
// state's effective input) and Context (the "$$…" root, the task
// context object). It is created fresh per evaluation; it does not
// itself hold the built-in registry, which is process-wide.
type Environment struct {
	FuncInput interface{}
	Context   interface{}
}

// Callable is implemented by every built-in registered in the
// process-wide registry. Arity returns nil for a variadic built-in;
// otherwise it is the exact argument count the interpreter enforces
// before invoking Call.
type Callable interface {
	Arity() *int
	Call(interp *Interpreter, args []interface{}) (interface{}, error)
}

type builtinFunc struct {
	name  string
	arity *int
	fn    func(interp *Interpreter, args []interface{}) (interface{}, error)
}

func (b *builtinFunc) Arity() *int { return b.arity }
func (b *builtinFunc) Call(interp *Interpreter, args []interface{}) (interface{}, error) {
	return b.fn(interp, args)
}

func fixedArity(n int) *int { return &n }

var (
	registryMu sync.RWMutex
	registry   = map[string]Callable{}
)

// Register adds a built-in to the process-wide registry. It is meant
// to be called once during package init; the registry rejects
// duplicate names and any name beginning with "$" (reserved for
// JSONPath variables).
func Register(name string, c Callable) error {
	if strings.HasPrefix(name, "$") {
		return &wkerrors.RuntimeError{Lexeme: name, Msg: "built-in names may not begin with '$'"}
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return &wkerrors.RuntimeError{Lexeme: name, Msg: "built-in already registered"}
	}
	registry[name] = c
	return nil
}

// Lookup resolves a dotted built-in name against the registry.
func Lookup(name string) (Callable, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[name]
	return c, ok
}
