// Package runner executes generated Go programs in an embedded
// interpreter. Each run gets a fresh interpreter whose symbol table
// contains a restricted stdlib subset plus the "ui" capability bound
// to that run's page, so generated code can render output but cannot
// reach the filesystem, the network, or the host process.
package runner

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/appforge/appforge/internal/ui"
)

// EntryPoint is the zero-argument function every generated program
// must define to produce output.
const EntryPoint = "RenderApp"

var (
	ErrEmptyCode       = errors.New("no code to run")
	ErrCodeTooLarge    = errors.New("code exceeds the size limit")
	ErrForbiddenImport = errors.New("forbidden import")
	ErrEvalFailed      = errors.New("code evaluation failed")
	ErrNoEntryPoint    = fmt.Errorf("%s() function not found in generated code", EntryPoint)
	ErrRenderFailed    = fmt.Errorf("error while running %s()", EntryPoint)
	ErrRunTimeout      = errors.New("generated program timed out")
)

// allowedImports is the stdlib subset exposed to generated code, plus
// the injected "ui" capability. os, net, syscall, unsafe and friends
// are deliberately absent.
var allowedImports = map[string]bool{
	"ui":            true,
	"errors":        true,
	"fmt":           true,
	"math":          true,
	"math/rand":     true,
	"regexp":        true,
	"sort":          true,
	"strconv":       true,
	"strings":       true,
	"time":          true,
	"unicode":       true,
	"encoding/json": true,
}

// Runner interprets generated programs.
type Runner struct {
	timeout     time.Duration
	maxCodeSize int
	symbols     interp.Exports
	log         *zap.Logger
}

func New(timeout time.Duration, maxCodeSize int, log *zap.Logger) *Runner {
	return &Runner{
		timeout:     timeout,
		maxCodeSize: maxCodeSize,
		symbols:     restrictedSymbols(),
		log:         log,
	}
}

// Run evaluates code and invokes its entry point, returning the widget
// document the program rendered. The three fault domains stay separate:
// evaluation errors, a missing entry point, and errors raised while the
// entry point runs each map to their own sentinel.
func (r *Runner) Run(ctx context.Context, code string) (*ui.Document, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if len(code) > r.maxCodeSize {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrCodeTooLarge, len(code), r.maxCodeSize)
	}

	src := wrapProgram(code)
	if err := validateImports(src); err != nil {
		return nil, err
	}

	page := ui.NewPage()

	i := interp.New(interp.Options{})
	if err := i.Use(r.symbols); err != nil {
		return nil, fmt.Errorf("load interpreter symbols: %w", err)
	}
	if err := i.Use(capabilityExports(page)); err != nil {
		return nil, fmt.Errorf("bind ui capability: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Evaluation runs generated code too: top-level initializers, and a
	// main() if the workflow emitted one, execute during Eval. The whole
	// sequence sits behind the timeout so no phase is unbounded.
	done := make(chan error, 1)
	go func() {
		phase := ErrEvalFailed
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("%w: %v", phase, rec)
			}
		}()

		if _, err := i.Eval(src); err != nil {
			done <- fmt.Errorf("%w: %v", ErrEvalFailed, err)
			return
		}

		entry, err := i.Eval("main." + EntryPoint)
		if err != nil {
			done <- ErrNoEntryPoint
			return
		}
		render, ok := entry.Interface().(func())
		if !ok {
			done <- ErrNoEntryPoint
			return
		}

		phase = ErrRenderFailed
		render()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return page.Document(), nil
	case <-ctx.Done():
		// The interpreter goroutine cannot be preempted; the caller
		// gets an answer but the run may keep burning a goroutine.
		r.log.Warn("generated program timed out", zap.Duration("timeout", r.timeout))
		return nil, fmt.Errorf("%w after %s", ErrRunTimeout, r.timeout)
	}
}

// wrapProgram adds a package clause when the workflow returns a bare
// snippet instead of a full program. The parser decides: a substring
// match would misfire on "package main" inside a comment or string.
func wrapProgram(code string) string {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "generated.go", code, parser.PackageClauseOnly); err != nil {
		return "package main\n\n" + code
	}
	return code
}

// validateImports parses the program and rejects any import outside
// the allow-list before the interpreter sees it.
func validateImports(src string) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "generated.go", src, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEvalFailed, err)
	}

	var forbidden []string
	for _, imp := range f.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if !allowedImports[path] {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) > 0 {
		sort.Strings(forbidden)
		return fmt.Errorf("%w: %s", ErrForbiddenImport, strings.Join(forbidden, ", "))
	}
	return nil
}

// restrictedSymbols filters the interpreter's stdlib symbol table down
// to the allow-list. Blocking at the symbol level backs up the AST
// check: even a smuggled import has nothing to resolve against.
func restrictedSymbols() interp.Exports {
	out := interp.Exports{}
	for path, symbols := range stdlib.Symbols {
		// Keys look like "fmt/fmt" or "math/rand/rand".
		idx := strings.LastIndex(path, "/")
		if idx < 0 {
			continue
		}
		if allowedImports[path[:idx]] {
			out[path] = symbols
		}
	}
	return out
}

// capabilityExports exposes the run's page as the synthetic "ui"
// package. Every symbol is a method value bound to this page, so the
// capability travels by reference instead of as ambient global state.
func capabilityExports(page *ui.Page) interp.Exports {
	return interp.Exports{
		"ui/ui": {
			"Title":    reflect.ValueOf(page.Title),
			"Header":   reflect.ValueOf(page.Header),
			"Text":     reflect.ValueOf(page.Text),
			"Markdown": reflect.ValueOf(page.Markdown),
			"Code":     reflect.ValueOf(page.Code),
			"Info":     reflect.ValueOf(page.Info),
			"Success":  reflect.ValueOf(page.Success),
			"Warning":  reflect.ValueOf(page.Warning),
			"Error":    reflect.ValueOf(page.Error),
			"Divider":  reflect.ValueOf(page.Divider),
			"Metric":   reflect.ValueOf(page.Metric),
			"List":     reflect.ValueOf(page.List),
			"Table":    reflect.ValueOf(page.Table),
		},
	}
}
