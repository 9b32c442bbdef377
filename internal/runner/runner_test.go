package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appforge/appforge/internal/ui"
)

func newTestRunner() *Runner {
	return New(2*time.Second, 64*1024, zap.NewNop())
}

const calculatorApp = `package main

import (
	"fmt"
	"ui"
)

func RenderApp() {
	ui.Title("Calculator")
	ui.Text("2 + 2 is:")
	ui.Metric("result", fmt.Sprintf("%d", 2+2))
	ui.Success("done")
}
`

func TestRun_RendersDocument(t *testing.T) {
	doc, err := newTestRunner().Run(context.Background(), calculatorApp)
	require.NoError(t, err)
	require.Len(t, doc.Widgets, 4)

	assert.Equal(t, ui.WidgetTitle, doc.Widgets[0].Type)
	assert.Equal(t, "Calculator", doc.Widgets[0].Text)
	assert.Equal(t, ui.WidgetMetric, doc.Widgets[2].Type)
	assert.Equal(t, "4", doc.Widgets[2].Value)
	assert.Equal(t, ui.LevelSuccess, doc.Widgets[3].Level)
}

func TestRun_Idempotent(t *testing.T) {
	r := newTestRunner()
	first, err := r.Run(context.Background(), calculatorApp)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), calculatorApp)
	require.NoError(t, err)
	assert.Equal(t, first, second, "replaying the same code must render the same document")
}

func TestRun_BareSnippetGetsWrapped(t *testing.T) {
	code := `import "ui"

func RenderApp() {
	ui.Text("hello")
}`
	doc, err := newTestRunner().Run(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, doc.Widgets, 1)
	assert.Equal(t, "hello", doc.Widgets[0].Text)
}

func TestRun_SnippetMentioningPackageMainStillWrapped(t *testing.T) {
	code := `// not a package main clause, just a comment
import "ui"

func RenderApp() {
	ui.Text("package main inside a string")
}`
	doc, err := newTestRunner().Run(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, doc.Widgets, 1)
	assert.Equal(t, "package main inside a string", doc.Widgets[0].Text)
}

func TestRun_EmptyCode(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), "   \n ")
	assert.ErrorIs(t, err, ErrEmptyCode)
}

func TestRun_CodeTooLarge(t *testing.T) {
	r := New(time.Second, 32, zap.NewNop())
	_, err := r.Run(context.Background(), calculatorApp)
	assert.ErrorIs(t, err, ErrCodeTooLarge)
}

func TestRun_SyntaxError(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), "package main\n\nfunc RenderApp() {")
	assert.ErrorIs(t, err, ErrEvalFailed)
}

func TestRun_ForbiddenImports(t *testing.T) {
	code := `package main

import (
	"os"
	"net/http"
	"ui"
)

func RenderApp() {
	ui.Text(os.Getenv("HOME"))
	http.Get("http://example.com")
}
`
	_, err := newTestRunner().Run(context.Background(), code)
	require.ErrorIs(t, err, ErrForbiddenImport)
	assert.Contains(t, err.Error(), "net/http")
	assert.Contains(t, err.Error(), "os")
}

func TestRun_MissingEntryPoint(t *testing.T) {
	code := `package main

import "ui"

func drawEverything() {
	ui.Text("never reached")
}
`
	_, err := newTestRunner().Run(context.Background(), code)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.Contains(t, err.Error(), "RenderApp() function not found")
}

func TestRun_WrongEntryPointSignature(t *testing.T) {
	code := `package main

func RenderApp(times int) {}
`
	_, err := newTestRunner().Run(context.Background(), code)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestRun_EntryPointPanics(t *testing.T) {
	code := `package main

import "ui"

func RenderApp() {
	ui.Title("about to fail")
	panic("boom")
}
`
	r := newTestRunner()
	_, err := r.Run(context.Background(), code)
	require.ErrorIs(t, err, ErrRenderFailed)
	assert.Contains(t, err.Error(), "boom")

	// The fault is contained: the runner keeps working afterwards.
	doc, err := r.Run(context.Background(), calculatorApp)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Widgets)
}

func TestRun_SlowTopLevelInitializerIsBounded(t *testing.T) {
	code := `package main

import "time"

func slowInit() int {
	time.Sleep(5 * time.Second)
	return 0
}

var _ = slowInit()

func RenderApp() {}
`
	r := New(100*time.Millisecond, 64*1024, zap.NewNop())
	start := time.Now()
	_, err := r.Run(context.Background(), code)
	assert.ErrorIs(t, err, ErrRunTimeout)
	assert.Less(t, time.Since(start), 2*time.Second,
		"top-level code runs during evaluation and must sit under the same cap")
}

func TestRun_GeneratedMainIsBounded(t *testing.T) {
	code := `package main

import "time"

func main() {
	time.Sleep(5 * time.Second)
}

func RenderApp() {}
`
	r := New(100*time.Millisecond, 64*1024, zap.NewNop())
	start := time.Now()
	_, err := r.Run(context.Background(), code)
	assert.ErrorIs(t, err, ErrRunTimeout)
	assert.Less(t, time.Since(start), 2*time.Second,
		"a main() the workflow emitted executes during evaluation and must sit under the same cap")
}

func TestRun_Timeout(t *testing.T) {
	code := `package main

import "time"

func RenderApp() {
	time.Sleep(5 * time.Second)
}
`
	r := New(100*time.Millisecond, 64*1024, zap.NewNop())
	start := time.Now()
	_, err := r.Run(context.Background(), code)
	assert.ErrorIs(t, err, ErrRunTimeout)
	assert.Less(t, time.Since(start), 2*time.Second, "caller must get an answer at the timeout, not at program end")
}

func TestValidateImports_AllowList(t *testing.T) {
	var imports []string
	for pkg := range allowedImports {
		if pkg == "ui" {
			continue
		}
		imports = append(imports, `"`+pkg+`"`)
	}
	src := "package main\n\nimport (\n" + strings.Join(imports, "\n") + "\n)\n"
	assert.NoError(t, validateImports(src))
}
