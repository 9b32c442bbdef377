// Package ui is the rendering capability handed to generated programs.
// A Page collects widgets in call order; the frontend renders the
// resulting Document. Generated code never touches HTTP or HTML directly.
package ui

import "sync"

type WidgetType string

const (
	WidgetTitle    WidgetType = "title"
	WidgetHeader   WidgetType = "header"
	WidgetText     WidgetType = "text"
	WidgetMarkdown WidgetType = "markdown"
	WidgetCode     WidgetType = "code"
	WidgetBanner   WidgetType = "banner"
	WidgetDivider  WidgetType = "divider"
	WidgetMetric   WidgetType = "metric"
	WidgetList     WidgetType = "list"
	WidgetTable    WidgetType = "table"
)

// Banner severity levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Widget is one renderable element. Only the fields relevant to its
// Type are populated.
type Widget struct {
	Type     WidgetType `json:"type"`
	Text     string     `json:"text,omitempty"`
	Language string     `json:"language,omitempty"`
	Level    string     `json:"level,omitempty"`
	Label    string     `json:"label,omitempty"`
	Value    string     `json:"value,omitempty"`
	Items    []string   `json:"items,omitempty"`
	Columns  []string   `json:"columns,omitempty"`
	Rows     [][]string `json:"rows,omitempty"`
}

// Document is an ordered snapshot of everything a run rendered.
type Document struct {
	Widgets []Widget `json:"widgets"`
}

// Page accumulates widgets for a single run of a generated program.
// Each run gets a fresh Page, so replaying the same code yields the
// same Document.
type Page struct {
	mu      sync.Mutex
	widgets []Widget
}

func NewPage() *Page {
	return &Page{}
}

func (p *Page) append(w Widget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.widgets = append(p.widgets, w)
}

// Title renders the page title.
func (p *Page) Title(text string) {
	p.append(Widget{Type: WidgetTitle, Text: text})
}

// Header renders a section heading.
func (p *Page) Header(text string) {
	p.append(Widget{Type: WidgetHeader, Text: text})
}

// Text renders a paragraph of plain text.
func (p *Page) Text(text string) {
	p.append(Widget{Type: WidgetText, Text: text})
}

// Markdown renders a block of markdown.
func (p *Page) Markdown(text string) {
	p.append(Widget{Type: WidgetMarkdown, Text: text})
}

// Code renders a syntax-highlighted code block.
func (p *Page) Code(code, language string) {
	p.append(Widget{Type: WidgetCode, Text: code, Language: language})
}

// Info renders an informational banner.
func (p *Page) Info(text string) {
	p.append(Widget{Type: WidgetBanner, Level: LevelInfo, Text: text})
}

// Success renders a success banner.
func (p *Page) Success(text string) {
	p.append(Widget{Type: WidgetBanner, Level: LevelSuccess, Text: text})
}

// Warning renders a warning banner.
func (p *Page) Warning(text string) {
	p.append(Widget{Type: WidgetBanner, Level: LevelWarning, Text: text})
}

// Error renders an error banner.
func (p *Page) Error(text string) {
	p.append(Widget{Type: WidgetBanner, Level: LevelError, Text: text})
}

// Divider renders a horizontal rule.
func (p *Page) Divider() {
	p.append(Widget{Type: WidgetDivider})
}

// Metric renders a labeled value, e.g. a score or a running total.
func (p *Page) Metric(label, value string) {
	p.append(Widget{Type: WidgetMetric, Label: label, Value: value})
}

// List renders a bulleted list.
func (p *Page) List(items ...string) {
	p.append(Widget{Type: WidgetList, Items: items})
}

// Table renders a table with a header row.
func (p *Page) Table(columns []string, rows [][]string) {
	p.append(Widget{Type: WidgetTable, Columns: columns, Rows: rows})
}

// Document returns a copy of everything rendered so far.
func (p *Page) Document() *Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc := &Document{Widgets: make([]Widget, len(p.widgets))}
	copy(doc.Widgets, p.widgets)
	return doc
}
