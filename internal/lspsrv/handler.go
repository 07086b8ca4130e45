// Package lspsrv implements the IL language server: diagnostics and
// hover for .il files over the glsp protocol, backed by a content map
// keyed by document path, with diagnostics published on open/change. It
// only calls the public entry points of internal/ilsyntax and
// internal/diag — it never reaches into interpreter or pass-manager
// internals.
package lspsrv

import (
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"ilforge/internal/diag"
	"ilforge/internal/ilsyntax"
)

// Handler implements the glsp protocol.Handler callbacks for the IL.
type Handler struct {
	mu       sync.RWMutex
	content  map[string]string // path -> source text
	reporter *diag.Reporter    // records every parse error across the session
}

// NewHandler creates an empty handler with no open documents.
func NewHandler() *Handler {
	return &Handler{content: make(map[string]string), reporter: diag.NewReporter("", "")}
}

func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Println("IL LSP Initialize called")
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			HoverProvider: &protocol.HoverOptions{},
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Println("IL LSP Initialized")
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	log.Println("IL LSP Shutdown")
	return nil
}

func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	return h.refresh(ctx, params.TextDocument.URI, params.TextDocument.Text)
}

func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// TextDocumentSyncKindFull means the last change event carries the
	// whole new document text, not an incremental delta.
	last := params.ContentChanges[len(params.ContentChanges)-1]
	change, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return fmt.Errorf("unexpected incremental change event for %s", params.TextDocument.URI)
	}
	return h.refresh(ctx, params.TextDocument.URI, change.Text)
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(string(params.TextDocument.URI))
	if err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.content, path)
	h.mu.Unlock()
	return nil
}

// TextDocumentHover shows a register's most recent static definition
// line at or before the hovered position — a textual approximation
// since the CFG built by ilsyntax.Parse carries no source positions of
// its own (textual layer is a one-way lowering).
func (h *Handler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	path, err := uriToPath(string(params.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	source, ok := h.content[path]
	h.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	reg, ok := registerAt(source, int(params.Position.Line), int(params.Position.Character))
	if !ok {
		return nil, nil
	}
	defLine, defText, found := lastDefinitionBefore(source, reg, int(params.Position.Line))
	if !found {
		return &protocol.Hover{
			Contents: protocol.MarkupContent{Kind: protocol.MarkupKindPlainText, Value: fmt.Sprintf("%%%s: no definition found", reg)},
		}, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("**%%%s** defined at line %d:\n```\n%s\n```", reg, defLine+1, strings.TrimSpace(defText)),
		},
	}, nil
}

func (h *Handler) refresh(ctx *glsp.Context, uri protocol.DocumentUri, text string) error {
	path, err := uriToPath(string(uri))
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.content[path] = text
	h.mu.Unlock()

	_, _, parseErr := ilsyntax.Parse(path, text)
	if de, ok := parseErr.(*diag.Error); ok {
		h.reporter.Record(de)
	}
	sendDiagnostics(ctx, uri, convertDiagnostics(parseErr), breakpointHints(text))
	return nil
}

func convertDiagnostics(err error) []protocol.Diagnostic {
	de, ok := err.(*diag.Error)
	if !ok || de == nil {
		return nil
	}
	if de.Pos == nil {
		return []protocol.Diagnostic{{
			Range:    protocol.Range{},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("ilc"),
			Message:  de.Message,
		}}
	}
	length := de.Length
	if length <= 0 {
		length = 1
	}
	line := uint32(de.Pos.Line - 1)
	col := uint32(de.Pos.Column - 1)
	return []protocol.Diagnostic{{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col + uint32(length)},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Source:   ptrString("ilc"),
		Message:  de.Message,
	}}
}

// breakpointHints reports a Hint-severity diagnostic on every "brkpt"
// line, the server's breakpoint-aware behavior: it doesn't drive the
// interpreter itself, it just surfaces where a debug
// session would suspend.
func breakpointHints(source string) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	for i, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "brkpt") {
			continue
		}
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(i), Character: 0},
				End:   protocol.Position{Line: uint32(i), Character: uint32(len(line))},
			},
			Severity: ptrSeverity(protocol.DiagnosticSeverityHint),
			Source:   ptrString("ilc"),
			Message:  "breakpoint: the debugger suspends here",
		})
	}
	return out
}

func sendDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, sets ...[]protocol.Diagnostic) {
	var all []protocol.Diagnostic
	for _, s := range sets {
		all = append(all, s...)
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: all,
	})
}

// registerAt finds the %-prefixed identifier touching (line, char) in
// source, if any, and returns its name without the sigil.
func registerAt(source string, line, char int) (string, bool) {
	lines := strings.Split(source, "\n")
	if line < 0 || line >= len(lines) {
		return "", false
	}
	text := lines[line]
	start := char
	for start > 0 && isNameByte(text[start-1]) {
		start--
	}
	end := char
	for end < len(text) && isNameByte(text[end]) {
		end++
	}
	if start == 0 || text[start-1] != '%' {
		return "", false
	}
	if start >= end {
		return "", false
	}
	return text[start:end], true
}

func isNameByte(b byte) bool {
	return b == '.' || b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// lastDefinitionBefore scans source textually for the last line at or
// before beforeLine of the form "%reg = ...", the surface syntax's
// only assignment shape (AssignLine).
func lastDefinitionBefore(source, reg string, beforeLine int) (int, string, bool) {
	lines := strings.Split(source, "\n")
	prefix := "%" + reg + " ="
	best := -1
	for i, line := range lines {
		if i > beforeLine {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			best = i
		}
	}
	if best < 0 {
		return 0, "", false
	}
	return best, lines[best], true
}

func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}
	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func ptrBool(b bool) *bool                                       { return &b }
func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }
func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity     { return &s }
func ptrString(s string) *string                                 { return &s }
