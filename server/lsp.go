package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/rexpr/expr"
	"github.com/chazu/rexpr/journal"
	"github.com/chazu/rexpr/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "rexpr-lsp"

// EvaluateCommand is the workspace command evaluating a JSON expression
// tree, passed as its only argument.
const EvaluateCommand = "rexpr.evaluate"

// LspServer lets an editor evaluate against a suspended thread: hovering
// an identifier or a dotted path shows its value in frame 0, and
// completion offers the variables in scope.
type LspServer struct {
	worker  *Worker
	handles *HandleStore
	debug   *vm.DebugServer
	session *Session
	eval    *EvalService

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates an LSP server evaluating on the named thread of v.
// j may be nil.
func NewLSP(v *vm.VM, thread string, j *journal.Journal) (*LspServer, error) {
	th, ok := v.ThreadByName(thread)
	if !ok {
		return nil, fmt.Errorf("thread %q not found", thread)
	}

	worker := NewWorker(v)
	handles := NewHandleStore()
	sessions := NewSessionStore(handles)
	s := &LspServer{
		worker:  worker,
		handles: handles,
		debug:   vm.NewDebugServer(v),
		session: sessions.Create(v, th, lspName),
		eval:    NewEvalService(worker, handles, sessions, j),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:  s.textDocumentCompletion,
		TextDocumentHover:       s.textDocumentHover,
		WorkspaceExecuteCommand: s.workspaceExecuteCommand,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s, nil
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "rexpr LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}
	capabilities.HoverProvider = true
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{EvaluateCommand},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.mu.Lock()
	s.docs[string(params.TextDocument.URI)] = params.TextDocument.Text
	s.mu.Unlock()
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(params.TextDocument.URI)] = whole.Text
			s.mu.Unlock()
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.mu.Lock()
	delete(s.docs, string(params.TextDocument.URI))
	s.mu.Unlock()
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	result, err := s.worker.Do(context.Background(), func(v *vm.VM) (any, error) {
		return s.complete(v, prefix), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(context.Background(), func(v *vm.VM) (any, error) {
		return s.hover(v, word), nil
	})
	if err != nil || result == nil {
		return nil, nil
	}
	hover, _ := result.(*protocol.Hover)
	return hover, nil
}

func (s *LspServer) workspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if params.Command != EvaluateCommand {
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}
	if len(params.Arguments) != 1 {
		return nil, fmt.Errorf("%s takes one expression tree", EvaluateCommand)
	}
	n, err := nodeFromArgument(params.Arguments[0])
	if err != nil {
		return nil, err
	}
	return s.Evaluate(context.Background(), n)
}

// Evaluate evaluates n on the server's thread.
func (s *LspServer) Evaluate(ctx context.Context, n *expr.Node) (*EvaluateResponse, error) {
	result, err := s.worker.Do(ctx, func(*vm.VM) (any, error) {
		return s.eval.evaluate(s.session, n, false), nil
	})
	if err != nil {
		return nil, err
	}
	resp := result.(*EvaluateResponse)
	s.eval.record(ctx, s.session, "evaluate", n, resp, 0)
	return resp, nil
}

// nodeFromArgument decodes a command argument, which arrives as decoded
// JSON, into an expression tree.
func nodeFromArgument(arg any) (*expr.Node, error) {
	var data []byte
	switch a := arg.(type) {
	case string:
		data = []byte(a)
	default:
		var err error
		if data, err = json.Marshal(a); err != nil {
			return nil, err
		}
	}
	return expr.ParseJSON(data)
}

// --- Debuggee-backed logic (called on worker goroutine) ---

// pathNode builds the expression for a dotted path. A leading run of
// segments naming a loaded class makes the next segment a static field.
func pathNode(v *vm.VM, word string) *expr.Node {
	parts := strings.Split(word, ".")
	var n *expr.Node
	rest := parts[1:]
	for i := len(parts) - 1; i > 0; i-- {
		if v.Classes.Has(strings.Join(parts[:i], ".")) {
			n = expr.Static(strings.Join(parts[:i], "."), parts[i])
			rest = parts[i+1:]
			break
		}
	}
	if n == nil {
		if parts[0] == "this" {
			n = expr.This()
		} else {
			n = expr.Ident(parts[0])
		}
	}
	for _, name := range rest {
		n = expr.Field(n, name)
	}
	return n
}

func (s *LspServer) hover(v *vm.VM, word string) *protocol.Hover {
	if cls := v.Classes.Lookup(word); cls != nil {
		return classHover(cls)
	}

	resp := s.eval.evaluate(s.session, pathNode(v, word), false)
	if !resp.Success {
		log.Debugf("hover %s: %s", word, resp.ErrorMessage)
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s`\n\n", word, resp.TypeName)
	fmt.Fprintf(&b, "```\n%s\n```", resp.Result)
	if resp.Handle != "" {
		fmt.Fprintf(&b, "\n\nhandle `%s`", resp.Handle)
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func classHover(cls *vm.Class) *protocol.Hover {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)", cls.Name(), cls.Kind())
	if cls.Superclass != nil {
		fmt.Fprintf(&b, " < %s", cls.Superclass.Name())
	}
	if !cls.Prepared() {
		b.WriteString("\n\nnot prepared")
	}
	if fields := cls.AllFields(); len(fields) > 0 {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Type().Name() + " " + f.Name()
		}
		fmt.Fprintf(&b, "\n\nFields: `%s`", strings.Join(names, "`, `"))
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// complete offers the variables of frame 0, the fields of this, and
// class names.
func (s *LspServer) complete(v *vm.VM, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	vars, err := s.debug.GetVariables(s.session.Thread.ID(), 0)
	if err != nil {
		log.Debugf("completion: %v", err)
	}
	for _, variable := range vars {
		name, isField := strings.CutPrefix(variable.Name, "this.")
		kind := protocol.CompletionItemKindVariable
		if isField {
			kind = protocol.CompletionItemKindField
		}
		add(name, variable.Type, kind)
	}

	var classes []string
	for _, cls := range v.Classes.All() {
		classes = append(classes, cls.Name())
	}
	sort.Strings(classes)
	for _, name := range classes {
		add(name, "class", protocol.CompletionItemKindClass)
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// --- Text extraction helpers ---

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$'
}

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the dotted path under the cursor, up to the end of
// the identifier the cursor is in: hovering x in "a.b.x.y" yields "a.b.x".
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && (isIdentRune(rune(line[start-1])) || line[start-1] == '.') {
		start--
	}
	end := col
	for end < len(line) && isIdentRune(rune(line[end])) {
		end++
	}

	word := strings.Trim(line[start:end], ".")
	if strings.Contains(word, "..") {
		return ""
	}
	return word
}

func boolPtr(b bool) *bool {
	return &b
}
