// Package lsp implements a stdio language server for QuasiLang. Documents
// are synced whole; every change triggers a front-end parse and a single
// fail-fast diagnostic at the reported position (cleared on success).
package lsp

import (
	"errors"
	"sync"

	"github.com/quasilang/quasipiler/quasi/ast"
	"github.com/quasilang/quasipiler/quasi/expr"
	"github.com/quasilang/quasipiler/quasi/grouper"
	"github.com/quasilang/quasipiler/quasi/reader"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "quasipiler"

var log = commonlog.GetLogger("quasipiler.lsp")

type Server struct {
	handler protocol.Handler
	server  *server.Server
	version string
	limit   int

	mu   sync.Mutex
	docs map[string]string
}

func NewServer(version string, limit int) *Server {
	s := &Server{
		version: version,
		limit:   limit,
		docs:    map[string]string{},
	}

	s.handler = protocol.Handler{
		Initialize:            s.initialize,
		Initialized:           s.initialized,
		Shutdown:              s.shutdown,
		SetTrace:              s.setTrace,
		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,
		TextDocumentDidSave:   s.textDocumentDidSave,
	}

	s.server = server.NewServer(&s.handler, lsName, false)

	return s
}

func (s *Server) RunStdio() error {
	return s.server.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := s.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
		s.update(ctx, params.TextDocument.URI, whole.Text)
	}
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.mu.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.mu.Unlock()
	return nil
}

func (s *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text != nil {
		s.update(ctx, params.TextDocument.URI, *params.Text)
	}
	return nil
}

func (s *Server) update(ctx *glsp.Context, uri string, text string) {
	s.mu.Lock()
	s.docs[uri] = text
	s.mu.Unlock()
	s.check(ctx, uri, text)
}

// check parses the document and publishes the outcome.
func (s *Server) check(ctx *glsp.Context, uri string, text string) {
	diagnostics := []protocol.Diagnostic{}
	err := parse(text, s.limit)
	if err != nil {
		log.Infof("parse failed for %s: %v", uri, err)
		diagnostics = append(diagnostics, diagnosticFor(err))
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func parse(text string, limit int) error {
	src := reader.NewString(text)
	g, err := grouper.New(src, limit)
	if err != nil {
		return err
	}
	_, err = g.Parse(ast.KindFile)
	return err
}

func diagnosticFor(err error) protocol.Diagnostic {
	pos := errorPosition(err)
	start := protocol.Position{
		Line:      protocol.UInteger(pos.Line),
		Character: protocol.UInteger(pos.Column),
	}
	end := start
	end.Character++
	severity := protocol.DiagnosticSeverityError
	source := lsName
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: start, End: end},
		Severity: &severity,
		Source:   &source,
		Message:  err.Error(),
	}
}

func errorPosition(err error) reader.Position {
	var gerr *grouper.Error
	if errors.As(err, &gerr) {
		return gerr.Pos
	}
	var rerr *reader.Error
	if errors.As(err, &rerr) {
		return rerr.Pos
	}
	var serr *expr.SyntaxError
	if errors.As(err, &serr) {
		return serr.Pos
	}
	return reader.Position{}
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(kind protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &kind
}
