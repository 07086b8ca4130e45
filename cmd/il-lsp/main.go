// SPDX-License-Identifier: Apache-2.0
package main

import (
	"log"
	"os"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"ilforge/internal/lspsrv"
)

const lsName = "il-lsp" // Name identifier for the language server

var (
	version = "0.0.1"        // Server version
	handler protocol.Handler // Protocol handler instance (wired up below)
)

func main() {
	// Configure debug logging (1 = debug level, nil = default logger)
	commonlog.Configure(1, nil)

	// Create a new instance of the IL handler (our language-specific handler)
	h := lspsrv.NewHandler()

	// Wire up the handler with specific LSP method implementations
	handler = protocol.Handler{
		Initialize:            h.Initialize,
		Initialized:           h.Initialized,
		Shutdown:              h.Shutdown,
		TextDocumentDidOpen:   h.TextDocumentDidOpen,
		TextDocumentDidClose:  h.TextDocumentDidClose,
		TextDocumentDidChange: h.TextDocumentDidChange,
		TextDocumentHover:     h.TextDocumentHover,
	}

	// Create a new GLSP (Go Language Server Protocol) server instance
	// Parameters:
	// - handler: the protocol handler struct
	// - name: the language server name (shown to clients)
	// - debug: whether to enable internal GLSP debug logs
	s := server.NewServer(&handler, lsName, false)

	log.Println("Starting IL language server...")

	// Start the server over standard input/output (used by most editors for LSP)
	// This lets the editor communicate with the language server process
	err := s.RunStdio()
	if err != nil {
		log.Println("Error starting IL language server:", err)
		os.Exit(1)
	}
}
