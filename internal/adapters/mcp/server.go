// Package mcpadapter exposes document classification as a Model Context
// Protocol tool served over stdio.
package mcpadapter

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

const (
	ToolClassifyDocument = "classify_document"
	serverName           = "document-classifier"
)

type Server struct {
	srv        *server.MCPServer
	classifier ports.DocumentClassifier
}

func New(classifier ports.DocumentClassifier, version string) (*Server, error) {
	if classifier == nil {
		return nil, errors.New("mcp server requires a document classifier")
	}
	s := &Server{
		srv: server.NewMCPServer(serverName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions("Classify a document as invoice, bank_statement or drivers_license."),
		),
		classifier: classifier,
	}
	s.srv.AddTool(mcp.NewTool(ToolClassifyDocument,
		mcp.WithDescription("Classify an uploaded document by its content and filename."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Original file name including its extension.")),
		mcp.WithString("content_base64", mcp.Required(), mcp.Description("File bytes, standard base64 encoded.")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.classifyDocument)
	return s, nil
}

// Serve handles JSON-RPC on in/out until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.srv).Listen(ctx, in, out)
}

func (s *Server) classifyDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, err := req.RequireString("content_base64")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return mcp.NewToolResultError("content_base64 is not valid base64"), nil
	}

	result, err := s.classifier.Classify(ctx, domain.NewDocument(filename, data))
	result.Signals = nil
	structured, encodeErr := mcp.NewToolResultJSON(result)
	if encodeErr != nil {
		return nil, encodeErr
	}
	if err != nil {
		structured.IsError = true
	}
	return structured, nil
}
