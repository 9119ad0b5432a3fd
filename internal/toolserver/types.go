// Package toolserver implements the JSON-RPC tool protocol served at
// /query: a four-method handshake exposing a single retrieval tool to
// an external orchestrator.
package toolserver

import "encoding/json"

// JSONRPCVersion is the fixed protocol version literal.
const JSONRPCVersion = "2.0"

// ProtocolVersion is the supported handshake protocol revision.
const ProtocolVersion = "2024-11-05"

// Request is a JSON-RPC 2.0 request. ID is kept raw so responses echo
// it byte-for-byte regardless of its JSON type. A missing ID marks a
// one-way notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ServerInfo identifies this server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities advertises per-feature flags. This server supports plain
// tool listing and invocation only; discovery notifications and
// subscriptions stay disabled.
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
}

// ToolsCapability describes tool-related capabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResourcesCapability describes resource-related capabilities.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

// PromptsCapability describes prompt-related capabilities.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// InitializeResult is the result of the initialize method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Tool describes one invokable tool.
type Tool struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// Document is one retrieval result returned to the orchestrator.
type Document struct {
	ID       string         `json:"id"`
	Cursor   string         `json:"cursor"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// RetrieveResult is the result of the retrieve method.
type RetrieveResult struct {
	Documents []Document `json:"documents"`
}

// RetrieveParams are the arguments of the retrieve method.
type RetrieveParams struct {
	Query string `json:"query" jsonschema:"title=Query,description=Free-text search query run against the document index"`
}
