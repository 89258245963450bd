package main

import "encoding/json"

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "career-pipeline"
	ServerVersion   = "1.0.0"
)

// JSON-RPC 2.0 error codes returned in Error.Code.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// JSONRPCRequest is one line read from the client. Notifications have no ID.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse carries either Result or Error, never both.
type JSONRPCResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a protocol-level failure. Tool failures are reported inside a
// CallToolResult instead.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Session setup.

// Implementation names a client or server during initialize.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities"`
	ClientInfo      Implementation  `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

// ServerCapabilities advertises tools and resources. Neither list changes
// while the server runs.
type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// Tools.

type Tool struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	InputSchema ObjectSchema `json:"inputSchema"`
}

// ObjectSchema is the JSON Schema subset the career tools need: a flat
// object of named scalar or array arguments.
type ObjectSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallToolResult wraps a tool's JSON output as a single text block.
// IsError marks a ToolErrorPayload.
type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// WriteResult is the career_write payload. LastInsertRowID is omitted when
// the driver cannot report one.
type WriteResult struct {
	Changes         int64  `json:"changes"`
	LastInsertRowID *int64 `json:"lastInsertRowid,omitempty"`
}

// ToolErrorPayload is the body of a failed tool call. Kind is one of the
// Kind* constants.
type ToolErrorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Resources: one schema document per table.

type Resource struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
}

type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []ResourceText `json:"contents"`
}

type ResourceText struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}
