package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

func (s *MCPServer) handleInitialize(params json.RawMessage) (*InitializeResult, *Error) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &Error{
				Code:    InvalidParams,
				Message: "Invalid initialize parameters",
				Data:    err.Error(),
			}
		}
	}

	s.logger.Info("client initialized", "client", initParams.ClientInfo.Name, "version", initParams.ClientInfo.Version)

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		ServerInfo: Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
	}, nil
}

func (s *MCPServer) handleListTools() (*ListToolsResult, *Error) {
	return &ListToolsResult{
		Tools: []Tool{
			{
				Name:        "career_read",
				Description: "Execute a SELECT query on the career database. Returns rows as JSON.",
				InputSchema: ObjectSchema{
					Type: "object",
					Properties: map[string]SchemaProperty{
						"query": {
							Type:        "string",
							Description: "SQL query to execute (SELECT, PRAGMA, or EXPLAIN)",
						},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        "career_write",
				Description: "Execute INSERT, UPDATE, or DELETE on the career database. DROP/ALTER/CREATE are rejected for safety.",
				InputSchema: ObjectSchema{
					Type: "object",
					Properties: map[string]SchemaProperty{
						"query": {
							Type:        "string",
							Description: "SQL INSERT/UPDATE/DELETE statement",
						},
						"params": {
							Type:        "array",
							Description: "Optional positional bind parameters",
						},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        "career_search",
				Description: "Keyword search across all major content fields in the career database.",
				InputSchema: ObjectSchema{
					Type: "object",
					Properties: map[string]SchemaProperty{
						"keyword": {
							Type:        "string",
							Description: "Search keyword or phrase",
						},
						"limit": {
							Type:        "integer",
							Description: fmt.Sprintf("Max results per table (default %d)", s.cfg.SearchLimit),
						},
					},
					Required: []string{"keyword"},
				},
			},
			{
				Name:        "career_dump",
				Description: fmt.Sprintf("Export the entire career database to a SQL dump file at %s.", s.cfg.DumpPath),
				InputSchema: ObjectSchema{
					Type:       "object",
					Properties: map[string]SchemaProperty{},
				},
			},
		},
	}, nil
}

func (s *MCPServer) handleCallTool(ctx context.Context, params json.RawMessage) (*CallToolResult, *Error) {
	var callParams CallToolParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	logger := s.logger.With("tool", callParams.Name, "call_id", uuid.NewString())
	logger.Debug("tool call")

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result any
	var err error
	switch callParams.Name {
	case "career_read":
		result, err = s.executeRead(ctx, callParams.Arguments)
	case "career_write":
		result, err = s.executeWrite(ctx, callParams.Arguments)
	case "career_search":
		result, err = s.executeSearch(ctx, callParams.Arguments)
	case "career_dump":
		result, err = s.exporter.Export(ctx, s.cfg.DumpPath)
	default:
		return nil, &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Unknown tool: %s", callParams.Name),
		}
	}

	if err != nil {
		logger.Warn("tool call failed", "kind", errorKind(err), "error", err)
		return toolError(err), nil
	}
	return toolJSON(result), nil
}

func (s *MCPServer) executeRead(ctx context.Context, args map[string]any) ([]Row, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}

	if err := s.classifier.Classify(query, IntentRead); err != nil {
		return nil, err
	}

	results, truncated, err := queryRows(ctx, s.db, s.adapter, s.cfg.MaxRows, query)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	if truncated {
		results = append(results, Row{
			Columns: []string{"_warning"},
			Values:  []any{fmt.Sprintf("Result truncated at %d rows", s.cfg.MaxRows)},
		})
	}
	return results, nil
}

func (s *MCPServer) executeWrite(ctx context.Context, args map[string]any) (*WriteResult, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}

	if err := s.classifier.Classify(query, IntentWrite); err != nil {
		return nil, err
	}

	binds, err := bindParams(args["params"])
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, query, binds...)
	if err != nil {
		return nil, &StorageError{Op: "exec", Err: err}
	}

	changes, err := res.RowsAffected()
	if err != nil {
		return nil, &StorageError{Op: "rows affected", Err: err}
	}
	out := &WriteResult{Changes: changes}
	// Not every driver reports it (PostgreSQL does not).
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertRowID = &id
	}
	return out, nil
}

func (s *MCPServer) executeSearch(ctx context.Context, args map[string]any) (*SearchResults, error) {
	keyword, err := stringArg(args, "keyword")
	if err != nil {
		return nil, err
	}

	limit := s.cfg.SearchLimit
	if raw, ok := args["limit"]; ok && raw != nil {
		n, ok := raw.(float64)
		if !ok || n != math.Trunc(n) || n < 0 {
			return nil, &ParamError{Name: "limit", Message: "must be a positive integer"}
		}
		if n > 0 {
			limit = int(n)
		}
	}

	return s.searcher.Search(ctx, keyword, limit)
}

func (s *MCPServer) handleListResources(ctx context.Context) (*ListResourcesResult, *Error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tables, err := s.adapter.Tables(ctx, s.db)
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to list tables: %v", err),
		}
	}

	resources := []Resource{}
	for _, table := range tables {
		resources = append(resources, Resource{
			URI:      s.schemaURI(table.Name),
			Name:     fmt.Sprintf("Schema for table '%s'", table.Name),
			MimeType: "application/sql",
		})
	}
	return &ListResourcesResult{Resources: resources}, nil
}

func (s *MCPServer) handleReadResource(ctx context.Context, params json.RawMessage) (*ReadResourceResult, *Error) {
	var readParams ReadResourceParams
	if err := json.Unmarshal(params, &readParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	// Parse URI: <scheme>://dbname/tablename/schema
	uri := readParams.URI
	prefix := s.adapter.URIScheme() + "://"
	if !strings.HasPrefix(uri, prefix) {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI: must start with %s", prefix),
		}
	}

	parts := strings.Split(strings.TrimPrefix(uri, prefix), "/")
	if len(parts) < 3 || parts[2] != "schema" {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI format: expected %sdbname/tablename/schema", prefix),
		}
	}
	tableName := parts[1]

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tables, err := s.adapter.Tables(ctx, s.db)
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to get schema: %v", err),
		}
	}

	for _, table := range tables {
		if table.Name == tableName {
			return &ReadResourceResult{
				Contents: []ResourceText{
					{
						URI:      uri,
						MimeType: "application/sql",
						Text:     table.DDL,
					},
				},
			}, nil
		}
	}

	return nil, &Error{
		Code:    InvalidParams,
		Message: fmt.Sprintf("Unknown table: %s", tableName),
	}
}

func (s *MCPServer) schemaURI(table string) string {
	return fmt.Sprintf("%s://%s/%s/schema", s.adapter.URIScheme(), s.databaseName, table)
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", &ParamError{Name: name, Message: "missing or not a string"}
	}
	return v, nil
}

// bindParams converts JSON-decoded parameters into driver arguments.
// Integral numbers are bound as int64 so INTEGER columns keep their type.
func bindParams(raw any) ([]any, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &ParamError{Name: "params", Message: "must be an array"}
	}

	binds := make([]any, len(list))
	for i, v := range list {
		switch val := v.(type) {
		case nil, string, bool:
			binds[i] = val
		case float64:
			if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
				binds[i] = int64(val)
			} else {
				binds[i] = val
			}
		default:
			return nil, &ParamError{
				Name:    "params",
				Message: fmt.Sprintf("element %d must be a string, number, boolean or null", i),
			}
		}
	}
	return binds, nil
}

func toolJSON(v any) *CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(fmt.Errorf("failed to marshal results: %w", err))
	}
	return &CallToolResult{
		Content: []TextContent{{Type: "text", Text: string(data)}},
	}
}

func toolError(err error) *CallToolResult {
	data, _ := json.Marshal(ToolErrorPayload{Error: err.Error(), Kind: errorKind(err)})
	return &CallToolResult{
		Content: []TextContent{{Type: "text", Text: string(data)}},
		IsError: true,
	}
}
