package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

const (
	ConnectionTimeout  = 10 * time.Second
	MaxConnectionsIdle = 5
	MaxConnectionsOpen = 10
)

// MCPServer handles MCP protocol over stdio
type MCPServer struct {
	db           *sql.DB
	adapter      DBAdapter
	databaseName string
	cfg          *Config
	logger       *slog.Logger

	classifier *Classifier
	searcher   *Searcher
	exporter   *Exporter
}

// OpenDatabase opens and configures the connection pool for adapter.
func OpenDatabase(ctx context.Context, adapter DBAdapter, dsn string) (*sql.DB, error) {
	db, err := sql.Open(adapter.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxIdleConns(MaxConnectionsIdle)
	db.SetMaxOpenConns(MaxConnectionsOpen)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection with timeout
	pingCtx, pingCancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer pingCancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := adapter.Configure(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	return db, nil
}

// NewMCPServer opens the configured database and wires the tool components
// around the single connection pool.
func NewMCPServer(ctx context.Context, cfg *Config, logger *slog.Logger) (*MCPServer, error) {
	adapter, ok := adapterFor(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	dsn, err := adapter.BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := OpenDatabase(ctx, adapter, dsn)
	if err != nil {
		return nil, err
	}

	return newMCPServer(db, adapter, adapter.DatabaseName(dsn), cfg, logger), nil
}

func newMCPServer(db *sql.DB, adapter DBAdapter, dbName string, cfg *Config, logger *slog.Logger) *MCPServer {
	return &MCPServer{
		db:           db,
		adapter:      adapter,
		databaseName: dbName,
		cfg:          cfg,
		logger:       logger,
		classifier:   NewClassifier(adapter, cfg.StrictStatements),
		searcher:     NewSearcher(db, adapter, careerEntities, logger),
		exporter:     NewExporter(db, adapter, logger),
	}
}

// Run serves newline-delimited JSON-RPC messages from in until EOF or until
// ctx is cancelled. Requests are handled one at a time.
func (s *MCPServer) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr <- fmt.Errorf("failed to read input: %w", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			response := s.handleMessage(ctx, []byte(line))
			if response == nil {
				continue
			}
			responseBytes, err := json.Marshal(response)
			if err != nil {
				s.logger.Error("failed to marshal response", "error", err)
				continue
			}
			if _, err := fmt.Fprintln(out, string(responseBytes)); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
}

func (s *MCPServer) handleMessage(ctx context.Context, data []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &Error{
				Code:    ParseError,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	if req.JSONRPC != "2.0" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &Error{
				Code:    InvalidRequest,
				Message: "Invalid JSON-RPC version",
			},
		}
	}

	return s.handleRequest(ctx, &req)
}

func (s *MCPServer) handleRequest(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	var result any
	var err *Error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(req.Params)
	case "initialized", "notifications/initialized":
		// Notification, no response needed
		return nil
	case "tools/list":
		result, err = s.handleListTools()
	case "tools/call":
		result, err = s.handleCallTool(ctx, req.Params)
	case "resources/list":
		result, err = s.handleListResources(ctx)
	case "resources/read":
		result, err = s.handleReadResource(ctx, req.Params)
	case "ping":
		result = map[string]any{}
	default:
		err = &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	if err != nil {
		result = nil
	}
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   err,
	}
}

// withTimeout bounds a single tool call by the configured query timeout.
func (s *MCPServer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}

// Close releases all resources
func (s *MCPServer) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
