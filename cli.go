package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// rootOptions holds state shared by all commands.
type rootOptions struct {
	cfgFile string
	cfg     *Config
	logger  *slog.Logger
}

// NewRootCommand creates the root command. Without a subcommand it serves
// MCP over stdio.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "career-pipeline",
		Short: "career-pipeline MCP server",
		Long: `career-pipeline exposes guarded read, write, search and dump
operations over the career database to MCP clients on stdio.`,
		Version: ServerVersion,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			cfg, err := LoadConfig(opts.cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default: ./career-pipeline.yaml)")
	flags.String("data-dir", "", "data directory (default: ~/.career-pipeline)")
	flags.String("driver", "", "database driver (sqlite|postgres|mysql)")
	flags.String("database", "", "SQLite file path or server DSN")
	flags.String("dump-path", "", "dump file written by career_dump")
	flags.Duration("query-timeout", 0, "per-call timeout (0 disables)")
	flags.Bool("strict", false, "reject chained statements and look past leading comments")
	flags.String("log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newDumpCommand(opts))
	cmd.AddCommand(newSearchCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	g, ctx := errgroup.WithContext(cmd.Context())

	server, err := NewMCPServer(ctx, opts.cfg, opts.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer server.Close()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			opts.logger.Info("received shutdown signal", "signal", sig.String())
			return context.Canceled
		case <-done:
			return nil
		}
	})
	g.Go(func() error {
		defer close(done)
		opts.logger.Info("MCP server started", "driver", opts.cfg.Driver, "database", server.databaseName)
		return server.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	opts.logger.Info("server shutdown gracefully")
	return nil
}

func newDumpCommand(opts *rootOptions) *cobra.Command {
	var output string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Export the database to a SQL script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			server, err := NewMCPServer(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer server.Close()

			path := opts.cfg.DumpPath
			if output != "" {
				path = output
			}
			result, err := server.exporter.Export(cmd.Context(), path)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Path", "Tables", "Bytes"})
			t.AppendRow(table.Row{result.Path, result.Tables, result.Size})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the dump here instead of dump_path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search every content table for a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := NewMCPServer(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer server.Close()

			if limit == 0 {
				limit = opts.cfg.SearchLimit
			}
			results, err := server.searcher.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			renderSearchResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max rows per table (default search_limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the results as JSON")
	return cmd
}

func renderSearchResults(w io.Writer, results *SearchResults) {
	if !results.Found() {
		fmt.Fprintln(w, results.NoResultsMessage())
		return
	}

	for _, hit := range results.Hits {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle(hit.Label)
		if hit.Err != nil {
			t.AppendRow(table.Row{"error", hit.Err.Error()})
			t.Render()
			continue
		}
		header := make(table.Row, len(hit.Rows[0].Columns))
		for i, col := range hit.Rows[0].Columns {
			header[i] = col
		}
		t.AppendHeader(header)
		for _, row := range hit.Rows {
			t.AppendRow(table.Row(row.Values))
		}
		t.Render()
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (MCP %s)\n", ServerName, ServerVersion, ProtocolVersion)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
