// gnews-mcp exposes the GNews API as MCP tools.
//
// Usage:
//
//	gnews-mcp serve       # streamable HTTP transport (default)
//	gnews-mcp stdio       # stdio transport for local MCP clients
//	gnews-mcp search      # one-shot search, prints the GNews JSON
//	gnews-mcp headlines   # one-shot top headlines
//	gnews-mcp version
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/gnews-mcp/internal/config"
	"github.com/RobinCoderZhao/gnews-mcp/internal/gnews"
	"github.com/RobinCoderZhao/gnews-mcp/internal/gnews/docs"
	"github.com/RobinCoderZhao/gnews-mcp/internal/gnews/tools"
	"github.com/RobinCoderZhao/gnews-mcp/pkg/mcpserver"
	"github.com/RobinCoderZhao/gnews-mcp/pkg/scraper"
)

var version = "dev"

const instructions = "Search news articles and fetch top headlines from the GNews API. " +
	"Every call needs a GNews API key in the X-Api-Key header. " +
	"Results are the GNews JSON responses, unchanged."

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "gnews-mcp",
		Short:         "MCP server for the GNews API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.DefaultPath+")")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(stdioCmd(&configPath))
	rootCmd.AddCommand(searchCmd(&configPath))
	rootCmd.AddCommand(headlinesCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func stdioCmd(configPath *string) *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP over stdin/stdout",
		Long:  "Serve MCP over stdin/stdout. The API key (flag or GNEWS_API_KEY) is attached to every call as the X-Api-Key header.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := mcpserver.WithHeaders(cmd.Context(), a.staticHeaders(apiKey))
			return a.mcpServer().RunStdio(ctx, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "GNews API key (default $GNEWS_API_KEY)")
	return cmd
}

func searchCmd(configPath *string) *cobra.Command {
	var (
		apiKey string
		p      = gnews.SearchParams{Common: gnews.DefaultCommon()}
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search articles once and print the GNews response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			p.Query = args[0]
			p.In = optional(cmd, "in")
			applyCommon(cmd, &p.Common)

			ctx := mcpserver.WithHeaders(cmd.Context(), a.staticHeaders(apiKey))
			body, err := a.svc.Search(ctx, p)
			if err != nil {
				return err
			}
			return printJSON(cmd, body)
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "GNews API key (default $GNEWS_API_KEY)")
	cmd.Flags().String("in", "", "fields to search: title,description,content")
	cmd.Flags().StringVar(&p.SortBy, "sortby", gnews.SortPublished, "publishedAt or relevance")
	registerCommon(cmd, &p.Common)
	return cmd
}

func headlinesCmd(configPath *string) *cobra.Command {
	var (
		apiKey string
		p      = gnews.HeadlinesParams{Common: gnews.DefaultCommon()}
	)

	cmd := &cobra.Command{
		Use:   "headlines",
		Short: "Fetch top headlines once and print the GNews response",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			p.Query = optional(cmd, "q")
			applyCommon(cmd, &p.Common)

			ctx := mcpserver.WithHeaders(cmd.Context(), a.staticHeaders(apiKey))
			body, err := a.svc.TopHeadlines(ctx, p)
			if err != nil {
				return err
			}
			return printJSON(cmd, body)
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "GNews API key (default $GNEWS_API_KEY)")
	cmd.Flags().StringVar(&p.Category, "category", gnews.CategoryGen, "headline category")
	cmd.Flags().String("q", "", "keywords to filter the headlines")
	registerCommon(cmd, &p.Common)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gnews-mcp %s\n", version)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.mcpServer().RunHTTP(ctx, a.cfg.Addr())
}

// app holds the process-wide dependencies. The GNews client is created
// once and shared by every call.
type app struct {
	cfg               config.Config
	logger            *slog.Logger
	client            *gnews.Client
	svc               *gnews.Service
	shutdownTelemetry func(context.Context) error
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	shutdown, err := setupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	gcfg := cfg.GNews
	gcfg.Logger = logger
	client := gnews.NewClient(gcfg)

	return &app{
		cfg:               cfg,
		logger:            logger,
		client:            client,
		svc:               gnews.NewService(client, mcpserver.HeadersFromContext, logger),
		shutdownTelemetry: shutdown,
	}, nil
}

func (a *app) mcpServer() *mcpserver.Server {
	srv := mcpserver.New("gnews", version,
		mcpserver.WithLogger(a.logger),
		mcpserver.WithInstructions(instructions),
	)
	srv.Use(mcpserver.RecoveryMiddleware(a.logger))
	srv.Use(mcpserver.LoggingMiddleware(a.logger))

	srv.RegisterTools(tools.NewSearchTool(a.svc), tools.NewHeadlinesTool(a.svc))

	if !docs.Register(srv, scraper.NewHTTPFetcher(a.cfg.Docs)) {
		a.logger.Debug("resource registration not supported, skipping docs")
	}
	return srv
}

// staticHeaders is the call metadata for transports without HTTP headers.
func (a *app) staticHeaders(flagKey string) http.Header {
	key := flagKey
	if key == "" {
		key = a.cfg.APIKey
	}
	h := http.Header{}
	if key != "" {
		h.Set(gnews.APIKeyHeader, key)
	}
	return h
}

func (a *app) Close() {
	a.client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTelemetry(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func printJSON(cmd *cobra.Command, body json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(cmd.OutOrStdout())
	return err
}
