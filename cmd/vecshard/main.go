// Package main is the vecshard CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vecshard/internal/cli"
	"github.com/hyperjump/vecshard/internal/config"
	"github.com/hyperjump/vecshard/internal/embedding"
	"github.com/hyperjump/vecshard/internal/models"
	"github.com/hyperjump/vecshard/internal/server"
	"github.com/hyperjump/vecshard/internal/storage"
	"github.com/hyperjump/vecshard/internal/store"
	"github.com/hyperjump/vecshard/internal/watcher"
	"github.com/hyperjump/vecshard/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/vecshard/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence if it exists. When neither file exists the built-in defaults are
// used. Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			var cfg config.Config
			config.ApplyDefaults(&cfg)
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return &cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "stats":
		runStats()
	case "count":
		runCount()
	case "rebalance":
		runRebalance()
	case "reload":
		runReload()
	case "delete-project":
		runDeleteProject()
	case "version", "--version", "-v":
		fmt.Printf("vecshard version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (request logs, per-entry warnings, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	cfg.Debug = debugMode
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("backend", cfg.Storage.Backend),
		zap.Int("shard_count", cfg.Store.ShardCount),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	go components.Store.RunMaintenance(ctx, cfg.Store.RebalanceInterval)

	if cfg.Watch.ConfigReload && resolvedConfigPath != "" {
		cw := watcher.NewConfigWatcher(resolvedConfigPath, cfg,
			func(prev, next *config.Config) { applyConfigChange(ctx, components.Store, logger, prev, next) },
			watcher.WithLogger(logger),
		)
		if err := cw.Start(ctx); err != nil {
			logger.Fatal("Failed to start config watcher", zap.Error(err))
		}
		defer cw.Stop()
	}

	srv := server.NewServer(components.Store, components.Embedder, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// applyConfigChange applies the settings that can change without a restart.
func applyConfigChange(ctx context.Context, st *store.Store, logger *zap.Logger, prev, next *config.Config) {
	if next.Store.ShardCount != prev.Store.ShardCount {
		res, err := st.Resize(ctx, next.Store.ShardCount)
		if err != nil {
			logger.Error("resize after config change failed",
				zap.Int("shard_count", next.Store.ShardCount),
				zap.Error(err))
			return
		}
		logger.Info("resized after config change",
			zap.Int("shard_count", next.Store.ShardCount),
			zap.Int("moved", res.Moved))
	}
	if next.Store.RebalanceInterval != prev.Store.RebalanceInterval ||
		next.Storage != prev.Storage ||
		next.Server != prev.Server {
		logger.Warn("config change requires a restart to take effect")
	}
}

// Components holds the long-lived pieces of a running server.
type Components struct {
	Gateway  storage.Gateway
	Store    *store.Store
	Embedder embedding.Embedder
}

// Close releases the embedder and the gateway.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Gateway != nil {
		_ = c.Gateway.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg.Storage.Backend == storage.BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	gw, err := storage.NewGateway(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	st, err := store.New(gw, cfg.Store.ShardCount,
		store.WithLogger(logger),
		store.WithLoadConcurrency(cfg.Store.LoadConcurrency),
	)
	if err != nil {
		_ = gw.Close()
		return nil, err
	}
	if _, err := st.Load(ctx); err != nil {
		_ = gw.Close()
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	embedder := embedding.NewCachedEmbedder(
		embedding.NewHashEmbedder(cfg.Embedding.Dimensions),
		cfg.Embedding.CacheSize,
	)
	return &Components{Gateway: gw, Store: st, Embedder: embedder}, nil
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: vecshard search --project <id> [flags] [text]\n\n")
	fmt.Fprintf(fs.Output(), "Either --vector or query text is required. Text is embedded by the server.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  vecshard search --project acme --vector 0.1,0.7,0.2
  vecshard search --project acme parse config file
  vecshard search --project acme --threshold 0.5 --limit 20 --output json retry policy
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	project := fs.String("project", "", "project ID (required)")
	vectorStr := fs.String("vector", "", "query vector as comma-separated floats")
	limit := fs.Int("limit", 10, "maximum number of results (server default when not set)")
	threshold := fs.Float64("threshold", 0, "minimum cosine similarity")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := &models.SearchQuery{
		Text:      buildSearchQuery(fs.Args()),
		Threshold: *threshold,
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "limit" {
			query.Limit = models.IntPtr(*limit)
		}
	})
	if *vectorStr != "" {
		vec, err := cli.ParseVector(*vectorStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --vector: %v\n", err)
			os.Exit(1)
		}
		query.Vector = vec
	}
	if *project == "" || (query.Text == "" && len(query.Vector) == 0) {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := mustOutputFormat(*outputFormat)

	response, err := searchViaHTTP(*serverURL, *project, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func projectURL(serverURL, project, suffix string) string {
	return strings.TrimRight(serverURL, "/") + "/api/v1/projects/" + url.PathEscape(project) + suffix
}

func searchViaHTTP(serverURL, project string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	var response models.SearchResponse
	if err := doJSON(http.MethodPost, projectURL(serverURL, project, "/search"), bytes.NewReader(body), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// doJSON sends a request and decodes a 200 JSON response into out.
func doJSON(method, target string, body io.Reader, out interface{}) error {
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mustOutputFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	ShardCount     int    `json:"shard_count"`
	Pending        bool   `json:"pending"`
	Entries        int    `json:"entries"`
	Backend        string `json:"backend"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}

type shardsResponse struct {
	Shards []models.ShardStats `json:"shards"`
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustOutputFormat(*outputFormat)
	base := strings.TrimRight(*serverURL, "/")

	var status statusResponse
	if err := doJSON(http.MethodGet, base+"/api/v1/status", nil, &status); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	var shards shardsResponse
	if err := doJSON(http.MethodGet, base+"/api/v1/shards", nil, &shards); err != nil {
		fmt.Fprintf(os.Stderr, "Shard stats failed: %v\n", err)
		os.Exit(1)
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{"status": status, "shards": shards.Shards})
		return
	}
	fmt.Printf("Backend:     %s\n", status.Backend)
	fmt.Printf("Shards:      %d", status.ShardCount)
	if status.Pending {
		fmt.Print(" (rebalance pending)")
	}
	fmt.Println()
	fmt.Printf("Entries:     %d\n", status.Entries)
	if status.DiskUsageBytes != nil {
		fmt.Printf("Disk usage:  %s\n", formatBytes(*status.DiskUsageBytes))
	}
	fmt.Println()
	if err := cli.WriteShardStats(os.Stdout, shards.Shards, cli.OutputText); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// projectArg parses a subcommand that takes --server and a single project argument.
func projectArg(name string) (serverURL, project string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	srv := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		fmt.Fprintf(os.Stderr, "Usage: vecshard %s [--server URL] <project>\n", name)
		os.Exit(1)
	}
	return *srv, fs.Arg(0)
}

func runCount() {
	serverURL, project := projectArg("count")
	var out struct {
		Count int `json:"count"`
	}
	if err := doJSON(http.MethodGet, projectURL(serverURL, project, "/count"), nil, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out.Count)
}

func runReload() {
	serverURL, project := projectArg("reload")
	var out struct {
		Loaded int `json:"loaded"`
	}
	if err := doJSON(http.MethodPost, projectURL(serverURL, project, "/reload"), nil, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reloaded %d entries for %s\n", out.Loaded, project)
}

func runDeleteProject() {
	serverURL, project := projectArg("delete-project")
	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := doJSON(http.MethodDelete, projectURL(serverURL, project, "/"), nil, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d entries from %s\n", out.Deleted, project)
}

func runRebalance() {
	fs := flag.NewFlagSet("rebalance", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustOutputFormat(*outputFormat)

	var out struct {
		Moved      int   `json:"moved"`
		DurationMS int64 `json:"duration_ms"`
	}
	if err := doJSON(http.MethodPost, strings.TrimRight(*serverURL, "/")+"/api/v1/rebalance", nil, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Rebalance failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteRebalanceResult(os.Stdout, out.Moved, out.DurationMS, format)
}

func printUsage() {
	fmt.Println(`vecshard - Project-scoped sharded vector store

Usage:
  vecshard server [flags]                    Start the HTTP server
  vecshard search [flags] [text]             Search a project's entries
  vecshard stats [flags]                     Show store status and per-shard statistics
  vecshard count [flags] <project>           Count a project's entries
  vecshard rebalance [flags]                 Move misplaced entries to their shards
  vecshard reload [flags] <project>          Reload a project from durable storage
  vecshard delete-project [flags] <project>  Delete every entry of a project
  vecshard version                           Show version
  vecshard help                              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/vecshard/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string     Server URL (default: http://localhost:8080)
  --project string    Project ID (required)
  --vector string     Query vector as comma-separated floats
  --limit int         Maximum number of results (default: server default; 0 returns nothing)
  --threshold float   Minimum cosine similarity (default: 0)
  --output string     Output format: text or json (default: text)

Client Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format for stats and rebalance: text or json

Examples:
  vecshard server
  vecshard search --project acme --vector 1,0,0
  vecshard search --project acme parse yaml config
  vecshard stats --output json
  vecshard count acme
  vecshard rebalance
  vecshard delete-project acme`)
}
