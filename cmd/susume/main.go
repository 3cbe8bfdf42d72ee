// Package main is the Susume CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/susume/internal/catalog"
	"github.com/hyperjump/susume/internal/config"
	"github.com/hyperjump/susume/internal/embedding"
	"github.com/hyperjump/susume/internal/explain"
	"github.com/hyperjump/susume/internal/fallback"
	"github.com/hyperjump/susume/internal/models"
	"github.com/hyperjump/susume/internal/recommend"
	"github.com/hyperjump/susume/internal/server"
	"github.com/hyperjump/susume/internal/storage"
	"github.com/hyperjump/susume/internal/watcher"
	"github.com/hyperjump/susume/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/susume/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "susume server" from the project dir uses the project's
// config (including debug). Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallbackPath := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallbackPath); statErr == nil {
				cfg, loadErr := config.Load(fallbackPath)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallbackPath, nil
			}
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
	case "recommend":
		runRecommend()
	case "subject":
		runSubject()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("susume version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (requests, gate decisions, cache activity)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if cfg.Catalog.ImportPath != "" {
		if _, statErr := os.Stat(cfg.Catalog.ImportPath); statErr == nil {
			nItems, nSets, importErr := storage.ImportCatalogFile(ctx, components.Storage, cfg.Catalog.ImportPath)
			if importErr != nil {
				logger.Warn("initial catalog import failed", zap.Error(importErr))
			} else {
				logger.Info("catalog imported",
					zap.String("path", cfg.Catalog.ImportPath),
					zap.Int("items", nItems),
					zap.Int("default_sets", nSets))
			}
		}
	}
	if err := components.Catalog.Refresh(ctx); err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Catalog.Watch && cfg.Catalog.ImportPath != "" {
		watchSvc := watcher.NewWatcher(cfg.Catalog.ImportPath, func(path string) {
			nItems, nSets, importErr := storage.ImportCatalogFile(context.Background(), components.Storage, path)
			if importErr != nil {
				logger.Warn("catalog re-import failed", zap.String("path", path), zap.Error(importErr))
				return
			}
			if refreshErr := components.Catalog.Refresh(context.Background()); refreshErr != nil {
				logger.Warn("catalog refresh failed after import", zap.Error(refreshErr))
				return
			}
			logger.Info("catalog re-imported",
				zap.String("path", path),
				zap.Int("items", nItems),
				zap.Int("default_sets", nSets))
		}, logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start catalog watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.Storage,
		components.Catalog,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// buildProfileText joins all positional args with spaces so multi-word
// profiles work the same with or without shell quoting.
func buildProfileText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional args to the front of the slice so that flag.Parse() sees them.
// Go's flag package stops at the first non-flag argument, so
// "susume recommend \"jazz fan\" -k 3" would otherwise leave -k unparsed.
func argsReorder(args []string) []string {
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

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	subjectID := fs.String("subject", "", "recommend for a registered subject ID")
	k := fs.Int("k", 0, "number of recommendations (0 = server default)")
	explainFlag := fs.Bool("explain", false, "include a natural-language explanation")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: susume recommend [flags] [profile text]\n\n")
		fmt.Fprintf(fs.Output(), "Profile text is all remaining arguments joined by spaces.\n")
		fmt.Fprintf(fs.Output(), "Either --subject or profile text must be given.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	profile := buildProfileText(fs.Args())
	if *subjectID == "" && profile == "" {
		fs.Usage()
		os.Exit(1)
	}

	req := &models.RecommendationRequest{
		SubjectID:       *subjectID,
		Profile:         profile,
		K:               *k,
		WantExplanation: *explainFlag,
	}

	var result *models.RecommendationResult
	if *serverURL != "" {
		res, err := recommendViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Recommendation failed: %v\n", err)
			os.Exit(1)
		}
		result = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		if err := components.Catalog.Refresh(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
			os.Exit(1)
		}

		result, err = components.Engine.Recommend(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Recommendation failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		printResult(result)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func printResult(result *models.RecommendationResult) {
	if len(result.Results) == 0 {
		fmt.Println("No recommendations.")
	}
	for _, r := range result.Results {
		name := r.Name
		if name == "" {
			name = r.ItemID
		}
		if r.Source == models.SourceFallback {
			fmt.Printf("%2d. %s  (curated)\n", r.Rank, name)
		} else {
			fmt.Printf("%2d. %s  (score %.4f)\n", r.Rank, name, r.Score)
		}
	}
	if result.FallbackReason != "" {
		fmt.Printf("\nfallback: %s\n", result.FallbackReason)
	}
	if result.Degraded {
		fmt.Println("note: result produced on a degraded path")
	}
	if result.Explanation != "" {
		fmt.Printf("\n%s\n", result.Explanation)
	}
}

func recommendViaHTTP(serverURL string, req *models.RecommendationRequest) (*models.RecommendationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/recommendations", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.RecommendationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func runSubject() {
	if len(os.Args) < 3 || os.Args[2] != "add" {
		fmt.Println("Usage: susume subject add [flags] <profile text>")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("subject add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	id := fs.String("id", "", "subject ID (empty = generated)")
	category := fs.String("category", "", "preferred category (used for fallback defaults)")
	_ = fs.Parse(argsReorder(os.Args[3:]))

	profile := buildProfileText(fs.Args())
	if profile == "" {
		fmt.Println("Usage: susume subject add [flags] <profile text>")
		os.Exit(1)
	}

	input := &models.SubjectInput{ID: *id, Profile: profile}
	if *category != "" {
		input.Metadata = map[string]interface{}{"category": *category}
	}

	if *serverURL != "" {
		body, _ := json.Marshal(input)
		resp, err := http.Post(*serverURL+"/api/v1/subjects", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Registration failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var subject models.Subject
		if err := json.NewDecoder(resp.Body).Decode(&subject); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Subject registered: %s\n", subject.ID)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	subject, err := components.Engine.RegisterSubject(context.Background(), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Registration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Subject registered: %s\n", subject.ID)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: susume import [flags] <catalog.json>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Printf("Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	nItems, nSets, err := storage.ImportCatalogFile(context.Background(), store, path)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d item(s) and %d default set(s) from %s\n", nItems, nSets, path)
	fmt.Println("A running server picks the change up via POST /api/v1/catalog/refresh (or the catalog watcher).")
}

// statusResponse is the shape of GET /status.
type statusResponse struct {
	Subjects    int64                 `json:"subjects"`
	Items       int64                 `json:"items"`
	DefaultSets []string              `json:"default_sets,omitempty"`
	DiskBytes   int64                 `json:"disk_bytes"`
	Catalog     *catalogStatus        `json:"catalog,omitempty"`
	Config      *statusConfigResponse `json:"config,omitempty"`
}

type catalogStatus struct {
	Version int64 `json:"version"`
	Items   int   `json:"items"`
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	EmbeddingDimensions int     `json:"embedding_dimensions,omitempty"`
	FallbackThreshold   float64 `json:"fallback_threshold,omitempty"`
	DefaultK            int     `json:"default_k,omitempty"`
	DatabasePath        string  `json:"database_path,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		ctx := context.Background()
		subjects, err := store.CountSubjects(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count subjects failed: %v\n", err)
			os.Exit(1)
		}
		items, err := store.CountItems(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count items failed: %v\n", err)
			os.Exit(1)
		}
		sets, err := store.ListDefaultSets(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List default sets failed: %v\n", err)
			os.Exit(1)
		}
		setNames := make([]string, len(sets))
		for i, set := range sets {
			setNames[i] = set.Name
		}
		diskBytes, _ := storage.DiskUsageBytes(cfg.Storage.DatabasePath)
		status = statusResponse{
			Subjects:    subjects,
			Items:       items,
			DefaultSets: setNames,
			DiskBytes:   diskBytes,
			Config: &statusConfigResponse{
				EmbeddingDimensions: cfg.Embedding.Dimensions,
				FallbackThreshold:   cfg.Fallback.Threshold,
				DefaultK:            cfg.Recommend.DefaultK,
				DatabasePath:        cfg.Storage.DatabasePath,
			},
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("subjects:      %d   # registered subjects\n", status.Subjects)
		fmt.Printf("items:         %d   # catalog items in storage\n", status.Items)
		if len(status.DefaultSets) > 0 {
			fmt.Printf("default_sets:  %s\n", strings.Join(status.DefaultSets, ", "))
		}
		fmt.Printf("disk_bytes:    %d   # database size on disk\n", status.DiskBytes)
		if status.Catalog != nil {
			fmt.Println()
			fmt.Println("# published snapshot")
			fmt.Printf("version:       %d\n", status.Catalog.Version)
			fmt.Printf("items:         %d\n", status.Catalog.Items)
		}
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			if status.Config.EmbeddingDimensions > 0 {
				fmt.Printf("embedding_dims:     %d\n", status.Config.EmbeddingDimensions)
			}
			fmt.Printf("fallback_threshold: %g\n", status.Config.FallbackThreshold)
			if status.Config.DefaultK > 0 {
				fmt.Printf("default_k:          %d\n", status.Config.DefaultK)
			}
			if status.Config.DatabasePath != "" {
				fmt.Printf("database_path:      %s\n", status.Config.DatabasePath)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Catalog  *catalog.Catalog
	Engine   *recommend.Engine
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var inner embedding.Embedder
	if cfg.Embedding.ServiceURL != "" {
		inner = embedding.NewHTTPEmbedder(
			cfg.Embedding.ServiceURL,
			cfg.Embedding.Dimensions,
			time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
			cfg.Embedding.MaxRetries,
		)
	} else {
		logger.Warn("no embedding service configured, using deterministic mock (development only)")
		inner = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}
	embedder := embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize,
		time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)

	var explainer explain.Explainer
	if cfg.Explain.ServiceURL != "" {
		explainer = explain.NewHTTPExplainer(
			cfg.Explain.ServiceURL,
			time.Duration(cfg.Explain.TimeoutSeconds)*time.Second,
			cfg.Explain.MaxRetries,
		)
	}

	cat := catalog.New(store, cfg.Embedding.Dimensions, logger)
	resolver := fallback.NewResolver(store, &cfg.Fallback, logger)
	engine := recommend.NewEngine(store, cat, embedder, explainer, resolver, cfg, logger)

	return &Components{
		Storage:  store,
		Embedder: embedder,
		Catalog:  cat,
		Engine:   engine,
	}, nil
}

func printUsage() {
	fmt.Println(`susume - Vector similarity recommendation engine

Usage:
  susume server [flags]                Start the HTTP server
  susume recommend [flags] [profile]   Get recommendations
  susume subject add [flags] <profile> Register a subject
  susume import [flags] <catalog.json> Import a catalog file
  susume status [flags]                Show storage/catalog status
  susume version                       Show version
  susume help                          Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/susume/config.yaml)
  --debug            Enable debug logging (requests, gate decisions, cache activity)

Recommend Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --subject string   Recommend for a registered subject ID
  --k int            Number of recommendations (default from config)
  --explain          Include a natural-language explanation
  --output string    Output format: text or json (default: text)

Subject Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --id string        Subject ID (empty = generated)
  --category string  Preferred category, used to pick fallback defaults

Import Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  susume server
  susume recommend "science fiction reader who likes space operas"
  susume recommend --subject cust-42 --k 10 --explain
  susume subject add --id cust-42 --category books "mystery novels, scandinavian authors"
  susume import catalog.json
  susume status --output json`)
}
