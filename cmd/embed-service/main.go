// Package main is the embed-service CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/config"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/embedding"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/ingest"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/retrieval"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/server"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/status"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/storage"
	"github.com/kosa-aws-develop-figh2team/embed-service/pkg/utils"
)

var version = "dev"

const defaultAddr = "http://localhost:8080"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "chunks":
		runChunks()
	case "version", "--version", "-v":
		fmt.Printf("embed-service version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadConfig loads the config file when one exists, falling back to
// environment-only configuration. A .env file in the working directory is
// loaded first so POSTGRES_* and BEDROCK_* overrides apply either way.
func loadConfig(path string) (*config.Config, error) {
	_ = godotenv.Load()
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return config.Load("config.yaml")
	}
	return config.LoadFromEnv(), nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (defaults to ./config.yaml when present)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewPostgresStore(ctx, cfg.Database.DSN(), cfg.Embedding.Dimensions, logger)
	if err != nil {
		logger.Fatal("Failed to connect to storage", zap.Error(err))
	}
	defer store.Close()

	embedder, err := embedding.NewEmbedder(ctx, &cfg.Embedding, logger)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	defer embedder.Close()

	var tracker status.Tracker = status.NoopTracker{}
	if cfg.Status.EnabledOrDefault() {
		sqliteTracker, err := status.NewSQLiteTracker(cfg.Status.DatabasePath)
		if err != nil {
			logger.Fatal("Failed to open status tracker", zap.Error(err))
		}
		tracker = sqliteTracker
	}
	defer tracker.Close()

	writer := ingest.NewWriter(store, embedder, tracker, logger)
	retriever := retrieval.NewRetriever(store, embedder, &cfg.Search, logger)
	srv := server.NewServer(writer, retriever, store, cfg, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		logger.Fatal("Server failed", zap.Error(err))
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "server address")
	serviceID := fs.String("service", "", "owning service id (required)")
	file := fs.String("file", "", "read chunks from file, one per line")
	async := fs.Bool("async", false, "submit the batch without waiting for completion")
	_ = fs.Parse(os.Args[2:])

	if *serviceID == "" {
		fmt.Println("Usage: embed-service ingest -service <id> [-file <path>] [-async] [chunk ...]")
		os.Exit(1)
	}
	chunks, err := readChunks(*file, fs.Args())
	if err != nil {
		fmt.Printf("Failed to read chunks: %v\n", err)
		os.Exit(1)
	}
	if len(chunks) == 0 {
		fmt.Println("No chunks to ingest")
		os.Exit(1)
	}

	body := map[string]interface{}{"chunks": chunks, "service_id": *serviceID, "async": *async}
	resp, err := postJSON(*addr+"/api/v1/embeddings/batch", body)
	if err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "server address")
	topK := fs.Int("top-k", 5, "number of results")
	mode := fs.String("mode", "hybrid", "search mode: hybrid or vector")
	_ = fs.Parse(os.Args[2:])

	query := strings.Join(fs.Args(), " ")
	if query == "" {
		fmt.Println("Usage: embed-service search [-top-k N] [-mode hybrid|vector] <query>")
		os.Exit(1)
	}

	body := map[string]interface{}{"query": query, "top_k": *topK, "mode": *mode}
	resp, err := postJSON(*addr+"/api/v1/search", body)
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp)
}

func runChunks() {
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "server address")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Println("Usage: embed-service chunks <service-id>")
		os.Exit(1)
	}

	resp, err := getJSON(fmt.Sprintf("%s/api/v1/services/%s/chunks", *addr, fs.Arg(0)))
	if err != nil {
		fmt.Printf("Failed to fetch chunks: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp)
}

// readChunks returns chunks from the file when path is set (one chunk per
// non-empty line), otherwise the positional args.
func readChunks(path string, args []string) ([]string, error) {
	if path == "" {
		return args, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func postJSON(url string, body interface{}) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

func getJSON(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

func readResponse(resp *http.Response) (string, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return strings.TrimSpace(string(data)), nil
}

func printUsage() {
	fmt.Println(`embed-service - text embedding ingestion and hybrid retrieval

Usage:
  embed-service server  [-config <path>] [-debug]
  embed-service ingest  -service <id> [-file <path>] [-async] [chunk ...]
  embed-service search  [-top-k N] [-mode hybrid|vector] <query>
  embed-service chunks  <service-id>
  embed-service version
  embed-service help`)
}
