// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/ragstore"
	"github.com/poiesic/ragstore/ai"
	"github.com/poiesic/ragstore/ingestion"
	"github.com/urfave/cli/v2"
)

func main() {
	serviceFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Base directory for partition storage",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL for embeddings and generation",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "generator-model",
			Usage: "Generation model name",
			Value: "qwen2.5:3b",
		},
		&cli.IntFlag{
			Name:  "dimension",
			Usage: "Embedding vector dimension",
			Value: ragstore.DefaultDimension,
		},
		&cli.StringFlag{
			Name:     "tenant",
			Aliases:  []string{"t"},
			Usage:    "Tenant identifier",
			Required: true,
		},
	}

	app := &cli.App{
		Name:  "ragstore",
		Usage: "Multi-tenant document store with retrieval-augmented querying",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Chunk, embed, and store a text file for a tenant",
				ArgsUsage: "FILE",
				Action:    ingestCommand,
				Flags: append(serviceFlags,
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Chunk size in characters",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Overlap between adjacent chunks in characters",
						Value: 200,
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Answer a question from a tenant's stored documents",
				ArgsUsage: "QUESTION",
				Action:    queryCommand,
				Flags: append(serviceFlags,
					&cli.IntFlag{
						Name:  "max-results",
						Usage: "Maximum number of sources to return",
						Value: 5,
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show document count and dimension for a tenant",
				Action: statsCommand,
				Flags:  serviceFlags,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openService(c *cli.Context, extra ...ragstore.ServiceOption) (*ragstore.Service, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := append([]ragstore.ServiceOption{
		ragstore.WithAIConfig(aiConfig),
		ragstore.WithDimension(c.Int("dimension")),
	}, extra...)

	return ragstore.NewService(c.String("data"), opts...)
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("file argument is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	service, err := openService(c, ragstore.WithIngestionOptions(
		ingestion.WithChunking(c.Int("chunk-size"), c.Int("chunk-overlap")),
	))
	if err != nil {
		return err
	}
	defer service.Close(ctx)

	count, err := service.IngestText(ctx, c.String("tenant"), filepath.Base(path), string(content), nil)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Ingested %q for tenant %s: %d chunks\n", filepath.Base(path), c.String("tenant"), count)
	return nil
}

func queryCommand(c *cli.Context) error {
	ctx := context.Background()

	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("question argument is required")
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close(ctx)

	result, err := service.ProcessQuery(ctx, c.String("tenant"), question, c.Int("max-results"))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Println(result.Answer)
	fmt.Printf("\nConfidence: %.0f\n", result.Confidence)
	for i, source := range result.Sources {
		fmt.Printf("%d. [%.4f] %s #%d\n", i+1, source.Score, source.Record.Filename, source.Record.ChunkIndex)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close(ctx)

	stats, err := service.Stats(ctx, c.String("tenant"))
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	fmt.Printf("Tenant:    %s\n", stats.TenantID)
	fmt.Printf("Documents: %d\n", stats.Documents)
	fmt.Printf("Dimension: %d\n", stats.Dimension)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
