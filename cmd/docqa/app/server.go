// Package app provides the document QA server application.
package app

import (
	"context"
	"fmt"

	"github.com/kart-io/sentinel-docqa/cmd/docqa/app/options"
	docqasvc "github.com/kart-io/sentinel-docqa/internal/docqa"
	"github.com/kart-io/sentinel-docqa/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Sentinel document QA service

Answers questions about a folder of .docx documents.

This server provides:
  - Semantic segmentation of documents into coherent chunks
  - A persisted vector index rebuilt only when the corpus changes
  - Grounded answers with cited sources, or a general reply when nothing relevant is found
  - Conversation sessions with archival, over HTTP or as MCP tools on stdio`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(docqasvc.Name),
		app.WithShortDescription("Document question answering over .docx files"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func(ctx context.Context) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}
