package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polytool-dev/polytool/internal/domain/values"
	"github.com/polytool-dev/polytool/internal/infrastructure/container"
)

// CommandContext carries the dependencies every command handler needs so
// commands focus on their own business logic instead of container setup.
type CommandContext struct {
	Container *container.Container
	Logger    *slog.Logger
	Context   context.Context
	Cwd       string
}

// CommandHandler executes with an initialized CommandContext.
type CommandHandler func(cc *CommandContext, cmd *cobra.Command, args []string) error

// withContainer wraps handler with container construction and teardown,
// reading the global --store-root/--offline/--config flags set on the
// root command.
func withContainer(handler CommandHandler) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determining working directory: %w", err)
		}

		c, err := container.New(cmd.Context(), container.Options{
			Logger:    logger,
			StoreRoot: storeRoot,
			Offline:   offline,
		})
		if err != nil {
			return fmt.Errorf("initializing polytool: %w", err)
		}
		defer func() { _ = c.Close(cmd.Context()) }()

		cc := &CommandContext{
			Container: c,
			Logger:    logger,
			Context:   cmd.Context(),
			Cwd:       cwd,
		}
		return handler(cc, cmd, args)
	}
}

// parseToolContext parses a "backend:id" or bare "id" argument into a
// values.ToolContext, the inverse of ToolContext.String.
func parseToolContext(raw string) (values.ToolContext, error) {
	backend := values.BackendNative
	id := raw
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		backend = values.Backend(raw[:idx])
		id = raw[idx+1:]
	}
	parsedID, err := values.NewId(id)
	if err != nil {
		return values.ToolContext{}, fmt.Errorf("parsing tool %q: %w", raw, err)
	}
	return values.ToolContext{Backend: backend, Id: parsedID}, nil
}
