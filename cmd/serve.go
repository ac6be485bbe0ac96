package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/database"
	_ "github.com/kozaktomas/face-recognizer/internal/database/mariadb"
	_ "github.com/kozaktomas/face-recognizer/internal/database/postgres"
	"github.com/kozaktomas/face-recognizer/internal/inference/opencv"
	"github.com/kozaktomas/face-recognizer/internal/loader"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"github.com/kozaktomas/face-recognizer/internal/registry"
	"github.com/kozaktomas/face-recognizer/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Face Recognizer API server.

The server needs a database: set DATABASE_URL for PostgreSQL (with pgvector)
or MARIADB_DSN for MariaDB. Uploaded models are kept in the database but are
not activated on start; call "models setup" after every restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("hnsw", false, "Use the in-memory HNSW index for matching (overrides REGISTRY_HNSW)")
}

// applyServeFlags lets explicit flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}
	if mustGetBool(cmd, "hnsw") {
		cfg.Registry.HNSW = true
	}
}

// initRegistry builds or loads the person index when HNSW is enabled.
func initRegistry(ctx context.Context, reg *registry.Registry, indexPath string) {
	if !reg.HNSWEnabled() {
		fmt.Println("Person matching uses exact database search")
		return
	}
	if indexPath != "" {
		fmt.Printf("Loading person HNSW index from %s...\n", indexPath)
	} else {
		fmt.Println("Building in-memory HNSW index for person matching...")
	}
	if err := reg.Init(ctx); err != nil {
		fmt.Printf("Warning: Failed to build person HNSW index: %v\n", err)
		fmt.Println("Person matching will fall back to exact database search")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to %s database...\n", cfg.Database.Backend())
	backend, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer backend.Close()
	fmt.Printf("Using %s backend\n", backend.Name)

	reg := registry.New(backend.Persons, registry.Options{
		HNSW:      cfg.Registry.HNSW,
		IndexPath: cfg.Registry.IndexPath,
	})
	initRegistry(ctx, reg, cfg.Registry.IndexPath)

	svc := recognition.NewService(
		loader.New(opencv.NewRuntime()),
		backend.Blobs,
		reg,
		backend.Users,
		cfg.Pipeline,
	)
	svc.Resume(ctx)

	server := web.NewServer(&cfg.Server, svc, backend.Users)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		if err := reg.Save(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else if reg.HNSWEnabled() && cfg.Registry.IndexPath != "" {
			fmt.Println("Person HNSW index saved to disk")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Recognizer API on http://%s/api/v1\n", cfg.Server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
