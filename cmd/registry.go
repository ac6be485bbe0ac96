package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect or clear the person registry in the database",
	Long: `Work directly against the configured database (DATABASE_URL or MARIADB_DSN)
instead of a running server.`,
}

var registryCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of enrolled persons",
	RunE:  runRegistryCount,
}

var registryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every enrolled person",
	Long: `Remove every enrolled person from the database.
A running server with the HNSW index enabled keeps its in-memory index until
restart; use the server's DELETE /api/v1/persons endpoint to clear both.`,
	RunE: runRegistryClear,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryCountCmd, registryClearCmd)

	registryCountCmd.Flags().String("label", "", "Count only entries with this label (case and diacritics insensitive)")
	registryClearCmd.Flags().Bool("yes", false, "Do not ask for confirmation")
}

func openBackend(ctx context.Context) (*database.Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return database.Open(ctx, &cfg.Database)
}

func runRegistryCount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	label := mustGetString(cmd, "label")
	if label != "" {
		n, err := backend.Persons.CountByLabel(ctx, label)
		if err != nil {
			return fmt.Errorf("counting persons: %w", err)
		}
		fmt.Printf("Persons labeled %q: %d\n", label, n)
		return nil
	}

	n, err := backend.Persons.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting persons: %w", err)
	}
	fmt.Printf("Persons: %d\n", n)
	return nil
}

func runRegistryClear(cmd *cobra.Command, args []string) error {
	if !mustGetBool(cmd, "yes") {
		fmt.Print("This removes every enrolled person. Continue? [y/N] ")
		var answer string
		fmt.Fscanln(os.Stdin, &answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	ctx := context.Background()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	n, err := backend.Persons.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting persons: %w", err)
	}
	if err := backend.Persons.Clear(ctx); err != nil {
		return fmt.Errorf("clearing persons: %w", err)
	}
	fmt.Printf("Removed %d persons\n", n)
	return nil
}
