package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/client"
	"github.com/kozaktomas/face-recognizer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "face-recognizer",
	Short: "A face detection and recognition service",
	Long: `Face Recognizer detects faces in images, computes face embeddings and
matches them against a registry of enrolled persons.

The detection and recognition models are uploaded in chunks, stored in the
database and activated with "models setup". The same binary runs the server
("serve") and acts as a client for a running server.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("server", "", "Server URL (defaults to FACE_RECOGNIZER_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().String("token", "", "API token (defaults to API_TOKEN)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// newClient creates an API client from the --server/--token flags, falling
// back to the environment.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	server := mustGetString(cmd, "server")
	if server == "" {
		server = cfg.Client.ServerURL
	}
	token := mustGetString(cmd, "token")
	if token == "" {
		token = cfg.Client.APIToken
	}
	return client.New(server, token), nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
