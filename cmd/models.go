package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/client"
	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/database"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Upload, activate and inspect the face models",
}

var modelsUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload model files to the server in chunks",
	Long: `Upload the detection and/or recognition model files to the server.
Each model blob is cleared first, then the file is sent in chunks.
Uploading does not activate the models; run "models setup" afterwards or pass --setup.

Examples:
  # Upload both models and activate them
  face-recognizer models upload --detection ultraface.onnx --recognition facenet.onnx --setup

  # Use smaller chunks for a server with a low MAX_CHUNK_BYTES
  face-recognizer models upload --recognition facenet.onnx --chunk-size 262144`,
	RunE: runModelsUpload,
}

var modelsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the stored model bytes",
	RunE:  runModelsClear,
}

var modelsSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Activate the uploaded models",
	RunE:  runModelsSetup,
}

var modelsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model and registry status",
	RunE:  runModelsStatus,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsUploadCmd, modelsClearCmd, modelsSetupCmd, modelsStatusCmd)

	modelsUploadCmd.Flags().String("detection", "", "Path to the face detection model")
	modelsUploadCmd.Flags().String("recognition", "", "Path to the face recognition model")
	modelsUploadCmd.Flags().Int("chunk-size", constants.DefaultChunkSize, "Bytes per upload call")
	modelsUploadCmd.Flags().Bool("setup", false, "Activate the models after uploading")

	modelsClearCmd.Flags().String("model", "", "Clear only this model (face-detection or face-recognition)")

	modelsStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

// uploadModelFile streams one file to the named blob with a progress bar.
func uploadModelFile(ctx context.Context, c *client.Client, name, path string, chunkSize int) error {
	f, err := os.Open(path) //nolint:gosec // path is provided by the user on the command line
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	bar := progressbar.NewOptions64(info.Size(),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	size, err := c.UploadModel(ctx, name, f, chunkSize, func(n int) {
		bar.Add(n)
	})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}
	if size != info.Size() {
		return fmt.Errorf("%s: server stored %d bytes, file has %d", name, size, info.Size())
	}
	fmt.Printf("Uploaded %s: %d bytes\n", name, size)
	return nil
}

func runModelsUpload(cmd *cobra.Command, args []string) error {
	detection := mustGetString(cmd, "detection")
	recognition := mustGetString(cmd, "recognition")
	chunkSize := mustGetInt(cmd, "chunk-size")
	setup := mustGetBool(cmd, "setup")

	if detection == "" && recognition == "" {
		return errors.New("at least one of --detection or --recognition is required")
	}
	if chunkSize <= 0 {
		return fmt.Errorf("--chunk-size must be positive, got %d", chunkSize)
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if detection != "" {
		if err := uploadModelFile(ctx, c, database.BlobFaceDetection, detection, chunkSize); err != nil {
			return err
		}
	}
	if recognition != "" {
		if err := uploadModelFile(ctx, c, database.BlobFaceRecognition, recognition, chunkSize); err != nil {
			return err
		}
	}

	if setup {
		return setupModels(ctx, c)
	}
	fmt.Println("Run \"face-recognizer models setup\" to activate the models")
	return nil
}

func runModelsClear(cmd *cobra.Command, args []string) error {
	model := mustGetString(cmd, "model")
	names := []string{database.BlobFaceDetection, database.BlobFaceRecognition}
	if model != "" {
		if !database.ValidBlobName(model) {
			return fmt.Errorf("unknown model %q", model)
		}
		names = []string{model}
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := c.ClearModel(context.Background(), name); err != nil {
			return fmt.Errorf("clearing %s: %w", name, err)
		}
		fmt.Printf("Cleared %s\n", name)
	}
	return nil
}

func setupModels(ctx context.Context, c *client.Client) error {
	fmt.Println("Activating models...")
	if err := c.SetupModels(ctx); err != nil {
		return fmt.Errorf("model setup failed: %w", err)
	}
	fmt.Println("Models activated")
	return nil
}

func runModelsSetup(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	return setupModels(context.Background(), c)
}

func runModelsStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	st, err := c.Status(context.Background())
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(st)
	}

	fmt.Println("Models:")
	if st.Models.Loaded {
		fmt.Printf("  Active:          yes (since %s)\n", st.Models.ActivatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Detector:        %d bytes\n", st.Models.DetectorBytes)
		fmt.Printf("  Embedder:        %d bytes\n", st.Models.EmbedderBytes)
	} else {
		fmt.Println("  Active:          no")
	}
	fmt.Println("Stored blobs:")
	fmt.Printf("  %-16s %d bytes\n", database.BlobFaceDetection+":", st.Blobs[database.BlobFaceDetection])
	fmt.Printf("  %-16s %d bytes\n", database.BlobFaceRecognition+":", st.Blobs[database.BlobFaceRecognition])
	fmt.Println("Registry:")
	fmt.Printf("  Persons:         %d\n", st.Persons)
	fmt.Printf("  Index:           %s\n", st.RegistryIndex)
	return nil
}
