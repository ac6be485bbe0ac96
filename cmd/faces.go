package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Detect the primary face in an image",
	Long: `Send an image to the server and print the bounding box of the primary face
(highest confidence, then largest area). With --all every detected face is printed.

Examples:
  face-recognizer detect photo.jpg
  face-recognizer detect group.jpg --all --json
  face-recognizer detect large.jpg --max-dimension 1280`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize the primary face in an image",
	Long: `Send an image to the server and print the enrolled person nearest to its
primary face, with the Euclidean distance between the embeddings.
No threshold is applied: lower distances mean closer matches.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

var addCmd = &cobra.Command{
	Use:   "add <label> <image>",
	Short: "Enroll the primary face of an image under a label",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdd,
}

func init() {
	rootCmd.AddCommand(detectCmd, recognizeCmd, addCmd)

	for _, c := range []*cobra.Command{detectCmd, recognizeCmd, addCmd} {
		c.Flags().Int("max-dimension", 0, "Downscale the image so its longer side is at most this many pixels (0 = send as is)")
		c.Flags().Bool("json", false, "Output as JSON")
	}
	detectCmd.Flags().Bool("all", false, "Print every detected face")
}

// readImageFile reads the image and optionally downscales it. The returned
// scale maps coordinates in the sent image back to the original.
func readImageFile(path string, maxDimension int) ([]byte, float64, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by the user on the command line
	if err != nil {
		return nil, 0, fmt.Errorf("reading image: %w", err)
	}
	if maxDimension <= 0 {
		return data, 1, nil
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, 0, err
	}
	longest := max(img.Bounds().Dx(), img.Bounds().Dy())
	if longest <= maxDimension {
		return data, 1, nil
	}

	scaled, err := imaging.Downscale(data, maxDimension)
	if err != nil {
		return nil, 0, err
	}
	return scaled, float64(longest) / float64(maxDimension), nil
}

func scaleBox(box facematch.BoundingBox, scale float64) facematch.BoundingBox {
	box.X *= scale
	box.Y *= scale
	box.Width *= scale
	box.Height *= scale
	return box
}

func printBox(i int, box facematch.BoundingBox) {
	fmt.Printf("  [%d] x=%.0f y=%.0f w=%.0f h=%.0f confidence=%.3f\n",
		i, box.X, box.Y, box.Width, box.Height, box.Confidence)
}

func runDetect(cmd *cobra.Command, args []string) error {
	data, scale, err := readImageFile(args[0], mustGetInt(cmd, "max-dimension"))
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	if mustGetBool(cmd, "all") {
		faces, err := c.DetectAll(ctx, data)
		if err != nil {
			return err
		}
		for i := range faces {
			faces[i] = scaleBox(faces[i], scale)
		}
		if jsonOutput {
			return outputJSON(faces)
		}
		fmt.Printf("Faces: %d\n", len(faces))
		for i, box := range faces {
			printBox(i, box)
		}
		return nil
	}

	box, err := c.Detect(ctx, data)
	if err != nil {
		return err
	}
	scaled := scaleBox(*box, scale)
	if jsonOutput {
		return outputJSON(scaled)
	}
	fmt.Println("Primary face:")
	printBox(0, scaled)
	return nil
}

func runRecognize(cmd *cobra.Command, args []string) error {
	data, _, err := readImageFile(args[0], mustGetInt(cmd, "max-dimension"))
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	person, err := c.Recognize(context.Background(), data)
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(person)
	}
	fmt.Printf("Label:    %s\n", person.Label)
	fmt.Printf("Distance: %.4f\n", person.Distance)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	label := args[0]
	data, _, err := readImageFile(args[1], mustGetInt(cmd, "max-dimension"))
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	embedding, err := c.Add(context.Background(), label, data)
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(map[string]any{"label": label, "embedding": embedding})
	}
	fmt.Printf("Enrolled %q (%d-dimensional embedding)\n", label, len(embedding))
	return nil
}
