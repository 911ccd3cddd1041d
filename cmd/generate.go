package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newGenerateCmd creates the 'generate' subcommand.
func newGenerateCmd() *cobra.Command {
	var printManifest bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Pre-render the configured bundle",
		Long: `Loads the bundle directory, runs the finalize pipeline including the
static site generator, and emits the result to the configured output.`,
		Annotations: map[string]string{"needs-app": "true"},
		RunE: withCleanup(func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			manifest, err := appInstance.Generate(cmd.Context())
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			appInstance.GetLogger().Info("site generated",
				zap.String("run_id", manifest.RunID),
				zap.Int("artifacts", len(manifest.Artifacts)),
				zap.String("manifest", manifest.URI),
			)
			if !printManifest {
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(manifest)
		}),
	}
	cmd.Flags().BoolVar(&printManifest, "print-manifest", false, "write the build manifest to stdout")
	return cmd
}
