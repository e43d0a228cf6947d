package cli

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/IlyaGulya/remnawave-modulegen/internal/descriptor"
	"github.com/IlyaGulya/remnawave-modulegen/internal/generate"
)

func newGenerateCommand() *cobra.Command {
	var (
		specPath   string
		configPath string
		outputPath string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate module descriptors from an OpenAPI document",
		Example: `  # Emit descriptors for every managed controller
  modulegen generate --spec openapi.yaml

  # Apply overrides and write JSON to a file
  modulegen generate --spec openapi.yaml --config overrides.yaml --format json -o modules.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			specData, err := os.ReadFile(specPath)
			if err != nil {
				return err
			}

			var cfg descriptor.OverrideConfig
			if configPath != "" {
				cfg, err = descriptor.LoadConfig(configPath)
				if err != nil {
					return err
				}
			}

			descriptors, err := generate.Run(specData, cfg)
			if err != nil {
				return err
			}
			log.Info().Int("modules", len(descriptors)).Msg("descriptors generated")

			out := cmd.OutOrStdout()
			if outputPath != "" {
				file, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			return descriptor.Emit(out, descriptors, format)
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "s", "", "OpenAPI document (YAML or JSON)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "override configuration file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write descriptors to a file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", descriptor.FormatYAML, "output format (yaml or json)")
	_ = cmd.MarkFlagRequired("spec")

	return cmd
}
