package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vesselmask/internal/logger"
	"vesselmask/pkg/config"
	"vesselmask/pkg/inference"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vesselmask",
	Short: "Threshold an OCT volume into a binary vessel mask",
	Long: `Reads the single .mha image from /input/images/oct together with
/input/age-in-months.json, averages the channels of every voxel and marks
voxels with a mean intensity in [128, 255] as foreground. The mask is written
to /output/images/binary-vessel-segmentation/output.mha.

Run without arguments inside the algorithm container.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInference,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Write a configuration file holding the default settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfigFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(initConfigCmd)
}

func runInference(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log := logger.NewConsole(verbose || cfg.Output.Verbose, uuid.New().String())

	params := &inference.Params{
		ImageDir:     cfg.ImagePath(),
		MetadataFile: cfg.MetadataPath(),
		OutputDir:    cfg.OutputPath(),
		SavePreview:  cfg.Output.SavePreview,
		PreviewDir:   cfg.PreviewPath(),
		PreviewAxis:  cfg.Output.PreviewAxis,
	}

	summary, err := inference.NewAlgorithm(params, log).Run(context.Background())
	if err != nil {
		log.Error("inference", err, nil)
		return err
	}

	log.Info("inference", "run completed", map[string]interface{}{
		"input":               summary.InputFile,
		"output":              summary.OutputFile,
		"foreground_fraction": summary.ForegroundFraction,
		"elapsed":             summary.Elapsed.String(),
	})
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vesselmask: %v\n", err)
		os.Exit(1)
	}
}
