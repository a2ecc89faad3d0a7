package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shuv1824/kisan/internal/config"
	"github.com/shuv1824/kisan/internal/services/ml"
)

func trainOptions(cfg config.ModelsConfig) ml.TrainOptions {
	opts := ml.DefaultTrainOptions()
	opts.Seed = cfg.Seed
	opts.WeatherSamples = cfg.WeatherSamples
	opts.ImagesPerClass = cfg.ImagesPerClass
	return opts
}

func trainCmd() *cobra.Command {
	var (
		outDir string
		seed   uint64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the weather and image classifiers and write them to the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			opts := trainOptions(cfg.Models)
			if cmd.Flags().Changed("seed") {
				opts.Seed = seed
			}
			dir := cfg.Models.Dir
			if outDir != "" {
				dir = outDir
			}

			logger.Info("training classifiers",
				"seed", opts.Seed,
				"weather_samples", opts.WeatherSamples,
				"images_per_class", opts.ImagesPerClass,
			)
			start := time.Now()

			models, err := ml.Train(opts)
			if err != nil {
				return err
			}
			if err := models.Save(dir, opts.Seed); err != nil {
				return fmt.Errorf("failed to save models: %w", err)
			}

			logger.Info("classifiers written", "dir", dir, "duration", time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default models.dir)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (default models.seed)")
	return cmd
}
