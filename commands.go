package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/svs-acoustic/config"
	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/mdn"
	"github.com/maastricht-university/svs-acoustic/orchestrator"
)

type rootFlags struct {
	config   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:           "svs-acoustic",
		Short:         "Compose singing-voice acoustic features from energy, pitch and timbre predictors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override pipeline.log_level")

	root.AddCommand(newComposeCmd(&flags), newAnalyzeCmd(&flags), newResolveCmd())
	return root
}

// load reads the config and configures the global logger from it.
func load(flags *rootFlags) (*cfg.Root, *logrus.Entry, error) {
	conf, err := cfg.Load(flags.config)
	if err != nil {
		return nil, nil, err
	}
	lvl := conf.Pipeline.LogLvl
	if flags.logLevel != "" {
		lvl = flags.logLevel
	}
	level, err := logrus.ParseLevel(lvl)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return conf, logrus.WithFields(logrus.Fields{"pipeline": conf.Pipeline.Name, "version": conf.Pipeline.Version}), nil
}

func newComposeCmd(flags *rootFlags) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "compose <score.json>",
		Short: "Predict and compose acoustic features for a score feature batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, log, err := load(flags)
			if err != nil {
				return err
			}
			p, err := orchestrator.NewPipeline(conf, log)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if check {
				if err := p.Check(ctx); err != nil {
					return err
				}
			}
			log.WithField("layout", p.Composer().Layout().Names()).Debug("output layout")
			s, err := p.Run(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Manifest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "verify each service's /info against the config first")
	return cmd
}

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var model, out string
	cmd := &cobra.Command{
		Use:   "analyze <target.json>",
		Short: "Apply a model's shallow-AR analysis filters to a training target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, log, err := load(flags)
			if err != nil {
				return err
			}
			mc, ok := map[string]cfg.Model{
				"energy": conf.Models.Energy,
				"pitch":  conf.Models.Pitch,
				"timbre": conf.Models.Timbre,
			}[model]
			if !ok {
				return fmt.Errorf("unknown model %q", model)
			}
			if mc.ShallowAR == "" {
				return fmt.Errorf("model %q has no shallow_ar checkpoint", model)
			}
			bank, err := cfg.LoadFilterBank(mc.ShallowAR, mc.Streams)
			if err != nil {
				return err
			}
			y, err := orchestrator.ReadBatch(args[0])
			if err != nil {
				return err
			}
			filtered, err := bank.AnalyzeAll(y)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"model": model, "frames": y.T, "out": out}).Info("target filtered")
			return orchestrator.WriteBatch(out, filtered)
		},
	}
	cmd.Flags().StringVar(&model, "model", "timbre", "model whose filters to use (energy, pitch, timbre)")
	cmd.Flags().StringVarP(&out, "out", "o", "filtered.json", "output path")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "resolve <mixture.json>",
		Short: "Collapse a stored Gaussian mixture to its most probable mean and variance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			var m features.Mixture
			if err := json.NewDecoder(f).Decode(&m); err != nil {
				return fmt.Errorf("%s decode: %w", args[0], err)
			}
			variance, mean, err := mdn.Resolve(&m)
			if err != nil {
				return err
			}
			return orchestrator.WriteJSON(out, struct {
				Mean     *features.Batch `json:"mean"`
				Variance *features.Batch `json:"variance"`
			}{mean, variance})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "resolved.json", "output path")
	return cmd
}
