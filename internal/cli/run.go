package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillan/bleuwatch/internal/bleu"
	"github.com/quillan/bleuwatch/internal/config"
	"github.com/quillan/bleuwatch/internal/cursor"
	"github.com/quillan/bleuwatch/internal/loop"
	"github.com/quillan/bleuwatch/internal/output"
	"github.com/quillan/bleuwatch/internal/scorer"
	"github.com/quillan/bleuwatch/internal/sink"
	"github.com/quillan/bleuwatch/internal/types"
	"github.com/quillan/bleuwatch/internal/workspace"
)

// loopRunner allows tests to stub the evaluation loop.
var loopRunner = loop.Run

func newRunCmd() *cobra.Command {
	cfg := config.Default()
	var configPath string
	var reportBaseline bool

	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "run",
		Short: "Score checkpoints as training produces them, or one file pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := applyConfigFile(cmd, configPath, &cfg); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("report-baseline") {
				cfg.ReportBaseline = &reportBaseline
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.OneShot() {
				return runOneShot(cmd.OutOrStdout(), cfg)
			}
			return runWatch(cmd.Context(), cfg)
		},
	})

	flags := cmd.Flags()
	flags.StringVar(&cfg.ModelDir, "model-dir", "", "directory the trainer writes checkpoints to")
	flags.StringVar(&cfg.SourcePath, "source", "", "held-out source text to translate")
	flags.StringVar(&cfg.ReferencePath, "reference", "", "reference translation (required)")
	flags.StringVar(&cfg.HypothesisPath, "hypothesis", "", "score this translation file and exit (one-shot mode)")
	flags.StringVar(&cfg.TranslationsDir, "translations-dir", "", "where hypothesis files are written (default <model-dir>/translations)")
	flags.StringVar(&cfg.EventsDir, "events-dir", "", "where the metric event stream is written (default <model-dir>/events)")
	flags.StringVar(&cfg.RunMetaName, "run-meta", cfg.RunMetaName, "run-metadata artifact anchoring the zero baseline")
	flags.StringVar(&cfg.Translator, "translator", "", "external translate command; {checkpoint}, {source} and {output} are substituted")
	flags.StringVar(&cfg.BleuVariant, "bleu-variant", cfg.BleuVariant, "cased, uncased or both")
	flags.Int64Var(&cfg.MinSteps, "min-steps", cfg.MinSteps, "skip checkpoints at or below this step; -1 resumes from the cursor")
	flags.IntVar(&cfg.WaitSeconds, "wait-seconds", cfg.WaitSeconds, "how long to wait for a new checkpoint; 0 exits when drained")
	flags.StringVar(&cfg.TagSuffix, "tag-suffix", "", "suffix appended to metric tags, for parallel runs")
	flags.BoolVar(&reportBaseline, "report-baseline", false, "force the zero baseline on or off (default: on iff min-steps is 0)")
	flags.StringVar(&cfg.Influx.URL, "influx-url", "", "InfluxDB v2 URL; enables the influx sink")
	flags.StringVar(&cfg.Influx.Token, "influx-token", "", "InfluxDB API token")
	flags.StringVar(&cfg.Influx.Org, "influx-org", "", "InfluxDB organization")
	flags.StringVar(&cfg.Influx.Bucket, "influx-bucket", "", "InfluxDB bucket")
	flags.StringVar(&configPath, "config", "", "YAML config file; flags override its values")
	return cmd
}

// applyConfigFile loads the YAML file and re-applies any flag the user set
// explicitly, so precedence is defaults < file < flags.
func applyConfigFile(cmd *cobra.Command, path string, cfg *config.Config) error {
	flagged := *cfg
	if err := config.LoadFile(path, cfg); err != nil {
		return err
	}
	overrides := map[string]func(){
		"model-dir":        func() { cfg.ModelDir = flagged.ModelDir },
		"source":           func() { cfg.SourcePath = flagged.SourcePath },
		"reference":        func() { cfg.ReferencePath = flagged.ReferencePath },
		"hypothesis":       func() { cfg.HypothesisPath = flagged.HypothesisPath },
		"translations-dir": func() { cfg.TranslationsDir = flagged.TranslationsDir },
		"events-dir":       func() { cfg.EventsDir = flagged.EventsDir },
		"run-meta":         func() { cfg.RunMetaName = flagged.RunMetaName },
		"translator":       func() { cfg.Translator = flagged.Translator },
		"bleu-variant":     func() { cfg.BleuVariant = flagged.BleuVariant },
		"min-steps":        func() { cfg.MinSteps = flagged.MinSteps },
		"wait-seconds":     func() { cfg.WaitSeconds = flagged.WaitSeconds },
		"tag-suffix":       func() { cfg.TagSuffix = flagged.TagSuffix },
		"influx-url":       func() { cfg.Influx.URL = flagged.Influx.URL },
		"influx-token":     func() { cfg.Influx.Token = flagged.Influx.Token },
		"influx-org":       func() { cfg.Influx.Org = flagged.Influx.Org },
		"influx-bucket":    func() { cfg.Influx.Bucket = flagged.Influx.Bucket },
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	return nil
}

// runOneShot scores one hypothesis file against the reference and prints a
// line per variant. No catalog, cursor or sink is involved.
func runOneShot(w io.Writer, cfg config.Config) error {
	for _, v := range cfg.Variants() {
		score, err := bleu.Files(cfg.ReferencePath, cfg.HypothesisPath, v == types.VariantCased)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s = %.2f\n", v.Tag(""), 100*score); err != nil {
			return err
		}
	}
	return nil
}

func runWatch(ctx context.Context, cfg config.Config) error {
	printer := output.NewPrinter(os.Stdout)
	layout := workspace.NewLayout(cfg)
	if err := layout.Ensure(); err != nil {
		return err
	}

	events, err := sink.OpenJSONL(layout.EventsFile())
	if err != nil {
		return err
	}
	sinks := sink.Multi{events}
	if cfg.Influx.Enabled() {
		influx := sink.OpenInflux(cfg.Influx)
		sinks = append(sinks, influx)
	}
	defer sinks.Close()

	cur := cursor.New(layout.CursorFile)
	sc := scorer.New(cfg.Translator, cfg.SourcePath, cfg.ReferencePath, layout, printer)

	opts := loop.Options{
		ModelDir:       cfg.ModelDir,
		RunMetaName:    cfg.RunMetaName,
		Variants:       cfg.Variants(),
		TagSuffix:      cfg.TagSuffix,
		MinSteps:       cfg.MinSteps,
		WaitSeconds:    cfg.WaitSeconds,
		ReportBaseline: cfg.ReportBaseline,
		Printer:        printer,
	}
	if cfg.WaitSeconds > 0 {
		if notify, stop, err := loop.WatchDir(ctx, cfg.ModelDir); err == nil {
			opts.Notify = notify
			defer stop()
		}
		// A failed watcher is fine; the loop polls regardless.
	}
	return loopRunner(ctx, opts, sc, cur, sinks)
}
