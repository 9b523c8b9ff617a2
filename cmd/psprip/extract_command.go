package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"psprip/internal/cache"
	"psprip/internal/pipeline"
	"psprip/internal/report"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		inputFlag     string
		outputFlag    string
		kindFlags     []string
		allFlag       bool
		movieMode     string
		geometryMode  string
		audioMode     string
		limitFlag     int
		noDecodeVAG   bool
		overwriteFlag bool
		jsonFlag      bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run the extraction pipeline against an image or directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCfg := *cfg
			if movieMode != "" {
				runCfg.Movies.Mode = strings.ToLower(movieMode)
			}
			if geometryMode != "" {
				runCfg.Geometry.Mode = strings.ToLower(geometryMode)
			}
			if audioMode != "" {
				runCfg.Audio.Mode = strings.ToLower(audioMode)
			}
			if limitFlag > 0 {
				runCfg.Geometry.Limit = limitFlag
				runCfg.Levels.Limit = limitFlag
				runCfg.Movies.Limit = limitFlag
			}
			if noDecodeVAG {
				runCfg.Audio.DecodeVAG = false
			}
			if overwriteFlag {
				runCfg.Movies.Overwrite = true
			}
			if err := runCfg.Validate(); err != nil {
				return err
			}

			kinds, err := parseKinds(kindFlags, allFlag)
			if err != nil {
				return err
			}

			output := strings.TrimSpace(outputFlag)
			if output == "" {
				output = runCfg.Paths.OutputDir
			}

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := cache.Open(&runCfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			pipe := pipeline.New(&runCfg, store, logger)
			run, err := pipe.Run(runCtx, pipeline.Options{
				Input:      inputFlag,
				OutputRoot: output,
				Kinds:      kinds,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonFlag {
				if err := writeJSON(out, run); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, renderRunTable(run))
				fmt.Fprintf(out, "Output: %s\n", run.OutputRoot)
			}

			if !run.Succeeded() {
				return fmt.Errorf("extraction finished with failed or skipped tasks")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFlag, "input", "i", "", "UMD image file or extracted game directory (required)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output directory (defaults to paths.output_dir)")
	cmd.Flags().StringArrayVarP(&kindFlags, "kind", "k", nil, "Task kind to run (repeatable): textures, geometry, audio, levels, movies, datatables, fontmetrics")
	cmd.Flags().BoolVar(&allFlag, "all", false, "Run every task kind")
	cmd.Flags().StringVar(&movieMode, "movie-mode", "", "Movie handling: copy, probe, transcode or all")
	cmd.Flags().StringVar(&geometryMode, "geometry-mode", "", "Geometry passes: all, models or terrains")
	cmd.Flags().StringVar(&audioMode, "audio-mode", "", "Audio passes: all, at3 or bnk")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Process at most N files per converter (0 = no limit)")
	cmd.Flags().BoolVar(&noDecodeVAG, "no-decode-vag", false, "Skip VAG to WAV decoding for bank entries")
	cmd.Flags().BoolVar(&overwriteFlag, "overwrite", false, "Overwrite existing transcoded movies")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the run report as JSON")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func parseKinds(values []string, all bool) ([]report.Kind, error) {
	if all || len(values) == 0 {
		return nil, nil
	}
	var kinds []report.Kind
	for _, value := range values {
		kind, ok := report.ParseKind(value)
		if !ok {
			return nil, fmt.Errorf("unknown kind %q", value)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func renderRunTable(run *report.Run) string {
	headers := []string{"KIND", "STATUS", "FOUND", "CONVERTED", "SKIPPED", "REASON"}
	rows := make([][]string, 0, len(run.Tasks))
	for _, task := range run.Tasks {
		rows = append(rows, []string{
			string(task.Kind),
			string(task.Status),
			fmt.Sprintf("%d", task.Found),
			fmt.Sprintf("%d", task.Converted),
			fmt.Sprintf("%d", task.Skipped),
			task.Reason,
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func writeJSON(out interface{ Write([]byte) (int, error) }, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
