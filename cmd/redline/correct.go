package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/internal/metrics"
	"github.com/jackzampolin/redline/internal/pipeline"
	"github.com/jackzampolin/redline/internal/server/endpoints"
	"github.com/jackzampolin/redline/internal/svcctx"
	"github.com/jackzampolin/redline/internal/types"
)

var (
	correctOpts        svcctx.RunOptions
	correctTemperature float64
	correctSave        bool
	correctQuiet       bool
)

var correctCmd = &cobra.Command{
	Use:   "correct [file]",
	Short: "Correct a groups document locally",
	Long: `Run a correction pass in this process, without a server.

The input holds either {"groups": {...}} or just the groups mapping.
Read from stdin when no file is given or the file is "-".

Progress is written to stderr; the run report goes to stdout in the
--output format. Interrupting (Ctrl+C) stops new chunk requests and
prints whatever was corrected so far.

Examples:
  redline correct book.json
  redline correct book.json --provider openai --max-chars 2000 -o json
  cat book.json | redline correct --save`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger(os.Stderr)
		if err != nil {
			return err
		}

		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		groups, err := endpoints.ParseGroups(data)
		if err != nil {
			return err
		}

		h, cfgMgr, err := loadConfig(logger)
		if err != nil {
			return err
		}

		services, err := svcctx.New(ctx, svcctx.Options{
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		defer services.Close()

		if cmd.Flags().Changed("temperature") {
			correctOpts.Temperature = &correctTemperature
		}
		orch, err := services.NewOrchestrator(correctOpts)
		if err != nil {
			return err
		}

		stderr := cmd.ErrOrStderr()
		progress := pipeline.ObserverFuncs{
			Progress: func(percent int) {
				if !correctQuiet {
					fmt.Fprintf(stderr, "\rcorrecting... %3d%%", percent)
				}
			},
			AllCompleted: func() {
				if !correctQuiet {
					fmt.Fprintln(stderr)
				}
			},
		}

		handle := orch.Start(ctx, pipeline.GroupsFromMap(groups), progress)
		results, runErr := handle.Wait()

		report := endpoints.RunResponse{
			RunID:   handle.ID(),
			Status:  handle.Status(),
			Cache:   handle.CacheStats(),
			Results: results,
			Summary: services.Metrics.Summary(metrics.Filter{RunID: handle.ID()}),
		}
		if runErr != nil {
			report.Error = runErr.Error()
		}

		if correctSave {
			path, err := saveReport(h.RunReportPath(handle.ID(), string(api.GetOutputFormat())), report)
			if err != nil {
				return err
			}
			logger.Info("saved run report", "path", path)
		}

		if err := api.Output(report); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		if n := syntheticCount(results); n > 0 {
			logger.Warn("some chunks could not be corrected", "chunks", n)
		}
		return nil
	},
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}

func saveReport(path string, report endpoints.RunResponse) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()
	if err := api.OutputTo(f, api.GetOutputFormat(), report); err != nil {
		return "", err
	}
	return path, nil
}

// syntheticCount counts error placeholders left by failed chunks.
func syntheticCount(results types.Results) int {
	n := 0
	for _, list := range results {
		for _, r := range list {
			if r.IsSynthetic() {
				n++
			}
		}
	}
	return n
}

func init() {
	correctCmd.Flags().StringVar(&correctOpts.Provider, "provider", "", "LLM provider (default from config)")
	correctCmd.Flags().StringVar(&correctOpts.Model, "model", "", "Model override")
	correctCmd.Flags().Float64Var(&correctTemperature, "temperature", 0, "Sampling temperature (default from config)")
	correctCmd.Flags().IntVar(&correctOpts.MaxCharsPerChunk, "max-chars", 0, "Characters per chunk (default from config)")
	correctCmd.Flags().IntVar(&correctOpts.MaxConcurrentGroups, "max-groups", 0, "Concurrent groups (default from config)")
	correctCmd.Flags().BoolVar(&correctSave, "save", false, "Also write the report to the home runs directory")
	correctCmd.Flags().BoolVarP(&correctQuiet, "quiet", "q", false, "Suppress progress output")

	rootCmd.AddCommand(correctCmd)
}
