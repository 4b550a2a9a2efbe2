package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"matrusp-crawler/internal/components/chrono"
	"matrusp-crawler/internal/components/fetcher"
	"matrusp-crawler/internal/components/telemetry"
	"matrusp-crawler/internal/output"
	"matrusp-crawler/internal/report"
	"matrusp-crawler/internal/scrapers/jupiter"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const service_name = "matrusp-crawler"

var publishAfterCrawl bool

func init() {
	addCrawlFlags(crawlCmd)
	crawlCmd.Flags().BoolVar(&publishAfterCrawl, "publish", false, "upload the aggregate datasets over SFTP after a successful run")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <destination>",
	Short: "Crawls every unit (or the ones given with -u) and writes the dataset into an existing directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		err := requireDir(dir)
		if err != nil {
			return err
		}
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		err = crawl(cmd.Context(), cmd.OutOrStdout(), dir, config)
		if err != nil {
			return err
		}
		if !publishAfterCrawl {
			return nil
		}
		return publishDir(cmd.Context(), cmd.OutOrStdout(), dir, config)
	},
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("destination directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination '%s' is not a directory", dir)
	}
	return nil
}

func crawl(ctx context.Context, stdout io.Writer, dir string, config Config) error {
	tel := telemetry.SlogAPI{}
	clock := chrono.StandardTime{}

	otelSetup, err := telemetry.Setup(ctx, service_name, config.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otelSetup.Shutdown(ctx)
		if err != nil {
			slog.Warn("telemetry shutdown", "err", err.Error())
		}
	}()

	campi, err := config.campi()
	if err != nil {
		return err
	}

	client := fetcher.NewClient(fetcher.Options{
		UserAgent:          config.UserAgent,
		RequestsPerSecond:  config.RequestsPerSecond,
		InsecureSkipVerify: config.InsecureSkipVerify,
	}, tel)

	directory := output.NewDirectory(dir, config.Out, config.NoGzip, tel)
	if config.Brotli {
		directory = directory.WithBrotli()
	}
	sinks := output.Multi{directory}
	if config.Database != "" {
		store, err := output.OpenStore(ctx, config.Database, clock)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		slog.Info("storing run", "database", config.Database, "run", store.RunId().String())
		sinks = append(sinks, store)
	}

	crawler := jupiter.NewCrawler(
		jupiter.NewEndpoints(config.BaseUrl),
		client,
		sinks,
		clock,
		tel,
		jupiter.Options{
			Concurrency: config.Concurrency,
			Timeout:     config.timeout(),
			Campi:       campi,
		},
	)

	startedAt := clock.Now()
	result, runErr := crawler.Run(ctx, config.Units)
	if result.Catalog != nil {
		printSummary(stdout, result)
	}

	if config.Report != "" {
		err = writeReport(config.Report, startedAt, result)
		if err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("write report: %w", err))
		}
	}
	return runErr
}

func writeReport(path string, startedAt time.Time, result jupiter.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	err = report.WriteMarkdown(f, startedAt, result)
	if err != nil {
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, result jupiter.Result) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Campus", "Units", "Discovered", "Processed"})
	for _, total := range report.CampusTotals(result) {
		t.AppendRow(table.Row{total.Campus, total.Units, total.Discovered, total.Processed})
	}
	summary := result.Summary
	t.AppendFooter(table.Row{"Total", summary.Units, summary.Discovered, summary.Processed})
	t.Render()

	dropped := 0
	for _, n := range summary.Dropped {
		dropped += n
	}
	fmt.Fprintf(w, "%d subjects dropped, finished in %s\n", dropped, summary.Elapsed.Round(time.Millisecond))
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}
