package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vietddude/dispatch/internal/core/config"
	"github.com/vietddude/dispatch/internal/core/domain"
	redisclient "github.com/vietddude/dispatch/internal/infra/redis"
	"github.com/vietddude/dispatch/internal/infra/sink"
	"github.com/vietddude/dispatch/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many outcomes each log holds",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type streamCount struct {
	source string
	stream domain.Stream
	count  int64
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Dispatch.Input == "" && (cfg.Dispatch.Output == "" || cfg.Dispatch.ErrorsOutput == "") {
		slog.Error("Set dispatch.input or both output paths to locate the logs")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	streams := []domain.Stream{domain.StreamResults, domain.StreamErrors}
	var rows []streamCount

	files := sink.NewFileSink(cfg.Dispatch.Output, cfg.Dispatch.ErrorsOutput)
	for _, stream := range streams {
		n, err := files.Count(ctx, stream)
		if err != nil {
			slog.Error("Failed to count log lines", "stream", stream, "error", err)
			os.Exit(1)
		}
		rows = append(rows, streamCount{source: files.Path(stream), stream: stream, count: n})
	}

	switch cfg.Sink.Type {
	case config.SinkRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = client.Close()
		}()

		log := redisclient.NewOutcomeLog(client, cfg.Redis.Prefix, "")
		for _, stream := range streams {
			n, err := log.Count(ctx, stream)
			if err != nil {
				slog.Error("Failed to count Redis outcomes", "stream", stream, "error", err)
				os.Exit(1)
			}
			rows = append(rows, streamCount{source: fmt.Sprintf("redis %s:%s", cfg.Redis.Prefix, stream), stream: stream, count: n})
		}

	case config.SinkPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = db.Close()
		}()

		counts, err := postgres.NewOutcomeRepo(db, uuid.Nil).CountAll(ctx)
		if err != nil {
			slog.Error("Failed to count outcomes", "error", err)
			os.Exit(1)
		}
		for _, stream := range streams {
			rows = append(rows, streamCount{source: "postgres dispatch_outcomes", stream: stream, count: counts[stream]})
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTREAM\tRECORDS")
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", row.source, row.stream, row.count)
	}
	_ = w.Flush()
}
