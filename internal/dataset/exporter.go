package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// ExportHeader is the column layout written by Exporter.
var ExportHeader = []string{
	"paragraph_id",
	"page_name",
	"question",
	"answer_zs",
	"answer_ic",
	"rating_zs",
	"rationale_zs",
	"rating_ic",
	"rationale_ic",
}

// Exporter writes the finished dataset as CSV, one row per fully rated
// question.
type Exporter struct {
	stats  store.StatsStore
	logger *slog.Logger
}

// NewExporter creates an Exporter.
func NewExporter(stats store.StatsStore, logger *slog.Logger) *Exporter {
	if stats == nil {
		panic("dataset: nil stats store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{stats: stats, logger: logger.With(slog.String("component", "dataset_exporter"))}
}

// Export streams every fully rated question to w in question id order and
// returns the number of rows written, excluding the header.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rows := 0
	err := e.stats.EachSample(ctx, func(qs domain.QASample) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows++
		return cw.Write(sampleRecord(qs))
	})
	if err != nil {
		return rows, fmt.Errorf("export failed after %d rows: %w", rows, err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("failed to flush export: %w", err)
	}

	logger.FromContextOrDefault(ctx, e.logger).Info("dataset exported", slog.Int("rows", rows))
	return rows, nil
}

func sampleRecord(qs domain.QASample) []string {
	return []string{
		strconv.FormatInt(qs.ParagraphID, 10),
		qs.PageName,
		qs.Question,
		qs.ZeroShot.Text,
		qs.InContext.Text,
		strconv.Itoa(qs.ZeroShot.Rating),
		qs.ZeroShot.Rationale,
		strconv.Itoa(qs.InContext.Rating),
		qs.InContext.Rationale,
	}
}
