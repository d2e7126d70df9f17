package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// DefaultBatchSize is the number of paragraphs inserted per batch.
const DefaultBatchSize = 1000

var (
	// ErrAlreadyLoaded is returned when the store already holds paragraphs.
	ErrAlreadyLoaded = errors.New("dataset already loaded")

	// ErrMissingColumn is returned when the CSV header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
)

// Canonical column names.
const (
	colPageName          = "page_name"
	colSectionName       = "section_name"
	colSubsectionName    = "subsection_name"
	colSubsubsectionName = "subsubsection_name"
	colText              = "text"
	colTextCleaned       = "text_cleaned"
	colWordCount         = "word_count"
	colIsBad             = "is_bad"
	colWithinPageOrder   = "within_page_order"
)

// columnAliases maps accepted header spellings to canonical names.
var columnAliases = map[string]string{
	"page":                colPageName,
	"title":               colPageName,
	"page_title":          colPageName,
	"section":             colSectionName,
	"subsection":          colSubsectionName,
	"subsubsection":       colSubsubsectionName,
	"paragraph":           colText,
	"content":             colText,
	"raw_text":            colText,
	"clean_text":          colTextCleaned,
	"cleaned_text":        colTextCleaned,
	"words":               colWordCount,
	"num_words":           colWordCount,
	"bad":                 colIsBad,
	"order":               colWithinPageOrder,
	"paragraph_order":     colWithinPageOrder,
	"within_page_ordinal": colWithinPageOrder,
}

// LoadResult summarizes a load.
type LoadResult struct {
	Rows    int
	Loaded  int
	Skipped int
}

// Loader bulk loads paragraphs from CSV.
type Loader struct {
	db          *sql.DB
	paragraphs  store.ParagraphStore
	checkpoints store.CheckpointStore
	batchSize   int
	logger      *slog.Logger
}

// NewLoader creates a Loader. A batchSize <= 0 selects DefaultBatchSize.
func NewLoader(
	db *sql.DB,
	paragraphs store.ParagraphStore,
	checkpoints store.CheckpointStore,
	batchSize int,
	logger *slog.Logger,
) *Loader {
	if db == nil || paragraphs == nil || checkpoints == nil {
		panic("dataset: nil dependency")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		db:          db,
		paragraphs:  paragraphs,
		checkpoints: checkpoints,
		batchSize:   batchSize,
		logger:      logger.With(slog.String("component", "dataset_loader")),
	}
}

// Load reads paragraphs from r and inserts them in one transaction, then
// records the paragraphs.total checkpoint. It refuses to load into a store
// that already holds paragraphs. Rows without a page name or any text are
// skipped; malformed CSV aborts the load and nothing is written.
func (l *Loader) Load(ctx context.Context, r io.Reader) (LoadResult, error) {
	log := logger.FromContextOrDefault(ctx, l.logger)
	var res LoadResult

	err := store.RunInTransaction(ctx, l.db, func(ctx context.Context, tx *sql.Tx) error {
		paragraphs := l.paragraphs.WithTx(tx)

		existing, err := paragraphs.Count(ctx)
		if err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %d paragraphs present", ErrAlreadyLoaded, existing)
		}

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		header, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty file", ErrMissingColumn)
			}
			return fmt.Errorf("failed to read header: %w", err)
		}
		cols, err := mapHeader(header)
		if err != nil {
			return err
		}

		order := make(map[string]int)
		batch := make([]*domain.Paragraph, 0, l.batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := paragraphs.CreateBatch(ctx, batch); err != nil {
				return err
			}
			res.Loaded += len(batch)
			log.Debug("inserted paragraph batch", slog.Int("size", len(batch)), slog.Int("loaded", res.Loaded))
			batch = batch[:0]
			return nil
		}

		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to read row %d: %w", res.Rows+2, err)
			}
			res.Rows++

			p, err := cols.paragraph(record, order)
			if err != nil {
				res.Skipped++
				log.Warn("skipping row", slog.Int("line", res.Rows+1), slog.String("error", err.Error()))
				continue
			}
			batch = append(batch, p)
			if len(batch) == l.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}

		return l.checkpoints.WithTx(tx).Set(ctx, domain.CheckpointParagraphsTotal, strconv.Itoa(res.Loaded))
	})
	if err != nil {
		return LoadResult{}, err
	}

	log.Info("dataset loaded",
		slog.Int("rows", res.Rows),
		slog.Int("loaded", res.Loaded),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

// columns maps canonical column names to record indexes.
type columns map[string]int

func mapHeader(header []string) (columns, error) {
	cols := columns{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if canonical, ok := columnAliases[name]; ok {
			name = canonical
		}
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}
	if _, ok := cols[colPageName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colPageName)
	}
	_, hasText := cols[colText]
	_, hasCleaned := cols[colTextCleaned]
	if !hasText && !hasCleaned {
		return nil, fmt.Errorf("%w: %s or %s", ErrMissingColumn, colText, colTextCleaned)
	}
	return cols, nil
}

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// paragraph builds a paragraph from one record. Missing word counts are
// computed from the body and missing orders are numbered per page in file
// order.
func (c columns) paragraph(record []string, order map[string]int) (*domain.Paragraph, error) {
	p := &domain.Paragraph{
		PageName:          c.get(record, colPageName),
		SectionName:       c.get(record, colSectionName),
		SubsectionName:    c.get(record, colSubsectionName),
		SubsubsectionName: c.get(record, colSubsubsectionName),
		Text:              c.get(record, colText),
		TextCleaned:       c.get(record, colTextCleaned),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if raw := c.get(record, colWordCount); raw != "" {
		n, err := parseNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", colWordCount, raw)
		}
		p.WordCount = n
	} else {
		p.WordCount = len(strings.Fields(p.Body()))
	}

	if raw := c.get(record, colIsBad); raw != "" {
		bad, err := parseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", colIsBad, raw)
		}
		p.IsBad = bad
	}

	if raw := c.get(record, colWithinPageOrder); raw != "" {
		n, err := parseNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", colWithinPageOrder, raw)
		}
		p.WithinPageOrder = n
	} else {
		p.WithinPageOrder = order[p.PageName]
		order[p.PageName]++
	}
	return p, nil
}

// parseNumber accepts integers and integral floats ("12.0") as written by
// dataframe exports.
func parseNumber(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}
