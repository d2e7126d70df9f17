package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/prompt"
	"github.com/phrazzld/qagen/internal/store"
)

// ErrResolveFailed is returned when an identity could not be read or created
// within the configured attempts.
var ErrResolveFailed = errors.New("failed to resolve identity")

// Resolver maps authors to ids.
type Resolver interface {
	// Resolve returns the id of the author identified by model and the
	// template's canonical form.
	Resolve(ctx context.Context, model string, tmpl prompt.Template) (int64, error)

	// ResolveHuman returns the id of a human contributor.
	ResolveHuman(ctx context.Context, username string) (int64, error)
}

// Cache is a Resolver that remembers resolved ids for the life of the process.
type Cache struct {
	db      *sql.DB
	authors store.AuthorStore
	cfg     config.IdentityConfig
	logger  *slog.Logger
	ids     sync.Map // hash -> int64

	sleep func(ctx context.Context, d time.Duration) error
}

var _ Resolver = (*Cache)(nil)

// NewCache creates an identity cache over the given author store.
func NewCache(db *sql.DB, authors store.AuthorStore, cfg config.IdentityConfig, logger *slog.Logger) *Cache {
	if db == nil {
		panic("db cannot be nil")
	}
	if authors == nil {
		panic("authors cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Cache{
		db:      db,
		authors: authors,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "identity_cache")),
		sleep:   sleepContext,
	}
}

// Resolve implements Resolver.
func (c *Cache) Resolve(ctx context.Context, model string, tmpl prompt.Template) (int64, error) {
	author, err := domain.NewModelAuthor(model, tmpl.Key(), tmpl.Canonical())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrResolveFailed, err)
	}
	return c.getOrCreate(ctx, author)
}

// ResolveHuman implements Resolver.
func (c *Cache) ResolveHuman(ctx context.Context, username string) (int64, error) {
	author, err := domain.NewHumanAuthor(username)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrResolveFailed, err)
	}
	return c.getOrCreate(ctx, author)
}

func (c *Cache) getOrCreate(ctx context.Context, author *domain.Author) (int64, error) {
	if id, ok := c.ids.Load(author.Hash); ok {
		return id.(int64), nil
	}

	log := logger.FromContextOrDefault(ctx, c.logger).With(
		slog.String("model", author.Model),
		slog.String("template", author.TemplateID),
	)

	backoff := c.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		id, err := c.selectOrInsert(ctx, author)
		if errors.Is(err, store.ErrDuplicate) {
			// Another resolver inserted the same identity first.
			log.Debug("identity created concurrently, re-reading")
			id, err = c.selectExisting(ctx, author.Hash)
		}
		if err == nil {
			c.ids.Store(author.Hash, id)
			return id, nil
		}

		lastErr = err
		log.Warn("identity resolution attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if attempt == c.cfg.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, backoff); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
		backoff *= 2
	}

	return 0, fmt.Errorf("%w: %w", ErrResolveFailed, lastErr)
}

func (c *Cache) selectOrInsert(ctx context.Context, author *domain.Author) (int64, error) {
	var id int64
	err := store.RunInTransaction(ctx, c.db, func(ctx context.Context, tx *sql.Tx) error {
		authors := c.authors.WithTx(tx)

		existing, err := authors.GetByHashForUpdate(ctx, author.Hash)
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, store.ErrAuthorNotFound) {
			return err
		}

		created := *author
		if err := authors.Create(ctx, &created); err != nil {
			return err
		}
		id = created.ID
		return nil
	})
	return id, err
}

func (c *Cache) selectExisting(ctx context.Context, hash string) (int64, error) {
	var id int64
	err := store.RunInTransaction(ctx, c.db, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := c.authors.WithTx(tx).GetByHashForUpdate(ctx, hash)
		if err != nil {
			return err
		}
		id = existing.ID
		return nil
	})
	return id, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
