package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// BuildUseCase ingests a data directory into a vector store.
type BuildUseCase struct {
	loader   port.Loader
	splitter port.Splitter
	store    port.VectorStore
	logger   *zap.Logger
}

// NewBuildUseCase creates a new build use case.
func NewBuildUseCase(loader port.Loader, splitter port.Splitter, store port.VectorStore, logger *zap.Logger) *BuildUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuildUseCase{
		loader:   loader,
		splitter: splitter,
		store:    store,
		logger:   logger,
	}
}

// BuildProgress is called after each source has been written.
type BuildProgress func(done, total int, source string)

// BuildResult contains the results of a build.
type BuildResult struct {
	Documents   int
	Chunks      int
	Sources     int
	IDs         int
	LoadErrors  []error
	BatchErrors []error
}

// Build loads, splits and indexes every document under root. Chunks are
// written one source at a time so section numbers restart per source.
// Rejected ingestion batches are collected in the result; any other store
// error stops the build.
func (u *BuildUseCase) Build(ctx context.Context, root string, progress BuildProgress) (*BuildResult, error) {
	result := &BuildResult{}

	docs, err := u.loader.Load(root)
	if len(docs) == 0 {
		if err != nil {
			return nil, err
		}
		return result, fmt.Errorf("%w in %s", domain.ErrNoDocuments, root)
	}
	if err != nil {
		result.LoadErrors = unjoin(err)
	}
	result.Documents = len(docs)

	chunks := u.splitter.SplitDocuments(docs)
	result.Chunks = len(chunks)

	groups := groupBySource(chunks)
	result.Sources = len(groups)
	u.logger.Info("indexing",
		zap.Int("documents", result.Documents),
		zap.Int("chunks", result.Chunks),
		zap.Int("sources", result.Sources),
	)

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids, err := u.store.AddTexts(ctx, g.texts, g.metadatas)
		result.IDs += len(ids)
		if err != nil {
			if !errors.Is(err, domain.ErrIngest) {
				return result, fmt.Errorf("failed to index %s: %w", g.source, err)
			}
			u.logger.Warn("batches rejected", zap.String("source", g.source), zap.Error(err))
			result.BatchErrors = append(result.BatchErrors, unjoin(err)...)
		}

		if progress != nil {
			progress(i+1, len(groups), g.source)
		}
	}

	return result, nil
}

type sourceGroup struct {
	source    string
	texts     []string
	metadatas []map[string]string
}

// groupBySource splits chunks into runs of consecutive chunks with the same source.
func groupBySource(chunks []domain.Document) []sourceGroup {
	var groups []sourceGroup
	for _, c := range chunks {
		src := c.Source()
		if len(groups) == 0 || groups[len(groups)-1].source != src {
			groups = append(groups, sourceGroup{source: src})
		}
		g := &groups[len(groups)-1]
		g.texts = append(g.texts, c.Content)
		g.metadatas = append(g.metadatas, c.Metadata)
	}
	return groups
}

// unjoin flattens an errors.Join result.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
