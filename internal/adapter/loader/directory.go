// Package loader turns files in a data directory into documents.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// TextLoader reads the whole file as one document.
type TextLoader struct{}

func (TextLoader) Load(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []domain.Document{{
		Content:  string(data),
		Metadata: map[string]string{domain.MetaSource: path},
	}}, nil
}

// DirectoryLoader walks a directory and dispatches each file to the loader
// registered for its extension.
type DirectoryLoader struct {
	walker  port.FileWalker
	loaders map[string]port.Loader
	logger  *zap.Logger
}

// NewDirectoryLoader creates a loader with the PDF, DOCX and text loaders registered.
func NewDirectoryLoader(walker port.FileWalker, logger *zap.Logger) *DirectoryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryLoader{
		walker: walker,
		loaders: map[string]port.Loader{
			".pdf":  PDFLoader{},
			".docx": DOCXLoader{},
			".txt":  TextLoader{},
			".md":   TextLoader{},
		},
		logger: logger,
	}
}

// Register sets the loader for a file extension such as ".html".
func (l *DirectoryLoader) Register(ext string, loader port.Loader) {
	l.loaders[strings.ToLower(ext)] = loader
}

// Load returns the documents of every matching file under root. Files that
// fail to load are skipped; their errors are joined into the returned error.
func (l *DirectoryLoader) Load(root string) ([]domain.Document, error) {
	files, err := l.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	var docs []domain.Document
	var errs []error
	for _, f := range files {
		ld, ok := l.loaders[strings.ToLower(filepath.Ext(f.Path))]
		if !ok {
			l.logger.Debug("no loader for file", zap.String("path", f.Path))
			continue
		}
		loaded, err := ld.Load(f.Path)
		if err != nil {
			l.logger.Warn("failed to load file", zap.String("path", f.Path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		l.logger.Debug("loaded file", zap.String("path", f.Path), zap.Int("documents", len(loaded)))
		docs = append(docs, loaded...)
	}
	return docs, errors.Join(errs...)
}
