package port

import "docqa/internal/domain"

// Loader reads one file into documents.
type Loader interface {
	Load(path string) ([]domain.Document, error)
}

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
