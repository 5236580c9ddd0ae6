package ports

import "io"

// FileSystem abstracts file system operations.
type FileSystem interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// Open opens a file for streaming reads.
	Open(path string) (io.ReadCloser, error)

	// Create creates or truncates a file for streaming writes,
	// creating parent directories as needed.
	Create(path string) (io.WriteCloser, error)

	// ReadDir returns the names of the regular files in a directory, sorted.
	ReadDir(path string) ([]string, error)

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)
}
