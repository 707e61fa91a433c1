package storage

import (
	"fmt"
	"io"
)

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Append(path string, data io.Reader) error

	Delete(path string) error

	List(path string) ([]string, error)

	Exists(path string) (bool, error)

	Size(path string) (int64, error)

	Usage() (UsageStats, error)

	Location() string
}

const (
	minFreeFraction = 0.2
	minFreeBytes    = 20 * 1024 * 1024 * 1024
)

// EnsureFreeSpace returns an error if the storage is low on disk space. The
// threshold is 20% of the disk or 20 GiB, whichever is smaller.
func EnsureFreeSpace(s Storage) error {
	usage, err := s.Usage()
	if err != nil {
		return fmt.Errorf("error checking disk usage: %w", err)
	}

	threshold := uint64(float64(usage.TotalBytes) * minFreeFraction)
	if threshold > minFreeBytes {
		threshold = minFreeBytes
	}

	if usage.FreeBytes < threshold {
		return fmt.Errorf("insufficient disk space at %v: %d bytes free, %d required", s.Location(), usage.FreeBytes, threshold)
	}

	return nil
}
