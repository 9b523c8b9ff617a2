package cache

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// Stats describes current cache usage.
type Stats struct {
	Entries      int     `json:"entries"`
	Images       int     `json:"images"`
	TotalBytes   int64   `json:"total_bytes"`
	FreeBytes    uint64  `json:"free_bytes"`
	TotalFSBytes uint64  `json:"total_fs_bytes"`
	FreeRatio    float64 `json:"free_ratio"`
	Path         string  `json:"path"`
}

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

var statfs statfsFunc = realStatfs

// Stats aggregates manifest counts with filesystem free-space info.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: s.root}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COUNT(DISTINCT image_key), COALESCE(SUM(size), 0) FROM cache_entries`,
	)
	if err := row.Scan(&stats.Entries, &stats.Images, &stats.TotalBytes); err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}

	totalFS, freeFS, err := statfs(s.root)
	if err != nil {
		return stats, fmt.Errorf("statfs %s: %w", s.root, err)
	}
	stats.TotalFSBytes = totalFS
	stats.FreeBytes = freeFS
	stats.FreeRatio = 1.0
	if totalFS > 0 {
		stats.FreeRatio = float64(freeFS) / float64(totalFS)
	}
	return stats, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
