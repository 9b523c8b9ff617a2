// Package ingest turns a user-supplied input (UMD image file or extracted
// directory) into a local USRDIR root the converters can read. Image inputs
// are materialized through the content cache so unchanged files survive
// between runs.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kdomanski/iso9660"

	"psprip/internal/cache"
	"psprip/internal/extract"
	"psprip/internal/logging"
)

// usrDirName is the subtree that holds all game assets on a PSP disc.
const usrDirName = "USRDIR"

// Source is a resolved, readable asset root.
type Source struct {
	// Root is the effective USRDIR directory on local disk.
	Root string
	// ImageKey namespaces cache content; empty for directory inputs.
	ImageKey string
	// FilesTotal/FilesCopied/FilesReused/FilesFailed describe image
	// ingestion work. All zero for directory inputs.
	FilesTotal  int
	FilesCopied int
	FilesReused int
	FilesFailed int
}

// Resolver locates or materializes asset roots.
type Resolver struct {
	store  *cache.Store
	logger *slog.Logger
}

// NewResolver builds a resolver. The cache store may be nil, in which case
// only directory inputs are accepted.
func NewResolver(store *cache.Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
}

// Resolve accepts either a disc image file or an already-extracted directory
// and returns the USRDIR root to read assets from.
func (r *Resolver) Resolve(ctx context.Context, input string) (*Source, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, extract.Wrap(extract.ErrUsage, "ingest", "resolve", "input path is empty", nil)
	}
	info, err := os.Stat(input)
	if err != nil {
		return nil, extract.Wrap(extract.ErrStructure, "ingest", "resolve", fmt.Sprintf("stat input %q", input), err)
	}
	if info.IsDir() {
		root, err := resolveDirectory(input)
		if err != nil {
			return nil, err
		}
		return &Source{Root: root}, nil
	}
	if r.store == nil {
		return nil, extract.Wrap(extract.ErrUsage, "ingest", "resolve", "image inputs require the content cache", nil)
	}
	return r.ingestImage(ctx, input, info)
}

// resolveDirectory accepts the USRDIR itself, a directory containing USRDIR,
// or a full disc layout containing PSP_GAME/USRDIR.
func resolveDirectory(dir string) (string, error) {
	if strings.EqualFold(filepath.Base(dir), usrDirName) {
		return dir, nil
	}
	for _, candidate := range []string{
		filepath.Join(dir, usrDirName),
		filepath.Join(dir, "PSP_GAME", usrDirName),
	} {
		if resolved, ok := dirIfExists(candidate); ok {
			return resolved, nil
		}
	}
	return "", extract.Wrap(extract.ErrStructure, "ingest", "resolve",
		fmt.Sprintf("no USRDIR found under %q (expected USRDIR or PSP_GAME/USRDIR)", dir), nil)
}

// dirIfExists tolerates case differences in the on-disk spelling.
func dirIfExists(candidate string) (string, bool) {
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, true
	}
	parent := filepath.Dir(candidate)
	want := filepath.Base(candidate)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), want) {
			return filepath.Join(parent, entry.Name()), true
		}
	}
	return "", false
}

func (r *Resolver) ingestImage(ctx context.Context, imagePath string, info os.FileInfo) (*Source, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, extract.Wrap(extract.ErrExtraction, "ingest", "open image", imagePath, err)
	}
	defer file.Close()

	image, err := iso9660.OpenImage(file)
	if err != nil {
		return nil, extract.Wrap(extract.ErrStructure, "ingest", "open image",
			fmt.Sprintf("%q is not a readable ISO 9660 image", imagePath), err)
	}
	root, err := image.RootDir()
	if err != nil {
		return nil, extract.Wrap(extract.ErrStructure, "ingest", "open image", "read image root directory", err)
	}

	usrDir, usrPath, err := findUSRDIR(root)
	if err != nil {
		return nil, err
	}

	key := cache.ImageKey(imagePath, info.Size(), info.ModTime())
	source := &Source{ImageKey: key}

	if err := r.ingestTree(ctx, key, usrDir, usrPath, source); err != nil {
		return nil, err
	}

	source.Root = filepath.Join(r.store.ContentRoot(key), filepath.FromSlash(usrPath))
	r.logger.InfoContext(ctx, "image ingested",
		logging.String("image", imagePath),
		logging.String("image_key", key),
		logging.Int("files_total", source.FilesTotal),
		logging.Int("files_copied", source.FilesCopied),
		logging.Int("files_reused", source.FilesReused),
		logging.Int("files_failed", source.FilesFailed),
	)
	return source, nil
}

// findUSRDIR walks the image root for PSP_GAME/USRDIR, returning the
// directory entry and its slash-separated path inside the image.
func findUSRDIR(root *iso9660.File) (*iso9660.File, string, error) {
	gameDir, err := childDir(root, "PSP_GAME")
	if err != nil {
		return nil, "", err
	}
	if gameDir == nil {
		return nil, "", extract.Wrap(extract.ErrStructure, "ingest", "locate assets",
			"image has no PSP_GAME directory", nil)
	}
	usrDir, err := childDir(gameDir, usrDirName)
	if err != nil {
		return nil, "", err
	}
	if usrDir == nil {
		return nil, "", extract.Wrap(extract.ErrStructure, "ingest", "locate assets",
			"image has no PSP_GAME/USRDIR directory", nil)
	}
	return usrDir, path.Join(recordName(gameDir), recordName(usrDir)), nil
}

func childDir(dir *iso9660.File, name string) (*iso9660.File, error) {
	children, err := dir.GetChildren()
	if err != nil {
		return nil, extract.Wrap(extract.ErrStructure, "ingest", "locate assets", "read image directory", err)
	}
	for _, child := range children {
		if child.IsDir() && strings.EqualFold(recordName(child), name) {
			return child, nil
		}
	}
	return nil, nil
}

func (r *Resolver) ingestTree(ctx context.Context, imageKey string, dir *iso9660.File, dirPath string, source *Source) error {
	children, err := dir.GetChildren()
	if err != nil {
		return extract.Wrap(extract.ErrExtraction, "ingest", "walk image", dirPath, err)
	}
	for _, child := range children {
		if err := extract.Cancelled(ctx); err != nil {
			return err
		}
		name := recordName(child)
		if name == "" || name == "." || name == ".." {
			continue
		}
		childPath := path.Join(dirPath, name)
		if child.IsDir() {
			if err := r.ingestTree(ctx, imageKey, child, childPath, source); err != nil {
				return err
			}
			continue
		}
		if err := r.ingestFile(ctx, imageKey, child, childPath, source); err != nil {
			if cancelErr := extract.Cancelled(ctx); cancelErr != nil {
				return cancelErr
			}
			// One unreadable file must not abort the whole ingestion.
			source.FilesFailed++
			r.logger.WarnContext(ctx, "materialize failed",
				logging.String("file", childPath),
				logging.Error(err),
			)
		}
	}
	return nil
}

func (r *Resolver) ingestFile(ctx context.Context, imageKey string, file *iso9660.File, relPath string, source *Source) error {
	source.FilesTotal++
	fingerprint := cache.Fingerprint(relPath, file.Size(), file.ModTime())

	entry, err := r.store.Lookup(ctx, imageKey, relPath, fingerprint)
	if err != nil {
		return err
	}
	if entry != nil {
		source.FilesReused++
		r.logger.DebugContext(ctx, "cache hit", logging.String("file", relPath))
		return nil
	}

	if _, err := r.store.Materialize(ctx, imageKey, relPath, file.Size(), file.ModTime(), file.Reader()); err != nil {
		return err
	}
	source.FilesCopied++
	r.logger.DebugContext(ctx, "materialized", logging.String("file", relPath), logging.Int64("size", file.Size()))
	return nil
}

// recordName strips the ISO 9660 version suffix (";1") from a directory
// record name.
func recordName(file *iso9660.File) string {
	name := file.Name()
	if idx := strings.IndexByte(name, ';'); idx >= 0 {
		name = name[:idx]
	}
	return name
}
