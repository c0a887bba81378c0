package fileingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cinematch/internal/models"
)

// FileMeta holds metadata about a review file on disk.
type FileMeta struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	// Label is derived from the enclosing pos/neg directory; -1 when the
	// file is not under either.
	Label int
}

// ReadFileContent reads the entire content of the file at the given path.
func ReadFileContent(path string) ([]byte, error) {
	return os.ReadFile(path)
}

/*
DiscoverReviewFiles walks rootDir for .txt files laid out the aclImdb way
(<root>/pos/*.txt, <root>/neg/*.txt, optionally nested under train/ or test/).

Results are sorted by path so the corpus order is stable across runs.
Files outside a pos/neg directory are skipped unless includeUnlabeled is set.
*/
func DiscoverReviewFiles(ctx context.Context, rootDir string, includeUnlabeled bool) ([]FileMeta, error) {
	var files []FileMeta
	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".txt") {
			return nil
		}
		label := labelForDir(filepath.Base(filepath.Dir(path)))
		if label < 0 && !includeUnlabeled {
			return nil
		}
		meta, metaErr := ExtractFileMeta(path)
		if metaErr != nil {
			// Skip files we can't stat, but continue
			return nil
		}
		meta.Label = label
		files = append(files, meta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func labelForDir(name string) int {
	switch strings.ToLower(name) {
	case "pos", "positive":
		return models.LabelPositive
	case "neg", "negative":
		return models.LabelNegative
	default:
		return -1
	}
}

// ExtractFileMeta extracts metadata from a given file path.
func ExtractFileMeta(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Label:   -1,
	}, nil
}
