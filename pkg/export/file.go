package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/pta-board-spider/pkg/logging"
	"github.com/Sternrassler/pta-board-spider/pkg/model"
)

// FileExporter writes config.json, team.json and run.json into Dir.
type FileExporter struct {
	Dir    string
	logger zerolog.Logger
}

// NewFileExporter creates an exporter writing into dir.
func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{
		Dir:    dir,
		logger: logging.NewLogger("file-export"),
	}
}

// Export implements Exporter. Each file is replaced atomically.
func (e *FileExporter) Export(ctx context.Context, board *model.Board) (err error) {
	var docs map[string][]byte
	defer func() { recordExport("file", docs, err) }()

	docs, err = Encode(board)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	for _, name := range Documents {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(e.Dir, name+".json")
		if err := writeFileAtomic(path, docs[name]); err != nil {
			return err
		}
	}

	e.logger.Info().
		Str("dir", e.Dir).
		Str("contest_id", board.ContestID).
		Int("teams", len(board.Teams)).
		Int("submissions", len(board.Submissions)).
		Msg("Board written")

	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
