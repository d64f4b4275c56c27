// internal/storage/local.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwiater/atelier/internal/run"
)

// Local writes each run to <dir>/<run id>/.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

func (l *Local) Save(ctx context.Context, prompt string, res *run.Result) ([]string, error) {
	runDir := filepath.Join(l.dir, res.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory %s: %w", runDir, err)
	}

	var written []string
	for _, fr := range res.Frames {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if fr.Frame == nil {
			continue
		}
		path := filepath.Join(runDir, FrameFile(fr.Index))
		if err := writeFile(path, []byte(fr.Frame.HTML)); err != nil {
			return written, fmt.Errorf("write frame %d: %w", fr.Index, err)
		}
		written = append(written, path)
	}

	data, err := NewManifest(prompt, res).encode()
	if err != nil {
		return written, fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(runDir, ManifestName)
	if err := writeFile(path, data); err != nil {
		return written, fmt.Errorf("write manifest: %w", err)
	}
	return append(written, path), nil
}

// writeFile replaces path through a temporary file in the same directory, so a
// reader never sees a partially written frame or manifest.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
