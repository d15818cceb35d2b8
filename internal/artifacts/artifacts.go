// Package artifacts writes the rendered outputs of a run and reads chunk
// files back for a later publish.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"pricewatch/internal/model"
)

type Layout struct {
	Dir         string
	Document    string
	Message     string
	ChunkPrefix string
}

func (l Layout) dir() string {
	if strings.TrimSpace(l.Dir) == "" {
		return "."
	}
	return l.Dir
}

func (l Layout) prefix() string {
	if strings.TrimSpace(l.ChunkPrefix) == "" {
		return "x_status"
	}
	return l.ChunkPrefix
}

// DocumentPath is where the markdown report goes.
func (l Layout) DocumentPath() string {
	return filepath.Join(l.dir(), orDefault(l.Document, "changes.md"))
}

// MessagePath is where the bounded chat message goes.
func (l Layout) MessagePath() string {
	return filepath.Join(l.dir(), orDefault(l.Message, "tg_message.txt"))
}

// ChunkPath is "<prefix>_<group>_<n>.txt", n starting at 1.
func (l Layout) ChunkPath(g model.Group, n int) string {
	return filepath.Join(l.dir(), fmt.Sprintf("%s_%s_%d.txt", l.prefix(), g, n))
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Outputs are the rendered texts of one run.
type Outputs struct {
	Document string
	Message  string
	Chunks   map[model.Group][]string
}

// Write stores all outputs and removes chunk files left by earlier runs, so a
// later publish never picks up stale numbered files. It returns the written paths.
func Write(l Layout, out Outputs) ([]string, error) {
	if err := os.MkdirAll(l.dir(), 0o755); err != nil {
		return nil, err
	}
	var written []string
	put := func(path, text string) error {
		if err := writeFile(path, text); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := put(l.DocumentPath(), out.Document); err != nil {
		return written, err
	}
	if err := put(l.MessagePath(), out.Message); err != nil {
		return written, err
	}
	for _, g := range []model.Group{model.Risers, model.Fallers} {
		if err := removeChunks(l, g); err != nil {
			return written, err
		}
		for i, text := range out.Chunks[g] {
			if err := put(l.ChunkPath(g, i+1), text); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// ReadThread reads the chunk files of g in order, stopping at the first
// missing index. Text is trimmed; empty files yield empty chunks, which the
// publisher skips.
func ReadThread(l Layout, g model.Group) ([]string, error) {
	var out []string
	for n := 1; ; n++ {
		b, err := os.ReadFile(l.ChunkPath(g, n))
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, strings.TrimSpace(string(b)))
	}
}

func removeChunks(l Layout, g model.Group) error {
	re := regexp.MustCompile("^" + regexp.QuoteMeta(fmt.Sprintf("%s_%s_", l.prefix(), g)) + `(\d+)\.txt$`)
	entries, err := os.ReadDir(l.dir())
	if err != nil {
		return err
	}
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		if _, err := strconv.Atoi(m[1]); err != nil {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir(), e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// writeFile replaces path via a temp file and rename.
func writeFile(path, text string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Signal appends "has_changes=<bool>" and "date=<label>" to path (the CI
// output file). An empty path is a no-op.
func Signal(path string, hasChanges bool, date string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "has_changes=%t\ndate=%s\n", hasChanges, date)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}
