// Package staticfiles implements collectstatic: every file of the configured
// source directories is copied into the static root, and a manifest of content
// hashes is written next to them.
package staticfiles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ManifestName is written at the root of the collected tree
const ManifestName = "staticfiles.json"

// ErrAborted is returned when the operator declines the confirmation
var ErrAborted = errors.New("collectstatic cancelled")

// DefaultIgnore matches base names that are never collected
var DefaultIgnore = []string{".*", "*~", "CVS"}

// Confirm asks the operator a yes/no question
type Confirm func(message string) (bool, error)

// Options configures one collection run
type Options struct {
	Sources []string
	Root    string
	Clear   bool
	// Confirm is consulted when the root already holds files; nil means --noinput
	Confirm Confirm
	Ignore  []string
	Logger  *zap.Logger
}

// Result counts what a run did
type Result struct {
	Copied     int
	Unmodified int
	Duplicates int
	Cleared    int
	Manifest   map[string]string
}

// Manifest is the document stored in ManifestName
type Manifest struct {
	Version int               `json:"version"`
	Paths   map[string]string `json:"paths"`
}

func (o Options) ignored(name string) bool {
	patterns := o.Ignore
	if patterns == nil {
		patterns = DefaultIgnore
	}
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Collect copies the sources into the root. The first source providing a
// relative path wins; files whose size and hash already match are left as is.
func Collect(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Root == "" {
		return nil, errors.New("STATIC_ROOT is not set")
	}

	if opts.Confirm != nil {
		populated, err := hasEntries(opts.Root)
		if err != nil {
			return nil, err
		}
		if populated {
			msg := fmt.Sprintf("You have requested to collect static files at %s.\nThis will overwrite existing files!", opts.Root)
			if opts.Clear {
				msg = fmt.Sprintf("You have requested to collect static files at %s.\nThis will DELETE ALL FILES in this location!", opts.Root)
			}
			ok, err := opts.Confirm(msg + "\nAre you sure you want to do this?")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrAborted
			}
		}
	}

	result := &Result{Manifest: map[string]string{}}
	if opts.Clear {
		n, err := clearDir(opts.Root)
		if err != nil {
			return nil, err
		}
		result.Cleared = n
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create static root: %w", err)
	}

	for _, src := range opts.Sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("static source %s: %w", src, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("static source %s is not a directory", src)
		}

		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if path != src && opts.ignored(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)
			if _, seen := result.Manifest[key]; seen {
				result.Duplicates++
				logger.Debug("[Static] duplicate skipped", zap.String("path", key), zap.String("source", src))
				return nil
			}

			hash, copied, err := syncFile(path, filepath.Join(opts.Root, rel))
			if err != nil {
				return err
			}
			result.Manifest[key] = hash
			if copied {
				result.Copied++
			} else {
				result.Unmodified++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := writeManifest(opts.Root, result.Manifest); err != nil {
		return nil, err
	}
	logger.Info("[Static] collected",
		zap.Int("copied", result.Copied), zap.Int("unmodified", result.Unmodified), zap.String("root", opts.Root))
	return result, nil
}

// Summary renders the counts the way the command prints them
func (r *Result) Summary(root string) string {
	return fmt.Sprintf("%d static file(s) copied to '%s', %d unmodified.", r.Copied, root, r.Unmodified)
}

func hasEntries(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func clearDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return 0, fmt.Errorf("clear static root: %w", err)
		}
	}
	return len(entries), nil
}

func fileHash(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// syncFile copies src to dst unless dst already has the same size and hash
func syncFile(src, dst string) (hash string, copied bool, err error) {
	hash, size, err := fileHash(src)
	if err != nil {
		return "", false, err
	}
	if info, statErr := os.Stat(dst); statErr == nil && info.Size() == size {
		if existing, _, err := fileHash(dst); err == nil && existing == hash {
			return hash, false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", false, err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", false, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".collect-*")
	if err != nil {
		return "", false, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", false, err
	}
	if err := tmp.Close(); err != nil {
		return "", false, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", false, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", false, fmt.Errorf("install %s: %w", dst, err)
	}
	return hash, true, nil
}

func writeManifest(root string, paths map[string]string) error {
	// encoding/json sorts map keys, so the file is stable between runs
	b, err := json.MarshalIndent(Manifest{Version: 1, Paths: paths}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(root, ManifestName), append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
