// Package adapter contains filesystem, storage and process adapters for
// the Lyra CLI.
package adapter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	m "github.com/kpatel513/lyra/internal/model"
)

// hashChunkSize bounds how much of a file is held in memory while hashing.
const hashChunkSize = 1024 * 1024

// RepoFSAdapter abstracts filesystem operations the domain layer relies on
// when scanning, backing up and restoring user repositories. It hides
// direct `os` access so snapshot and undo logic can be tested against
// fakes without touching the disk.
//
//nolint:interfacebloat // A richer interface keeps snapshot logic decoupled from os/fs.
type RepoFSAdapter interface {
	// WalkFiles visits every regular file under root. Any path whose first
	// segment relative to root is in skipDirs is not visited.
	WalkFiles(ctx context.Context, root m.Path, skipDirs map[string]struct{}, fn FileVisitFunc) error

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions,
	// creating parent directories as needed.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// ReplaceFile atomically replaces the file at path with content by
	// writing a temporary file in the same directory and renaming it.
	ReplaceFile(path m.Path, content []byte, perm os.FileMode) error

	// HashFile returns the SHA-256 digest of the file at path, streaming
	// its contents in bounded chunks.
	HashFile(path m.Path) (string, error)

	// SniffBinary reports whether the leading window bytes of the file
	// contain a null byte. Unreadable files count as binary.
	SniffBinary(path m.Path, window int) bool

	// Stat returns metadata for a path.
	Stat(path m.Path) (os.FileInfo, error)

	// Remove removes a single file. Missing files are not an error.
	Remove(path m.Path) error

	// RemoveAll removes a directory and all its contents.
	RemoveAll(path m.Path) error

	// CopyFile copies a single file, creating parent directories as needed.
	CopyFile(src, dst m.Path) error

	// CopyTree recursively copies a directory tree, skipping any directory
	// whose base name is in skipDirs.
	CopyTree(ctx context.Context, src, dst m.Path, skipDirs map[string]struct{}) error

	// RelPath returns the relative path from base to target.
	RelPath(base, target m.Path) (m.Path, error)

	// JoinPath joins path elements into a single path.
	JoinPath(elem ...string) m.Path
}

// FileVisitFunc is called for every regular file found by WalkFiles. rel is
// the POSIX-style path relative to the walk root.
type FileVisitFunc func(rel string, info os.FileInfo) error

// LocalRepoFSAdapter is the os-backed implementation of RepoFSAdapter.
type LocalRepoFSAdapter struct{}

// NewLocalRepoFSAdapter constructs a LocalRepoFSAdapter ready to be wired
// into the snapshot lifecycle.
func NewLocalRepoFSAdapter() *LocalRepoFSAdapter {
	return &LocalRepoFSAdapter{}
}

// WalkFiles visits regular files under root, pruning skipped directories.
func (a *LocalRepoFSAdapter) WalkFiles(ctx context.Context, root m.Path, skipDirs map[string]struct{}, fn FileVisitFunc) error {
	rootStr := string(root)

	return filepath.Walk(rootStr, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(rootStr, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			// Only first-segment directories are excluded: a nested
			// src/build/ still holds user files that must be scanned.
			if _, skip := skipDirs[rel]; skip {
				return filepath.SkipDir
			}

			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return fn(filepath.ToSlash(rel), info)
	})
}

// ReadFile loads file contents from disk.
func (a *LocalRepoFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// WriteFile writes content to a file, creating parent directories first.
func (a *LocalRepoFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

// ReplaceFile stages content into a temp file next to the destination and
// renames it into place, so a crash mid-write never leaves a truncated file.
func (a *LocalRepoFSAdapter) ReplaceFile(path m.Path, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(string(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".lyra-restore-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, string(path)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}

// HashFile returns the SHA-256 hash of the file at the provided path.
func (a *LocalRepoFSAdapter) HashFile(path m.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()

	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// SniffBinary checks the leading bytes for a null byte.
func (a *LocalRepoFSAdapter) SniffBinary(path m.Path, window int) bool {
	f, err := os.Open(string(path))
	if err != nil {
		return true
	}

	defer func() {
		_ = f.Close()
	}()

	head := make([]byte, window)

	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return true
	}

	return bytes.IndexByte(head[:n], 0) >= 0
}

// Stat returns os.FileInfo metadata for the given path.
func (a *LocalRepoFSAdapter) Stat(path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// Remove removes a file, treating a missing file as success.
func (a *LocalRepoFSAdapter) Remove(path m.Path) error {
	err := os.Remove(string(path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// RemoveAll removes a directory and all its contents.
func (a *LocalRepoFSAdapter) RemoveAll(path m.Path) error {
	return os.RemoveAll(string(path))
}

// CopyFile copies a single file preserving its mode.
func (a *LocalRepoFSAdapter) CopyFile(src, dst m.Path) error {
	info, err := os.Stat(string(src))
	if err != nil {
		return err
	}

	return a.copyFile(string(src), string(dst), info.Mode())
}

// CopyTree recursively copies a directory tree, pruning skipped directories.
func (a *LocalRepoFSAdapter) CopyTree(ctx context.Context, src, dst m.Path, skipDirs map[string]struct{}) error {
	return filepath.Walk(string(src), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(string(src), path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if _, skip := skipDirs[info.Name()]; skip && path != string(src) {
				return filepath.SkipDir
			}

			return os.MkdirAll(filepath.Join(string(dst), relPath), info.Mode())
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return a.copyFile(path, filepath.Join(string(dst), relPath), info.Mode())
	})
}

// copyFile copies a single file.
func (a *LocalRepoFSAdapter) copyFile(src, dst string, mode os.FileMode) error {
	// #nosec G304 - src is internal project file path, not user input
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = sourceFile.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	// #nosec G304 - dst is internal destination path, not user input
	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer func() { _ = destFile.Close() }()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return os.Chmod(dst, mode)
}

// RelPath returns the relative path from base to target.
func (a *LocalRepoFSAdapter) RelPath(base, target m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(rel), nil
}

// JoinPath joins path elements into a single path.
func (a *LocalRepoFSAdapter) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}
