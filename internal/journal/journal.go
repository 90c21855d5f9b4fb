// Package journal owns the durable capture store: a line-oriented JSON
// table with one entry per line. The file is created lazily on the first
// append and is never deleted or truncated by the pipeline; status
// mutations rewrite the whole file through an atomic rename.
package journal

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/murmur/internal/entry"
	"github.com/hpungsan/murmur/internal/errors"
)

// maxLineBytes bounds a single journal line. Transcripts are spoken memos,
// not documents; 1 MiB is far beyond anything real.
const maxLineBytes = 1 << 20

// Journal reads and writes the capture table at a fixed path.
type Journal struct {
	path string
}

// New returns a Journal for the given file path. The file need not exist.
func New(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// ReadAll parses the journal line by line in file order. Lines that fail to
// parse are silently skipped so a malformed trailing write from a prior
// crash never blocks reading. A missing file yields an empty sequence.
func (j *Journal) ReadAll() ([]entry.Entry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open journal: %w", err))
	}
	defer f.Close()

	var entries []entry.Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e entry.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.ID == "" {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read journal: %w", err))
	}
	return entries, nil
}

// Append serializes one entry as a new line, creating the containing
// directory and file if absent. This is the commit point of the pipeline.
func (j *Journal) Append(e entry.Entry) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return errors.NewConfig("failed to create journal directory", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return errors.NewInternal(err)
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to open journal for append: %w", err))
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to append entry: %w", err))
	}
	if err := f.Sync(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to sync journal: %w", err))
	}
	return nil
}

// RewriteAll replaces the entire file content with the serialized sequence.
// Written to a temp file first, then renamed into place, so a crash mid
// rewrite preserves the previous journal intact.
func (j *Journal) RewriteAll(entries []entry.Entry) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return errors.NewConfig("failed to create journal directory", err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := j.path + "." + hex.EncodeToString(randBytes) + ".tmp"

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create temp journal: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if f != nil {
			f.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return errors.NewInternal(err)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := f.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := f.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close temp journal: %w", err))
	}
	f = nil

	if err := os.Rename(tempPath, j.path); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize journal rewrite: %w", err))
	}

	success = true
	return nil
}

// MarkProcessed marks every entry with the given id as processed and
// returns how many matched. Duplicate ids are all updated; "clearing"
// is a status transition, never erasure.
func (j *Journal) MarkProcessed(id string) (int, error) {
	return j.mark(func(e *entry.Entry) bool {
		return e.ID == id
	})
}

// MarkAllProcessed marks every entry as processed.
func (j *Journal) MarkAllProcessed() (int, error) {
	return j.mark(func(*entry.Entry) bool {
		return true
	})
}

// MarkNewProcessed marks every entry whose status is new as processed.
func (j *Journal) MarkNewProcessed() (int, error) {
	return j.mark(func(e *entry.Entry) bool {
		return e.Status == entry.StatusNew
	})
}

// mark rewrites the journal with status set to processed wherever match
// reports true. Entries are never dropped; only the status field changes.
// Returns the number of matching entries.
func (j *Journal) mark(match func(*entry.Entry) bool) (int, error) {
	entries, err := j.ReadAll()
	if err != nil {
		return 0, err
	}

	matched := 0
	changed := false
	for i := range entries {
		if !match(&entries[i]) {
			continue
		}
		matched++
		if entries[i].Status != entry.StatusProcessed {
			entries[i].Status = entry.StatusProcessed
			changed = true
		}
	}

	if !changed {
		return matched, nil
	}
	if err := j.RewriteAll(entries); err != nil {
		return 0, err
	}
	return matched, nil
}
