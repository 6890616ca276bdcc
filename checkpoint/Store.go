// Package checkpoint persists serializable training state to disk so
// long experiments can resume after interruption.
package checkpoint

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Serializable is an object that can be saved and restored.
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Store writes gob-encoded checkpoints into a directory, one file per
// step, and restores the checkpoint with the highest step.
type Store struct {
	dir    string
	prefix string
	keep   int
}

// NewStore creates and returns a new Store rooted at dir, creating the
// directory if needed. At most keep checkpoint files are retained;
// keep < 1 retains all of them.
func NewStore(dir string, keep int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newstore: could not create %v: %v", dir, err)
	}
	return &Store{dir: dir, prefix: "checkpoint-", keep: keep}, nil
}

// Save checkpoints blob at step. Writing is atomic with respect to
// Load: the checkpoint is assembled in a temporary file and renamed
// into place.
func (s *Store) Save(blob Serializable, step int) error {
	if step < 0 {
		return fmt.Errorf("save: step must be non-negative, got %v", step)
	}

	data, err := blob.GobEncode()
	if err != nil {
		return fmt.Errorf("save: could not encode blob: %v", err)
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(step); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("save: %v", err)
	}

	tmp, err := os.CreateTemp(s.dir, s.prefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save: %v", err)
	}

	final := filepath.Join(s.dir, s.filename(step))
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save: %v", err)
	}

	return s.prune()
}

// Load restores blob from the checkpoint with the highest step. It
// returns false with a nil error when no checkpoint exists.
func (s *Store) Load(blob Serializable) (bool, error) {
	step, found, err := s.Latest()
	if err != nil {
		return false, fmt.Errorf("load: %v", err)
	}
	if !found {
		return false, nil
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, s.filename(step)))
	if err != nil {
		return false, fmt.Errorf("load: %v", err)
	}

	dec := gob.NewDecoder(bytes.NewReader(raw))
	var savedStep int
	if err := dec.Decode(&savedStep); err != nil {
		return false, fmt.Errorf("load: %v", err)
	}
	var data []byte
	if err := dec.Decode(&data); err != nil {
		return false, fmt.Errorf("load: %v", err)
	}

	if err := blob.GobDecode(data); err != nil {
		return false, fmt.Errorf("load: could not decode blob: %v", err)
	}
	return true, nil
}

// Latest returns the highest checkpointed step, and whether any
// checkpoint exists.
func (s *Store) Latest() (int, bool, error) {
	steps, err := s.steps()
	if err != nil {
		return 0, false, err
	}
	if len(steps) == 0 {
		return 0, false, nil
	}

	latest := steps[0]
	for _, step := range steps[1:] {
		if step > latest {
			latest = step
		}
	}
	return latest, true, nil
}

func (s *Store) filename(step int) string {
	return fmt.Sprintf("%v%v.bin", s.prefix, step)
}

// steps lists the steps of every checkpoint file in the store.
func (s *Store) steps() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	steps := []int{}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, s.prefix) ||
			!strings.HasSuffix(name, ".bin") {
			continue
		}
		numeral := strings.TrimSuffix(strings.TrimPrefix(name, s.prefix),
			".bin")
		step, err := strconv.Atoi(numeral)
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// prune removes the oldest checkpoints past the retention limit.
func (s *Store) prune() error {
	if s.keep < 1 {
		return nil
	}

	steps, err := s.steps()
	if err != nil {
		return fmt.Errorf("prune: %v", err)
	}
	for len(steps) > s.keep {
		oldest := 0
		for i, step := range steps {
			if step < steps[oldest] {
				oldest = i
			}
		}
		path := filepath.Join(s.dir, s.filename(steps[oldest]))
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("prune: %v", err)
		}
		steps = append(steps[:oldest], steps[oldest+1:]...)
	}
	return nil
}
