package filetree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
)

// IndexFile is the per-session identity map.
const IndexFile = "index.yaml"

// Index maps contract fingerprints to the base names used for their files.
type Index struct {
	Session   string               `yaml:"session"`
	Contracts []domain.ContractRef `yaml:"contracts"`
}

// readIndex loads the session index. A missing file yields (nil, nil).
func readIndex(dir string) (*Index, error) {
	path := filepath.Join(dir, IndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &idx, nil
}

func writeIndex(dir string, idx *Index) error {
	data, err := yaml.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return writeAtomic(filepath.Join(dir, IndexFile), data)
}

// Lookup returns the entry for fingerprint.
func (idx *Index) Lookup(fingerprint string) (domain.ContractRef, bool) {
	if idx == nil {
		return domain.ContractRef{}, false
	}
	for _, ref := range idx.Contracts {
		if ref.Fingerprint == fingerprint {
			return ref, true
		}
	}
	return domain.ContractRef{}, false
}

// Add registers ref, renaming it with a numeric suffix when another
// contract already uses its base name. Re-adding a known fingerprint
// returns the existing entry.
func (idx *Index) Add(ref domain.ContractRef) domain.ContractRef {
	if existing, ok := idx.Lookup(ref.Fingerprint); ok {
		return existing
	}
	taken := make(map[string]bool, len(idx.Contracts))
	for _, r := range idx.Contracts {
		taken[r.Name] = true
	}
	base := ref.Name
	for n := 2; taken[ref.Name]; n++ {
		ref.Name = base + "_" + strconv.Itoa(n)
	}
	idx.Contracts = append(idx.Contracts, ref)
	return ref
}
