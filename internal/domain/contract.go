package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// Contract is one smart-contract source file read for analysis.
// It is immutable once read.
type Contract struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Path        string `json:"path" yaml:"path"`
	Filename    string `json:"filename" yaml:"filename"`
	Name        string `json:"name" yaml:"name"` // filename without extension
	Source      string `json:"-" yaml:"-"`
}

// Fingerprint derives a contract identity from its path and content.
// Identical content at two paths yields two fingerprints.
func Fingerprint(path, content string) string {
	sum := sha256.Sum256([]byte(path + content))
	return hex.EncodeToString(sum[:])
}

// NewContract builds a contract from a file path and its content.
func NewContract(path, source string) *Contract {
	filename := filepath.Base(path)
	return &Contract{
		Fingerprint: Fingerprint(path, source),
		Path:        path,
		Filename:    filename,
		Name:        strings.TrimSuffix(filename, filepath.Ext(filename)),
		Source:      source,
	}
}

// ShortID returns an abbreviated fingerprint for display.
func (c *Contract) ShortID() string {
	return ShortFingerprint(c.Fingerprint)
}

// ShortFingerprint abbreviates a fingerprint to 12 characters.
func ShortFingerprint(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}

// ContractRef is one entry of a session's identity map:
// fingerprint on one side, display name on the other.
type ContractRef struct {
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Name        string    `json:"name" yaml:"name"`
	Filename    string    `json:"filename" yaml:"filename"`
	Path        string    `json:"path,omitempty" yaml:"path,omitempty"`
	AddedAt     time.Time `json:"added_at" yaml:"added_at"`
}

// Ref returns the identity-map entry for the contract.
func (c *Contract) Ref(at time.Time) ContractRef {
	return ContractRef{
		Fingerprint: c.Fingerprint,
		Name:        c.Name,
		Filename:    c.Filename,
		Path:        c.Path,
		AddedAt:     at,
	}
}
