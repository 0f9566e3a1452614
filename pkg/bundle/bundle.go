// Package bundle packages a build's outputs into a single portable
// artifact: the bytecode image, the IDL, and provenance metadata.
// Bundles are CBOR-encoded canonically, so the same build always
// produces the same bytes.
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Ext is the conventional file extension for bundles.
const Ext = ".bundle"

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bundle: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Bundle is one build artifact with its provenance.
type Bundle struct {
	ID         string `cbor:"id"`          // build id, a UUID
	Name       string `cbor:"name"`        // program name
	Target     string `cbor:"target"`      // bytecode flavor the program was built for
	SourceHash string `cbor:"source_hash"` // hex sha256 of the source text
	CreatedAt  int64  `cbor:"created_at"`  // unix seconds
	Program    []byte `cbor:"program"`     // flat bytecode image
	IDL        []byte `cbor:"idl,omitempty"`
}

// New assembles a bundle for a compiled program, stamping a fresh
// build id and the source digest.
func New(name, target string, source, program, idlJSON []byte) *Bundle {
	digest := sha256.Sum256(source)
	return &Bundle{
		ID:         uuid.NewString(),
		Name:       name,
		Target:     target,
		SourceHash: hex.EncodeToString(digest[:]),
		CreatedAt:  time.Now().Unix(),
		Program:    program,
		IDL:        idlJSON,
	}
}

// Marshal serializes the bundle to canonical CBOR.
func Marshal(b *Bundle) ([]byte, error) {
	return cborEncMode.Marshal(b)
}

// Unmarshal deserializes a bundle from CBOR bytes.
func Unmarshal(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bundle: unmarshal: %w", err)
	}
	return &b, nil
}

// WriteFile serializes the bundle to path.
func WriteFile(path string, b *Bundle) error {
	data, err := Marshal(b)
	if err != nil {
		return fmt.Errorf("bundle: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("bundle: writing %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a bundle from path.
func ReadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: reading %s: %w", path, err)
	}
	return Unmarshal(data)
}

// Verify checks the bundle's source digest against source text.
func (b *Bundle) Verify(source []byte) bool {
	digest := sha256.Sum256(source)
	return b.SourceHash == hex.EncodeToString(digest[:])
}
