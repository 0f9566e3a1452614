package idl

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestNewDocument(t *testing.T) {
	doc := New("escrow", []string{"initialize", "settle"})
	be.Equal(t, doc.Version, Version)
	be.Equal(t, doc.Name, "escrow")
	be.Equal(t, len(doc.Instructions), 2)
	be.Equal(t, doc.Instructions[0].Name, "initialize")
	be.Equal(t, doc.Instructions[1].Name, "settle")
}

func TestJSONShape(t *testing.T) {
	data, err := New("counter", []string{"increment"}).JSON()
	be.Err(t, err, nil)

	// Empty collections are arrays, not null.
	var raw map[string]json.RawMessage
	be.Err(t, json.Unmarshal(data, &raw), nil)
	be.Equal(t, string(raw["accounts"]), "[]")
	be.Equal(t, string(raw["types"]), "[]")
	be.True(t, strings.Contains(string(data), `"instructions"`))
}

func TestNoEntrypoints(t *testing.T) {
	data, err := New("empty", nil).JSON()
	be.Err(t, err, nil)

	var raw map[string]json.RawMessage
	be.Err(t, json.Unmarshal(data, &raw), nil)
	be.Equal(t, string(raw["instructions"]), "[]")
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.json")
	doc := New("vault", []string{"deposit", "withdraw"})
	be.Err(t, doc.WriteFile(path), nil)

	loaded, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, loaded, doc)
}
