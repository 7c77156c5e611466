// File path: internal/docstore/store.go

// Package docstore persists keyed JSON documents for owners and projects. A
// Store is either a local JSON file tree, a remote HTTP document service, an
// in-process map, or a FallbackStore that combines two of them under an
// explicit Policy.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Document is an arbitrary nested JSON object.
type Document = map[string]interface{}

// Mode identifies which backend served a request.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
	ModeMemory Mode = "memory"
)

var (
	// ErrRemoteUnavailable is returned when the remote store cannot be reached
	// or answers with a server error.
	ErrRemoteUnavailable = errors.New("docstore: remote unavailable")
	// ErrInvalidKey is returned for keys without an owner or document part.
	ErrInvalidKey = errors.New("docstore: invalid key")
)

// Key addresses a document by owner plus namespace/project/name.
type Key struct {
	Owner     string `json:"owner"`
	Namespace string `json:"namespace,omitempty"`
	Project   string `json:"project,omitempty"`
	Name      string `json:"name"`
}

// RawKey builds a key from an owner and an already joined document key such as
// "proj1__WBS".
func RawKey(owner, docKey string) Key {
	return Key{Owner: owner, Name: docKey}
}

// DocKey joins the non-empty namespace, project and name parts with "__" and
// replaces path separators with "_".
func (k Key) DocKey() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{k.Namespace, k.Project, k.Name} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return SafeName(strings.Join(parts, "__"))
}

// OwnerKey returns the sanitised owner component.
func (k Key) OwnerKey() string {
	return SafeName(strings.TrimSpace(k.Owner))
}

func (k Key) String() string {
	return k.OwnerKey() + "/" + k.DocKey()
}

func (k Key) validate() error {
	owner, doc := k.OwnerKey(), k.DocKey()
	if owner == "" || doc == "" || isDotName(owner) || isDotName(doc) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

// isDotName reports names that resolve to the current or parent directory.
func isDotName(value string) bool {
	return value == "." || value == ".."
}

// SafeName replaces characters that cannot appear in a remote document id or a
// file name.
func SafeName(value string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_")
	return replacer.Replace(value)
}

// SaveResult reports where a document was written. FellBack is set when the
// preferred backend failed and a secondary backend accepted the write.
type SaveResult struct {
	OK       bool   `json:"ok"`
	Mode     Mode   `json:"mode"`
	Path     string `json:"path,omitempty"`
	FellBack bool   `json:"fell_back,omitempty"`
}

// Store is the persistence boundary used by every service. Load returns a nil
// document and a nil error when the key does not exist. Writes overwrite the
// whole document.
type Store interface {
	Load(ctx context.Context, key Key) (Document, error)
	Save(ctx context.Context, key Key, doc Document) (SaveResult, error)
	Mode() Mode
}

// StoreError wraps a backend failure with the operation and key involved.
type StoreError struct {
	Op   string
	Mode Mode
	Key  Key
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("docstore: %s %s (%s): %v", e.Op, e.Key.String(), e.Mode, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrapErr(op string, mode Mode, key Key, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Mode: mode, Key: key, Err: err}
}

// Encode converts a JSON-serialisable value into a Document.
func Encode(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode converts a Document into the value pointed to by out.
func Decode(doc Document, out interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Clone deep-copies a document through its JSON form so callers cannot mutate
// stored state.
func Clone(doc Document) (Document, error) {
	if doc == nil {
		return nil, nil
	}
	return Encode(doc)
}
