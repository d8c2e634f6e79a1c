package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// validateDocumentID rejects identifiers that are unsafe as file names.
func validateDocumentID(id string) error {
	if id == "" {
		return errors.New("document id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("document id contains invalid characters")
	}

	return nil
}

// writeDocument marshals value and writes it under <root>/<kind>/<id>.json,
// creating the kind directory on first use.
func writeDocument(root, kind, id string, value any) error {
	if err := validateDocumentID(id); err != nil {
		return err
	}

	dir := filepath.Join(root, kind)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// readDocument loads <root>/<kind>/<id>.json into value. Returns fs.ErrNotExist
// when the document is absent.
func readDocument(root, kind, id string, value any) error {
	if err := validateDocumentID(id); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(root, kind, id+".json"))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

// removeDocument deletes a document; removing a missing document is a no-op.
func removeDocument(root, kind, id string) error {
	if err := validateDocumentID(id); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(root, kind, id+".json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s %s: %w", kind, id, err)
	}

	return nil
}

// listDocumentIDs returns the ids of every document of the given kind.
func listDocumentIDs(root, kind string) ([]string, error) {
	entries, err := fs.Glob(os.DirFS(filepath.Join(root, kind)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", kind, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, strings.TrimSuffix(entry, ".json"))
	}

	return ids, nil
}

// documentExists reports whether the document is present on disk.
func documentExists(root, kind, id string) bool {
	_, err := os.Stat(filepath.Join(root, kind, id+".json"))

	return err == nil
}
