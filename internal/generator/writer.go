package generator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/vanshika/pursuit/backend/internal/board"
)

// WriteBoard serializes the board into <name>.yaml under dir and returns the path.
func WriteBoard(spec board.Spec, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, spec.Name+".yaml")
	if err := board.WriteFile(path, spec); err != nil {
		return "", err
	}
	return path, nil
}

// WriteAdjacencyJSON writes the per-node connections documents, keyed by node id, in
// the same shape the store keeps them.
func WriteAdjacencyJSON(spec board.Spec, path string) error {
	doc := make(map[string]map[string][]int, len(spec.Nodes))
	for _, record := range spec.Records() {
		doc[fmt.Sprint(record.NodeID)] = board.ConnectionsDocument(record.Connections.(board.Edges))
	}

	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
