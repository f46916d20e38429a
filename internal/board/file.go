package board

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// NodeSpec is the on-disk form of one board node.
type NodeSpec struct {
	ID          int   `yaml:"id"`
	Taxi        []int `yaml:"taxi,omitempty"`
	Bus         []int `yaml:"bus,omitempty"`
	Underground []int `yaml:"underground,omitempty"`
}

// Spec is the on-disk form of a whole board.
type Spec struct {
	Name  string     `yaml:"name"`
	Nodes []NodeSpec `yaml:"nodes"`
}

// LoadFile reads a YAML board definition.
func LoadFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read board %s: %w", path, err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("parse board %s: %w", path, err)
	}
	return spec, nil
}

// WriteFile serializes a board definition as YAML, creating parent directories.
func WriteFile(path string, spec Spec) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create board dir: %w", err)
		}
	}
	data, err := Encode(spec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write board %s: %w", path, err)
	}
	return nil
}

// Encode renders a board definition as YAML.
func Encode(spec Spec) ([]byte, error) {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode board: %w", err)
	}
	return data, nil
}

// Records converts the board definition into store rows, as the seeding command writes them.
func (s Spec) Records() []NodeRecord {
	records := make([]NodeRecord, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		records = append(records, NodeRecord{
			NodeID: n.ID,
			Connections: Edges{
				Taxi:        n.Taxi,
				Bus:         n.Bus,
				Underground: n.Underground,
			},
		})
	}
	return records
}

// Graph builds the transport graph the definition describes.
func (s Spec) Graph() *Graph {
	g, _ := Build(s.Records())
	return g
}

// SpecFromGraph captures a graph in its on-disk form.
func SpecFromGraph(name string, g *Graph) Spec {
	spec := Spec{Name: name}
	for _, id := range g.Nodes() {
		edges := g.Edges(id)
		spec.Nodes = append(spec.Nodes, NodeSpec{
			ID:          id,
			Taxi:        edges.Taxi,
			Bus:         edges.Bus,
			Underground: edges.Underground,
		})
	}
	return spec
}

// ConnectionsDocument returns the canonical adjacency object stored per node row.
func ConnectionsDocument(e Edges) map[string][]int {
	doc := map[string][]int{
		"taxi":        nonNil(e.Taxi),
		"bus":         nonNil(e.Bus),
		"underground": nonNil(e.Underground),
	}
	return doc
}

func nonNil(list []int) []int {
	if list == nil {
		return []int{}
	}
	return list
}
