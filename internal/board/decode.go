package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/vanshika/pursuit/backend/internal/domain"
)

var (
	// ErrMissingConnections indicates a node row without an adjacency payload.
	ErrMissingConnections = errors.New("adjacency payload is missing")
	// ErrMalformedConnections indicates a payload none of the known shapes match.
	ErrMalformedConnections = errors.New("adjacency payload is malformed")
)

// A payload may be a JSON string containing JSON; this bounds how deep we unwrap.
const maxPayloadNesting = 3

// DecodeConnections normalizes a stored adjacency payload into per-tier neighbor sets.
//
// Accepted shapes:
//   - an object keyed by tier ("taxi", "bus", "underground", "tier1".., "1"..)
//   - an object wrapping any shape under "connections"
//   - a JSON document encoded as a string or byte slice
//   - an array of node ids (taxi neighbors) or of {"to": id, "transport": tier} objects
func DecodeConnections(raw any) (Edges, error) {
	return decodeValue(raw, 0)
}

func decodeValue(raw any, depth int) (Edges, error) {
	if depth > maxPayloadNesting {
		return Edges{}, fmt.Errorf("%w: nested too deeply", ErrMalformedConnections)
	}

	switch v := raw.(type) {
	case nil:
		return Edges{}, ErrMissingConnections
	case []byte:
		return decodeDocument(v, depth)
	case string:
		if strings.TrimSpace(v) == "" {
			return Edges{}, ErrMissingConnections
		}
		return decodeDocument([]byte(v), depth)
	case map[string]any:
		return decodeObject(v, depth)
	case []any:
		return decodeList(v)
	case []int:
		edges := Edges{}
		for _, n := range v {
			edges.add(domain.TierTaxi, n)
		}
		return edges, nil
	case Edges:
		return v, nil
	default:
		return Edges{}, fmt.Errorf("%w: unsupported type %T", ErrMalformedConnections, raw)
	}
}

func decodeDocument(data []byte, depth int) (Edges, error) {
	var doc any
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return Edges{}, fmt.Errorf("%w: %v", ErrMalformedConnections, err)
	}
	return decodeValue(doc, depth+1)
}

func decodeObject(obj map[string]any, depth int) (Edges, error) {
	if inner, ok := obj["connections"]; ok {
		return decodeValue(inner, depth+1)
	}

	edges := Edges{}
	matched := false
	for key, value := range obj {
		tier, err := domain.ParseTier(key)
		if err != nil {
			continue
		}
		matched = true
		list, ok := value.([]any)
		if !ok {
			if value == nil {
				continue
			}
			return Edges{}, fmt.Errorf("%w: tier %s is %T, want list", ErrMalformedConnections, key, value)
		}
		for _, item := range list {
			node, ok := toInt(item)
			if !ok {
				return Edges{}, fmt.Errorf("%w: tier %s has non-integer neighbor %v", ErrMalformedConnections, key, item)
			}
			edges.add(tier, node)
		}
	}
	if !matched && len(obj) > 0 {
		return Edges{}, fmt.Errorf("%w: no transport keys", ErrMalformedConnections)
	}
	return edges, nil
}

func decodeList(list []any) (Edges, error) {
	edges := Edges{}
	for _, item := range list {
		if node, ok := toInt(item); ok {
			edges.add(domain.TierTaxi, node)
			continue
		}
		entry, ok := item.(map[string]any)
		if !ok {
			return Edges{}, fmt.Errorf("%w: list entry %v", ErrMalformedConnections, item)
		}
		node, ok := toInt(firstPresent(entry, "to", "node", "nodeId"))
		if !ok {
			return Edges{}, fmt.Errorf("%w: list entry without target node", ErrMalformedConnections)
		}
		tier := domain.TierTaxi
		if rawTier := firstPresent(entry, "transport", "type", "mode", "tier"); rawTier != nil {
			parsed, err := domain.ParseTier(fmt.Sprint(rawTier))
			if err != nil {
				return Edges{}, fmt.Errorf("%w: %v", ErrMalformedConnections, err)
			}
			tier = parsed
		}
		edges.add(tier, node)
	}
	return edges, nil
}

func firstPresent(entry map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := entry[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toInt(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
