package graph

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/vertexql/vertexql/pkg/value"
)

// recordVersion is the version prefix byte spec.md §6 requires on every
// serialized Node/Edge record, so a future format change can be detected
// on read instead of silently misparsed.
const recordVersion byte = 1

type nodeRecord struct {
	ID         string
	Labels     []string
	Properties map[string]value.Value
}

type edgeRecord struct {
	ID         string
	From       string
	To         string
	Label      string
	Properties map[string]value.Value
}

// EncodeNode serializes n into the version-prefixed, self-describing
// record spec.md §6 requires for the storage driver's node trees.
func EncodeNode(n *Node) ([]byte, error) {
	rec := nodeRecord{ID: n.ID, Labels: n.LabelList(), Properties: n.Properties}
	var buf bytes.Buffer
	buf.WriteByte(recordVersion)
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("graph: encoding node %s: %w", n.ID, err)
	}
	return buf.Bytes(), nil
}

// DecodeNode reverses EncodeNode.
func DecodeNode(b []byte) (*Node, error) {
	if len(b) == 0 || b[0] != recordVersion {
		return nil, fmt.Errorf("graph: unsupported node record version")
	}
	var rec nodeRecord
	if err := gob.NewDecoder(bytes.NewReader(b[1:])).Decode(&rec); err != nil {
		return nil, fmt.Errorf("graph: decoding node record: %w", err)
	}
	return NewNode(rec.ID, rec.Labels, rec.Properties), nil
}

// EncodeEdge serializes e the same way EncodeNode serializes a node.
func EncodeEdge(e *Edge) ([]byte, error) {
	rec := edgeRecord{ID: e.ID, From: e.From, To: e.To, Label: e.Label, Properties: e.Properties}
	var buf bytes.Buffer
	buf.WriteByte(recordVersion)
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("graph: encoding edge %s: %w", e.ID, err)
	}
	return buf.Bytes(), nil
}

// DecodeEdge reverses EncodeEdge.
func DecodeEdge(b []byte) (*Edge, error) {
	if len(b) == 0 || b[0] != recordVersion {
		return nil, fmt.Errorf("graph: unsupported edge record version")
	}
	var rec edgeRecord
	if err := gob.NewDecoder(bytes.NewReader(b[1:])).Decode(&rec); err != nil {
		return nil, fmt.Errorf("graph: decoding edge record: %w", err)
	}
	return &Edge{ID: rec.ID, From: rec.From, To: rec.To, Label: rec.Label, Properties: rec.Properties}, nil
}
