package value

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Tag bytes prefixed before a variant's canonical bytes, per spec.md §6.
const (
	tagNull byte = iota
	tagString
	tagNumber
	tagBool
	tagDateTime
	tagWindow
	tagVector
	tagList
	tagArray
	tagNode
	tagEdge
	tagPath
)

// Hash64 returns a deterministic, non-cryptographic hash of v. It is the
// building block for both node/edge content addressing (spec.md §6) and
// HashAggregate's group-key canonicalization (spec.md §4.6).
//
// xxhash is used rather than a hand-rolled FNV loop because it is already a
// transitive dependency of the storage driver (badger -> ristretto ->
// cespare/xxhash/v2); promoting it to a direct import keeps the core's
// hashing concern on the same library the storage layer already trusts
// instead of introducing a second hash implementation for the same job.
func Hash64(v Value) uint64 {
	d := xxhash.New()
	writeValue(d, v)
	return d.Sum64()
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func writeValue(w byteWriter, v Value) {
	switch v.Kind {
	case KindNull:
		w.Write([]byte{tagNull})
	case KindString:
		w.Write([]byte{tagString})
		w.Write([]byte(v.Str))
	case KindNumber:
		w.Write([]byte{tagNumber})
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.Num))
		w.Write(buf[:])
	case KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		w.Write([]byte{tagBool, b})
	case KindDateTime:
		w.Write([]byte{tagDateTime})
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[0:8], uint64(v.DT.T.Unix()))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(v.DT.T.Nanosecond()))
		w.Write(buf[:])
		w.Write([]byte{byte(v.DT.Kind)})
		var off [4]byte
		binary.LittleEndian.PutUint32(off[:], uint32(v.DT.Offset))
		w.Write(off[:])
		w.Write([]byte(v.DT.Name))
	case KindWindow:
		w.Write([]byte{tagWindow})
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[0:8], uint64(v.Win.Start.Unix()))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(v.Win.End.Unix()))
		w.Write(buf[:])
	case KindVector:
		w.Write([]byte{tagVector})
		writeLen(w, len(v.Vec))
		for _, f := range v.Vec {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
			w.Write(buf[:])
		}
	case KindList:
		w.Write([]byte{tagList})
		writeLen(w, len(v.List))
		for _, item := range v.List {
			writeValue(w, item)
		}
	case KindArray:
		w.Write([]byte{tagArray})
		writeLen(w, len(v.Arr))
		for _, item := range v.Arr {
			writeValue(w, item)
		}
	case KindNode:
		w.Write([]byte{tagNode})
		w.Write([]byte(v.Node.ID))
	case KindEdge:
		w.Write([]byte{tagEdge})
		w.Write([]byte(v.Edge.ID))
	case KindPath:
		w.Write([]byte{tagPath})
		for _, n := range v.Pth.Nodes {
			w.Write([]byte(n.ID))
		}
	}
}

func writeLen(w byteWriter, n int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	w.Write(buf[:])
}

// ContentHashNode implements spec.md §6's node content address: sorted
// labels then sorted property entries, each value tag-prefixed.
func ContentHashNode(labels []string, properties map[string]Value) uint64 {
	d := xxhash.New()
	sortedLabels := append([]string(nil), labels...)
	sort.Strings(sortedLabels)
	for _, l := range sortedLabels {
		d.Write([]byte(l))
		d.Write([]byte{0})
	}
	writePropertiesCanonical(d, properties)
	return d.Sum64()
}

// ContentHashEdge implements spec.md §6's edge content address: from-id,
// to-id, label, then sorted properties identically to node hashing.
func ContentHashEdge(from, to, label string, properties map[string]Value) uint64 {
	d := xxhash.New()
	d.Write([]byte(from))
	d.Write([]byte{0})
	d.Write([]byte(to))
	d.Write([]byte{0})
	d.Write([]byte(label))
	d.Write([]byte{0})
	writePropertiesCanonical(d, properties)
	return d.Sum64()
}

func writePropertiesCanonical(d *xxhash.Digest, properties map[string]Value) {
	for _, k := range SortedPropertyKeys(properties) {
		d.Write([]byte(k))
		d.Write([]byte{0})
		writeValue(d, properties[k])
	}
}
