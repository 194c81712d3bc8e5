// Package bucketdag implements the bucket's immutable Merkle DAG: Manifest,
// Node, and Pins entities, their canonical serialization (on top of
// package codec), and their encryption discipline (on top of package
// secret). Every Node and every file blob carries its own content secret
// recorded beside the link that addresses it - there is no bucket-wide
// master key.
package bucketdag

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/secret"
)

// Kind discriminates the two NodeLink variants. Exhaustive switches over
// Kind, not inheritance, is how callers dispatch (spec's "polymorphism over
// NodeLink" guidance).
type Kind uint8

const (
	KindData Kind = iota + 1
	KindDir
)

// KV is one entry of a NodeLink's ordered custom-metadata mapping.
type KV struct {
	Key   string
	Value string
}

// Metadata accompanies a Data NodeLink.
type Metadata struct {
	MimeType *string
	Custom   []KV
}

// NodeLink is one child reference inside a Node: either a file (Data) or a
// subdirectory (Dir). The secret alongside the link is the key required to
// decrypt whatever the link addresses.
type NodeLink struct {
	Kind     Kind
	Link     codec.Link
	Secret   secret.Secret
	Metadata Metadata // populated only when Kind == KindData
}

// Entry is one named child of a Node.
type Entry struct {
	Name string
	Link NodeLink
}

// Node is a directory: a name -> NodeLink mapping, canonicalized as a
// slice sorted by Name so hashing is deterministic.
type Node struct {
	Entries []Entry
}

// NewNode returns an empty directory node.
func NewNode() *Node {
	return &Node{}
}

// Get returns the entry named name, if present.
func (n *Node) Get(name string) (NodeLink, bool) {
	for _, e := range n.Entries {
		if e.Name == name {
			return e.Link, true
		}
	}
	return NodeLink{}, false
}

// Names returns the sorted list of child names.
func (n *Node) Names() []string {
	names := make([]string, len(n.Entries))
	for i, e := range n.Entries {
		names[i] = e.Name
	}
	sort.Strings(names)
	return names
}

// With returns a new Node with name bound to link, copy-on-write: the
// receiver is left unmodified. An existing entry with the same name is
// replaced.
func (n *Node) With(name string, link NodeLink) *Node {
	out := &Node{Entries: make([]Entry, 0, len(n.Entries)+1)}
	replaced := false
	for _, e := range n.Entries {
		if e.Name == name {
			out.Entries = append(out.Entries, Entry{Name: name, Link: link})
			replaced = true
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	if !replaced {
		out.Entries = append(out.Entries, Entry{Name: name, Link: link})
	}
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].Name < out.Entries[j].Name })
	return out
}

// Encode produces the canonical byte encoding of n: entries sorted by Name
// so re-encoding any decoded Node yields byte-identical output.
func (n *Node) Encode() []byte {
	entries := append([]Entry(nil), n.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	w := codec.NewWriter()
	w.WriteUint32(uint32(len(entries)))
	for _, e := range entries {
		w.WriteString(e.Name)
		w.WriteUint8(uint8(e.Link.Kind))
		w.WriteLink(e.Link.Link)
		w.WriteBytes(e.Link.Secret[:])
		if e.Link.Kind == KindData {
			if e.Link.Metadata.MimeType != nil {
				w.WriteUint8(1)
				w.WriteString(*e.Link.Metadata.MimeType)
			} else {
				w.WriteUint8(0)
			}
			w.WriteUint32(uint32(len(e.Link.Metadata.Custom)))
			for _, kv := range e.Link.Metadata.Custom {
				w.WriteString(kv.Key)
				w.WriteString(kv.Value)
			}
		}
	}
	return w.Bytes()
}

// DecodeNode is the inverse of Node.Encode.
func DecodeNode(b []byte) (*Node, error) {
	r := codec.NewReader(b)
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	n := &Node{Entries: make([]Entry, 0, count)}
	var prevName string
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		if i > 0 && name <= prevName {
			return nil, fmt.Errorf("bucketdag: node entries not in canonical order: %w", bucketerr.ErrMalformed)
		}
		prevName = name

		kind, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		link, err := r.ReadLink()
		if err != nil {
			return nil, err
		}
		secretBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		if len(secretBytes) != secret.Size {
			return nil, fmt.Errorf("bucketdag: node link secret must be %d bytes: %w", secret.Size, bucketerr.ErrMalformed)
		}
		var s secret.Secret
		copy(s[:], secretBytes)

		nl := NodeLink{Kind: Kind(kind), Link: link, Secret: s}
		if nl.Kind == KindData {
			hasMime, err := r.ReadUint8()
			if err != nil {
				return nil, err
			}
			if hasMime == 1 {
				mt, err := r.ReadString()
				if err != nil {
					return nil, err
				}
				nl.Metadata.MimeType = &mt
			}
			customCount, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			nl.Metadata.Custom = make([]KV, 0, customCount)
			for j := uint32(0); j < customCount; j++ {
				k, err := r.ReadString()
				if err != nil {
					return nil, err
				}
				v, err := r.ReadString()
				if err != nil {
					return nil, err
				}
				nl.Metadata.Custom = append(nl.Metadata.Custom, KV{Key: k, Value: v})
			}
		} else if nl.Kind != KindDir {
			return nil, fmt.Errorf("bucketdag: unknown node link kind %d: %w", kind, bucketerr.ErrMalformed)
		}
		if !utf8.ValidString(name) {
			return nil, fmt.Errorf("bucketdag: node entry name not valid utf-8: %w", bucketerr.ErrMalformed)
		}
		n.Entries = append(n.Entries, Entry{Name: name, Link: nl})
	}
	if !r.Done() {
		return nil, fmt.Errorf("bucketdag: trailing bytes after node: %w", bucketerr.ErrMalformed)
	}
	return n, nil
}

// Encrypt seals the canonical encoding of n under key.
func Encrypt(n *Node, key secret.Secret) ([]byte, error) {
	return secret.Seal(key, n.Encode())
}

// DecryptDecode opens sealed and decodes the result as a Node.
func DecryptDecode(sealed []byte, key secret.Secret) (*Node, error) {
	plaintext, err := secret.Open(key, sealed)
	if err != nil {
		return nil, err
	}
	return DecodeNode(plaintext)
}
