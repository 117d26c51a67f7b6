// Package docstore is a small document database with live queries: documents
// live at slash-separated paths, collections are queried by equality and
// array-contains filters, and subscribers get an initial snapshot followed by
// a new snapshot every time the result set changes.
package docstore

import "strings"

// Path addresses a collection ("broadcasts", "broadcasts/b1/requests") or a
// document ("broadcasts/b1"). Collections have an odd number of segments.
type Path string

// Collection returns the path of a root collection.
func Collection(name string) Path { return Path(name) }

// Doc returns the path of document id inside collection p.
func (p Path) Doc(id string) Path { return Path(string(p) + "/" + id) }

// Collection returns the path of sub-collection name under document p.
func (p Path) Collection(name string) Path { return Path(string(p) + "/" + name) }

// ID returns the last segment.
func (p Path) ID() string {
	s := string(p)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Parent returns the collection of a document, or the owning document of a
// sub-collection. Root collections have no parent.
func (p Path) Parent() Path {
	s := string(p)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return Path(s[:i])
	}
	return ""
}

func (p Path) segments() int {
	if p == "" {
		return 0
	}
	return strings.Count(string(p), "/") + 1
}

// IsDoc reports whether p addresses a document.
func (p Path) IsDoc() bool { n := p.segments(); return n > 0 && n%2 == 0 }

// IsCollection reports whether p addresses a collection.
func (p Path) IsCollection() bool { return p.segments()%2 == 1 }

// Contains reports whether other is p itself or nested anywhere under p.
func (p Path) Contains(other Path) bool {
	return other == p || strings.HasPrefix(string(other), string(p)+"/")
}
