package redfish

import (
	"strings"
)

const SchemaWebLink = "http://redfish.dmtf.org/schemas/v1"

// MetadataEntry describes one node in the $metadata document.
type MetadataEntry struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

type MetadataDocument struct {
	Context string          `json:"@odata.context"`
	Value   []MetadataEntry `json:"value"`
}

// Metadata lists every node of the tree in pre-order.
func (t *Tree) Metadata() MetadataDocument {
	doc := MetadataDocument{
		Context: t.root.path + "/" + ServiceName + "/" + MetadataSegment,
		Value:   []MetadataEntry{},
	}
	t.Walk(func(n *Node) {
		doc.Value = append(doc.Value, MetadataEntry{
			Name:      n.name,
			Kind:      "singleton",
			URL:       n.path,
			Reference: n.SchemaLink(),
		})
	})
	return doc
}

// SchemaLink is the published JSON schema for the node's type: the
// namespace plus the major part of a dotted schema version. A leaf is
// described by its parent's schema. Other nodes without a namespace have
// none.
func (n *Node) SchemaLink() string {
	if n.leaf && n.parent != nil {
		return n.parent.SchemaLink()
	}
	if n.namespace == "" {
		return ""
	}
	version := ""
	if parts := strings.Split(n.schemaVersion, "."); len(parts) > 1 {
		version = parts[0] + "."
	}
	return SchemaWebLink + "/" + n.namespace + "." + version + "json"
}

// FormatUUID renders a hex id as an upper-case 8-4-4-4-12 UUID, left padding
// short ids with zeros. Ids longer than 32 digits are returned upper-cased.
func FormatUUID(id string) string {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
	if len(s) > 32 {
		return s
	}
	s = strings.Repeat("0", 32-len(s)) + s
	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
}
