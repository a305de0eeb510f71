package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

//go:embed registries/*.json
var embedded embed.FS

// BaseID is the registry used for all protocol error payloads.
const BaseID = "Base.1.0"

const (
	noRegistryMatch = "no registry match"
	noMessageMatch  = "no message match"

	generalErrorText = "A general error has occurred. See ExtendedInfo for more information."
)

// Message is a resolved registry entry.
type Message struct {
	MessageID    string   `json:"MessageId,omitempty"`
	Description  string   `json:"Description,omitempty"`
	Message      string   `json:"Message"`
	Severity     string   `json:"Severity,omitempty"`
	NumberOfArgs int      `json:"NumberOfArgs,omitempty"`
	ParamTypes   []string `json:"ParamTypes,omitempty"`
	MessageArgs  []string `json:"MessageArgs,omitempty"`
	Resolution   string   `json:"Resolution,omitempty"`
}

// Document is one registry file.
type Document struct {
	ID              string             `json:"Id"`
	Name            string             `json:"Name"`
	Language        string             `json:"Language"`
	RegistryPrefix  string             `json:"RegistryPrefix"`
	RegistryVersion string             `json:"RegistryVersion"`
	Messages        map[string]Message `json:"Messages"`

	source string
}

// ErrorEnvelope is the standard error response body.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code         string    `json:"code"`
	Message      string    `json:"Message"`
	ExtendedInfo []Message `json:"@Message.ExtendedInfo"`
}

// MessageRef names a message and the arguments to substitute into it.
type MessageRef struct {
	RegistryID string
	MessageID  string
	Args       []string
}

// Registry is a read-only set of message registries keyed by registry id
// (the file name without extension, e.g. "Base.1.0").
type Registry struct {
	docs map[string]*Document
}

// New loads the embedded registries and, when dir is non-empty, every *.json
// document in dir. Documents in dir override embedded ones with the same id.
func New(dir string) (*Registry, error) {
	r := &Registry{docs: map[string]*Document{}}
	if err := r.load(embedded, "registries", "embedded:"); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := r.load(os.DirFS(dir), ".", dir+string(filepath.Separator)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) load(fsys fs.FS, root, sourcePrefix string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read registries: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		b, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, e.Name())))
		if err != nil {
			return fmt.Errorf("read registry %s: %w", e.Name(), err)
		}
		var doc Document
		if err := json.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("parse registry %s: %w", e.Name(), err)
		}
		doc.source = sourcePrefix + e.Name()
		r.docs[strings.TrimSuffix(e.Name(), ".json")] = &doc
	}
	return nil
}

// IDs returns the loaded registry ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Document returns the registry with the given id.
func (r *Registry) Document(id string) (*Document, bool) {
	d, ok := r.docs[id]
	return d, ok
}

// Source is where the document was loaded from.
func (d *Document) Source() string { return d.source }

// GetMessage resolves messageID in registryID and substitutes args for the
// positional %1, %2, ... placeholders.
func (r *Registry) GetMessage(registryID, messageID string, args ...string) Message {
	doc, ok := r.docs[registryID]
	if !ok {
		return Message{Message: noRegistryMatch}
	}
	m, ok := doc.Messages[messageID]
	if !ok {
		return Message{Message: noMessageMatch}
	}
	m.MessageID = registryID + "." + messageID
	m.Message = interpolate(m.Message, args)
	if len(args) > 0 {
		m.MessageArgs = append([]string(nil), args...)
	}
	if m.ParamTypes != nil {
		m.ParamTypes = append([]string(nil), m.ParamTypes...)
	}
	return m
}

// GetExtendedMessages resolves every reference into an extended info block.
func (r *Registry) GetExtendedMessages(refs ...MessageRef) map[string][]Message {
	info := make([]Message, 0, len(refs))
	for _, ref := range refs {
		info = append(info, r.GetMessage(ref.RegistryID, ref.MessageID, ref.Args...))
	}
	return map[string][]Message{"@Message.ExtendedInfo": info}
}

// GetErrorMessage wraps the resolved message in the GeneralError envelope.
func (r *Registry) GetErrorMessage(registryID, messageID string, args ...string) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorBody{
		Code:         BaseID + ".GeneralError",
		Message:      generalErrorText,
		ExtendedInfo: []Message{r.GetMessage(registryID, messageID, args...)},
	}}
}

// interpolate substitutes from the highest index down so %1 never eats the
// prefix of %10.
func interpolate(msg string, args []string) string {
	for i := len(args); i >= 1; i-- {
		msg = strings.ReplaceAll(msg, "%"+strconv.Itoa(i), args[i-1])
	}
	return msg
}
