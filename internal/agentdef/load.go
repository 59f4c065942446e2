package agentdef

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	jsonitor "github.com/json-iterator/go"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"
)

var strictJSON = jsonitor.Config{
	EscapeHTML:             true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

// LoadFile reads agent definitions from a YAML file holding one or more
// documents.
func LoadFile(path string) ([]*Definition, apperrors.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrUnreadableSource.MsgErr("unable to read "+path, err)
	}
	return Parse(data)
}

// Parse decodes every non-empty YAML document in data as a Definition.
// Unknown fields are rejected.
func Parse(data []byte) ([]*Definition, apperrors.Error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var defs []*Definition
	for i := 1; ; i++ {
		var node yaml.Node
		if err := decoder.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, ErrUnreadableSource.MsgErr(fmt.Sprintf("document %d is not valid YAML", i), err)
		}
		if isEmptyDocument(&node) {
			continue
		}
		// Plain scalars resolve with YAML 1.2 rules here, so a name such
		// as "yes" or "on" stays a string.
		var doc map[string]any
		if err := node.Decode(&doc); err != nil {
			return nil, ErrUnreadableSource.MsgErr(fmt.Sprintf("document %d is not an agent definition", i), err)
		}
		js, err := strictJSON.Marshal(doc)
		if err != nil {
			return nil, ErrUnreadableSource.MsgErr(fmt.Sprintf("document %d", i), err)
		}
		var d Definition
		if err := strictJSON.Unmarshal(js, &d); err != nil {
			return nil, ErrUnreadableSource.MsgErr(fmt.Sprintf("document %d is not an agent definition", i), err)
		}
		defs = append(defs, &d)
	}
	return defs, nil
}

// Marshal writes defs as a multi-document YAML stream that Parse reads
// back unchanged.
func Marshal(defs []*Definition) ([]byte, apperrors.Error) {
	var buf bytes.Buffer
	for i, d := range defs {
		out, err := k8syaml.Marshal(d)
		if err != nil {
			return nil, ErrAgentDef.MsgErr(fmt.Sprintf("unable to encode agent %q", d.Name), err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(out)
	}
	return buf.Bytes(), nil
}

func isEmptyDocument(n *yaml.Node) bool {
	if n.Kind == 0 {
		return true
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return true
		}
		n = n.Content[0]
	}
	switch n.Kind {
	case yaml.MappingNode:
		return len(n.Content) == 0
	case yaml.ScalarNode:
		return n.Tag == "!!null"
	}
	return false
}
