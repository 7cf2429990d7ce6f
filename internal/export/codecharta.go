package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imyousuf/megaparser/internal/model"
)

// DefaultProjectName labels a tree document when no project name is set.
const DefaultProjectName = "MegaParser Project"

// Node types of a CodeCharta tree.
const (
	NodeFolder = "Folder"
	NodeFile   = "File"
)

// Node is one folder or file of a CodeCharta tree. Files carry the metrics
// of their source file as attributes and have no children.
type Node struct {
	Name       string             `json:"name"`
	Type       string             `json:"type"`
	Attributes map[string]float64 `json:"attributes"`
	Children   []*Node            `json:"children,omitempty"`

	index map[string]*Node
}

// AttributeTypes declares how a CodeCharta consumer aggregates attributes.
type AttributeTypes struct {
	Nodes map[string]string `json:"nodes"`
	Edges map[string]string `json:"edges"`
}

// CodeChartaDocument is the top-level CodeCharta map.
type CodeChartaDocument struct {
	ProjectName    string         `json:"projectName"`
	APIVersion     string         `json:"apiVersion"`
	Nodes          []*Node        `json:"nodes"`
	Edges          []any          `json:"edges"`
	AttributeTypes AttributeTypes `json:"attributeTypes"`
}

// CodeChartaExporter arranges files into a folder tree derived from their
// paths.
type CodeChartaExporter struct {
	projectName string
}

// NewCodeChartaExporter creates the CodeChartaJson exporter. An empty
// projectName falls back to DefaultProjectName.
func NewCodeChartaExporter(projectName string) *CodeChartaExporter {
	if projectName == "" {
		projectName = DefaultProjectName
	}
	return &CodeChartaExporter{projectName: projectName}
}

func (e *CodeChartaExporter) ID() string { return CodeChartaJSON }

func (e *CodeChartaExporter) Extension() string { return "cc.json" }

func (e *CodeChartaExporter) Export(files []model.FileObject) (string, error) {
	doc := e.Build(files)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal codecharta document: %w", err)
	}
	return string(data), nil
}

// Build assembles the document for files without serializing it.
func (e *CodeChartaExporter) Build(files []model.FileObject) *CodeChartaDocument {
	root := newNode("root", NodeFolder)
	for i := range files {
		addFile(root, &files[i])
	}

	// Attribute types come from the first file only; later files with other
	// metric keys are not reconciled.
	nodeTypes := make(map[string]string)
	if len(files) > 0 {
		for name := range files[0].Metrics {
			nodeTypes[name] = "absolute"
		}
	}

	return &CodeChartaDocument{
		ProjectName: e.projectName,
		APIVersion:  "1.0",
		Nodes:       []*Node{root},
		Edges:       []any{},
		AttributeTypes: AttributeTypes{
			Nodes: nodeTypes,
			Edges: map[string]string{},
		},
	}
}

func newNode(name, typ string) *Node {
	return &Node{
		Name:       name,
		Type:       typ,
		Attributes: map[string]float64{},
	}
}

// addFile walks f's path segments from root, reusing existing children by
// name, and sets the leaf's attributes to f's metrics.
func addFile(root *Node, f *model.FileObject) {
	var parts []string
	for _, p := range strings.Split(f.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return
	}

	cur := root
	for i, part := range parts {
		child := cur.child(part)
		if child == nil {
			typ := NodeFolder
			if i == len(parts)-1 {
				typ = NodeFile
			}
			child = newNode(part, typ)
			cur.addChild(child)
		}
		cur = child
	}

	if cur.Type == NodeFile {
		attrs := make(map[string]float64, len(f.Metrics))
		for k, v := range f.Metrics {
			attrs[k] = v
		}
		cur.Attributes = attrs
	}
}

func (n *Node) child(name string) *Node {
	if n.index == nil {
		return nil
	}
	return n.index[name]
}

func (n *Node) addChild(c *Node) {
	if n.index == nil {
		n.index = make(map[string]*Node)
	}
	n.index[c.Name] = c
	n.Children = append(n.Children, c)
}
