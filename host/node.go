package host

// Node types, numbered as in the DOM.
const (
	ElementNode          = 1
	AttributeNode        = 2
	TextNode             = 3
	CDATASectionNode     = 4
	ProcessingInstrNode  = 7
	CommentNode          = 8
	DocumentNode         = 9
	DocumentTypeNode     = 10
	DocumentFragmentNode = 11
)

// XHTMLNamespace is the namespace of HTML elements.
const XHTMLNamespace = "http://www.w3.org/1999/xhtml"

// Attribute is one element attribute.
type Attribute struct {
	Name  string
	Value string
}

// Node is a DOM-like node. Children are held by pointer so that the same
// node reached along different paths is the same Ref.
type Node struct {
	NodeType     int
	LocalName    string
	NamespaceURI string
	NodeValue    string
	Attributes   []Attribute
	Children     []*Node
}

// NewElement returns an HTML element node.
func NewElement(localName string, attrs ...Attribute) *Node {
	return &Node{
		NodeType:     ElementNode,
		LocalName:    localName,
		NamespaceURI: XHTMLNamespace,
		Attributes:   attrs,
	}
}

// NewText returns a text node.
func NewText(data string) *Node {
	return &Node{NodeType: TextNode, NodeValue: data}
}

// Append adds children and returns n.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// HasNodeValue reports whether the node type carries a nodeValue.
func (n *Node) HasNodeValue() bool {
	switch n.NodeType {
	case TextNode, CDATASectionNode, ProcessingInstrNode, CommentNode, AttributeNode:
		return true
	}
	return false
}

// Container reports whether the node type can have children.
func (n *Node) Container() bool {
	switch n.NodeType {
	case ElementNode, DocumentNode, DocumentFragmentNode:
		return true
	}
	return false
}
