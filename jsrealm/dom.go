package jsrealm

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/unkn0wn-root/remoteval/host"
)

var namespaces = map[string]string{
	"":     host.XHTMLNamespace,
	"svg":  "http://www.w3.org/2000/svg",
	"math": "http://www.w3.org/1998/Math/MathML",
}

func nodeType(t html.NodeType) int {
	switch t {
	case html.ElementNode:
		return host.ElementNode
	case html.TextNode:
		return host.TextNode
	case html.CommentNode:
		return host.CommentNode
	case html.DocumentNode:
		return host.DocumentNode
	case html.DoctypeNode:
		return host.DocumentTypeNode
	}
	return 0
}

// hostNode returns the host node standing for hn, creating it on first use.
func (r *Realm) hostNode(hn *html.Node) *host.Node {
	if n, ok := r.nodes[hn]; ok {
		return n
	}
	n := &host.Node{}
	r.nodes[hn] = n
	r.hnodes[n] = hn
	return n
}

// nodeToHost refreshes the host node for hn. Child pointers are always
// listed so childNodeCount is right; the children themselves are only read
// while depth remains.
func (r *Realm) nodeToHost(hn *html.Node, depth int) *host.Node {
	n := r.hostNode(hn)
	n.NodeType = nodeType(hn.Type)
	n.LocalName, n.NamespaceURI, n.NodeValue = "", "", ""
	n.Attributes = n.Attributes[:0]

	switch hn.Type {
	case html.ElementNode:
		n.LocalName = hn.Data
		n.NamespaceURI = namespaces[hn.Namespace]
		for _, a := range hn.Attr {
			name := a.Key
			if a.Namespace != "" {
				name = a.Namespace + ":" + a.Key
			}
			n.Attributes = append(n.Attributes, host.Attribute{Name: name, Value: a.Val})
		}
	case html.TextNode, html.CommentNode:
		n.NodeValue = hn.Data
	case html.DoctypeNode:
		n.LocalName = hn.Data
	}

	n.Children = n.Children[:0]
	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		if depth > 0 {
			n.Children = append(n.Children, r.nodeToHost(c, depth-1))
		} else {
			n.Children = append(n.Children, r.hostNode(c))
		}
	}
	return n
}

// wrap returns the script object for hn. A node has exactly one wrapper.
func (r *Realm) wrap(hn *html.Node) *goja.Object {
	if hn == nil {
		return nil
	}
	if obj, ok := r.wrappers[hn]; ok {
		return obj
	}
	obj := r.vm.NewObject()
	r.wrappers[hn] = obj
	r.unwrap[obj] = hn

	r.getter(obj, "nodeType", func() any { return nodeType(hn.Type) })
	r.getter(obj, "nodeName", func() any { return nodeName(hn) })
	r.getter(obj, "localName", func() any {
		if hn.Type != html.ElementNode {
			return goja.Null()
		}
		return hn.Data
	})
	r.getter(obj, "nodeValue", func() any {
		if hn.Type == html.TextNode || hn.Type == html.CommentNode {
			return hn.Data
		}
		return goja.Null()
	})
	r.getter(obj, "textContent", func() any { return htmlquery.InnerText(hn) })
	r.getter(obj, "parentNode", func() any { return r.wrapOrNull(hn.Parent) })
	r.getter(obj, "firstChild", func() any { return r.wrapOrNull(hn.FirstChild) })
	r.getter(obj, "nextSibling", func() any { return r.wrapOrNull(hn.NextSibling) })
	r.getter(obj, "childNodes", func() any {
		var out []any
		for c := hn.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, r.wrap(c))
		}
		return r.vm.NewArray(out...)
	})
	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		for _, a := range hn.Attr {
			if a.Key == name {
				return r.vm.ToValue(a.Val)
			}
		}
		return goja.Null()
	})
	_ = obj.Set("querySelectorXPath", func(call goja.FunctionCall) goja.Value {
		return r.xpath(hn, call.Argument(0).String())
	})
	return obj
}

func (r *Realm) wrapOrNull(hn *html.Node) goja.Value {
	if hn == nil {
		return goja.Null()
	}
	return r.wrap(hn)
}

func (r *Realm) getter(obj *goja.Object, name string, get func() any) {
	fn := r.vm.ToValue(func(goja.FunctionCall) goja.Value { return r.vm.ToValue(get()) })
	_ = obj.DefineAccessorProperty(name, fn, nil, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

func nodeName(hn *html.Node) string {
	switch hn.Type {
	case html.ElementNode:
		return strings.ToUpper(hn.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	}
	return hn.Data
}

// xpath runs expr against top and returns the matches as an array. A bad
// expression throws into the script.
func (r *Realm) xpath(top *html.Node, expr string) goja.Value {
	found, err := htmlquery.QueryAll(top, expr)
	if err != nil {
		panic(r.vm.NewGoError(fmt.Errorf("xpath %q: %w", expr, err)))
	}
	out := make([]any, len(found))
	for i, n := range found {
		out[i] = r.wrap(n)
	}
	return r.vm.NewArray(out...)
}

// installDocument parses src and exposes it as the global document, plus
// $x for XPath queries.
func (r *Realm) installDocument(src string) error {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("jsrealm: parse document: %w", err)
	}
	r.doc = doc
	d := r.wrap(doc)
	r.getter(d, "documentElement", func() any {
		return r.wrapOrNull(htmlquery.FindOne(doc, "/html"))
	})
	r.getter(d, "body", func() any {
		return r.wrapOrNull(htmlquery.FindOne(doc, "//body"))
	})
	_ = d.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		if strings.ContainsRune(id, '\'') {
			return goja.Null()
		}
		return r.wrapOrNull(htmlquery.FindOne(doc, "//*[@id='"+id+"']"))
	})
	if err := r.vm.Set("document", d); err != nil {
		return err
	}
	return r.vm.Set("$x", func(call goja.FunctionCall) goja.Value {
		return r.xpath(doc, call.Argument(0).String())
	})
}
