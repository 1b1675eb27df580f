package workbook

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// Attr is one element attribute, namespace prefix dropped.
type Attr struct {
	Name  string
	Value string
}

// Node is an element of the attributed markup tree.
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string // direct character data, untrimmed
	Children []*Node
	Line     int
}

// Attr returns the named attribute or "".
func (n *Node) Attr(name string) string {
	v, _ := n.LookupAttr(name)
	return v
}

// LookupAttr returns the named attribute and whether it was present.
func (n *Node) LookupAttr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child with the given name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns the direct children with the given name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Path follows a chain of direct child names.
func (n *Node) Path(names ...string) *Node {
	cur := n
	for _, name := range names {
		if cur = cur.Child(name); cur == nil {
			return nil
		}
	}
	return cur
}

// FindAll returns all descendants with the given name in document order.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if c.Name == name {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Find returns the first descendant with the given name.
func (n *Node) Find(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// ParseMarkup decodes a markup document into a Node tree. Declared
// encodings other than UTF-8 are decoded through the WHATWG index.
func ParseMarkup(r io.Reader) (*Node, error) {
	d := xml.NewDecoder(r)
	d.CharsetReader = charsetReader

	var (
		root  *Node
		stack []*Node
		text  []*strings.Builder
	)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, col := d.InputPos()
			return nil, &MarkupError{Line: line, Column: col, Message: syntaxMessage(err), Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := d.InputPos()
			n := &Node{Name: t.Name.Local, Line: line}
			if len(t.Attr) > 0 {
				n.Attrs = make([]Attr, 0, len(t.Attr))
				for _, a := range t.Attr {
					if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
						continue
					}
					n.Attrs = append(n.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
				}
			}
			if len(stack) == 0 {
				if root != nil {
					line, col := d.InputPos()
					return nil, &MarkupError{Line: line, Column: col, Message: "multiple root elements"}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			text = append(text, &strings.Builder{})

		case xml.EndElement:
			n := stack[len(stack)-1]
			n.Text = text[len(text)-1].String()
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]

		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		}
	}

	if root == nil {
		line, col := d.InputPos()
		return nil, &MarkupError{Line: line, Column: col, Message: "no root element"}
	}
	if len(stack) > 0 {
		line, col := d.InputPos()
		return nil, &MarkupError{Line: line, Column: col, Message: fmt.Sprintf("unclosed element <%s>", stack[len(stack)-1].Name)}
	}
	return root, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func syntaxMessage(err error) string {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return se.Msg
	}
	return err.Error()
}
