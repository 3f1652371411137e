package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Param is one named SOAP call parameter. Parameters are kept as an
// ordered slice because the vendor requires authentication parameters
// ahead of call parameters in the request body.
type Param struct {
	Name  string
	Value string
}

// Envelope builds a SOAP 1.2 request envelope for the given method.
// Parameter values are XML-escaped; parameter and method names are
// caller-controlled constants and written as-is.
func Envelope(namespace, method string, params []Param) []byte {
	var b bytes.Buffer

	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope" xmlns:ns="` + namespace + `">` + "\n")
	b.WriteString("  <soap12:Body>\n")
	fmt.Fprintf(&b, "    <ns:%s>\n", method)

	for _, p := range params {
		fmt.Fprintf(&b, "      <%s>", p.Name)
		xml.EscapeText(&b, []byte(p.Value))
		fmt.Fprintf(&b, "</%s>\n", p.Name)
	}

	fmt.Fprintf(&b, "    </ns:%s>\n", method)
	b.WriteString("  </soap12:Body>\n")
	b.WriteString("</soap12:Envelope>")

	return b.Bytes()
}

// Element is one node of a parsed SOAP response. Names carry no
// namespace prefix: the vendor's namespacing is inconsistent enough
// that lookups must work on local names only.
type Element struct {
	Name     string
	Text     string
	Children []*Element
}

// Parse reads an XML document into an Element tree, dropping all
// namespace prefixes and declarations.
func Parse(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	root := &Element{}
	stack := []*Element{root}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, el)
			stack = append(stack, el)

		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.Text += string(t)

		case xml.EndElement:
			cur := stack[len(stack)-1]
			cur.Text = strings.TrimSpace(cur.Text)
			stack = stack[:len(stack)-1]
		}
	}

	if len(root.Children) == 0 {
		return nil, fmt.Errorf("parse xml: empty document")
	}
	return root.Children[0], nil
}

// Find returns the first element, in document order, whose name
// contains substr, or nil when no element matches.
func (e *Element) Find(substr string) *Element {
	if e == nil {
		return nil
	}
	if strings.Contains(e.Name, substr) {
		return e
	}
	for _, c := range e.Children {
		if found := c.Find(substr); found != nil {
			return found
		}
	}
	return nil
}

// Map flattens the element's children into a name to value mapping.
// Leaf children map to their text, nested children to nested maps.
func (e *Element) Map() map[string]interface{} {
	result := make(map[string]interface{})
	for _, c := range e.Children {
		if len(c.Children) > 0 {
			result[c.Name] = c.Map()
		} else {
			result[c.Name] = c.Text
		}
	}
	return result
}
