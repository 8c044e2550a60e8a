package xmlfeed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

var encodingDecl = regexp.MustCompile(`^\s*<\?xml[^>]*?\bencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// Filter returns doc with every <property> child of the document element
// removed unless its id is in allowed. Everything else is copied byte for
// byte: the prolog, root attributes, non-property siblings with their
// positions, comments and the whitespace around kept properties. Ids in
// allowed that the document does not contain are ignored.
//
// The result is always UTF-8 and always starts with an XML declaration.
func Filter(doc []byte, allowed IDSet) ([]byte, error) {
	src, err := toUTF8(bytes.TrimPrefix(doc, utf8BOM))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	var out bytes.Buffer
	if !bytes.HasPrefix(bytes.TrimLeft(src, " \t\r\n"), []byte("<?xml")) {
		out.WriteString(xmlHeader)
	}

	dec := newDecoder(src)
	depth := 0
	flushed := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			// No document element: nothing to filter.
			return doc, nil
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		end := int(dec.InputOffset())

		if depth == 0 {
			if _, ok := tok.(xml.StartElement); ok {
				out.Write(src[:end])
				flushed = end
				depth = 1
			}
			continue
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == propertyElement {
				var p struct {
					ID string `xml:"id"`
				}
				if err := dec.DecodeElement(&p, &t); err != nil {
					return nil, &ParseError{Err: err}
				}
				end = int(dec.InputOffset())
				if allowed.Has(p.ID) {
					out.Write(src[flushed:end])
				}
				flushed = end
				continue
			}
			if err := dec.Skip(); err != nil {
				return nil, &ParseError{Err: err}
			}
			end = int(dec.InputOffset())
		case xml.CharData:
			// Whitespace between properties travels with the next element.
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
		case xml.EndElement:
			out.Write(src[flushed:])
			if err := drain(dec); err != nil {
				return nil, &ParseError{Err: err}
			}
			return out.Bytes(), nil
		}

		out.Write(src[flushed:end])
		flushed = end
	}
}

// drain consumes the epilogue so trailing garbage is still reported.
func drain(dec *xml.Decoder) error {
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// toUTF8 transcodes a document declaring a non-UTF-8 encoding and rewrites
// its declaration to match.
func toUTF8(doc []byte) ([]byte, error) {
	m := encodingDecl.FindSubmatchIndex(doc)
	if m == nil {
		return doc, nil
	}
	label := string(doc[m[2]:m[3]])
	if strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return doc, nil
	}

	enc, _ := charset.Lookup(label)
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	decoded, err := enc.NewDecoder().Bytes(doc)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", label, err)
	}

	// The declaration is ASCII in every encoding charset supports here,
	// so the offsets still hold after decoding.
	out := make([]byte, 0, len(decoded)+len("UTF-8"))
	out = append(out, decoded[:m[2]]...)
	out = append(out, "UTF-8"...)
	out = append(out, decoded[m[3]:]...)
	return out, nil
}
