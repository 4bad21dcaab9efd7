package pomxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// field is an element whose text content can be rewritten in place.
type field struct {
	name string
	text string

	// start and end delimit the element content in the source.
	start, end int

	// texts are the source spans of the character data inside the element,
	// so comments and processing instructions next to the value survive a rewrite.
	texts []span

	// tagStart and tagEnd delimit the whole element, used for <version/>.
	tagStart, tagEnd int
	selfClosing      bool
}

type span struct {
	start, end int
}

func (f *field) value() string {
	return strings.TrimSpace(f.text)
}

// replacement returns the spans to cut and the bytes to put there.
// The value goes where the first non-blank text was and any later text is dropped.
func (f *field) replacement(src []byte, value string) []edit {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(value))

	if f.selfClosing {
		return []edit{{f.tagStart, f.tagEnd, []byte(fmt.Sprintf("<%s>%s</%s>", f.name, buf.String(), f.name))}}
	}

	var edits []edit
	for _, t := range f.texts {
		raw := src[t.start:t.end]
		if bytes.HasPrefix(raw, []byte("<![CDATA[")) {
			if edits == nil {
				edits = append(edits, edit{t.start, t.end, buf.Bytes()})
			} else {
				edits = append(edits, edit{t.start, t.end, nil})
			}
			continue
		}

		// Keep the whitespace surrounding the value.
		lead := len(raw) - len(bytes.TrimLeft(raw, " \t\r\n"))
		if lead == len(raw) {
			continue
		}
		trail := len(raw) - len(bytes.TrimRight(raw, " \t\r\n"))
		if edits == nil {
			edits = append(edits, edit{t.start + lead, t.end - trail, buf.Bytes()})
		} else {
			edits = append(edits, edit{t.start + lead, t.end - trail, nil})
		}
	}
	if edits != nil {
		return edits
	}

	// Only blanks or nothing at all between the tags.
	if len(f.texts) > 0 {
		t := f.texts[0]
		return []edit{{t.start, t.end, buf.Bytes()}}
	}
	return []edit{{f.start, f.start, buf.Bytes()}}
}

// block is an element carrying an <artifactId> child, like <dependency>.
type block struct {
	artifactID string
	version    *field
}

type document struct {
	src []byte

	// projectVersion is the first <version> element in document order.
	projectVersion *field

	dependencies []block

	// properties maps child names of <properties> to their fields.
	properties map[string]*field
}

type frame struct {
	name string

	start   int
	content int
	text    strings.Builder
	texts   []span

	artifactID   *field
	version      *field
	hasElemChild bool
}

func scan(src []byte) (*document, error) {
	doc := &document{
		src:        src,
		properties: map[string]*field{},
	}

	d := xml.NewDecoder(bytes.NewReader(src))
	d.Strict = true

	var stack []*frame

	for {
		pre := int(d.InputOffset())
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		post := int(d.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) > 0 {
				stack[len(stack)-1].hasElemChild = true
			}
			stack = append(stack, &frame{name: t.Name.Local, start: pre, content: post})
		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.text.Write(t)
				top.texts = append(top.texts, span{pre, post})
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end element %q at offset %d", t.Name.Local, pre)
			}
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			f := &field{
				name:     cur.name,
				text:     cur.text.String(),
				texts:    cur.texts,
				start:    cur.content,
				end:      pre,
				tagStart: cur.start,
				tagEnd:   post,
			}
			// The decoder emits a synthetic end element for <x/> without consuming input.
			if pre == post && bytes.HasSuffix(src[cur.start:cur.content], []byte("/>")) {
				f.selfClosing = true
				f.start, f.end = cur.content, cur.content
			}

			if cur.name == "version" && !cur.hasElemChild && doc.projectVersion == nil {
				doc.projectVersion = f
			}

			if cur.name == "dependency" && cur.artifactID != nil {
				doc.dependencies = append(doc.dependencies, block{
					artifactID: cur.artifactID.value(),
					version:    cur.version,
				})
			}

			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]

			switch {
			case parent.name == "properties" && !cur.hasElemChild:
				if _, ok := doc.properties[cur.name]; !ok {
					doc.properties[cur.name] = f
				}
			case cur.name == "artifactId" && parent.artifactID == nil:
				parent.artifactID = f
			case cur.name == "version" && parent.version == nil && parent.artifactID != nil:
				// Only a <version> following the <artifactId> belongs to it.
				parent.version = f
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("unexpected end of document inside <%s>", stack[len(stack)-1].name)
	}

	return doc, nil
}

type edit struct {
	start, end int
	data       []byte
}

// apply splices edits into src. Identical edits are applied once.
func apply(src []byte, edits []edit) ([]byte, error) {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var out bytes.Buffer
	cur := 0
	for i, e := range edits {
		if i > 0 {
			prev := edits[i-1]
			if prev.start == e.start && prev.end == e.end && bytes.Equal(prev.data, e.data) {
				continue
			}
			if e.start < cur {
				return nil, fmt.Errorf("overlapping edits at offset %d", e.start)
			}
		}
		out.Write(src[cur:e.start])
		out.Write(e.data)
		cur = e.end
	}
	out.Write(src[cur:])
	return out.Bytes(), nil
}
