package encode

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/spherical/doc-converter/internal/domain"
)

// WordEncoder writes one paragraph per page into a .docx package.
type WordEncoder struct{}

var _ domain.TextEncoder = WordEncoder{}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`

const docxCore = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:creator>doc-converter</dc:creator>
</cp:coreProperties>`

// Encode builds the package. Embedded newlines become line breaks inside the
// page's paragraph.
func (WordEncoder) Encode(pages []string) ([]byte, error) {
	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, page := range pages {
		writeParagraph(&doc, page)
	}
	doc.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`)
	doc.WriteString(`</w:body></w:document>`)

	return writePackage([]packagePart{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"docProps/core.xml", docxCore},
		{"word/document.xml", doc.String()},
	})
}

func writeParagraph(w *bytes.Buffer, text string) {
	if text == "" {
		w.WriteString(`<w:p/>`)
		return
	}

	w.WriteString(`<w:p><w:r>`)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			w.WriteString(`<w:br/>`)
		}
		for j, segment := range strings.Split(line, "\t") {
			if j > 0 {
				w.WriteString(`<w:tab/>`)
			}
			if segment == "" {
				continue
			}
			w.WriteString(`<w:t xml:space="preserve">`)
			escapeXML(w, segment)
			w.WriteString(`</w:t>`)
		}
	}
	w.WriteString(`</w:r></w:p>`)
}

// escapeXML writes s as character data. Characters XML forbids become U+FFFD.
func escapeXML(w io.Writer, s string) {
	_ = xml.EscapeText(w, []byte(s))
}

type packagePart struct {
	name    string
	content string
}

// writePackage zips OPC parts in the given order.
func writePackage(parts []packagePart) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return nil, domain.EncodingFailureError("create "+p.name, err)
		}
		if _, err := io.WriteString(f, p.content); err != nil {
			return nil, domain.EncodingFailureError("write "+p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, domain.EncodingFailureError("close package", err)
	}
	return buf.Bytes(), nil
}
