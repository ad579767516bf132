package encode

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spherical/doc-converter/internal/domain"
)

// Default slide settings.
const (
	DefaultTitleFormat  = "Page %d"
	DefaultMaxBodyRunes = 1000
)

// SlidesEncoder writes one title-and-body slide per page into a .pptx package.
type SlidesEncoder struct {
	// TitleFormat receives the 1-based page number.
	TitleFormat string
	// MaxBodyRunes caps the body text; longer text is cut, shorter kept exactly.
	MaxBodyRunes int
}

var _ domain.TextEncoder = SlidesEncoder{}

// NewSlidesEncoder returns an encoder, filling zero settings with defaults.
func NewSlidesEncoder(titleFormat string, maxBodyRunes int) SlidesEncoder {
	if titleFormat == "" {
		titleFormat = DefaultTitleFormat
	}
	if maxBodyRunes <= 0 {
		maxBodyRunes = DefaultMaxBodyRunes
	}
	return SlidesEncoder{TitleFormat: titleFormat, MaxBodyRunes: maxBodyRunes}
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Encode builds the deck, one slide per page in page order.
func (e SlidesEncoder) Encode(pages []string) ([]byte, error) {
	e = NewSlidesEncoder(e.TitleFormat, e.MaxBodyRunes)

	var types, presRels, sldIDs bytes.Buffer
	for i := range pages {
		fmt.Fprintf(&types, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
		fmt.Fprintf(&presRels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, i+10, i+1)
		fmt.Fprintf(&sldIDs, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+10)
	}

	parts := []packagePart{
		{"[Content_Types].xml", fmt.Sprintf(pptxContentTypes, types.String())},
		{"_rels/.rels", pptxRootRels},
		{"ppt/presentation.xml", fmt.Sprintf(pptxPresentation, sldIDListXML(sldIDs.String()))},
		{"ppt/_rels/presentation.xml.rels", fmt.Sprintf(pptxPresentationRels, presRels.String())},
		{"ppt/slideMasters/slideMaster1.xml", pptxSlideMaster},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", pptxSlideMasterRels},
		{"ppt/slideLayouts/slideLayout1.xml", pptxSlideLayout},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", pptxSlideLayoutRels},
		{"ppt/theme/theme1.xml", pptxTheme},
	}

	for i, page := range pages {
		title := fmt.Sprintf(e.TitleFormat, i+1)
		body := Truncate(page, e.MaxBodyRunes)
		parts = append(parts,
			packagePart{fmt.Sprintf("ppt/slides/slide%d.xml", i+1), slideXML(title, body)},
			packagePart{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), pptxSlideRels},
		)
	}

	return writePackage(parts)
}

func sldIDListXML(ids string) string {
	if ids == "" {
		return ""
	}
	return "<p:sldIdLst>" + ids + "</p:sldIdLst>"
}

func slideXML(title, body string) string {
	var w bytes.Buffer
	w.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	w.WriteString(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree>`)
	w.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)

	w.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>`)
	writeTextParagraphs(&w, title)
	w.WriteString(`</p:txBody></p:sp>`)

	w.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="3" name="Content Placeholder 2"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr><p:ph idx="1"/></p:nvPr></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr><a:normAutofit/></a:bodyPr><a:lstStyle/>`)
	writeTextParagraphs(&w, body)
	w.WriteString(`</p:txBody></p:sp>`)

	w.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
	return w.String()
}

// writeTextParagraphs emits one a:p per line; an empty text still needs one.
func writeTextParagraphs(w *bytes.Buffer, text string) {
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line == "" {
			w.WriteString(`<a:p><a:endParaRPr lang="en-US"/></a:p>`)
			continue
		}
		w.WriteString(`<a:p><a:r><a:rPr lang="en-US" dirty="0"/><a:t>`)
		escapeXML(w, line)
		w.WriteString(`</a:t></a:r></a:p>`)
	}
}
