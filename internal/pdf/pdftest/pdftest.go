// Package pdftest writes small, well-formed PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Page describes one generated page.
type Page struct {
	// Lines are drawn top-down in Helvetica 24.
	Lines []string
	// Images names the image XObjects painted on the page, in paint order.
	// Every name refers to a shared 2x2 RGB image.
	Images []string
	// Form names images painted through a form XObject /Fm0. Pages with the
	// same Form list share one form object.
	Form []string
	// Rotate sets /Rotate on the page.
	Rotate int
	// Content is appended to the page content verbatim.
	Content string
}

// Doc describes a generated document.
type Doc struct {
	Pages []Page
	// Producer and CreationDate go into an info dictionary when either is set.
	Producer     string
	CreationDate string
}

// Letter is the default page size in points.
const (
	LetterWidth  = 612
	LetterHeight = 792
)

// Write creates a PDF at path with the given pages and returns path.
func Write(t testing.TB, path string, pages ...Page) string {
	t.Helper()
	return WriteDoc(t, path, Doc{Pages: pages})
}

// WriteDoc creates a PDF at path from doc and returns path.
func WriteDoc(t testing.TB, path string, doc Doc) string {
	t.Helper()
	if len(doc.Pages) == 0 {
		doc.Pages = []Page{{Lines: []string{"foo"}}}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, BuildDoc(doc), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

// Build returns the bytes of a PDF with the given pages.
func Build(pages ...Page) []byte {
	return BuildDoc(Doc{Pages: pages})
}

// BuildDoc returns the bytes of doc.
func BuildDoc(doc Doc) []byte {
	pages := doc.Pages
	var objects []string

	// 1 catalog, 2 page tree, 3 font, 4 image, page/content pairs, then
	// forms and info
	forms := map[string]int{}
	var formImages [][]string
	for _, p := range pages {
		key := strings.Join(p.Form, " ")
		if len(p.Form) == 0 || forms[key] != 0 {
			continue
		}
		forms[key] = 5 + 2*len(pages) + len(formImages)
		formImages = append(formImages, p.Form)
	}

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		imageObject(),
	)

	for i, p := range pages {
		contentNr := 6 + 2*i

		xobjs := imageEntries(p.Images)
		if len(p.Form) > 0 {
			xobjs = append(xobjs, fmt.Sprintf("/Fm0 %d 0 R", forms[strings.Join(p.Form, " ")]))
		}
		resources := "/Font << /F1 3 0 R >>"
		if len(xobjs) > 0 {
			resources += " /XObject << " + strings.Join(xobjs, " ") + " >>"
		}
		rotate := ""
		if p.Rotate != 0 {
			rotate = fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d]%s /Resources << %s >> /Contents %d 0 R >>",
				LetterWidth, LetterHeight, rotate, resources, contentNr),
			stream(pageContent(p)),
		)
	}

	for _, images := range formImages {
		objects = append(objects, formObject(images))
	}
	info := ""
	if doc.Producer != "" || doc.CreationDate != "" {
		var entries []string
		if doc.Producer != "" {
			entries = append(entries, fmt.Sprintf("/Producer (%s)", escape(doc.Producer)))
		}
		if doc.CreationDate != "" {
			entries = append(entries, fmt.Sprintf("/CreationDate (%s)", escape(doc.CreationDate)))
		}
		objects = append(objects, "<< "+strings.Join(entries, " ")+" >>")
		info = fmt.Sprintf(" /Info %d 0 R", len(objects))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, info, xref)
	return buf.Bytes()
}

func pageContent(p Page) string {
	var b strings.Builder
	y := 700
	for _, line := range p.Lines {
		fmt.Fprintf(&b, "BT /F1 24 Tf 72 %d Td (%s) Tj ET\n", y, escape(line))
		y -= 40
	}
	x := 72
	for _, name := range p.Images {
		fmt.Fprintf(&b, "q 100 0 0 100 %d 300 cm /%s Do Q\n", x, name)
		x += 120
	}
	if len(p.Form) > 0 {
		b.WriteString("/Fm0 Do\n")
	}
	b.WriteString(p.Content)
	return b.String()
}

func imageEntries(names []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, fmt.Sprintf("/%s 4 0 R", name))
		}
	}
	return out
}

func formObject(images []string) string {
	var b strings.Builder
	x := 72
	for _, name := range images {
		fmt.Fprintf(&b, "q 100 0 0 100 %d 500 cm /%s Do Q\n", x, name)
		x += 120
	}
	content := b.String()
	return fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [0 0 %d %d] /Resources << /XObject << %s >> >> /Length %d >>\nstream\n%s\nendstream",
		LetterWidth, LetterHeight, strings.Join(imageEntries(images), " "), len(content), content)
}

func stream(content string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
}

func imageObject() string {
	samples := string([]byte{
		0xff, 0x00, 0x00, 0x00, 0xff, 0x00,
		0x00, 0x00, 0xff, 0xff, 0xff, 0x00,
	})
	return fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Length %d >>\nstream\n%s\nendstream",
		len(samples), samples)
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
