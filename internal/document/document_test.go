package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gen2brain/go-fitz"
)

type outlineItem struct {
	title string
	page  int // 1-based
}

// writePDF writes a minimal PDF with the given page count, metadata title
// and a flat outline.
func writePDF(t *testing.T, path string, pages int, title string, items []outlineItem) {
	t.Helper()

	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	// Fixed object numbers: 1 catalog, 2 pages, 3 outlines, 4 info.
	add("")
	add("")
	add("")
	add(fmt.Sprintf("<< /Title (%s) >>", title))

	pageObjs := make([]int, pages)
	for i := range pageObjs {
		pageObjs[i] = add("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 100 100] >>")
	}
	itemObjs := make([]int, len(items))
	for i := range items {
		itemObjs[i] = len(objects) + 1 + i
	}
	for i, it := range items {
		var b bytes.Buffer
		fmt.Fprintf(&b, "<< /Title (%s) /Parent 3 0 R /Dest [%d 0 R /Fit]", it.title, pageObjs[it.page-1])
		if i > 0 {
			fmt.Fprintf(&b, " /Prev %d 0 R", itemObjs[i-1])
		}
		if i < len(items)-1 {
			fmt.Fprintf(&b, " /Next %d 0 R", itemObjs[i+1])
		}
		b.WriteString(" >>")
		add(b.String())
	}

	objects[0] = "<< /Type /Catalog /Pages 2 0 R /Outlines 3 0 R >>"
	var kids bytes.Buffer
	for _, p := range pageObjs {
		fmt.Fprintf(&kids, "%d 0 R ", p)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), pages)
	if len(items) > 0 {
		objects[2] = fmt.Sprintf("<< /Type /Outlines /First %d 0 R /Last %d 0 R /Count %d >>",
			itemObjs[0], itemObjs[len(itemObjs)-1], len(items))
	} else {
		objects[2] = "<< /Type /Outlines /Count 0 >>"
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenReadsOutline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isa.pdf")
	writePDF(t, path, 3, "ISA Reference", []outlineItem{{"MOV", 1}, {"ADD", 2}, {"SUB", 3}})

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = doc.Close() }()

	toc, err := doc.TableOfContents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Heading{{1, "MOV", 1}, {1, "ADD", 2}, {1, "SUB", 3}}
	if len(toc) != len(want) {
		t.Fatalf("expected %d headings, got %+v", len(want), toc)
	}
	for i := range want {
		if toc[i].Title != want[i].Title || toc[i].Page != want[i].Page {
			t.Fatalf("heading %d: got %+v, want %+v", i, toc[i], want[i])
		}
	}
	if doc.PageCount() != 3 {
		t.Fatalf("unexpected page count: %d", doc.PageCount())
	}
	if doc.MetadataTitle() != "ISA Reference" {
		t.Fatalf("unexpected title: %q", doc.MetadataTitle())
	}
}

func TestRenderPageProducesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isa.pdf")
	writePDF(t, path, 1, "x", nil)

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = doc.Close() }()

	for _, zoom := range []float64{1.0, 1.4} {
		png, err := doc.RenderPage(1, zoom)
		if err != nil {
			t.Fatalf("render at %v: %v", zoom, err)
		}
		if !bytes.HasPrefix(png, []byte("\x89PNG")) {
			t.Fatalf("render at %v: not a png", zoom)
		}
	}
	if _, err := doc.RenderPage(2, 1.0); err == nil {
		t.Fatal("expected error for out of range page")
	}
}

func TestOpenInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("definitely not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestHeadingsFromOutline(t *testing.T) {
	got := headingsFromOutline([]fitz.Outline{
		{Level: 1, Title: " Intro ", Page: 0},
		{Level: 2, Title: "Unlinked", Page: -1},
		{Level: 1, Title: "MOV", Page: 9},
	})
	want := []Heading{{1, "Intro", 1}, {2, "Unlinked", 1}, {1, "MOV", 10}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("heading %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

type countDoc struct {
	Document
	n int
}

func (c countDoc) PageCount() int { return c.n }

func TestPagesClamp(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		start, end int
		want       []int
	}{
		{"inside", 10, 2, 4, []int{2, 3, 4}},
		{"single", 10, 5, 5, []int{5}},
		{"past end", 10, 9, 30, []int{9, 10}},
		{"before start", 10, -1, 1, []int{1}},
		{"inverted", 10, 6, 3, nil},
		{"empty document", 0, 1, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pages(countDoc{n: tt.count}, tt.start, tt.end)
			if len(got) != len(tt.want) {
				t.Fatalf("Pages() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Pages() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
