package search

import (
	"context"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	docs := []Document{
		{Arch: "x86", Path: "/m/x86/sdm.pdf", Filename: "sdm.pdf", Position: 0, Level: 1, Title: "MOV—Move", Page: 10},
		{Arch: "x86", Path: "/m/x86/sdm.pdf", Filename: "sdm.pdf", Position: 1, Level: 1, Title: "MOVSX—Move with Sign-Extension", Page: 20},
		{Arch: "x86", Path: "/m/x86/sdm.pdf", Filename: "sdm.pdf", Position: 2, Level: 1, Title: "ADD—Add", Page: 30},
		{Arch: "arm", Path: "/m/arm/arm.pdf", Filename: "arm.pdf", Position: 0, Level: 2, Title: "MOV (register)", Page: 5},
	}
	if err := c.IndexHeadings(context.Background(), docs); err != nil {
		t.Fatalf("index: %v", err)
	}
	return c
}

func TestCatalogPrefixSearch(t *testing.T) {
	c := testCatalog(t)
	resp, err := c.Search(context.Background(), "mov", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 3 || len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %+v", resp)
	}
}

func TestCatalogArchFilter(t *testing.T) {
	c := testCatalog(t)
	resp, err := c.Search(context.Background(), "MOV", "arm", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected a single arm result, got %+v", resp.Results)
	}
	got := resp.Results[0]
	if got.Filename != "arm.pdf" || got.Page != 5 || got.Level != 2 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCatalogReindexReplaces(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()
	err := c.IndexHeadings(ctx, []Document{
		{Arch: "x86", Path: "/m/x86/sdm.pdf", Filename: "sdm.pdf", Position: 2, Level: 1, Title: "ADC—Add with Carry", Page: 31},
	})
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	n, err := c.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("expected 4 headings after reindex, got %d", n)
	}
	resp, err := c.Search(ctx, "ADC", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Page != 31 {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	add, err := c.Search(ctx, "Add", "x86", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(add.Results) != 1 || add.Results[0].Title != "ADC—Add with Carry" {
		t.Fatalf("expected only the replacement heading, got %+v", add.Results)
	}
}

func TestCatalogEmptyQuery(t *testing.T) {
	c := testCatalog(t)
	resp, err := c.Search(context.Background(), "  ---  ", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Fatalf("expected no results, got %+v", resp)
	}
}

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"mov", `"mov"*`},
		{"MOV AND ADD", `"MOV"* "ADD"*`},
		{"cr0/cr4", `"cr0"* "cr4"*`},
		{"  ", ""},
		{"OR", ""},
	}
	for _, tt := range tests {
		got := sanitizeQuery(tt.input)
		if got != tt.want {
			t.Errorf("sanitizeQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
