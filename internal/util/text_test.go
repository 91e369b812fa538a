package util

import "testing"

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"WS Display":   "ws_display",
		"  Acme/Inc. ": "acme_inc",
		"":             "invoices",
		"***":          "invoices",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q)=%q want %q", in, got, want)
		}
	}
}

func TestSheetName(t *testing.T) {
	cases := map[string]string{
		"WS Display":                              "WS Display",
		"a/b:c":                                   "a b c",
		"":                                        "Invoices",
		"'quoted'":                                "quoted",
		"A very long invoice source name exceeding": "A very long invoice source name",
	}
	for in, want := range cases {
		if got := SheetName(in); got != want {
			t.Fatalf("SheetName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNormalizeSpaces(t *testing.T) {
	if got := NormalizeSpaces(" A1 \n\t Widget  "); got != "A1 Widget" {
		t.Fatalf("got %q", got)
	}
}
