package sandbox

import "testing"

func TestParseFlatYAMLScalars(t *testing.T) {
	doc := ParseFlatYAML([]byte("title: The Matrix\nyear: 1999\nverified: true\n"))
	title, _ := doc.Field("title")
	if title.Str != "The Matrix" {
		t.Errorf("title = %q", title.Str)
	}
	year, _ := doc.Field("year")
	if year.Num != 1999 {
		t.Errorf("year = %v", year.Num)
	}
	verified, _ := doc.Field("verified")
	if !verified.Bool {
		t.Errorf("verified = %v", verified.Bool)
	}
}

func TestParseFlatYAMLList(t *testing.T) {
	doc := ParseFlatYAML([]byte("tags: [action, sci-fi]\n"))
	tags, ok := doc.Field("tags")
	if !ok || len(tags.Arr) != 2 {
		t.Fatalf("tags = %+v", tags)
	}
	if tags.Arr[0].Str != "action" || tags.Arr[1].Str != "sci-fi" {
		t.Errorf("tags = %+v", tags.Arr)
	}
}

func TestParseFlatYAMLIgnoresCommentsAndBlankLines(t *testing.T) {
	doc := ParseFlatYAML([]byte("# a comment\n\ntitle: X\n"))
	title, ok := doc.Field("title")
	if !ok || title.Str != "X" {
		t.Fatalf("title = %+v, %v", title, ok)
	}
}
