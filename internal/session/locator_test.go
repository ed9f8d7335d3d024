package session

import "testing"

func TestParseRef(t *testing.T) {
	cases := []struct {
		in   string
		kind RefKind
		book string
	}{
		{"tome:book:abc", RefBook, "tome:book:abc"},
		{" tome:book:abc ", RefBook, "tome:book:abc"},
		{"tome:book:", RefUnrecognized, ""},
		{"tome:playlist:abc", RefUnrecognized, ""},
		{"spotify:track:xyz", RefUnrecognized, ""},
		{"", RefUnrecognized, ""},
	}

	for _, tc := range cases {
		ref := ParseRef(tc.in)
		if ref.Kind != tc.kind || ref.BookID != tc.book {
			t.Fatalf("ParseRef(%q) = %+v, want kind=%v book=%q", tc.in, ref, tc.kind, tc.book)
		}
	}
}
