package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "Class", "Proxy", "Status")

	table.AddRow("model.User", "modelUserReferenceProxy", "ok")
	table.AddRow("model.Group", "modelGroupReferenceProxy")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	if !strings.HasPrefix(lines[0], "Class        Proxy") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "─") {
		t.Errorf("missing separator in %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "ok") {
		t.Errorf("unexpected row %q", lines[2])
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", table.Len())
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Class", "model.User")
	kv.AddRow("Identifier", "ID")
	kv.Render()

	want := "Class:      model.User\nIdentifier: ID\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestMessageFormat(t *testing.T) {
	msg := ClassNotFound("example.com/app/model.Usr", []string{
		"example.com/app/model.User",
		"example.com/app/model.Group",
	}, true)

	out := msg.Format()
	if !strings.HasPrefix(out, "✗ CLASS NOT FOUND: example.com/app/model.Usr\n") {
		t.Errorf("unexpected header in %q", out)
	}
	if !strings.Contains(out, "Did you mean: example.com/app/model.User?") {
		t.Errorf("missing suggestion in %q", out)
	}
	if strings.Contains(out, "model.Group") {
		t.Errorf("unrelated class suggested in %q", out)
	}
	if !strings.Contains(out, "→ List mapped classes: refproxy inspect") {
		t.Errorf("missing command in %q", out)
	}
}

func TestWarnings(t *testing.T) {
	var buf bytes.Buffer
	Warnings("model.User", []string{"method secret is not exported"}, true).Write(&buf)

	out := buf.String()
	if !strings.HasPrefix(out, "! SKIPPED MEMBERS: model.User") {
		t.Errorf("unexpected header in %q", out)
	}
	if !strings.Contains(out, "   method secret is not exported\n") {
		t.Errorf("missing detail in %q", out)
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "done", true)

	if buf.String() != "✓ done\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"app/model.User", "app/model.Group", "app/model.Folder", "app/billing.Users"}

	tests := []struct {
		target string
		want   []string
	}{
		{"Usr", []string{"app/model.User"}},
		{"user", []string{"app/model.User", "app/billing.Users"}},
		{"app/model.Grop", []string{"app/model.Group"}},
		{"example.com/app/model.Usr", []string{"app/model.User"}},
		{"Folders", []string{"app/model.Folder"}},
		{"Completely", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got := FindSimilar(tt.target, candidates, DefaultMaxSuggestions)
			if len(got) != len(tt.want) {
				t.Fatalf("FindSimilar(%q) = %v, want %v", tt.target, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FindSimilar(%q) = %v, want %v", tt.target, got, tt.want)
				}
			}
		})
	}
}

func TestFindSimilarLimit(t *testing.T) {
	candidates := []string{"a.Item", "b.Item", "c.Item", "d.Item"}

	got := FindSimilar("Item", candidates, 2)
	if len(got) != 2 || got[0] != "a.Item" || got[1] != "b.Item" {
		t.Errorf("FindSimilar limited to 2 = %v", got)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"same", "same", 0},
		{"héllo", "hello", 1},
	}

	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
