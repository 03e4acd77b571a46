package frontmatter

import (
	"bytes"
	"errors"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantFM   string
		wantBody string
		wantHad  bool
		wantErr  error
	}{
		{
			name:     "basic frontmatter",
			input:    "---\ntitle: Hello\n---\nbody text\n",
			wantFM:   "title: Hello\n",
			wantBody: "body text\n",
			wantHad:  true,
		},
		{
			name:     "no frontmatter",
			input:    "just a body\n",
			wantBody: "just a body\n",
			wantHad:  false,
		},
		{
			name:     "empty frontmatter block",
			input:    "---\n---\nbody\n",
			wantFM:   "",
			wantBody: "body\n",
			wantHad:  true,
		},
		{
			name:    "missing closing delimiter",
			input:   "---\ntitle: Hello\nbody without close\n",
			wantErr: ErrMissingClosingDelimiter,
		},
		{
			name:     "crlf newlines",
			input:    "---\r\ntitle: Hi\r\n---\r\nbody\r\n",
			wantFM:   "title: Hi\r\n",
			wantBody: "body\r\n",
			wantHad:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, had, err := Split([]byte(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if had != tt.wantHad {
				t.Errorf("had = %v, want %v", had, tt.wantHad)
			}
			if string(fm) != tt.wantFM {
				t.Errorf("frontmatter = %q, want %q", fm, tt.wantFM)
			}
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestParse(t *testing.T) {
	fields, body, err := Parse([]byte("---\ntitle: Guide\nweight: 3\n---\n# Heading\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if fields["title"] != "Guide" {
		t.Errorf("title = %v", fields["title"])
	}
	if fields["weight"] != 3 {
		t.Errorf("weight = %v", fields["weight"])
	}
	if string(body) != "# Heading\n" {
		t.Errorf("body = %q", body)
	}
}

func TestParseNoFrontmatterReturnsEmptyMap(t *testing.T) {
	fields, _, err := Parse([]byte("plain body"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if fields == nil {
		t.Fatal("fields map must be non-nil")
	}
	if len(fields) != 0 {
		t.Errorf("expected empty map, got %v", fields)
	}
}

func TestRecover(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "broken yaml with intact delimiters",
			input: "---\ntitle: [unclosed\n---\nthe body\n",
			want:  "the body\n",
		},
		{
			name:  "no closing delimiter",
			input: "---\ntitle: x\nbody-ish text\n",
			want:  "title: x\nbody-ish text\n",
		},
		{
			name:  "no frontmatter at all",
			input: "body only\n",
			want:  "body only\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recover([]byte(tt.input))
			if string(got) != tt.want {
				t.Errorf("Recover = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeYAMLDeterministic(t *testing.T) {
	fields := map[string]any{
		"weight": 2,
		"title":  "Guide",
		"tags":   []any{"go", "build"},
		"extra":  map[string]any{"b": 1, "a": 2},
	}

	first, err := SerializeYAML(fields)
	if err != nil {
		t.Fatalf("SerializeYAML failed: %v", err)
	}
	for range 10 {
		again, err := SerializeYAML(fields)
		if err != nil {
			t.Fatalf("SerializeYAML failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("serialization not deterministic:\n%s\nvs\n%s", first, again)
		}
	}
}

func TestSerializeYAMLEmpty(t *testing.T) {
	out, err := SerializeYAML(nil)
	if err != nil {
		t.Fatalf("SerializeYAML failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestSplitRecoverRoundTrip(t *testing.T) {
	// A document whose frontmatter parses must recover to the same body.
	doc := []byte("---\ntitle: ok\n---\nshared body\n")
	_, body, _, err := Split(doc)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if string(Recover(doc)) != string(body) {
		t.Errorf("Recover body %q differs from Split body %q", Recover(doc), body)
	}
}
