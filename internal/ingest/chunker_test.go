package ingest

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty",
			text: "   \n\t ",
			want: nil,
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "terminators split",
			text: "One. Two! Three?",
			want: []string{"One.", "Two!", "Three?"},
		},
		{
			name: "whitespace normalized before splitting",
			text: "A  b.\n\nC d.",
			want: []string{"A b.", "C d."},
		},
		{
			name: "trailing text without terminator kept",
			text: "First. And then",
			want: []string{"First.", "And then"},
		},
		{
			name: "closing quote stays with its sentence",
			text: `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
		{
			name: "ellipsis treated as one terminator",
			text: "Wait... Go on.",
			want: []string{"Wait...", "Go on."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSentences(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestChunkText(t *testing.T) {
	// three 40-character sentences
	a := strings.Repeat("a", 39) + "."
	b := strings.Repeat("b", 39) + "."
	c := strings.Repeat("c", 39) + "."
	text := a + " " + b + " " + c

	t.Run("empty returns nil", func(t *testing.T) {
		if got := chunkText("", 800, 100); got != nil {
			t.Errorf("chunkText(\"\") = %q, want nil", got)
		}
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		got := chunkText("One. Two.", 800, 100)
		want := []string{"One. Two."}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunkText() = %q, want %q", got, want)
		}
	})

	t.Run("overlap repeats trailing sentence", func(t *testing.T) {
		got := chunkText(text, 85, 45)
		want := []string{a + " " + b, b + " " + c}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunkText() = %q, want %q", got, want)
		}
	})

	t.Run("zero overlap shares nothing", func(t *testing.T) {
		got := chunkText(text, 85, 0)
		want := []string{a + " " + b, c}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunkText() = %q, want %q", got, want)
		}
	})

	t.Run("oversized sentence becomes its own chunk", func(t *testing.T) {
		long := strings.Repeat("x", 899) + "."
		got := chunkText(long+" Short tail.", 800, 100)
		want := []string{long, "Short tail."}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunkText() = %q, want %q", got, want)
		}
	})

	t.Run("chunks respect the size limit", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 40; i++ {
			sb.WriteString("This sentence pads the text considerably for chunking. ")
		}
		for _, chunk := range chunkText(sb.String(), 200, 50) {
			if len(chunk) > 200 {
				t.Errorf("chunk length %d exceeds size 200: %q", len(chunk), chunk)
			}
		}
	})

	t.Run("concatenation loses no sentence", func(t *testing.T) {
		chunks := chunkText(text, 85, 45)
		joined := strings.Join(chunks, " ")
		for _, sentence := range []string{a, b, c} {
			if !strings.Contains(joined, sentence) {
				t.Errorf("chunks %q missing sentence %q", chunks, sentence)
			}
		}
	})
}
