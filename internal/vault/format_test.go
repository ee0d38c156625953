package vault

import (
	"strings"
	"testing"
)

func TestValidateFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		key      string
		want     bool
	}{
		{
			name:     "valid openai key",
			provider: "openai",
			key:      "sk-" + strings.Repeat("Ab1", 16),
			want:     true,
		},
		{
			name:     "openai key too short",
			provider: "openai",
			key:      "short",
			want:     false,
		},
		{
			name:     "openai key missing prefix",
			provider: "openai",
			key:      strings.Repeat("a", 51),
			want:     false,
		},
		{
			name:     "openai provider is case insensitive",
			provider: "OpenAI",
			key:      "sk-" + strings.Repeat("a", 48),
			want:     true,
		},
		{
			name:     "valid anthropic key",
			provider: "anthropic",
			key:      "sk-ant-" + strings.Repeat("a", 24),
			want:     true,
		},
		{
			name:     "anthropic key longer than minimum",
			provider: "anthropic",
			key:      "sk-ant-" + strings.Repeat("a-_", 20),
			want:     true,
		},
		{
			name:     "anthropic key below minimum length",
			provider: "anthropic",
			key:      "sk-ant-short",
			want:     false,
		},
		{
			name:     "valid google key",
			provider: "google",
			key:      "AIza" + strings.Repeat("x", 35),
			want:     true,
		},
		{
			name:     "google key wrong length",
			provider: "google",
			key:      "AIza" + strings.Repeat("x", 34),
			want:     false,
		},
		{
			name:     "unknown provider falls back to length heuristic",
			provider: "mistral",
			key:      "long-enough-key",
			want:     true,
		},
		{
			name:     "unknown provider key too short",
			provider: "mistral",
			key:      "short",
			want:     false,
		},
		{
			name:     "surrounding whitespace is trimmed",
			provider: "openai",
			key:      "  sk-" + strings.Repeat("a", 48) + "  ",
			want:     true,
		},
		{
			name:     "empty key",
			provider: "openai",
			key:      "",
			want:     false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidateFormat(tt.provider, tt.key); got != tt.want {
				t.Errorf("ValidateFormat(%q, %q) = %v, want %v", tt.provider, tt.key, got, tt.want)
			}
		})
	}
}

func TestMaskKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "typical key", key: "sk-abcdefghij1234", want: "sk-a***1234"},
		{name: "exactly eight chars", key: "12345678", want: "***"},
		{name: "nine chars", key: "123456789", want: "1234***6789"},
		{name: "short key", key: "abc", want: "***"},
		{name: "empty key", key: "", want: "***"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MaskKey(tt.key); got != tt.want {
				t.Errorf("MaskKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestKnownProviders(t *testing.T) {
	t.Parallel()

	providers := KnownProviders()
	if len(providers) != 3 {
		t.Fatalf("Expected 3 known providers, got %d", len(providers))
	}

	seen := make(map[string]bool)
	for _, p := range providers {
		seen[p] = true
	}
	for _, want := range []string{"openai", "anthropic", "google"} {
		if !seen[want] {
			t.Errorf("Expected %q in known providers, got %v", want, providers)
		}
	}
}
