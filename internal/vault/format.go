package vault

import (
	"regexp"
	"strings"
)

// minFallbackKeyLength is the permissive check applied to providers
// without a registered pattern. Known weak validation path.
const minFallbackKeyLength = 10

// providerKeyPatterns maps provider names to the expected shape of
// their API keys.
var providerKeyPatterns = map[string]*regexp.Regexp{
	"openai":    regexp.MustCompile(`^sk-[A-Za-z0-9]{48}$`),
	"anthropic": regexp.MustCompile(`^sk-ant-[A-Za-z0-9_-]{24,}$`),
	"google":    regexp.MustCompile(`^AIza[A-Za-z0-9_-]{35}$`),
}

// KnownProviders returns the providers with a registered key pattern.
func KnownProviders() []string {
	providers := make([]string, 0, len(providerKeyPatterns))
	for p := range providerKeyPatterns {
		providers = append(providers, p)
	}
	return providers
}

// ValidateFormat checks key against the provider's pattern. Providers
// without a pattern fall back to a minimum-length heuristic.
func ValidateFormat(provider, key string) bool {
	key = strings.TrimSpace(key)
	if pattern, ok := providerKeyPatterns[strings.ToLower(provider)]; ok {
		return pattern.MatchString(key)
	}
	return len(key) > minFallbackKeyLength
}

// MaskKey renders a key as first4***last4 for logs and listings. Keys
// too short to keep eight characters private are fully masked.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-4:]
}
