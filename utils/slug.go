package utils

import "strings"

// SlugFromHost derives the tenant slug from a request host. Hosts with
// at least three dot-separated labels yield the first label, or the
// second when the first is "www" (www.acme.portal.example.com still
// belongs to acme). Anything shorter has no subdomain to read and
// yields "".
func SlugFromHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	// strip :port if present
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	if labels[0] == "www" {
		return labels[1]
	}
	return labels[0]
}

// NormalizeSlug cleans an explicit slug parameter the same way the
// host-derived one is produced.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// SanitizeFilename keeps letters, digits, '.', '-' and '_'; everything
// else becomes '_' so the name is safe inside an object-store path.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// EscapeHTML neutralizes markup in user-supplied text before it is
// interpolated into an email body. Only '&', '<' and '>' are replaced,
// '&' first so existing entities are not double-mangled beyond the
// ampersand itself.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
