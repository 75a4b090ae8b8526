package validators

import "strings"

// BearerToken pulls the credential out of an Authorization header. The
// scheme is matched case-insensitively and may be omitted.
func BearerToken(header string) string {
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(header)
}
