package tenant

import "strings"

// Namespace prefixes every derived partition key. Diagnostics tooling lists
// provisioned partitions by scanning for this prefix.
const Namespace = "tenant_"

// PartitionKey derives the stable partition name for an organization id:
// lower-case, every character outside [a-z0-9_] replaced with '_', then the
// namespace prefix. Deterministic and idempotent: an already derived key maps
// to itself. Organization ids differing only in case or punctuation map to the
// same partition.
func PartitionKey(organizationID string) string {
	key := sanitize(strings.ToLower(organizationID))
	if strings.HasPrefix(key, Namespace) {
		return key
	}
	return Namespace + key
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
