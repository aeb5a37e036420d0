package snapshot

import (
	"cmp"
	"slices"
	"strings"
)

// Snapshot is the complete ordered and numbered row set of one run.
type Snapshot []Row

// Sort orders rows by IP (as a string) and then by numeric port, keeping
// the input order of ties, and numbers them 1..N. The input is not modified.
func Sort(rows []Row) Snapshot {
	out := make(Snapshot, len(rows))
	copy(out, rows)

	slices.SortStableFunc(out, func(a, b Row) int {
		if c := strings.Compare(a.IP, b.IP); c != 0 {
			return c
		}
		return cmp.Compare(a.Port, b.Port)
	})

	for i := range out {
		out[i].Seq = i + 1
	}

	return out
}

// IdentityKeys returns the identity projection of every row, in order.
func IdentityKeys(rows []Row) []string {
	keys := make([]string, len(rows))
	for i := range rows {
		keys[i] = rows[i].IdentityKey()
	}
	return keys
}
