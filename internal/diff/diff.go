// Package diff compares two snapshots by row identity.
//
// Rows are projected to their identity key (sequence number and timestamp
// dropped) and compared with a longest-common-subsequence line diff. Every
// deleted or inserted line is mapped back to the full row at the same
// position, so duplicate rows are attributed to the exact occurrence the
// diff touched.
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/anstrom/shodan-notifier/internal/snapshot"
)

// Result holds the rows that differ between two snapshots, each side in
// the order the diff emitted them.
type Result struct {
	// Added rows are in the current snapshot but not in the previous one.
	Added []snapshot.Row

	// Removed rows are in the previous snapshot but not in the current one.
	Removed []snapshot.Row
}

// Empty reports whether nothing changed.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Compute diffs the previous rows against the current snapshot.
func Compute(old []snapshot.Row, current snapshot.Snapshot) Result {
	oldKeys := snapshot.IdentityKeys(old)
	newKeys := snapshot.IdentityKeys(current)

	var res Result
	for _, op := range matcher(oldKeys, newKeys).GetOpCodes() {
		switch op.Tag {
		case 'r':
			res.Removed = append(res.Removed, old[op.I1:op.I2]...)
			res.Added = append(res.Added, current[op.J1:op.J2]...)
		case 'd':
			res.Removed = append(res.Removed, old[op.I1:op.I2]...)
		case 'i':
			res.Added = append(res.Added, current[op.J1:op.J2]...)
		}
	}

	return res
}

// Unified renders the identity projections of both sides as a unified diff
// with the given number of context lines. The result is empty when the
// projections are equal.
func Unified(old []snapshot.Row, current snapshot.Snapshot, context int) (string, error) {
	if context < 0 {
		context = 0
	}

	ud := difflib.UnifiedDiff{
		A:        asLines(snapshot.IdentityKeys(old)),
		B:        asLines(snapshot.IdentityKeys(current)),
		FromFile: "previous",
		ToFile:   "current",
		Context:  context,
	}

	return difflib.GetUnifiedDiffString(ud)
}

// matcher disables the popularity heuristic: repeated rows such as many
// hosts sharing one product line must still match.
func matcher(a, b []string) *difflib.SequenceMatcher {
	return difflib.NewMatcherWithJunk(a, b, false, nil)
}

func asLines(keys []string) []string {
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = strings.TrimRight(k, "\n") + "\n"
	}
	return lines
}
