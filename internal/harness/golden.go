package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as stable text for golden comparison. Run ids,
// digests and absolute paths are left out so the snapshot only changes
// when compiler output does.
func Snapshot(res *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "case: %s\n", res.Case)
	fmt.Fprintf(&b, "status: %s\n", res.Status)

	b.WriteString("units:\n")
	for _, u := range res.Units {
		fmt.Fprintf(&b, "  %s %s", u.Outcome, u.ID)
		if u.Module != "" {
			fmt.Fprintf(&b, " (%s)", u.Module)
		}
		b.WriteByte('\n')
	}

	b.WriteString("artifacts:\n")
	for _, a := range res.Artifacts {
		fmt.Fprintf(&b, "  %s\n", a)
	}

	b.WriteString("diagnostics:\n")
	for _, d := range res.Diagnostics {
		fmt.Fprintf(&b, "  %s\n", d)
	}

	for _, a := range res.Artifacts {
		dump, ok := res.Modules[a]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "--- %s\n%s", a, dump)
	}
	return []byte(b.String())
}

// AssertGolden compares the result's snapshot against
// testdata/golden/{res.Case}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, res *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, res.Case, Snapshot(res))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
