package arena

import (
	"fmt"
	"strings"
)

// Policy chooses which free block satisfies a FreeList request.
type Policy int

const (
	// PolicyFirstFit stops at the lowest-addressed block that fits (FIND_FIRST).
	PolicyFirstFit Policy = iota
	// PolicyBestFit scans every block and takes the one leaving the least
	// space over; ties go to the lowest address (FIND_BEST).
	PolicyBestFit
)

func (p Policy) String() string {
	switch p {
	case PolicyFirstFit:
		return "first-fit"
	case PolicyBestFit:
		return "best-fit"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts "first-fit"/"FIND_FIRST" and "best-fit"/"FIND_BEST".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first-fit", "first", "find_first":
		return PolicyFirstFit, nil
	case "best-fit", "best", "find_best":
		return PolicyBestFit, nil
	default:
		return 0, fmt.Errorf("arena: unknown placement policy %q", s)
	}
}
