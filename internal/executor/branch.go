package executor

import (
	"fmt"
	"strings"
	"time"
)

const (
	branchPrefix  = "gitpilot-"
	branchSlugMax = 40
)

// BranchName derives a feature branch name from the goal: lower-cased, runs
// of non-alphanumeric characters collapsed to "-", truncated to 40 chars,
// with a 6-digit time-based suffix. The same goal within the same second
// yields the same name, so a re-run reuses the existing branch.
func BranchName(goal string, now time.Time) string {
	slug := sanitizeSlug(goal)
	if len(slug) > branchSlugMax {
		slug = strings.Trim(slug[:branchSlugMax], "-")
	}

	suffix := fmt.Sprintf("%06d", now.Unix()%1000000)
	if slug == "" {
		return branchPrefix + suffix
	}
	return branchPrefix + slug + "-" + suffix
}

func sanitizeSlug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
