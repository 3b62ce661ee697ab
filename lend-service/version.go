package lend_service

import "strings"

// BuildInfo identifies a binary. The fields are set with -ldflags at build time.
type BuildInfo struct {
	Version   string
	GitCommit string
	GitDate   string
}

// String joins the version, the short commit and the commit date, leaving out what is unset.
func (b BuildInfo) String() string {
	parts := []string{b.Version}
	if commit := b.GitCommit; commit != "" {
		if len(commit) > 8 {
			commit = commit[:8]
		}
		parts = append(parts, commit)
	}
	if b.GitDate != "" {
		parts = append(parts, b.GitDate)
	}
	return strings.Join(parts, "-")
}
