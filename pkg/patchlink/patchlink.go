// Package patchlink builds display strings and external links for
// revisions, source annotations and crash reports.
package patchlink

import (
	"strconv"
	"strings"
)

const (
	DefaultRepositoryURL = "https://hg.mozilla.org/mozilla-central"
	DefaultCrashStatsURL = "https://crash-stats.mozilla.com"

	// ShortNodeLength is the number of hash characters shown as a link label
	ShortNodeLength = 13
)

// Builder holds the base URLs links are built against
type Builder struct {
	RepositoryURL string
	CrashStatsURL string
}

// New returns a Builder; empty bases fall back to the defaults
func New(repositoryURL, crashStatsURL string) *Builder {
	if repositoryURL == "" {
		repositoryURL = DefaultRepositoryURL
	}
	if crashStatsURL == "" {
		crashStatsURL = DefaultCrashStatsURL
	}
	return &Builder{
		RepositoryURL: strings.TrimRight(repositoryURL, "/"),
		CrashStatsURL: strings.TrimRight(crashStatsURL, "/"),
	}
}

// RevisionLink points at the repository's revision view for node
func (b *Builder) RevisionLink(node string) string {
	return b.RepositoryURL + "/rev?node=" + node
}

// AnnotateLink points at the line-level annotation of filename at revision node
func (b *Builder) AnnotateLink(node, filename string, line int) string {
	return b.RepositoryURL + "/annotate/" + node + "/" + filename + "#l" + strconv.Itoa(line)
}

// CrashReportLink points at the crash-report viewer for uuid
func (b *Builder) CrashReportLink(uuid string) string {
	return b.CrashStatsURL + "/report/index/" + uuid
}

// ShortNode returns the first 13 characters of a revision hash
func ShortNode(node string) string {
	if len(node) <= ShortNodeLength {
		return node
	}
	return node[:ShortNodeLength]
}
