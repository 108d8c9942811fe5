package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Ticket is a read-only view of an issue returned by the ticket source.
type Ticket struct {
	Key      string
	Summary  string
	Status   string
	Reporter string
	Labels   []string
	Fields   map[string]string
}

func (t Ticket) Field(name string) string {
	if t.Fields == nil {
		return ""
	}
	return strings.TrimSpace(t.Fields[name])
}

func (t Ticket) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// TicketQuery is the composable filter accepted by a ticket source search.
// Empty fields are left out of the query.
type TicketQuery struct {
	Projects      []string
	IssueType     string
	Statuses      []string
	Text          string
	ParentKey     string
	Labels        []string
	ExcludeLabels []string
}

type ParentContext struct {
	Ticket       Ticket
	CustomerName string
}

type ChildContext struct {
	Parent          ParentContext
	Ticket          Ticket
	StartDate       time.Time
	EndDate         time.Time
	Dir             string
	ArchiveBaseName string
}

// ArchivePath is where the validated pair is packaged for this child.
func (c ChildContext) ArchivePath() string {
	return c.Dir + c.ArchiveBaseName + ".zip"
}

// TypedFile is one delimited file together with the type tag derived from
// its name.
type TypedFile struct {
	Tag  string
	Path string
}

func (f TypedFile) Name() string {
	return filepath.Base(f.Path)
}
