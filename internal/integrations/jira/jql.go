package jira

import (
	"strings"

	"turnpp/internal/domain"
)

// BuildJQL renders q as JQL. Empty criteria are left out; results are
// ordered by key so runs walk tickets in a stable order.
func BuildJQL(q domain.TicketQuery) string {
	var clauses []string
	if len(q.Projects) > 0 {
		clauses = append(clauses, "project IN ("+quoteList(q.Projects)+")")
	}
	if q.ParentKey != "" {
		clauses = append(clauses, "parent IN ("+quote(q.ParentKey)+")")
	}
	if q.IssueType != "" {
		clauses = append(clauses, "issuetype = "+quote(q.IssueType))
	}
	if len(q.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+quoteList(q.Statuses)+")")
	}
	if q.Text != "" {
		clauses = append(clauses, "summary ~ "+quote(q.Text))
	}
	for _, l := range q.Labels {
		clauses = append(clauses, "labels = "+quote(l))
	}
	if len(q.ExcludeLabels) > 0 {
		clauses = append(clauses, "(labels IS EMPTY OR labels NOT IN ("+quoteList(q.ExcludeLabels)+"))")
	}
	return strings.Join(clauses, " AND ") + " ORDER BY key ASC"
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func quoteList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, it := range items {
		quoted = append(quoted, quote(it))
	}
	return strings.Join(quoted, ", ")
}
