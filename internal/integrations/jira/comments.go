package jira

import (
	"fmt"
	"strings"

	"turnpp/internal/domain"
)

const (
	qualityAlert  = "These are the results of the quality checks:"
	zipFileAlert  = "The zip file has been created and the file counts are below:"
	emptyCellMark = " "
)

var measureLabels = map[string]string{
	domain.MeasureMaxValue:       "Max Value",
	domain.MeasureMinValue:       "Min Value",
	domain.MeasureMaxLength:      "Max Length",
	domain.MeasureMinLength:      "Min Length",
	domain.MeasureDistinctValues: "Distinct Values",
	domain.MeasureCount:          "Total Values",
}

// QualityComment renders every file's statistics as a wiki table, one file
// per tag in tag order.
func QualityComment(mention string, result domain.QualityResult) string {
	var b strings.Builder
	writeMention(&b, mention)
	b.WriteString(qualityAlert + "\n")
	for _, tag := range result.Tags() {
		rec := result[tag]
		fmt.Fprintf(&b, "\n*%s*\n", rec.FileName)
		b.WriteString("||Column Header||Quality Check||Result||\n")
		prev := ""
		for _, s := range rec.Stats {
			column := s.Column
			if column == prev {
				column = emptyCellMark
			}
			prev = s.Column
			label := measureLabel(s)
			fmt.Fprintf(&b, "|%s|%s|%s|\n", column, label, s.Value)
		}
	}
	return b.String()
}

// RowCountComment announces the archive and lists each file's row count.
func RowCountComment(mention, archiveName string, result domain.QualityResult) string {
	var b strings.Builder
	writeMention(&b, mention)
	b.WriteString(zipFileAlert + "\n\n")
	fmt.Fprintf(&b, "*%s*\n\n", archiveName)
	b.WriteString("||File Name||Row Count||\n")
	for _, tag := range result.Tags() {
		rec := result[tag]
		fmt.Fprintf(&b, "|%s|Q = %s|\n", rec.FileName, rec.Rows)
	}
	return b.String()
}

// measureLabel names a statistic for the comment table. Value ranges of
// date columns read as dates.
func measureLabel(s domain.Statistic) string {
	if strings.Contains(strings.ToLower(s.Column), "date") {
		switch s.Measure {
		case domain.MeasureMaxValue:
			return "Max Date"
		case domain.MeasureMinValue:
			return "Min Date"
		}
	}
	if label, ok := measureLabels[s.Measure]; ok {
		return label
	}
	return s.Measure
}

func writeMention(b *strings.Builder, mention string) {
	if mention = strings.TrimSpace(mention); mention != "" {
		fmt.Fprintf(b, "[~%s]\n", mention)
	}
}
