package catalog

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
)

// minCellWidth keeps the delimiter row valid markdown for short headers.
const minCellWidth = 3

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

// renderRows drains rows into an aligned markdown table with the column
// names as header.
func renderRows(rows *sqlx.Rows) (string, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}

	table := [][]string{columns}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return "", err
		}

		row := make([]string, len(values))
		for i, value := range values {
			row[i] = formatCell(value)
		}
		table = append(table, row)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return markdownTable(table), nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return cellEscaper.Replace(string(v))
	case time.Time:
		return v.Format(time.RFC3339)
	case string:
		return cellEscaper.Replace(v)
	}
	return cellEscaper.Replace(fmt.Sprint(value))
}

func markdownTable(table [][]string) string {
	if len(table) == 0 {
		return ""
	}

	widths := make([]int, len(table[0]))
	for _, row := range table {
		for i, cell := range row {
			widths[i] = max(widths[i], minCellWidth, utf8.RuneCountInString(cell))
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i, width := range widths {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(" ")
			sb.WriteString(cell)
			sb.WriteString(strings.Repeat(" ", width-utf8.RuneCountInString(cell)))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(table[0])
	delimiter := make([]string, len(widths))
	for i, width := range widths {
		delimiter[i] = strings.Repeat("-", width)
	}
	writeRow(delimiter)

	for _, row := range table[1:] {
		writeRow(row)
	}
	return sb.String()
}

func renderCreateTable(statement string) string {
	return "```sql\n" + strings.TrimSpace(statement) + "\n```\n"
}
