package roster

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/registration/internal/sanitize"
)

// Header is the first line written to a new roster file.
const Header = "nome\temail\ttelefone\tcamisa\ttamanho\tdata"

var (
	lineBreak     = regexp.MustCompile(`\r?\n`)
	headerPattern = regexp.MustCompile(`(?i)^nome\t`)
)

// Entry is one line of the legacy roster file. Columns missing from a line
// are left empty.
type Entry struct {
	Name  string `json:"nome"`
	Email string `json:"email,omitempty"`
	Phone string `json:"telefone,omitempty"`
	Shirt string `json:"camisa,omitempty"`
	Size  string `json:"tamanho,omitempty"`
	Date  string `json:"data,omitempty"`
}

// RankingRow is one line of the ranking fallback file (nome, sexo, tempo).
type RankingRow struct {
	Name       string
	Sex        string
	FinishTime *int
}

// Parse reads roster text. Blank lines, an optional header line and rows
// without a name are dropped.
func Parse(text string) []Entry {
	var entries []Entry
	for _, cols := range rows(text) {
		e := Entry{Name: col(cols, 0)}
		if e.Name == "" {
			continue
		}
		e.Email = col(cols, 1)
		e.Phone = col(cols, 2)
		e.Shirt = col(cols, 3)
		e.Size = col(cols, 4)
		e.Date = col(cols, 5)
		entries = append(entries, e)
	}
	return entries
}

// ParseRanking reads the ranking fallback file. Sex is upper-cased and a
// time that is not a positive number of seconds becomes nil.
func ParseRanking(text string) []RankingRow {
	var out []RankingRow
	for _, cols := range rows(text) {
		r := RankingRow{Name: col(cols, 0)}
		if r.Name == "" {
			continue
		}
		r.Sex = strings.ToUpper(col(cols, 1))
		if v, err := strconv.Atoi(col(cols, 2)); err == nil && v > 0 {
			r.FinishTime = &v
		}
		out = append(out, r)
	}
	return out
}

// FormatLine renders e as a newline-terminated roster line. Markup and
// embedded tabs or line breaks are removed from every field.
func FormatLine(e Entry) string {
	fields := []string{e.Name, e.Email, e.Phone, e.Shirt, e.Size, e.Date}
	for i, f := range fields {
		fields[i] = sanitize.Field(f)
	}
	return strings.Join(fields, "\t") + "\n"
}

func rows(text string) [][]string {
	lines := lineBreak.Split(text, -1)
	out := make([][]string, 0, len(lines))
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if first {
			first = false
			if headerPattern.MatchString(line) {
				continue
			}
		}
		out = append(out, strings.Split(line, "\t"))
	}
	return out
}

func col(cols []string, i int) string {
	if i >= len(cols) {
		return ""
	}
	return strings.TrimSpace(cols[i])
}
