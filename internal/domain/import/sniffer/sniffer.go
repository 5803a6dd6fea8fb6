// Package sniffer detects the structure of uploaded bank statements: the
// delimiter, where the header row sits, a fingerprint for recognizing the
// same bank layout again, and the regional number/date dialect.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrNoHeaderRow  = errors.New("no header row found")
	ErrBadDelimiter = errors.New("no usable delimiter found")
)

// Statement header vocabulary across the banks we see most (PT, EN, ES).
var headerVocabulary = []string{
	"data mov", "descrição", "descricao", "débito", "debito", "crédito", "credito",
	"data valor", "saldo", "categoria", "montante",
	"date", "description", "amount", "debit", "credit", "balance", "category", "merchant",
	"fecha", "descripción", "descripcion", "importe", "cargo", "abono",
}

const maxHeaderSearchLines = 20

// Detection is everything learned about a statement's layout.
type Detection struct {
	Delimiter   rune
	HeaderRow   int // 0-based line index of the header
	Headers     []string
	Fingerprint string
	SampleRows  [][]string
	Dialect     Dialect
}

// Dialect captures regional formatting inferred from sample rows.
type Dialect struct {
	European   bool // comma decimals, dot thousands
	DayFirst   bool // DD/MM rather than MM/DD
	Currency   string
	Confidence float64
}

// Detect analyzes raw statement bytes.
func Detect(data []byte) (*Detection, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")
	delimiter, headerRow, err := locateHeader(lines)
	if err != nil {
		return nil, err
	}

	headers, err := splitLine(trimLine(lines[headerRow], headerRow == 0), delimiter)
	if err != nil {
		return nil, err
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	samples := sampleRows(data, delimiter, headerRow+1, 5)

	guess := GuessColumns(headers)
	amountIdx := guess.Amount
	if amountIdx < 0 {
		amountIdx = guess.Debit
	}

	return &Detection{
		Delimiter:   delimiter,
		HeaderRow:   headerRow,
		Headers:     headers,
		Fingerprint: Fingerprint(headers),
		SampleRows:  samples,
		Dialect:     probeDialect(samples, amountIdx, guess.Date),
	}, nil
}

// ColumnGuess maps statement columns to transaction fields. -1 means the
// column was not identified.
type ColumnGuess struct {
	Date     int
	Desc     int
	Amount   int
	Debit    int
	Credit   int
	Category int
}

// Complete reports whether the guess is enough to import without help:
// a date, a description and either a single amount or both debit and credit.
func (g ColumnGuess) Complete() bool {
	if g.Date < 0 || g.Desc < 0 {
		return false
	}
	return g.Amount >= 0 || (g.Debit >= 0 && g.Credit >= 0)
}

// GuessColumns matches headers against the vocabulary.
func GuessColumns(headers []string) ColumnGuess {
	g := ColumnGuess{Date: -1, Desc: -1, Amount: -1, Debit: -1, Credit: -1, Category: -1}

	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		switch {
		case g.Date < 0 && (strings.Contains(h, "data mov") || strings.Contains(h, "date") ||
			strings.Contains(h, "fecha") || h == "data" || h == "datum"):
			g.Date = i
		case g.Desc < 0 && (strings.Contains(h, "descri") || strings.Contains(h, "merchant") ||
			h == "payee" || h == "details" || h == "memo" || h == "nome" || h == "name"):
			g.Desc = i
		case g.Debit < 0 && (strings.Contains(h, "débito") || strings.Contains(h, "debito") ||
			strings.Contains(h, "debit") || strings.Contains(h, "cargo")):
			g.Debit = i
		case g.Credit < 0 && (strings.Contains(h, "crédito") || strings.Contains(h, "credito") ||
			strings.Contains(h, "credit") || strings.Contains(h, "abono")):
			g.Credit = i
		case g.Amount < 0 && (h == "amount" || h == "valor" || h == "importe" ||
			h == "montante" || h == "value" || h == "montant"):
			g.Amount = i
		case g.Category < 0 && (strings.Contains(h, "categ") || h == "tipo" || h == "type"):
			g.Category = i
		}
	}
	return g
}

// Fingerprint hashes the normalized header names so the same bank export is
// recognized across uploads.
func Fingerprint(headers []string) string {
	var parts []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			parts = append(parts, clean)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// locateHeader scans the first lines for the row that looks most like a
// statement header. Bank exports often carry metadata lines first.
func locateHeader(lines []string) (rune, int, error) {
	bestScore := 0
	bestRow := -1
	bestDelim := rune(0)

	fallbackCols := 0
	fallbackRow := -1
	fallbackDelim := rune(0)

	for i, line := range lines {
		if i >= maxHeaderSearchLines {
			break
		}
		line = trimLine(line, i == 0)
		if line == "" {
			continue
		}

		delim, cols := detectDelimiter(line)
		if cols < 1 {
			continue
		}

		lower := strings.ToLower(line)
		matches := 0
		for _, kw := range headerVocabulary {
			if strings.Contains(lower, kw) {
				matches++
			}
		}

		if matches > 0 {
			score := cols*10 + matches
			if score > bestScore {
				bestScore = score
				bestRow = i
				bestDelim = delim
			}
		} else if cols > fallbackCols {
			fallbackCols = cols
			fallbackRow = i
			fallbackDelim = delim
		}
	}

	if bestRow >= 0 {
		return bestDelim, bestRow, nil
	}
	if fallbackCols >= 2 {
		return fallbackDelim, fallbackRow, nil
	}
	return 0, 0, ErrNoHeaderRow
}

func detectDelimiter(line string) (rune, int) {
	best := rune(0)
	bestCount := 0
	for _, d := range []rune{';', '\t', ',', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			bestCount = n
			best = d
		}
	}
	return best, bestCount
}

func trimLine(line string, first bool) string {
	line = strings.TrimRight(line, "\r")
	if first {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

func splitLine(line string, delimiter rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delimiter
	r.LazyQuotes = true
	return r.Read()
}

func sampleRows(data []byte, delimiter rune, startLine, maxRows int) [][]string {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if line >= startLine {
			rows = append(rows, record)
			if len(rows) >= maxRows {
				break
			}
		}
		line++
	}
	return rows
}

// probeDialect inspects sample rows: comma decimals and day-first dates mean
// a European export.
func probeDialect(rows [][]string, amountIdx, dateIdx int) Dialect {
	d := Dialect{Confidence: 0.5}
	euHints, usHints := 0, 0
	dayFirst := false

	for _, row := range rows {
		if amountIdx >= 0 && amountIdx < len(row) && row[amountIdx] != "" {
			switch amountHint(row[amountIdx]) {
			case 1:
				euHints++
			case -1:
				usHints++
			}
		}
		if dateIdx >= 0 && dateIdx < len(row) && firstDatePartOver12(row[dateIdx]) {
			dayFirst = true
		}
		for _, cell := range row {
			switch {
			case strings.Contains(cell, "€") || strings.Contains(cell, "EUR"):
				d.Currency = "EUR"
				euHints++
			case strings.Contains(cell, "£") || strings.Contains(cell, "GBP"):
				d.Currency = "GBP"
			case strings.Contains(cell, "$") || strings.Contains(cell, "USD"):
				if d.Currency == "" {
					d.Currency = "USD"
				}
				usHints++
			}
		}
	}

	d.European = euHints > usHints
	d.DayFirst = dayFirst || d.European
	if total := euHints + usHints; total > 0 {
		winning := euHints
		if usHints > euHints {
			winning = usHints
		}
		d.Confidence = float64(winning) / float64(total)
	}
	return d
}

// amountHint returns 1 for European formatting, -1 for US, 0 when ambiguous.
func amountHint(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1
		}
		return -1
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 <= 2 {
			return 1
		}
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 <= 2 {
			return -1
		}
	}
	return 0
}

func firstDatePartOver12(val string) bool {
	parts := strings.FieldsFunc(val, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) < 2 {
		return false
	}
	n := 0
	for _, c := range strings.TrimSpace(parts[0]) {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n > 12 && n <= 31
}
