package usecase

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"typing-premium-payments/internal/domain"
)

// StatementRow is one raw bank-statement line keyed by normalized header.
type StatementRow struct {
	Line   int
	Fields map[string]string
}

// NewStatementRow normalizes header keys so lookups by alias work.
func NewStatementRow(line int, fields map[string]string) StatementRow {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[normalizeHeader(k)] = strings.TrimSpace(v)
	}
	return StatementRow{Line: line, Fields: out}
}

// Header aliases seen across Indian bank exports, in normalizeHeader form.
var (
	amountAliases = aliases(
		"amount", "credit", "credit amount", "credit amt", "deposit", "deposits", "deposit amount",
		"deposit amt", "txn amount", "transaction amount", "cr amount",
	)
	debitAliases = aliases(
		"debit", "debit amount", "debit amt", "withdrawal", "withdrawals", "withdrawal amount",
		"withdrawal amt", "dr amount",
	)
	refAliases = aliases(
		"reference", "ref", "ref no", "reference no", "reference number", "utr", "utr no",
		"utr number", "rrn", "transaction id", "txn id", "transaction reference", "chq/ref no",
		"chq./ref.no.", "cheque/ref no", "ref no./cheque no.", "cheque no/ref no",
	)
	dateAliases = aliases("date", "txn date", "transaction date", "value date", "posting date")
	descAliases = aliases("description", "narration", "particulars", "remarks", "details", "transaction remarks")
	typeAliases = aliases("type", "cr/dr", "dr/cr", "transaction type", "txn type")
)

// Values a Cr/Dr column uses for each direction.
var (
	creditMarks = map[string]bool{"C": true, "CR": true, "CREDIT": true, "DEP": true, "DEPOSIT": true}
	debitMarks  = map[string]bool{
		"D": true, "DR": true, "DB": true, "DEBIT": true, "W": true, "WD": true, "WDL": true, "WITHDRAWAL": true,
	}
)

func aliases(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, normalizeHeader(n))
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02 Jan 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"Jan 2, 2006",
	time.RFC3339,
}

// normalizeHeader lower-cases h, drops parenthesized suffixes such as
// "(INR)" and turns punctuation into spaces, so "Chq./Ref.No." and
// "chq ref no" compare equal.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimPrefix(h, "\ufeff"))
	var b strings.Builder
	depth := 0
	for _, r := range h {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth > 0:
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ParseStatementCSV reads a bank export with a header line. Structural
// problems (unreadable CSV, no header, no amount or reference column) fail
// the whole statement; row-level problems are left to the import.
func ParseStatementCSV(r io.Reader) ([]StatementRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.MalformedStatementError{Reason: "empty file"}
	}
	if err != nil {
		return nil, &domain.MalformedStatementError{Reason: err.Error()}
	}
	for i := range header {
		header[i] = normalizeHeader(header[i])
	}
	if err := CheckStatementColumns(header); err != nil {
		return nil, err
	}

	var rows []StatementRow
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &domain.MalformedStatementError{Reason: err.Error()}
		}
		if blank(rec) {
			continue
		}
		fields := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) && h != "" {
				fields[h] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, StatementRow{Line: line, Fields: fields})
	}
	return rows, nil
}

// CheckStatementColumns requires at least one amount and one reference column.
func CheckStatementColumns(headers []string) error {
	has := make(map[string]bool, len(headers))
	for _, h := range headers {
		has[normalizeHeader(h)] = true
	}
	if !anyOf(has, amountAliases) {
		return &domain.MalformedStatementError{Reason: "no amount column"}
	}
	if !anyOf(has, refAliases) {
		return &domain.MalformedStatementError{Reason: "no reference column"}
	}
	return nil
}

func anyOf(has map[string]bool, aliases []string) bool {
	for _, a := range aliases {
		if has[a] {
			return true
		}
	}
	return false
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// creditLine is a statement row reduced to what matching needs.
type creditLine struct {
	amount      decimal.Decimal
	ref         string
	date        *time.Time
	description string
	raw         string
}

// errNotCredit marks rows that are skipped rather than reported.
var errNotCredit = errors.New("not a credit row")

func (r StatementRow) first(aliases []string) string {
	for _, a := range aliases {
		if v := r.Fields[a]; v != "" {
			return v
		}
	}
	return ""
}

// extract reads a credit line from r. It returns errNotCredit for debits and
// rows without a positive amount.
func (r StatementRow) extract() (creditLine, error) {
	if t := r.first(typeAliases); t != "" {
		mark := strings.ToUpper(strings.Trim(t, ". "))
		switch {
		case debitMarks[mark]:
			return creditLine{}, errNotCredit
		case !creditMarks[mark]:
			return creditLine{}, fmt.Errorf("unrecognized transaction type %q", t)
		}
	}
	if w := r.first(debitAliases); w != "" {
		if d, err := parseAmount(w); err == nil && !d.IsZero() {
			return creditLine{}, errNotCredit
		}
	}
	rawAmount := r.first(amountAliases)
	if rawAmount == "" {
		return creditLine{}, errNotCredit
	}
	amount, err := parseAmount(rawAmount)
	if errors.Is(err, errAmountPrecision) {
		return creditLine{}, err
	}
	if err != nil || !amount.IsPositive() {
		return creditLine{}, errNotCredit
	}

	ref := NormalizeBankRef(r.first(refAliases))
	if ref == "" {
		return creditLine{}, errors.New("missing transaction reference")
	}

	raw, _ := json.Marshal(r.Fields)
	return creditLine{
		amount:      amount,
		ref:         ref,
		date:        parseDate(r.first(dateAliases)),
		description: r.first(descAliases),
		raw:         string(raw),
	}, nil
}

var currencyMarks = []string{"₹", "INR", "Rs.", "Rs", ",", " "}

// errAmountPrecision marks amounts finer than one paisa.
var errAmountPrecision = errors.New("amount has more than 2 decimal places")

// parseAmount accepts "1,069.01", "₹69.01", "69.01 CR", "(69.01)" and
// "69.01 DR"; debits come back negative.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "DR"):
		neg = true
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "CR"):
		s = s[:len(s)-2]
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	for _, m := range currencyMarks {
		s = strings.ReplaceAll(s, m, "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Zero, fmt.Errorf("%w: %q", errAmountPrecision, s)
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2), nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
