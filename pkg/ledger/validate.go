package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MsgFillOneItem is returned by Validate when nothing was filled in.
const MsgFillOneItem = "Por favor, preencha a quantidade de pelo menos um item."

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// Bounds on accepted quantities. Decimals with huge exponents are cheap to
// parse but cost time and memory proportional to the exponent once rescaled.
const (
	maxIntegerDigits  = 15
	maxFractionDigits = 9
)

// ErrQuantityOutOfRange is returned for numbers too large or too precise to store.
var ErrQuantityOutOfRange = errors.New("quantity out of range")

// ParseQuantity parses a trimmed quantity and rejects values with more than
// maxIntegerDigits integer digits or maxFractionDigits decimal places. The
// bound is checked on the coefficient and exponent before any arithmetic.
func ParseQuantity(raw string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if q.IsZero() {
		return q, nil
	}
	exp := int64(q.Exponent())
	digits := int64(len(q.Coefficient().Text(10)))
	if q.Sign() < 0 {
		digits-- // minus sign
	}
	if exp < -maxFractionDigits || digits+exp > maxIntegerDigits {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrQuantityOutOfRange, strings.TrimSpace(raw))
	}
	return q, nil
}

// FormatQuantity renders q with Brazilian grouping and decimal separators ("4.500", "2,5").
func FormatQuantity(q decimal.Decimal) string {
	f, _ := q.Float64()
	return ptBR.Sprint(number.Decimal(f, number.MaxFractionDigits(3)))
}

// Validate checks raw input values against rules and returns one message per
// violated rule. Keys without a rule are ignored. An empty input yields exactly
// one message. The result is empty iff the input is valid.
func Validate(input map[string]string, rules []ItemRule) ValidationErrors {
	if len(input) == 0 {
		return ValidationErrors{MsgFillOneItem}
	}

	errs := ValidationErrors{}
	for _, rule := range rules {
		raw, ok := input[rule.ID]
		if !ok {
			continue
		}
		name := rule.DisplayName()

		q, err := ParseQuantity(raw)
		if errors.Is(err, ErrQuantityOutOfRange) {
			errs = append(errs, fmt.Sprintf("A quantidade para **%s** está fora do limite permitido.", name))
			continue
		}
		if err != nil || q.Sign() <= 0 {
			errs = append(errs, fmt.Sprintf("A quantidade para **%s** deve ser um número positivo.", name))
			continue
		}

		if rule.Multiple.Sign() > 0 && !q.Mod(rule.Multiple).IsZero() {
			errs = append(errs, fmt.Sprintf("A quantidade de **%s** precisa ser um múltiplo de %s.", name, FormatQuantity(rule.Multiple)))
		}
		if rule.Min.Valid && q.LessThan(rule.Min.Decimal) {
			errs = append(errs, fmt.Sprintf("A quantidade mínima para **%s** é %s.", name, FormatQuantity(rule.Min.Decimal)))
		}
		if rule.Max.Valid && q.GreaterThan(rule.Max.Decimal) {
			errs = append(errs, fmt.Sprintf("A quantidade máxima permitida para **%s** é %s.", name, FormatQuantity(rule.Max.Decimal)))
		}
	}

	return errs
}

// CleanFields normalizes submitted form fields: values are trimmed, the first
// comma becomes a decimal point, and blank, non-numeric or zero values are
// dropped. Negative values are kept; Validate rejects them where they are not
// allowed.
func CleanFields(fields map[string]string) map[string]string {
	cleaned := make(map[string]string, len(fields))
	for id, value := range fields {
		value = strings.Replace(strings.TrimSpace(value), ",", ".", 1)
		if value == "" {
			continue
		}
		q, err := decimal.NewFromString(value)
		if err != nil || q.IsZero() {
			continue
		}
		cleaned[id] = value
	}
	return cleaned
}

// ParseLineItems converts cleaned field values to line items. Out-of-range
// quantities are an error.
func ParseLineItems(values map[string]string) (LineItems, error) {
	items := make(LineItems, len(values))
	for id, value := range values {
		q, err := ParseQuantity(value)
		if err != nil {
			return nil, fmt.Errorf("A quantidade para **%s** é inválida: %w", id, err)
		}
		items[id] = q
	}
	return items, nil
}
