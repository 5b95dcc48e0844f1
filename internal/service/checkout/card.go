package checkout

import (
	"strings"
	"unicode"
)

// CardInfo holds the card fields as typed. Only the provider sees them; they
// are never persisted.
type CardInfo struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

func (c CardInfo) complete() bool {
	return strings.TrimSpace(c.Number) != "" &&
		strings.TrimSpace(c.Name) != "" &&
		strings.TrimSpace(c.Expiry) != "" &&
		strings.TrimSpace(c.CVV) != ""
}

// normalized applies the same formatting the card form applies on input.
func (c CardInfo) normalized() CardInfo {
	return CardInfo{
		Number: FormatCardNumber(c.Number),
		Name:   strings.TrimSpace(c.Name),
		Expiry: FormatExpiry(c.Expiry),
		CVV:    FormatCVV(c.CVV),
	}
}

// FormatCardNumber groups digits by four: "4111111111111111" becomes
// "4111 1111 1111 1111". The result is at most 19 characters.
func FormatCardNumber(v string) string {
	d := digits(v)
	var b strings.Builder
	for i, r := range d {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > 19 {
		out = out[:19]
	}
	return out
}

// FormatExpiry renders MM/YY once two digits are present.
func FormatExpiry(v string) string {
	d := digits(v)
	if len(d) < 2 {
		return d
	}
	end := len(d)
	if end > 4 {
		end = 4
	}
	return d[:2] + "/" + d[2:end]
}

func FormatCVV(v string) string {
	d := digits(v)
	if len(d) > 3 {
		d = d[:3]
	}
	return d
}

func digits(v string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return -1
		}
		return r
	}, v)
}
