package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	moneyPattern = regexp.MustCompile(`\$[0-9][0-9,]*\.?[0-9]{0,2}`)
	intPattern   = regexp.MustCompile(`[0-9]+`)
)

// ParseMoney returns the first dollar amount in text.
func ParseMoney(text string) (float64, bool) {
	token := moneyPattern.FindString(text)
	if token == "" {
		return 0, false
	}
	clean := strings.NewReplacer("$", "", ",", "").Replace(token)
	value, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// FirstInt returns the first run of digits in text, or 0.
func FirstInt(text string) int {
	token := intPattern.FindString(text)
	if token == "" {
		return 0
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0
	}
	return n
}

// ParseShipping maps a shipping label to a cost. A "free" label and an
// unparsable label both yield 0.
func ParseShipping(text string) float64 {
	if strings.Contains(strings.ToLower(text), "free") {
		return 0
	}
	if v, ok := ParseMoney(text); ok {
		return v
	}
	return 0
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
