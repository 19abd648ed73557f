package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailValueRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	cardValueRe  = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	phoneValueRe = regexp.MustCompile(`\+?\d[\d\s()\-]{7,}\d`)
)

// DataMasker masks contact and payment details in free text before it is stored
type DataMasker struct{}

func NewDataMasker() *DataMasker {
	return &DataMasker{}
}

// MaskText replaces emails, card numbers and phone numbers found in s
func (m *DataMasker) MaskText(s string) string {
	s = emailValueRe.ReplaceAllStringFunc(s, maskEmail)
	s = cardValueRe.ReplaceAllStringFunc(s, maskCreditCard)
	return phoneValueRe.ReplaceAllStringFunc(s, maskPhone)
}

// maskEmail: "john.doe@example.com" → "jo***@***.com"
func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}
	local := parts[0]
	domain := parts[1]

	visible := 2
	if len(local) < visible {
		visible = len(local)
	}
	maskedLocal := local[:visible] + "***"

	domainParts := strings.Split(domain, ".")
	ext := domainParts[len(domainParts)-1]
	return fmt.Sprintf("%s@***.%s", maskedLocal, ext)
}

// maskPhone: any phone → "***-***-1234" (show last 4)
func maskPhone(phone string) string {
	digits := digitsOf(phone)
	if len(digits) < 4 {
		return "***-***-****"
	}
	return fmt.Sprintf("***-***-%s", digits[len(digits)-4:])
}

// maskCreditCard: "4111111111111111" → "****-****-****-1111"
func maskCreditCard(cc string) string {
	digits := digitsOf(cc)
	if len(digits) < 4 {
		return "****-****-****-****"
	}
	return fmt.Sprintf("****-****-****-%s", digits[len(digits)-4:])
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
