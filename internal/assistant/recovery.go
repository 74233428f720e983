package assistant

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/perla/internal/sales"
)

var registeredPhrases = []string{"venta registrada", "venta confirmada", "ventas registradas"}

// saleInMessage finds "<qty> <product> a|por|en|de $<price>" in a confirmation.
var saleInMessage = regexp.MustCompile(`(?i)(\d+)\s*([a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]+?)\s*\b(a|por|en|de)\s*\$?(\d+(?:[.,]\d+)*)`)

func claimsRegisteredSale(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range registeredPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// recoverSale rebuilds a raw sale from a confirmation message. The result
// still goes through validation, which fills id, client, payment method
// and date.
func recoverSale(message string) (map[string]interface{}, bool) {
	m := saleInMessage.FindStringSubmatch(message)
	if m == nil {
		return nil, false
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil || amount <= 0 {
		return nil, false
	}
	price, err := sales.ParseNumber(m[4])
	if err != nil {
		return nil, false
	}
	product := strings.TrimSpace(m[2])
	if product == "" {
		return nil, false
	}
	return map[string]interface{}{
		"product":    product,
		"amount":     float64(amount),
		"price":      price,
		"totalPrice": float64(amount) * price,
	}, true
}
