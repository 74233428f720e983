package reconcile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/sales"
)

const (
	msgCreated        = "¡Venta registrada!"
	msgCreatedMany    = "¡Ventas registradas!"
	msgUpdated        = "¡Venta actualizada!"
	msgDeleted        = "¡Venta eliminada!"
	msgSaleNotFound   = "No encontré la venta que querés modificar. Seleccionala e intentá de nuevo."
	msgNothingChanged = "No encontré nada para cambiar en esa venta. ¿Qué dato querés modificar?"
	msgMatchApplied   = "Listo, unifiqué los datos."
	msgMatchDiscarded = "Perfecto, mantengo los datos como los escribiste."
	msgSuggestion     = "¡Gracias por la sugerencia!"
)

func rejectedMessage(err error) string {
	var verr *sales.ValidationError
	if errors.As(err, &verr) {
		switch verr.Kind {
		case sales.KindMissingField:
			return fmt.Sprintf("No pude registrar la venta: falta %s.", fieldLabel(verr.Field))
		case sales.KindInvalidNumber:
			return fmt.Sprintf("No pude registrar la venta: %s no es un número válido.", fieldLabel(verr.Field))
		}
	}
	return "No pude registrar la venta. ¿Me la contás de nuevo?"
}

func fieldLabel(f string) string {
	switch domain.Field(f) {
	case domain.FieldProduct:
		return "el producto"
	case domain.FieldAmount:
		return "la cantidad"
	case domain.FieldUnitPrice:
		return "el precio"
	case domain.FieldTotalPrice:
		return "el total"
	}
	return "un dato"
}

func matchPrompt(cands []assistant.EntityCandidate) string {
	var b strings.Builder
	b.WriteString("¿Querés unificar estos datos con los que ya tenés?\n")
	for _, c := range cands {
		fmt.Fprintf(&b, "%s: \"%s\" → \"%s\"\n", candidateLabel(c.Field), c.Original, c.Canonical)
	}
	b.WriteString("\nRespondé 'sí' para confirmar o 'no' para dejarlos como están.")
	return b.String()
}

func candidateLabel(f domain.Field) string {
	switch f {
	case domain.FieldProduct:
		return "Producto"
	case domain.FieldClient:
		return "Cliente"
	}
	return "Método de pago"
}

func describeSale(s domain.SaleRecord) string {
	return fmt.Sprintf("Tenés seleccionada la venta de %s %s a $%s (total $%s, %s, %s). ¿Qué querés cambiar?",
		num(s.Amount), s.DisplayProduct(), num(s.UnitPrice), num(s.TotalPrice), s.DisplayClient(), s.Date)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
