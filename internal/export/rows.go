// Package export writes client tables to xlsx workbooks and Google Sheets.
package export

import (
	"time"

	"restocrm/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

var clientHeaders = []interface{}{
	"Contacto", "Nombre", "Email", "Nombre WhatsApp", "Etiquetas", "Clasificación",
	"Fuente", "Interacciones", "Fee", "Creado", "Actualizado",
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(timeLayout)
}

// clientRows returns the header row followed by one row per client.
func clientRows(clients []models.Client) [][]interface{} {
	rows := make([][]interface{}, 0, len(clients)+1)
	rows = append(rows, clientHeaders)
	for i := range clients {
		c := &clients[i]
		rows = append(rows, []interface{}{
			c.ContactID,
			c.Name,
			c.Email,
			c.WhatsAppName,
			c.Labels,
			c.Classification(),
			c.Source,
			c.Interactions.Total(),
			c.Fee,
			formatMillis(c.CreatedAt),
			formatMillis(c.UpdatedAt),
		})
	}
	return rows
}
