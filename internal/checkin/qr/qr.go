package qr

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Generator renders the QR code printed on tickets. The code carries the
// hosted ticket URL, so any phone camera resolves it without the gate app.
type Generator struct {
	baseURL string
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *Generator) TicketURL(token string) string {
	return fmt.Sprintf("%s/api/tickets/%s", g.baseURL, token)
}

func (g *Generator) TicketPNG(token string) ([]byte, error) {
	return qrcode.Encode(g.TicketURL(token), qrcode.Medium, 256)
}
