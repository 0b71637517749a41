package packaging

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const packingListStyle = `body{font-family:Arial,sans-serif;padding:20px;max-width:800px;margin:0 auto}
.header{text-align:center;margin-bottom:30px}
.details{margin-bottom:30px}
.details div{margin-bottom:10px}
table{width:100%;border-collapse:collapse;margin-bottom:30px}
th,td{border:1px solid #ddd;padding:8px;text-align:left}
th{background-color:#f8f9fa}
.summary{margin-top:30px;text-align:right}
@media print{body{margin:0;padding:20px}}`

// PackingListDocument renders pl as a standalone page that opens the print
// dialog once loaded.
func PackingListDocument(pl PackingList) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		esc := templ.EscapeString[string]

		b.WriteString(`<!doctype html><html><head><meta charset="utf-8"><title>Packing List</title><style>`)
		b.WriteString(packingListStyle)
		b.WriteString(`</style></head><body>`)

		b.WriteString(`<div class="header"><h1>Packing List</h1>`)
		fmt.Fprintf(&b, `<p>Date: %s</p>`, esc(pl.Date.Format("02/01/2006")))
		if pl.Recorded {
			fmt.Fprintf(&b, `<p>Shipment #%d</p>`, pl.ShipmentID)
		}
		b.WriteString(`</div>`)

		b.WriteString(`<div class="details">`)
		fmt.Fprintf(&b, `<div><strong>Customer:</strong> %s</div>`, esc(pl.CustomerName))
		fmt.Fprintf(&b, `<div><strong>Destination:</strong> %s</div>`, esc(pl.Destination))
		fmt.Fprintf(&b, `<div><strong>Transport:</strong> %s</div>`, esc(string(pl.TransportMode)))
		fmt.Fprintf(&b, `<div><strong>Vehicle Number:</strong> %s</div>`, esc(pl.VehicleNumber))
		if pl.Notes != "" {
			fmt.Fprintf(&b, `<div><strong>Notes:</strong> %s</div>`, esc(pl.Notes))
		}
		b.WriteString(`</div>`)

		b.WriteString(`<table><thead><tr><th>Box Number</th><th>Product Type</th><th>Grade</th><th>Lot Number</th><th>Weight (kg)</th></tr></thead><tbody>`)
		for _, p := range pl.Items {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%.2f</td></tr>`,
				esc(p.BoxNumber), esc(productLabel(p.Type)), esc(p.Grade), esc(p.LotNumber), p.Weight)
		}
		b.WriteString(`</tbody></table>`)

		b.WriteString(`<div class="summary">`)
		for _, t := range pl.Totals {
			fmt.Fprintf(&b, `<p>%s: %d boxes, %.2f kg</p>`, esc(productLabel(t.Type)), t.Boxes, t.Weight)
		}
		fmt.Fprintf(&b, `<p><strong>Total Boxes:</strong> %d</p>`, pl.BoxCount)
		fmt.Fprintf(&b, `<p><strong>Total Weight:</strong> %.2f kg</p>`, pl.TotalWeight)
		b.WriteString(`</div>`)

		b.WriteString(`<script>window.onload = () => window.print();</script></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
