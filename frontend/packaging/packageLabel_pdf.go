package packaging

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"

	"clamflow/models"
)

func productLabel(t models.ProductType) string {
	switch t {
	case models.ShellOn:
		return "Shell-on Clams"
	case models.Meat:
		return "Clam Meat"
	default:
		return string(t)
	}
}

// renderBoxLabelsPDF draws one 100x150 mm label per package with its QR
// payload and a code128 barcode of the box number.
func renderBoxLabelsPDF(packages []models.Package) ([]byte, error) {
	if len(packages) == 0 {
		return nil, fmt.Errorf("no labels to render")
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 100, Ht: 150},
	})
	pdf.SetTitle("Box Labels", false)
	pdf.SetAutoPageBreak(false, 0)
	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}

	for i, p := range packages {
		payload := p.QRPayload
		if strings.TrimSpace(payload) == "" {
			var err error
			if payload, err = BuildQRPayload(p); err != nil {
				return nil, err
			}
		}
		qrPNG, err := renderQRPNG(payload, 600)
		if err != nil {
			return nil, err
		}
		code, err := code128.Encode(p.BoxNumber)
		if err != nil {
			return nil, fmt.Errorf("encode box barcode: %w", err)
		}
		barPNG, err := scaledPNG(code, 900, 200)
		if err != nil {
			return nil, err
		}

		pdf.AddPage()
		pageW, pageH := pdf.GetPageSize()
		margin := 5.0
		pdf.SetLineWidth(0.4)
		pdf.Rect(margin, margin, pageW-2*margin, pageH-2*margin, "")

		pdf.SetFont("Helvetica", "B", 18)
		pdf.SetXY(margin, margin+3)
		pdf.CellFormat(pageW-2*margin, 9, productLabel(p.Type), "", 1, "C", false, 0, "")

		pdf.SetFont("Helvetica", "", 11)
		pdf.SetX(margin)
		pdf.CellFormat(pageW-2*margin, 6, "Lot: "+p.LotNumber, "", 1, "C", false, 0, "")
		pdf.SetX(margin)
		pdf.CellFormat(pageW-2*margin, 6, fmt.Sprintf("Grade: %s    Weight: %.2f kg", p.Grade, p.Weight), "", 1, "C", false, 0, "")
		pdf.SetX(margin)
		pdf.CellFormat(pageW-2*margin, 6, "Packed: "+p.PackedAt.Format("02/01/2006"), "", 1, "C", false, 0, "")

		qrName := fmt.Sprintf("box-qr-%d", i)
		pdf.RegisterImageOptionsReader(qrName, opt, bytes.NewReader(qrPNG))
		qrSize := 62.0
		pdf.ImageOptions(qrName, (pageW-qrSize)/2, 40, qrSize, qrSize, false, opt, 0, "")

		barName := fmt.Sprintf("box-barcode-%d", i)
		pdf.RegisterImageOptionsReader(barName, opt, bytes.NewReader(barPNG))
		barW, barH := 80.0, 18.0
		pdf.ImageOptions(barName, (pageW-barW)/2, pageH-margin-32, barW, barH, false, opt, 0, "")

		pdf.SetFont("Helvetica", "B", 16)
		pdf.SetXY(margin, pageH-margin-12)
		pdf.CellFormat(pageW-2*margin, 8, p.BoxNumber, "", 0, "C", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
