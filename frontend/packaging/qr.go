package packaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"

	"clamflow/models"
)

const qrDateLayout = "2006-01-02"

// QRPayload is the JSON encoded into each box's QR code.
type QRPayload struct {
	LotNumber   string             `json:"lotNumber"`
	BoxNumber   string             `json:"boxNumber"`
	Type        models.ProductType `json:"type"`
	Weight      float64            `json:"weight"`
	Grade       string             `json:"grade"`
	PackingDate string             `json:"packingDate"`
}

func BuildQRPayload(p models.Package) (string, error) {
	b, err := json.Marshal(QRPayload{
		LotNumber:   p.LotNumber,
		BoxNumber:   p.BoxNumber,
		Type:        p.Type,
		Weight:      p.Weight,
		Grade:       p.Grade,
		PackingDate: p.PackedAt.Format(qrDateLayout),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseQRPayload reads back a scanned payload.
func ParseQRPayload(s string) (QRPayload, error) {
	var p QRPayload
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return QRPayload{}, fmt.Errorf("decode qr payload: %w", err)
	}
	if p.LotNumber == "" || p.BoxNumber == "" {
		return QRPayload{}, fmt.Errorf("qr payload is missing lot or box number")
	}
	return p, nil
}

// PackedOn parses the payload's packing date.
func (p QRPayload) PackedOn() (time.Time, error) {
	return time.Parse(qrDateLayout, p.PackingDate)
}

func renderQRPNG(payload string, size int) ([]byte, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return scaledPNG(code, size, size)
}

func scaledPNG(code barcode.Barcode, width, height int) ([]byte, error) {
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := png.Encode(&out, toNRGBA(scaled)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}
