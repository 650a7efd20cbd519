package receipt

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const (
	margin = 48.0
	panelH = 104.0
	gap    = 16.0
)

// PDFRenderer draws an A4 receipt with core fonts only.
type PDFRenderer struct {
	Title    string
	Currency string
	Loc      *time.Location
}

func (r PDFRenderer) ContentType() string { return "application/pdf" }
func (r PDFRenderer) Extension() string   { return ".pdf" }

func (r PDFRenderer) money(d decimal.Decimal) string {
	return r.Currency + " " + d.StringFixed(2)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func (r PDFRenderer) Render(d Document) ([]byte, error) {
	loc := r.Loc
	if loc == nil {
		loc = time.Local
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCreationDate(d.IssuedAt)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*margin

	hr := func(y float64) {
		pdf.SetDrawColor(229, 231, 235)
		pdf.SetLineWidth(1)
		pdf.Line(margin, y, pageW-margin, y)
	}
	ink := func() { pdf.SetTextColor(17, 24, 39) }
	muted := func() { pdf.SetTextColor(107, 114, 128) }

	// header
	ink()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(margin, margin)
	pdf.CellFormat(contentW-220, 22, tr(r.Title), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	muted()
	pdf.SetXY(margin, margin+24)
	pdf.CellFormat(contentW-220, 14, "Official Receipt", "", 0, "L", false, 0, "")

	rightX := pageW - margin - 220
	pdf.SetXY(rightX, margin)
	ink()
	pdf.CellFormat(220, 14, tr("Receipt No: "+d.ReceiptNo), "", 2, "R", false, 0, "")
	muted()
	pdf.CellFormat(220, 14, "Date: "+d.IssuedAt.In(loc).Format("02/01/2006, 15:04:05"), "", 2, "R", false, 0, "")
	pdf.CellFormat(220, 14, tr("Order ID: "+d.OrderID), "", 2, "R", false, 0, "")

	hr(margin + 70)

	// panels
	panelTop := margin + 88
	panelW := (contentW - gap) / 2
	panel := func(x float64, title string, lines []string) {
		pdf.SetDrawColor(229, 231, 235)
		pdf.Rect(x, panelTop, panelW, panelH, "D")
		ink()
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetXY(x+12, panelTop+10)
		pdf.CellFormat(panelW-24, 14, title, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y := panelTop + 30
		for _, l := range lines {
			pdf.SetXY(x+12, y)
			pdf.CellFormat(panelW-24, 14, tr(l), "", 0, "L", false, 0, "")
			y += 16
		}
	}
	panel(margin, "Customer", []string{
		"Name: " + orDash(d.Customer.Name),
		"Phone: " + orDash(d.Customer.Phone),
		"Email: " + orDash(d.Customer.Email),
	})
	panel(margin+panelW+gap, "Payment", []string{
		"Promoter: " + orDash(d.Promoter),
		"Cashier: " + orDash(d.Cashier),
		"Payment Method: " + strings.ToUpper(orDash(d.Method)),
		"Remarks: " + orDash(d.Remarks),
	})

	// items
	y := panelTop + panelH + 18
	pdf.SetXY(margin, y)
	ink()
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 16, "Items", "", 1, "L", false, 0, "")

	colQty := contentW * 0.58
	colUnit := contentW * 0.70
	colTotal := contentW * 0.84
	row := func(item, qty, unit, total string) {
		y := pdf.GetY()
		pdf.SetX(margin)
		pdf.CellFormat(colQty-10, 14, tr(item), "", 0, "L", false, 0, "")
		pdf.SetXY(margin+colQty, y)
		pdf.CellFormat(40, 14, qty, "", 0, "R", false, 0, "")
		pdf.SetXY(margin+colUnit, y)
		pdf.CellFormat(70, 14, unit, "", 0, "R", false, 0, "")
		pdf.SetXY(margin+colTotal, y)
		pdf.CellFormat(contentW-colTotal, 14, total, "", 1, "R", false, 0, "")
	}

	muted()
	pdf.SetFont("Helvetica", "B", 10)
	row("Item", "Qty", "Unit", "Total")
	hr(pdf.GetY() + 2)
	pdf.Ln(6)

	ink()
	pdf.SetFont("Helvetica", "", 10)
	for _, l := range d.Lines {
		row(orDash(l.Name), strconv.Itoa(l.Qty), r.money(l.UnitPrice), r.money(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))))
		pdf.Ln(4)
	}
	hr(pdf.GetY() + 4)
	pdf.Ln(14)

	// totals
	totalX := margin + colTotal - 140
	if d.Override != nil {
		pdf.SetX(totalX)
		pdf.CellFormat(contentW-colTotal+140, 14, "Bundle/Override Total: "+r.money(*d.Override), "", 1, "R", false, 0, "")
		pdf.Ln(4)
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetX(totalX)
	pdf.CellFormat(contentW-colTotal+140, 16, "Grand Total: "+r.money(d.GrandTotal), "", 1, "R", false, 0, "")
	pdf.Ln(14)

	// footer
	hr(pdf.GetY())
	pdf.Ln(10)
	muted()
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetX(margin)
	pdf.CellFormat(contentW, 12, "Thank you for your purchase.", "", 1, "C", false, 0, "")
	pdf.SetX(margin)
	pdf.CellFormat(contentW, 12, "This receipt is system-generated.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
