package receipt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/kyanz/pos-reservations/internal/blob"
	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/shopspring/decimal"
)

var issued = time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)

func sampleOrder() orders.Order {
	override := decimal.RequireFromString("99")
	return orders.Order{
		ID:        "ord-1",
		Customer:  orders.Customer{Name: "Aina", Phone: "60111234567", Email: "aina@example.com"},
		Remarks:   "gift wrap",
		CreatedBy: "pat",
		Status:    orders.StatusReserved,
		Lines: []orders.Line{
			{ProductID: "p1", Name: "Widget", Qty: 3, UnitPrice: decimal.RequireFromString("50"), LineTotal: decimal.RequireFromString("150")},
		},
		OverrideTotal: &override,
		FinalTotal:    override,
	}
}

func TestRandomFormat(t *testing.T) {
	kl, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	n := Random{Prefix: "KYZ", Loc: kl}
	re := regexp.MustCompile(`^KYZ-20260315-\d{4}$`)
	for i := 0; i < 50; i++ {
		no, err := n.Next(context.Background(), issued)
		if err != nil {
			t.Fatal(err)
		}
		// 23:30 UTC is already the next day in Kuala Lumpur
		if !re.MatchString(no) {
			t.Fatalf("receipt no %q does not match %s", no, re)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := format("KYZ", "20260314", 7); got != "KYZ-20260314-0007" {
		t.Errorf("format = %q", got)
	}
}

func TestFromOrderCopies(t *testing.T) {
	o := sampleOrder()
	d := FromOrder(o, "cass", "cash", "KYZ-20260314-0001", issued)

	if d.Promoter != "pat" || d.Cashier != "cass" || d.Remarks != "gift wrap" || !d.GrandTotal.Equal(decimal.NewFromInt(99)) {
		t.Errorf("document = %+v", d)
	}
	// changing the document must not reach the order
	d.Lines[0].Qty = 100
	*d.Override = decimal.Zero
	if o.Lines[0].Qty != 3 || !o.OverrideTotal.Equal(decimal.NewFromInt(99)) {
		t.Errorf("order mutated through document")
	}
}

func TestPDFRendererIsPure(t *testing.T) {
	r := PDFRenderer{Title: "KYANZ Exhibition Receipt", Currency: "RM", Loc: time.UTC}
	d := FromOrder(sampleOrder(), "cass", "credit card", "KYZ-20260314-0001", issued)

	a, err := r.Render(d)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(a, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", a[:8])
	}
	// font and resource objects come from maps inside fpdf; repeat enough
	// renders that an unsorted catalog would show up
	for i := 0; i < 20; i++ {
		b, err := r.Render(d)
		if err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("render %d: same document rendered to different bytes", i)
		}
	}

	d.Override = nil
	d.GrandTotal = decimal.NewFromInt(150)
	c, err := r.Render(d)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, c) {
		t.Errorf("override line did not change the output")
	}
}

func TestIssuer(t *testing.T) {
	mem := blob.NewMemory()
	is := &Issuer{Renderer: PDFRenderer{Title: "T", Currency: "RM"}, Blobs: blob.Ready(mem)}
	d := FromOrder(sampleOrder(), "cass", "cash", "KYZ-20260314-0042", issued)

	ref, err := is.Issue(context.Background(), d)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	obj, err := mem.Get(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Body.Close()
	body, _ := io.ReadAll(obj.Body)
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Errorf("stored body is not a pdf")
	}
	want := map[string]string{"orderId": "ord-1", "kind": "receipt", "receiptNo": "KYZ-20260314-0042", "createdBy": "cass"}
	for k, v := range want {
		if obj.Meta.Attrs[k] != v {
			t.Errorf("attr %s = %q, want %q", k, obj.Meta.Attrs[k], v)
		}
	}
	if obj.Meta.Filename != "receipt_KYZ-20260314-0042.pdf" || obj.Meta.ContentType != "application/pdf" {
		t.Errorf("meta = %+v", obj.Meta)
	}
}

func TestIssuerNotReady(t *testing.T) {
	is := &Issuer{Renderer: PDFRenderer{}, Blobs: &blob.Handle{}}
	if err := is.Ready(); !errors.Is(err, orders.ErrStorageUnavailable) {
		t.Errorf("Ready err = %v", err)
	}
	if _, err := is.Issue(context.Background(), Document{}); !errors.Is(err, orders.ErrStorageUnavailable) {
		t.Errorf("Issue err = %v", err)
	}
}
