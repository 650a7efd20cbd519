package reservation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kyanz/pos-reservations/internal/audit"
	"github.com/kyanz/pos-reservations/internal/blob"
	"github.com/kyanz/pos-reservations/internal/orders"
)

func TestAttachProofs(t *testing.T) {
	f := newFixture(t)
	f.product(t, "x", "Widget", 10)
	ctx := context.Background()
	o := f.create(t, "1", item("x", 1, "1"))

	saved, err := f.c.AttachProofs(ctx, cashier, o.ID, []ProofFile{
		{Filename: "bank slip.png", ContentType: "image/png", Data: []byte("png")},
		{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("nope")},
		{Filename: "tx.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(saved) != 2 || f.blobs.Len() != 2 {
		t.Fatalf("saved = %d, blobs = %d, want 2/2", len(saved), f.blobs.Len())
	}
	want := fmt.Sprintf("proof_%s_%d_bank_slip.png", o.ID, clock.UnixMilli())
	if saved[0].Filename != want || saved[0].UploadedBy != "cass" || saved[0].Size != 3 {
		t.Errorf("proof = %+v, want filename %s", saved[0], want)
	}

	got, _ := f.c.GetOrder(ctx, o.ID)
	if len(got.Proofs) != 2 {
		t.Errorf("order proofs = %d", len(got.Proofs))
	}
	if s := f.stock(t, "x"); s != 9 {
		t.Errorf("stock = %d, want 9", s)
	}
	events := f.audit.Events()
	if e := events[len(events)-1]; e.Action != audit.ActionProofUpload || e.Meta["count"] != 2 {
		t.Errorf("audit = %+v", e)
	}

	// paid orders still take proofs
	if _, err := f.c.Pay(ctx, cashier, o.ID, PayRequest{Method: "transfer"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.c.AttachProofs(ctx, cashier, o.ID, []ProofFile{{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("j")}}); err != nil {
		t.Errorf("attach to paid: %v", err)
	}
}

func TestAttachProofsRejects(t *testing.T) {
	f := newFixture(t)
	f.product(t, "x", "Widget", 10)
	ctx := context.Background()
	o := f.create(t, "1", item("x", 1, "1"))
	img := []ProofFile{{Filename: "a.png", ContentType: "image/png", Data: []byte("p")}}

	if _, err := f.c.AttachProofs(ctx, cashier, o.ID, []ProofFile{{Filename: "a.zip", ContentType: "application/zip"}}); !errors.Is(err, orders.ErrValidation) {
		t.Errorf("only unsupported types: err = %v", err)
	}
	if _, err := f.c.AttachProofs(ctx, cashier, "nope", img); !errors.Is(err, orders.ErrNotFound) {
		t.Errorf("missing order: err = %v", err)
	}

	f.c.Blobs = &blob.Handle{}
	if _, err := f.c.AttachProofs(ctx, cashier, o.ID, img); !errors.Is(err, orders.ErrStorageUnavailable) {
		t.Errorf("storage pending: err = %v", err)
	}
	f.c.Blobs = blob.Ready(f.blobs)

	if _, err := f.c.Cancel(ctx, cashier, o.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.c.AttachProofs(ctx, cashier, o.ID, img); !errors.Is(err, orders.ErrInvalidState) {
		t.Errorf("cancelled order: err = %v", err)
	}
	if f.blobs.Len() != 0 {
		t.Errorf("blobs stored = %d, want 0", f.blobs.Len())
	}
}

func TestAcceptsProofType(t *testing.T) {
	tests := map[string]bool{
		"image/png":                true,
		"IMAGE/JPEG":               true,
		"application/pdf":          true,
		"application/pdf; q=1":     true,
		"text/plain":               false,
		"":                         false,
		"application/octet-stream": false,
	}
	for ct, want := range tests {
		if got := AcceptsProofType(ct); got != want {
			t.Errorf("AcceptsProofType(%q) = %v, want %v", ct, got, want)
		}
	}
}
