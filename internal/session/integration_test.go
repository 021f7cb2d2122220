package session

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/expenselens/expenselens/internal/capture"
	"github.com/expenselens/expenselens/internal/receipt"
	"github.com/expenselens/expenselens/internal/report"
	"github.com/expenselens/expenselens/internal/scanning"
	"github.com/expenselens/expenselens/internal/server"
)

// stubBackend plays the vision model: it returns a canned completion for
// whatever frame it is shown.
type stubBackend struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (b *stubBackend) Complete(_ context.Context, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.response, b.err
}

func (b *stubBackend) Close() error {
	return nil
}

func encodePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var _ = Describe("capture to confirmed record", func() {
	var (
		tempDir string
		spool   string
		bolt    *receipt.BoltStore
		api     *httptest.Server
		gateway *receipt.RemoteStore
		backend *stubBackend
		machine *Machine
		ctx     context.Context
		err     error
	)

	BeforeEach(func() {
		ctx = context.Background()
		tempDir, err = os.MkdirTemp("", "expenselens-e2e-*")
		Expect(err).NotTo(HaveOccurred())

		bolt, err = receipt.NewBoltStore(filepath.Join(tempDir, "records.db"))
		Expect(err).NotTo(HaveOccurred())

		api = httptest.NewServer(server.New(bolt))
		gateway = receipt.NewRemoteStore(api.URL)

		spool = filepath.Join(tempDir, "spool")
		device, err := capture.NewDirDevice(spool)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(spool, "frame.png"), encodePNG(), 0644)).To(Succeed())

		backend = &stubBackend{
			response: `{"merchant":"Cafe Luna","date":"2024-02-01","amount":12.50,"currency":"USD","category":"Food & Drinks"}`,
		}
		machine = New(device, scanning.NewClient(backend), gateway)
	})

	AfterEach(func() {
		api.Close()
		bolt.Close()
		os.RemoveAll(tempDir)
	})

	It("walks a receipt from snapshot to the confirmed list", func() {
		Expect(machine.StartCapture()).To(Succeed())
		Expect(machine.Capture(ctx)).To(Succeed())
		Eventually(machine.State).Should(Equal(StateReview))

		form := machine.Form()
		Expect(form.Merchant).To(Equal("Cafe Luna"))
		Expect(form.Amount).To(Equal(12.50))
		Expect(form.Tax).To(BeNil())

		id, err := machine.Confirm(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())
		Expect(machine.State()).To(Equal(StateList))

		records, err := machine.Records(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].ID).To(Equal(id))
		Expect(records[0].Merchant).To(Equal("Cafe Luna"))
		Expect(records[0].Tax).To(BeNil())
		Expect(records[0].ImageURL).To(HavePrefix("data:image/png;base64,"))
		Expect(records[0].CreatedAt).NotTo(BeZero())
	})

	It("estimates tax in the summary for a receipt with no tax line", func() {
		Expect(machine.StartCapture()).To(Succeed())
		Expect(machine.Capture(ctx)).To(Succeed())
		Eventually(machine.State).Should(Equal(StateReview))
		_, err := machine.Confirm(ctx)
		Expect(err).NotTo(HaveOccurred())

		raw, err := gateway.Summary(ctx)
		Expect(err).NotTo(HaveOccurred())

		var summary report.Summary
		Expect(json.Unmarshal(raw, &summary)).To(Succeed())
		Expect(summary.Count).To(Equal(1))
		Expect(summary.Total).To(Equal(12.50))
		// 12.50 - 12.50/1.07
		Expect(summary.TaxEstimate).To(BeNumerically("~", 0.8178, 0.001))
		Expect(summary.Currency).To(Equal("USD"))
		Expect(summary.Chart).To(HaveLen(1))
		Expect(summary.Chart[0].Label).To(Equal("Cafe Luna"))
	})

	It("falls back to manual entry when extraction is unreachable", func() {
		backend.err = context.DeadlineExceeded

		Expect(machine.StartCapture()).To(Succeed())
		Expect(machine.Capture(ctx)).To(Succeed())
		Eventually(machine.State).Should(Equal(StateReview))

		form := machine.Form()
		Expect(form.Merchant).To(BeEmpty())
		Expect(form.Currency).To(Equal(receipt.DefaultCurrency))

		form.Merchant = "Hand Entered"
		form.Amount = 9.99

		id, err := machine.Confirm(ctx)
		Expect(err).NotTo(HaveOccurred())

		records, err := machine.Records(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].ID).To(Equal(id))
		Expect(records[0].Merchant).To(Equal("Hand Entered"))
		Expect(records[0].Currency).To(Equal(receipt.DefaultCurrency))
	})

	It("deletes a confirmed record end to end", func() {
		Expect(machine.StartCapture()).To(Succeed())
		Expect(machine.Capture(ctx)).To(Succeed())
		Eventually(machine.State).Should(Equal(StateReview))
		id, err := machine.Confirm(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(machine.Delete(ctx, id)).To(Succeed())
		Expect(machine.Delete(ctx, id)).To(Succeed())

		records, err := machine.Records(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("survives a retake before confirming", func() {
		Expect(machine.StartCapture()).To(Succeed())
		Expect(machine.Capture(ctx)).To(Succeed())
		Eventually(machine.State).Should(Equal(StateReview))

		Expect(machine.Retake()).To(Succeed())
		Expect(machine.Capture(ctx)).To(Succeed())
		Eventually(machine.State).Should(Equal(StateReview))

		_, err := machine.Confirm(ctx)
		Expect(err).NotTo(HaveOccurred())

		records, err := machine.Records(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
	})
})
