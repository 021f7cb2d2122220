package scanning

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockBackend is a stub model backend
type mockBackend struct {
	response string
	err      error
	calls    int
	lastPNG  []byte
}

func (m *mockBackend) Complete(_ context.Context, pngData []byte) (string, error) {
	m.calls++
	m.lastPNG = pngData
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockBackend) Close() error {
	return nil
}

// tinyPNG returns a valid 2x2 PNG for feeding through image normalization
func tinyPNG() []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var _ = Describe("Client", func() {
	var (
		backend *mockBackend
		client  *Client
		uri     string
		outcome Outcome
	)

	BeforeEach(func() {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		backend = &mockBackend{
			response: `{"merchant": "Cafe Luna", "date": "2024-03-01", "amount": 42.50, "currency": "USD", "category": "Food & Drinks"}`,
		}
		client = NewClientWithClock(backend, func() time.Time { return testNow })
	})

	JustBeforeEach(func() {
		outcome = client.Extract(context.Background(), uri)
	})

	When("the backend answers with conforming JSON", func() {
		BeforeEach(func() {
			uri = EncodeDataURI(tinyPNG(), "image/png")
		})

		It("returns a successful outcome", func() {
			Expect(outcome.OK()).To(BeTrue())
			Expect(outcome.Fields.Merchant).To(Equal("Cafe Luna"))
			Expect(outcome.Reason).To(BeEmpty())
		})

		It("makes exactly one backend call", func() {
			Expect(backend.calls).To(Equal(1))
		})

		It("strips the data URI prefix before transmission", func() {
			Expect(backend.lastPNG).NotTo(BeEmpty())
			Expect(bytes.HasPrefix(backend.lastPNG, []byte("data:"))).To(BeFalse())
		})

		It("keeps the absent tax absent", func() {
			Expect(outcome.Fields.Tax).To(BeNil())
		})
	})

	When("the backend fails with a network error", func() {
		BeforeEach(func() {
			backend.err = errors.New("connection refused")
			uri = EncodeDataURI(tinyPNG(), "image/png")
		})

		It("collapses the failure into the outcome", func() {
			Expect(outcome.OK()).To(BeFalse())
			Expect(outcome.Reason).To(ContainSubstring("connection refused"))
		})

		It("does not retry", func() {
			Expect(backend.calls).To(Equal(1))
		})
	})

	When("the backend returns an empty body", func() {
		BeforeEach(func() {
			backend.response = ""
			uri = EncodeDataURI(tinyPNG(), "image/png")
		})

		It("returns a failed outcome", func() {
			Expect(outcome.OK()).To(BeFalse())
			Expect(outcome.Reason).To(ContainSubstring("empty"))
		})
	})

	When("the backend returns malformed JSON", func() {
		BeforeEach(func() {
			backend.response = "not json at all"
			uri = EncodeDataURI(tinyPNG(), "image/png")
		})

		It("returns a failed outcome", func() {
			Expect(outcome.OK()).To(BeFalse())
		})
	})

	When("the response violates the schema", func() {
		BeforeEach(func() {
			backend.response = `{"amount": 10, "currency": "USD"}`
			uri = EncodeDataURI(tinyPNG(), "image/png")
		})

		It("returns a failed outcome", func() {
			Expect(outcome.OK()).To(BeFalse())
			Expect(outcome.Reason).To(ContainSubstring("parsing model response"))
		})
	})

	When("the captured image is not decodable", func() {
		BeforeEach(func() {
			uri = EncodeDataURI([]byte("not an image"), "image/jpeg")
		})

		It("fails without calling the backend", func() {
			Expect(outcome.OK()).To(BeFalse())
			Expect(backend.calls).To(BeZero())
		})
	})

	When("the data URI is malformed", func() {
		BeforeEach(func() {
			uri = "data:image/png;base64"
		})

		It("fails without calling the backend", func() {
			Expect(outcome.OK()).To(BeFalse())
			Expect(backend.calls).To(BeZero())
		})
	})
})

var _ = Describe("DecodeDataURI", func() {
	It("round-trips with EncodeDataURI", func() {
		data := []byte{1, 2, 3, 4}
		uri := EncodeDataURI(data, "image/jpeg")
		decoded, contentType, err := DecodeDataURI(uri)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(data))
		Expect(contentType).To(Equal("image/jpeg"))
	})

	It("accepts bare base64 and assumes JPEG", func() {
		decoded, contentType, err := DecodeDataURI("AQIDBA==")
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal([]byte{1, 2, 3, 4}))
		Expect(contentType).To(Equal("image/jpeg"))
	})

	It("rejects a URI with no payload separator", func() {
		_, _, err := DecodeDataURI("data:image/png;base64")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an empty payload", func() {
		_, _, err := DecodeDataURI("data:image/png;base64,")
		Expect(err).To(HaveOccurred())
	})

	It("rejects invalid base64", func() {
		_, _, err := DecodeDataURI("data:image/png;base64,!!!")
		Expect(err).To(HaveOccurred())
	})
})
