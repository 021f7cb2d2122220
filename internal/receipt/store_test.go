package receipt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// seqIDGenerator hands out predictable IDs
type seqIDGenerator struct {
	n int
}

func (g *seqIDGenerator) Generate() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

// fixedTimeSource pins created_at
type fixedTimeSource struct {
	now time.Time
}

func (t *fixedTimeSource) Now() time.Time {
	return t.now
}

var _ = Describe("BoltStore", func() {
	var (
		tempDir string
		store   *BoltStore
		ctx     context.Context
		err     error
	)

	BeforeEach(func() {
		ctx = context.Background()
		tempDir, err = os.MkdirTemp("", "expenselens-test-*")
		Expect(err).NotTo(HaveOccurred())

		store, err = NewBoltStoreWithDeps(
			filepath.Join(tempDir, "test.db"),
			&seqIDGenerator{},
			&fixedTimeSource{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		store.Close()
		os.RemoveAll(tempDir)
	})

	record := func(merchant, date string, amount float64) *Record {
		return &Record{
			Merchant: merchant,
			Date:     date,
			Amount:   amount,
			Currency: "USD",
			Category: "Other",
		}
	}

	Describe("Create", func() {
		It("assigns an id and returns it", func() {
			id, err := store.Create(ctx, record("A", "2024-01-01", 10))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("id-1"))
		})

		It("does not mutate the caller's record", func() {
			r := record("A", "2024-01-01", 10)
			_, err := store.Create(ctx, r)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.ID).To(BeEmpty())
			Expect(r.CreatedAt).To(BeZero())
		})

		It("assigns the creation timestamp", func() {
			_, err := store.Create(ctx, record("A", "2024-01-01", 10))
			Expect(err).NotTo(HaveOccurred())
			records, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].CreatedAt).To(Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
		})

		It("defaults an unknown currency", func() {
			r := record("A", "2024-01-01", 10)
			r.Currency = "DOGE"
			_, err := store.Create(ctx, r)
			Expect(err).NotTo(HaveOccurred())
			records, _ := store.List(ctx)
			Expect(records[0].Currency).To(Equal("INR"))
		})

		It("defaults an empty category", func() {
			r := record("A", "2024-01-01", 10)
			r.Category = ""
			_, err := store.Create(ctx, r)
			Expect(err).NotTo(HaveOccurred())
			records, _ := store.List(ctx)
			Expect(records[0].Category).To(Equal("Other"))
		})

		It("rejects a record missing its merchant", func() {
			_, err := store.Create(ctx, record("", "2024-01-01", 10))
			Expect(err).To(MatchError(ContainSubstring("merchant")))
		})

		It("persists nothing when validation fails", func() {
			_, err := store.Create(ctx, record("", "2024-01-01", 10))
			Expect(err).To(HaveOccurred())
			records, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("keeps an absent tax absent through storage", func() {
			_, err := store.Create(ctx, record("A", "2024-01-01", 42.50))
			Expect(err).NotTo(HaveOccurred())
			records, _ := store.List(ctx)
			Expect(records[0].Tax).To(BeNil())
		})

		It("stores an explicit tax", func() {
			r := record("A", "2024-01-01", 42.50)
			r.Tax = taxPtr(3.15)
			_, err := store.Create(ctx, r)
			Expect(err).NotTo(HaveOccurred())
			records, _ := store.List(ctx)
			Expect(*records[0].Tax).To(Equal(3.15))
		})
	})

	Describe("List", func() {
		It("returns an empty slice for a fresh store", func() {
			records, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("orders records by date descending", func() {
			_, err := store.Create(ctx, record("Old", "2024-01-01", 1))
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Create(ctx, record("New", "2024-03-01", 2))
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Create(ctx, record("Mid", "2024-02-01", 3))
			Expect(err).NotTo(HaveOccurred())

			records, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[0].Merchant).To(Equal("New"))
			Expect(records[1].Merchant).To(Equal("Mid"))
			Expect(records[2].Merchant).To(Equal("Old"))
		})

		It("breaks date ties newest-insertion-first", func() {
			_, err := store.Create(ctx, record("First", "2024-02-01", 1))
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Create(ctx, record("Second", "2024-02-01", 2))
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Create(ctx, record("Third", "2024-02-01", 3))
			Expect(err).NotTo(HaveOccurred())

			records, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Merchant).To(Equal("Third"))
			Expect(records[1].Merchant).To(Equal("Second"))
			Expect(records[2].Merchant).To(Equal("First"))
		})
	})

	Describe("Delete", func() {
		It("removes a record by id", func() {
			id, err := store.Create(ctx, record("A", "2024-01-01", 10))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(ctx, id)).To(Succeed())
			records, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("succeeds for an unknown id", func() {
			Expect(store.Delete(ctx, "never-existed")).To(Succeed())
		})

		It("is idempotent", func() {
			id, err := store.Create(ctx, record("A", "2024-01-01", 10))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(ctx, id)).To(Succeed())
			Expect(store.Delete(ctx, id)).To(Succeed())
		})

		It("leaves other records untouched", func() {
			id, err := store.Create(ctx, record("A", "2024-01-01", 10))
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Create(ctx, record("B", "2024-01-02", 20))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(ctx, id)).To(Succeed())
			records, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Merchant).To(Equal("B"))
		})
	})

	Describe("durability", func() {
		It("survives a close and reopen", func() {
			path := filepath.Join(tempDir, "test.db")
			_, err := store.Create(ctx, record("A", "2024-01-01", 10))
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Close()).To(Succeed())

			reopened, err := NewBoltStore(path)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			records, err := reopened.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})
	})
})
