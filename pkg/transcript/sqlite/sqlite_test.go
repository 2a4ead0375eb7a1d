package sqlite_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"github.com/moriagate/balrog/pkg/transcript"
	"github.com/moriagate/balrog/pkg/transcript/sqlite"
)

func makeEntry(session, outcome string) *transcript.Entry {
	return &transcript.Entry{
		ID:        uuid.NewString(),
		Session:   session,
		Outcome:   outcome,
		Prompt:    "hello",
		Reply:     "hi there",
		Model:     "test-model",
		Duration:  125 * time.Millisecond,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a driver with an in-memory database", func() {
			Expect(driver).NotTo(BeNil())
		})

		It("creates a driver with a file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "test.db")

			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Record and Recent", func() {
		It("stores and retrieves an entry", func() {
			entry := makeEntry("s1", transcript.OutcomeOK)
			Expect(driver.Record(ctx, entry)).To(Succeed())

			entries, err := driver.Recent(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].ID).To(Equal(entry.ID))
			Expect(entries[0].Session).To(Equal("s1"))
			Expect(entries[0].Outcome).To(Equal(transcript.OutcomeOK))
			Expect(entries[0].Prompt).To(Equal("hello"))
			Expect(entries[0].Reply).To(Equal("hi there"))
			Expect(entries[0].Model).To(Equal("test-model"))
			Expect(entries[0].Duration).To(Equal(125 * time.Millisecond))
			Expect(entries[0].CreatedAt).To(BeTemporally("==", entry.CreatedAt))
		})

		It("returns newest entries first", func() {
			for i := 0; i < 5; i++ {
				entry := makeEntry("s1", transcript.OutcomeOK)
				entry.Prompt = fmt.Sprintf("prompt-%d", i)
				Expect(driver.Record(ctx, entry)).To(Succeed())
			}

			entries, err := driver.Recent(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Prompt).To(Equal("prompt-4"))
			Expect(entries[2].Prompt).To(Equal("prompt-2"))
		})

		It("returns everything for a non-positive limit", func() {
			for i := 0; i < 4; i++ {
				Expect(driver.Record(ctx, makeEntry("s1", transcript.OutcomeOK))).To(Succeed())
			}

			entries, err := driver.Recent(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(4))
		})

		It("returns an empty slice from an empty database", func() {
			entries, err := driver.Recent(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("rejects nil entries", func() {
			err := driver.Record(ctx, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("nil entry"))
		})
	})

	Describe("BySession", func() {
		It("returns only the session's entries, in insertion order", func() {
			a1 := makeEntry("alice", transcript.OutcomeOK)
			a1.Prompt = "first"
			a2 := makeEntry("alice", transcript.OutcomeInputFiltered)
			a2.Prompt = "second"
			b1 := makeEntry("bob", transcript.OutcomeOK)

			Expect(driver.Record(ctx, a1)).To(Succeed())
			Expect(driver.Record(ctx, b1)).To(Succeed())
			Expect(driver.Record(ctx, a2)).To(Succeed())

			entries, err := driver.BySession(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Prompt).To(Equal("first"))
			Expect(entries[1].Prompt).To(Equal("second"))
		})

		It("returns an empty slice for an unknown session", func() {
			entries, err := driver.BySession(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})

	Describe("Stats", func() {
		It("counts entries by outcome", func() {
			Expect(driver.Record(ctx, makeEntry("s1", transcript.OutcomeOK))).To(Succeed())
			Expect(driver.Record(ctx, makeEntry("s1", transcript.OutcomeOK))).To(Succeed())
			Expect(driver.Record(ctx, makeEntry("s2", transcript.OutcomeOutputFiltered))).To(Succeed())

			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(3))
			Expect(stats.ByOutcome[transcript.OutcomeOK]).To(Equal(2))
			Expect(stats.ByOutcome[transcript.OutcomeOutputFiltered]).To(Equal(1))
		})

		It("returns zero totals for an empty database", func() {
			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(0))
			Expect(stats.ByOutcome).To(BeEmpty())
		})
	})
})
