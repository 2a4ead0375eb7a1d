package inmemory_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/moriagate/balrog/pkg/transcript"
	"github.com/moriagate/balrog/pkg/transcript/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	entry := func(session, outcome, prompt string) *transcript.Entry {
		return &transcript.Entry{ID: prompt, Session: session, Outcome: outcome, Prompt: prompt}
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	It("records and lists entries newest first", func() {
		Expect(driver.Record(ctx, entry("s1", transcript.OutcomeOK, "one"))).To(Succeed())
		Expect(driver.Record(ctx, entry("s1", transcript.OutcomeOK, "two"))).To(Succeed())

		entries, err := driver.Recent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Prompt).To(Equal("two"))
		Expect(entries[1].Prompt).To(Equal("one"))
	})

	It("caps Recent at the requested limit", func() {
		for i := 0; i < 5; i++ {
			Expect(driver.Record(ctx, entry("s1", transcript.OutcomeOK, fmt.Sprintf("p%d", i)))).To(Succeed())
		}

		entries, err := driver.Recent(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Prompt).To(Equal("p4"))
	})

	It("filters by session in insertion order", func() {
		Expect(driver.Record(ctx, entry("alice", transcript.OutcomeOK, "a1"))).To(Succeed())
		Expect(driver.Record(ctx, entry("bob", transcript.OutcomeOK, "b1"))).To(Succeed())
		Expect(driver.Record(ctx, entry("alice", transcript.OutcomeUpstreamError, "a2"))).To(Succeed())

		entries, err := driver.BySession(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Prompt).To(Equal("a1"))
		Expect(entries[1].Prompt).To(Equal("a2"))
	})

	It("aggregates stats by outcome", func() {
		Expect(driver.Record(ctx, entry("s1", transcript.OutcomeOK, "p1"))).To(Succeed())
		Expect(driver.Record(ctx, entry("s1", transcript.OutcomeInputFiltered, "p2"))).To(Succeed())

		stats, err := driver.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Total).To(Equal(2))
		Expect(stats.ByOutcome[transcript.OutcomeOK]).To(Equal(1))
		Expect(stats.ByOutcome[transcript.OutcomeInputFiltered]).To(Equal(1))
	})

	It("rejects nil entries", func() {
		Expect(driver.Record(ctx, nil)).To(HaveOccurred())
	})

	It("stores copies, callers cannot mutate recorded entries", func() {
		e := entry("s1", transcript.OutcomeOK, "original")
		Expect(driver.Record(ctx, e)).To(Succeed())
		e.Prompt = "mutated"

		entries, err := driver.Recent(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries[0].Prompt).To(Equal("original"))
	})

	It("tolerates concurrent recording", func() {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				for j := 0; j < 25; j++ {
					Expect(driver.Record(ctx, entry(fmt.Sprintf("s%d", i), transcript.OutcomeOK, fmt.Sprintf("p%d-%d", i, j)))).To(Succeed())
				}
			}(i)
		}
		wg.Wait()

		stats, err := driver.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Total).To(Equal(400))
	})
})
