package timerqueue_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpengine/timerqueue"
)

func TestTimerQueue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TimerQueue Suite")
}

var _ = Describe("Queue", func() {

	It("fires a timer once its deadline has passed", func() {
		var fired int32
		q := timerqueue.New(func(timerqueue.Context) {
			atomic.AddInt32(&fired, 1)
		}, 2)
		defer q.Stop()

		now := time.Now().UnixNano() / int64(time.Millisecond)
		Expect(q.AddItem(timerqueue.Context{Value1: 1}, now)).To(BeNil())

		Eventually(func() int32 { return atomic.LoadInt32(&fired) }, time.Second, 5*time.Millisecond).
			Should(Equal(int32(1)))
	})

	It("does not fire a timer before its deadline", func() {
		var fired int32
		q := timerqueue.New(func(timerqueue.Context) {
			atomic.AddInt32(&fired, 1)
		}, 1)
		defer q.Stop()

		future := time.Now().Add(time.Hour).UnixNano() / int64(time.Millisecond)
		Expect(q.AddItem(timerqueue.Context{Value1: 1}, future)).To(BeNil())

		Consistently(func() int32 { return atomic.LoadInt32(&fired) }, 100*time.Millisecond, 10*time.Millisecond).
			Should(Equal(int32(0)))
	})

	It("rejects new items once stopped", func() {
		q := timerqueue.New(func(timerqueue.Context) {}, 1)
		q.Stop()

		err := q.AddItem(timerqueue.Context{Value1: 1}, 0)
		Expect(err).NotTo(BeNil())
	})

	It("flushes every pending timer immediately on Stop, regardless of deadline", func() {
		var mu sync.Mutex
		var seen []int64

		q := timerqueue.New(func(c timerqueue.Context) {
			mu.Lock()
			seen = append(seen, c.Value1)
			mu.Unlock()
		}, 4)

		future := time.Now().Add(time.Hour).UnixNano() / int64(time.Millisecond)
		for i := int64(0); i < 10; i++ {
			Expect(q.AddItem(timerqueue.Context{Value1: i}, future+i)).To(BeNil())
		}

		q.Stop()

		mu.Lock()
		defer mu.Unlock()
		Expect(seen).To(HaveLen(10))
	})

	It("Stop is idempotent", func() {
		q := timerqueue.New(func(timerqueue.Context) {}, 1)
		q.Stop()
		Expect(func() { q.Stop() }).NotTo(Panic())
	})

	It("reports the number of pending deadline buckets", func() {
		q := timerqueue.New(func(timerqueue.Context) {}, 1)
		defer q.Stop()

		future := time.Now().Add(time.Hour).UnixNano() / int64(time.Millisecond)
		Expect(q.AddItem(timerqueue.Context{Value1: 1}, future)).To(BeNil())
		Expect(q.AddItem(timerqueue.Context{Value1: 2}, future+1)).To(BeNil())

		Expect(q.Len()).To(Equal(2))
	})
})
