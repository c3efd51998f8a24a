package lock_test

import (
	"context"
	"testing"

	"github.com/frahmantamala/room-rental/internal/core/lock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLock(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lock Suite")
}

var _ = Describe("Locker", func() {
	It("noop locker always acquires", func() {
		var l lock.Locker = lock.NoopLocker{}
		release, err := l.Acquire(context.Background(), lock.RoomKey(7))
		Expect(err).NotTo(HaveOccurred())
		Expect(release).NotTo(BeNil())
		release()
	})

	It("builds per-room keys", func() {
		Expect(lock.RoomKey(42)).To(Equal("room:42:booking"))
	})
})
