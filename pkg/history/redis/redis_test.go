package redis_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/murmur/pkg/history"
	"github.com/papercomputeco/murmur/pkg/history/historytest"
	"github.com/papercomputeco/murmur/pkg/history/redis"
)

var _ = Describe("Driver", func() {
	var mr *miniredis.Miniredis

	BeforeEach(func() {
		mr = miniredis.RunT(GinkgoT())
	})

	historytest.DriverSpecs(func() history.Driver {
		d, err := redis.NewDriver(context.Background(), mr.Addr())
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	It("namespaces keys with the prefix", func() {
		ctx := context.Background()
		d, err := redis.NewDriver(ctx, mr.Addr(), redis.WithPrefix("kiosk"))
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		Expect(d.Append(ctx, &history.Entry{SessionID: "s1", Query: "q", CompletedAt: time.Now()})).To(Succeed())
		Expect(mr.Exists("kiosk:history")).To(BeTrue())
		Expect(mr.Exists("kiosk:session:s1:history")).To(BeTrue())
	})

	It("expires keys with a ttl", func() {
		ctx := context.Background()
		d, err := redis.NewDriver(ctx, mr.Addr(), redis.WithTTL(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		Expect(d.Append(ctx, &history.Entry{SessionID: "s1", Query: "q", CompletedAt: time.Now()})).To(Succeed())
		Expect(mr.TTL("murmur:history")).To(Equal(time.Hour))

		mr.FastForward(2 * time.Hour)
		got, err := d.List(ctx, "", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})

	It("fails to connect to a missing server", func() {
		addr := mr.Addr()
		mr.Close()

		_, err := redis.NewDriver(context.Background(), addr)
		Expect(err).To(MatchError(ContainSubstring("failed to ping redis")))
	})

	It("works with an existing client", func() {
		ctx := context.Background()
		d := redis.NewDriverWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
		defer d.Close()

		Expect(d.Append(ctx, &history.Entry{SessionID: "s1", Query: "q", CompletedAt: time.Now()})).To(Succeed())
		got, err := d.List(ctx, "s1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
	})
})
