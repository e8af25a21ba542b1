package auth

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewRateLimiter(t *testing.T) {
	Convey("When creating a rate limiter", t, func() {
		rl := NewRateLimiter(2, time.Second)
		Convey("Then it initializes correctly", func() {
			So(rl, ShouldNotBeNil)
			So(rl.WaitTime(), ShouldEqual, 0)
		})
	})
}

func TestRateLimiterAllow(t *testing.T) {
	Convey("Given a limiter with capacity 2", t, func() {
		rl := NewRateLimiter(2, time.Second)
		ok1 := rl.Allow()
		ok2 := rl.Allow()
		ok3 := rl.Allow()
		Convey("Then the third call should be limited", func() {
			So(ok1, ShouldBeTrue)
			So(ok2, ShouldBeTrue)
			So(ok3, ShouldBeFalse)
			So(rl.WaitTime(), ShouldBeGreaterThan, 0)
		})
		time.Sleep(time.Second)
		Convey("And after waiting it allows again", func() {
			So(rl.Allow(), ShouldBeTrue)
		})
	})
}

func TestClientLimiter(t *testing.T) {
	Convey("Given a per client limiter with capacity 1", t, func() {
		cl := NewClientLimiter(1, time.Minute)

		Convey("Then clients are limited independently", func() {
			So(cl.Allow("a"), ShouldBeTrue)
			So(cl.Allow("a"), ShouldBeFalse)
			So(cl.Allow("b"), ShouldBeTrue)
		})

		Convey("Then idle buckets are dropped", func() {
			cl.Allow("a")
			So(cl.Cleanup(time.Now().Add(time.Hour), time.Minute), ShouldEqual, 1)
		})
	})
}
