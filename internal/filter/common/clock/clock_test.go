package clock

import (
	"sync"
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}

	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) {
		t.Errorf("Clock time %v is before measurement time %v", now, before)
	}
	if now.After(after) {
		t.Errorf("Clock time %v is after measurement time %v", now, after)
	}
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2025, 8, 4, 23, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: fixedTime}

	if now := clock.Now(); !now.Equal(fixedTime) {
		t.Errorf("Expected %v, got %v", fixedTime, now)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	clock := &MockClock{}
	start := time.Date(2025, 8, 4, 22, 0, 0, 0, time.UTC)
	clock.Set(start)
	clock.Advance(4 * time.Hour)

	want := time.Date(2025, 8, 5, 2, 0, 0, 0, time.UTC)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Expected %v after advance, got %v", want, got)
	}
	if got := clock.Now().Weekday(); got != time.Tuesday {
		t.Errorf("Expected Tuesday after crossing midnight, got %v", got)
	}
}

func TestMockClock_ConcurrentReads(t *testing.T) {
	clock := &MockClock{CurrentTime: time.Unix(0, 0)}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = clock.Now()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		clock.Advance(time.Second)
	}
	wg.Wait()

	if got := clock.Now(); !got.Equal(time.Unix(100, 0)) {
		t.Errorf("Expected %v, got %v", time.Unix(100, 0), got)
	}
}

func TestClockInterface(t *testing.T) {
	var _ Clock = RealClock{}
	var _ Clock = &MockClock{}
}
