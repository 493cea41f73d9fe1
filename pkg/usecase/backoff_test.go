package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
)

func TestExponentialBackoff(t *testing.T) {
	const (
		initial = 100 * time.Millisecond
		max     = 10 * time.Second
	)
	strategy := usecase.ExponentialBackoff(initial, max)

	for i := 0; i < 200; i++ {
		b := strategy()
		base := initial
		for n := 0; n < 10; n++ {
			d := b.Pause()
			lower := min(base, max)
			gt.True(t, d >= lower)
			gt.True(t, d <= max)
			gt.True(t, d <= lower+lower/4)
			base *= 2
		}
	}

	t.Run("capped at max", func(t *testing.T) {
		b := usecase.ExponentialBackoff(time.Second, 3*time.Second)()
		for i := 0; i < 5; i++ {
			b.Pause()
		}
		gt.Equal(t, b.Pause(), 3*time.Second)
	})

	t.Run("each batch starts from initial delay", func(t *testing.T) {
		b1 := strategy()
		for i := 0; i < 5; i++ {
			b1.Pause()
		}
		d := strategy().Pause()
		gt.True(t, d >= initial)
		gt.True(t, d <= initial+initial/4)
	})
}

func TestNoBackoff(t *testing.T) {
	b := usecase.NoBackoff()
	for i := 0; i < 3; i++ {
		gt.Equal(t, b.Pause(), time.Duration(0))
	}
}

func TestSleep(t *testing.T) {
	t.Run("zero delay", func(t *testing.T) {
		gt.NoError(t, usecase.Sleep(context.Background(), 0))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := usecase.Sleep(ctx, time.Hour)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, context.Canceled))
	})
}
