package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
)

func mugConfig() funnel.Config {
	return funnel.Config{
		ProductID:    "zen-mug",
		Currency:     "USD",
		BaseQuantity: 5,
		SKU:          "MUG-001",
		Price:        1800,
	}
}

func TestRegistryCreateAndWith(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	id, err := reg.Create("zen-mug", mugConfig())
	require.NoError(t, err)
	require.Len(t, id, 26)
	require.Equal(t, 1, reg.Len())

	product, ok := reg.Product(id)
	require.True(t, ok)
	require.Equal(t, "zen-mug", product)

	err = reg.With(id, func(f *funnel.Funnel) error {
		f.Options.UpdateQuantity(3)
		return nil
	})
	require.NoError(t, err)

	var qty int
	require.NoError(t, reg.With(id, func(f *funnel.Funnel) error {
		qty = f.Options.State().Qty
		return nil
	}))
	require.Equal(t, 3, qty)

	sentinel := errors.New("boom")
	require.ErrorIs(t, reg.With(id, func(*funnel.Funnel) error { return sentinel }), sentinel)
	require.ErrorIs(t, reg.With("missing", func(*funnel.Funnel) error { return nil }), ErrFunnelNotFound)
}

func TestRegistryLimit(t *testing.T) {
	reg := NewRegistry(RegistryConfig{MaxFunnels: 1})
	_, err := reg.Create("zen-mug", mugConfig())
	require.NoError(t, err)
	_, err = reg.Create("zen-mug", mugConfig())
	require.ErrorIs(t, err, ErrRegistryFull)
}

func TestRegistrySweep(t *testing.T) {
	clock := &fixedClock{current: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry(RegistryConfig{IdleTTL: 10 * time.Minute, Now: clock.Now})

	idle, err := reg.Create("zen-mug", mugConfig())
	require.NoError(t, err)
	active, err := reg.Create("zen-mug", mugConfig())
	require.NoError(t, err)
	done, ok := reg.Done(idle)
	require.True(t, ok)

	clock.current = clock.current.Add(8 * time.Minute)
	require.True(t, reg.Touch(active))
	clock.current = clock.current.Add(5 * time.Minute)

	require.Equal(t, 1, reg.Sweep())
	require.Equal(t, 1, reg.Len())
	require.ErrorIs(t, reg.With(idle, func(*funnel.Funnel) error { return nil }), ErrFunnelNotFound)
	require.NoError(t, reg.With(active, func(*funnel.Funnel) error { return nil }))

	select {
	case <-done:
	default:
		t.Fatalf("expected done channel to be closed")
	}
	require.False(t, reg.Touch(idle))
}

func TestRegistryClaimIsExclusive(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	id, err := reg.Create("zen-mug", mugConfig())
	require.NoError(t, err)

	release, err := reg.Claim(id)
	require.NoError(t, err)
	_, err = reg.Claim(id)
	require.ErrorIs(t, err, ErrOrderInProgress)

	// Mutations still go through while an order is in flight.
	require.NoError(t, reg.With(id, func(*funnel.Funnel) error { return nil }))

	release()
	release()
	again, err := reg.Claim(id)
	require.NoError(t, err)

	reg.Remove(id)
	again()
	_, err = reg.Claim(id)
	require.ErrorIs(t, err, ErrFunnelNotFound)
}

func TestRegistryRemoveAndClose(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	a, _ := reg.Create("zen-mug", mugConfig())
	b, _ := reg.Create("zen-mug", mugConfig())

	reg.Remove(a)
	reg.Remove(a)
	require.Equal(t, 1, reg.Len())

	done, _ := reg.Done(b)
	reg.Close()
	require.Equal(t, 0, reg.Len())
	<-done
}

func TestRegistrySerialisesAccess(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	id, err := reg.Create("zen-mug", mugConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = reg.With(id, func(f *funnel.Funnel) error {
				f.Options.UpdateQuantity(n%5 + 1)
				_ = f.Quote()
				return nil
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, reg.With(id, func(f *funnel.Funnel) error {
		q := f.Options.State().Qty
		if q < 1 || q > 5 {
			t.Fatalf("quantity out of range: %d", q)
		}
		return nil
	}))
}
