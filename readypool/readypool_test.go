package readypool_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/httpengine/readypool"
)

func TestEmptyPoolHasNoCandidate(t *testing.T) {
	p := readypool.New()
	_, ok := p.PopCandidate()
	require.False(t, ok)
}

func TestInsertThenPopReturnsSameItem(t *testing.T) {
	p := readypool.New()
	p.Insert(2)

	value, ok := p.PopCandidate()
	require.True(t, ok)
	require.Equal(t, int64(2), value)

	_, ok = p.PopCandidate()
	require.False(t, ok)
}

func TestEraseOfAbsentItemIsNoop(t *testing.T) {
	p := readypool.New()
	p.Erase(3)
	_, ok := p.PopCandidate()
	require.False(t, ok)
}

func TestPopReturnsMostRecentlyInsertedFirst(t *testing.T) {
	p := readypool.New()
	const n = 1000
	for i := int64(0); i < n; i++ {
		p.Insert(i)
	}

	for i := int64(0); i < n; i++ {
		expected := n - 1 - i
		if i%2 == 0 {
			value, ok := p.PopCandidate()
			require.True(t, ok)
			require.Equal(t, expected, value)
		} else {
			p.Erase(expected)
		}
	}

	_, ok := p.PopCandidate()
	require.False(t, ok)
}

func TestInsertPopEraseAgainstAReferenceStack(t *testing.T) {
	p := readypool.New()
	var control []int64
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 1<<12; i++ {
		switch r.Intn(3) {
		case 0:
			item := r.Int63()
			p.Insert(item)
			control = append(control, item)
		case 1:
			if len(control) == 0 {
				continue
			}
			want := control[len(control)-1]
			control = control[:len(control)-1]
			got, ok := p.PopCandidate()
			require.True(t, ok)
			require.Equal(t, want, got)
		default:
			if len(control) == 0 {
				continue
			}
			idx := r.Intn(len(control))
			p.Erase(control[idx])
			control = append(control[:idx], control[idx+1:]...)
		}
	}
}

func TestDuplicateInsertPanics(t *testing.T) {
	p := readypool.New()
	p.Insert(5)
	require.Panics(t, func() { p.Insert(5) })
}
