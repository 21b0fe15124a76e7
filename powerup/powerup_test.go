package powerup

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestSystem_ActivateStartsEffectAndCooldown(t *testing.T) {
	s := New(DefaultSettings(), true)

	require.True(t, s.Activate(SlowTime, t0))
	assert.True(t, s.IsActive(SlowTime))
	assert.True(t, s.OnCooldown(SlowTime, t0.Add(10*time.Second)))
	assert.False(t, s.Activate(SlowTime, t0.Add(time.Second)), "on cooldown")

	assert.True(t, s.Activate(SlowTime, t0.Add(15*time.Second)), "cooldown elapsed")
}

func TestSystem_DisabledRejectsEverything(t *testing.T) {
	s := New(DefaultSettings(), false)
	for _, k := range Kinds() {
		assert.False(t, s.Activate(k, t0), k.String())
	}
	s.SetEnabled(true)
	assert.True(t, s.Activate(FreezeLine, t0))
}

func TestSystem_BombIsInstantaneous(t *testing.T) {
	s := New(DefaultSettings(), true)
	require.True(t, s.Activate(BombPiece, t0))
	assert.False(t, s.IsActive(BombPiece))
	assert.True(t, s.OnCooldown(BombPiece, t0.Add(19*time.Second)))
}

func TestSystem_Expire(t *testing.T) {
	s := New(DefaultSettings(), true)
	s.Activate(SlowTime, t0)
	s.Activate(FreezeLine, t0)

	assert.Empty(t, s.Expire(t0.Add(3*time.Second)), "end time itself is not past")
	assert.Equal(t, []Kind{FreezeLine}, s.Expire(t0.Add(3*time.Second+time.Millisecond)))
	assert.True(t, s.IsActive(SlowTime))
	assert.Equal(t, []Kind{SlowTime}, s.Expire(t0.Add(6*time.Second)))
	assert.Empty(t, s.Active())
}

func TestSystem_CooldownIndependentOfDuration(t *testing.T) {
	s := New(DefaultSettings(), true)
	s.Activate(FreezeLine, t0)
	s.Expire(t0.Add(4 * time.Second))

	assert.False(t, s.IsActive(FreezeLine))
	st := s.Status(FreezeLine, t0.Add(4*time.Second))
	assert.True(t, st.OnCooldown)
	assert.False(t, st.CanUse)
	assert.Equal(t, 8*time.Second, st.CooldownRemaining)
}

func TestSystem_Queue(t *testing.T) {
	s := New(DefaultSettings(), true)
	assert.True(t, s.Enqueue(SlowTime))
	assert.True(t, s.Enqueue(BombPiece))
	assert.True(t, s.Enqueue(FreezeLine))
	assert.False(t, s.Enqueue(SlowTime), "queue holds three")

	k, ok := s.Take(1)
	require.True(t, ok)
	assert.Equal(t, BombPiece, k)
	assert.Equal(t, []Kind{SlowTime, FreezeLine}, s.Queue())

	s.Requeue(1, k)
	assert.Equal(t, []Kind{SlowTime, BombPiece, FreezeLine}, s.Queue())

	_, ok = s.Take(5)
	assert.False(t, ok)
}

func TestSystem_Reset(t *testing.T) {
	s := New(DefaultSettings(), true)
	s.Activate(SlowTime, t0)
	s.Enqueue(BombPiece)

	s.Reset()
	assert.False(t, s.IsActive(SlowTime))
	assert.False(t, s.OnCooldown(SlowTime, t0))
	assert.Empty(t, s.Queue())
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind("bomb")
	require.NoError(t, err)
	assert.Equal(t, BombPiece, got)

	_, err = ParseKind("laser")
	assert.Error(t, err)
}

func TestRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 50; i++ {
		assert.True(t, Random(rng).Valid())
	}
}
