package offpolicy

import (
	"testing"

	"github.com/Souphis/yadrl/replay"
)

type stubCritic struct {
	calls int
}

func (s *stubCritic) UpdateCritic(batch replay.Batch,
	effectiveDiscount float64) (float64, error) {
	s.calls++
	return 0, nil
}

type stubActor struct {
	calls int
}

func (s *stubActor) UpdateActor(batch replay.Batch) (float64, error) {
	s.calls++
	return 0, nil
}

type stubNoise struct {
	resets int
}

func (s *stubNoise) Sample() []float64 { return []float64{0} }
func (s *stubNoise) Reset()            { s.resets++ }

func newMemory(t *testing.T) *replay.Memory {
	t.Helper()
	memory, err := replay.New(replay.Config{
		Capacity:  32,
		StateDim:  2,
		ActionDim: 1,
		Backend:   replay.Gonum,
		Seed:      14,
	})
	if err != nil {
		t.Fatal(err)
	}
	return memory
}

func transition(reward float64, done bool) replay.Transition {
	return replay.NewTransition([]float64{1, 2}, []float64{0}, reward,
		[]float64{3, 4}, done)
}

func TestLoopWarmUpGatesUpdates(t *testing.T) {
	critic := &stubCritic{}
	loop, err := New(newMemory(t), nil, critic, nil, nil, nil, Config{
		BatchSize:             2,
		WarmUp:                5,
		PolicyUpdateFrequency: 1,
		Discount:              0.99,
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		if err := loop.Observe(transition(1, false)); err != nil {
			t.Fatal(err)
		}
		if err := loop.Update(); err != nil {
			t.Fatal(err)
		}
	}
	if critic.calls != 0 {
		t.Errorf("expected no critic updates during warm-up, got %v",
			critic.calls)
	}
	if loop.State() != WarmingUp {
		t.Errorf("expected WarmingUp, got %v", loop.State())
	}

	if err := loop.Observe(transition(1, false)); err != nil {
		t.Fatal(err)
	}
	if loop.State() != Training {
		t.Errorf("expected Training after warm-up, got %v", loop.State())
	}

	if err := loop.Update(); err != nil {
		t.Fatal(err)
	}
	if critic.calls != 1 {
		t.Errorf("expected 1 critic update after warm-up, got %v",
			critic.calls)
	}
}

func TestLoopDelaysActorUpdates(t *testing.T) {
	critic := &stubCritic{}
	actor := &stubActor{}
	loop, err := New(newMemory(t), nil, critic, actor, nil, nil, Config{
		BatchSize:             2,
		WarmUp:                1,
		PolicyUpdateFrequency: 3,
		Discount:              0.99,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.Observe(transition(1, false)); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 7; i++ {
		if err := loop.Update(); err != nil {
			t.Fatal(err)
		}
	}

	if critic.calls != 7 {
		t.Errorf("expected critic update on every call, got %v", critic.calls)
	}
	if actor.calls != 2 {
		t.Errorf("expected actor updates on calls 3 and 6, got %v",
			actor.calls)
	}
}

func TestLoopResetsNoiseOnEpisodeEnd(t *testing.T) {
	noise := &stubNoise{}
	loop, err := New(newMemory(t), nil, &stubCritic{}, nil, noise, nil,
		Config{
			BatchSize:             2,
			WarmUp:                1,
			PolicyUpdateFrequency: 1,
			Discount:              0.99,
		})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.Observe(transition(1, false)); err != nil {
		t.Fatal(err)
	}
	if noise.resets != 0 {
		t.Errorf("expected no reset mid-episode, got %v", noise.resets)
	}

	if err := loop.Observe(transition(1, true)); err != nil {
		t.Fatal(err)
	}
	if noise.resets != 1 {
		t.Errorf("expected one reset on episode end, got %v", noise.resets)
	}
}

func TestLoopRoutesThroughRollout(t *testing.T) {
	rollout, err := replay.NewRollout(3, 0.99, 2, 1, replay.Gonum)
	if err != nil {
		t.Fatal(err)
	}
	memory := newMemory(t)
	loop, err := New(memory, rollout, &stubCritic{}, nil, nil, nil, Config{
		BatchSize:             2,
		WarmUp:                1,
		PolicyUpdateFrequency: 1,
		Discount:              0.99,
	})
	if err != nil {
		t.Fatal(err)
	}

	// The window must fill before any transition reaches the memory
	for i := 0; i < 2; i++ {
		if err := loop.Observe(transition(1, false)); err != nil {
			t.Fatal(err)
		}
	}
	if memory.Size() != 0 {
		t.Errorf("expected empty memory before window fills, got size %v",
			memory.Size())
	}

	if err := loop.Observe(transition(1, false)); err != nil {
		t.Fatal(err)
	}
	if memory.Size() != 1 {
		t.Errorf("expected one n-step transition, got size %v", memory.Size())
	}

	// Episode end resets the window, so the next two pushes store
	// nothing new
	if err := loop.Observe(transition(1, true)); err != nil {
		t.Fatal(err)
	}
	sizeAfterDone := memory.Size()
	for i := 0; i < 2; i++ {
		if err := loop.Observe(transition(1, false)); err != nil {
			t.Fatal(err)
		}
	}
	if memory.Size() != sizeAfterDone {
		t.Errorf("expected window to refill after reset, got size %v",
			memory.Size())
	}
}

func TestLoopEffectiveDiscount(t *testing.T) {
	rollout, err := replay.NewRollout(3, 0.5, 2, 1, replay.Gonum)
	if err != nil {
		t.Fatal(err)
	}
	loop, err := New(newMemory(t), rollout, &stubCritic{}, nil, nil, nil,
		Config{
			BatchSize:             2,
			WarmUp:                1,
			PolicyUpdateFrequency: 1,
			Discount:              0.5,
		})
	if err != nil {
		t.Fatal(err)
	}
	if loop.EffectiveDiscount() != 0.125 {
		t.Errorf("expected gamma^3 = 0.125, got %v", loop.EffectiveDiscount())
	}
}

func TestLoopRejectsMismatchedRolloutDiscount(t *testing.T) {
	rollout, err := replay.NewRollout(3, 0.9, 2, 1, replay.Gonum)
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(newMemory(t), rollout, &stubCritic{}, nil, nil, nil,
		Config{
			BatchSize:             2,
			WarmUp:                1,
			PolicyUpdateFrequency: 1,
			Discount:              0.99,
		})
	if err == nil {
		t.Error("expected error for mismatched rollout discount")
	}
}
