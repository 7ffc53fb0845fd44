package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ibeckermayer/maprobe/internal/config"
)

// Move is one pointer move and the pause that follows it
type Move struct {
	X, Y  float64
	Pause time.Duration
}

// ActivityPlan is a randomized burst of pointer and scroll input
type ActivityPlan struct {
	Moves       []Move
	Scroll      int
	ScrollPause time.Duration
	ReturnPause time.Duration
}

// PlanActivity draws a plan starting from the middle of a width x height
// viewport. Pointer positions never leave the viewport.
func PlanActivity(r *rand.Rand, cfg config.ActivityConfig, width, height int) ActivityPlan {
	x, y := width/2, height/2

	n := between(r, cfg.MinMoves, cfg.MaxMoves)
	moves := make([]Move, 0, n)
	for i := 0; i < n; i++ {
		x = clamp(x+between(r, -cfg.MaxOffset, cfg.MaxOffset), 0, width-1)
		y = clamp(y+between(r, -cfg.MaxOffset, cfg.MaxOffset), 0, height-1)
		moves = append(moves, Move{
			X:     float64(x),
			Y:     float64(y),
			Pause: pause(r, 500*time.Millisecond, 1500*time.Millisecond),
		})
	}

	return ActivityPlan{
		Moves:       moves,
		Scroll:      between(r, cfg.MinScroll, cfg.MaxScroll),
		ScrollPause: pause(r, time.Second, 2*time.Second),
		ReturnPause: pause(r, 500*time.Millisecond, time.Second),
	}
}

// actor is the input surface a plan is played against
type actor interface {
	MoveMouse(ctx context.Context, x, y float64) error
	ScrollBy(ctx context.Context, dy int) error
}

// play runs the plan, stopping at the first failure
func (p ActivityPlan) play(ctx context.Context, a actor, sleep func(context.Context, time.Duration) error) error {
	for i, m := range p.Moves {
		if err := a.MoveMouse(ctx, m.X, m.Y); err != nil {
			return fmt.Errorf("pointer move %d: %w", i+1, err)
		}
		if err := sleep(ctx, m.Pause); err != nil {
			return err
		}
	}

	if err := a.ScrollBy(ctx, p.Scroll); err != nil {
		return fmt.Errorf("scroll down: %w", err)
	}
	if err := sleep(ctx, p.ScrollPause); err != nil {
		return err
	}

	if err := a.ScrollBy(ctx, -p.Scroll); err != nil {
		return fmt.Errorf("scroll back: %w", err)
	}
	return sleep(ctx, p.ReturnPause)
}

// between returns a uniform int in [lo, hi]
func between(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

func pause(r *rand.Rand, lo, hi time.Duration) time.Duration {
	return lo + time.Duration(r.Int64N(int64(hi-lo)+1))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
