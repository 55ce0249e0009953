package browser

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Vector2D is a point in viewport coordinates.
type Vector2D struct {
	X float64
	Y float64
}

// Pointer dispatches mouse events with a lightly humanized trajectory.
// Perlin noise perturbs the path between the current and target position so
// repeated gestures do not produce pixel-identical traces, which some map
// frontends throttle as synthetic input.
type Pointer struct {
	mu     sync.Mutex
	pos    Vector2D
	rng    *rand.Rand
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin
	logger *zap.Logger
}

// NewPointer creates a pointer starting at the viewport origin.
func NewPointer(logger *zap.Logger) *Pointer {
	seed := time.Now().UnixNano()
	alpha, beta, n := 2.0, 2.0, int32(3)
	return &Pointer{
		rng:    rand.New(rand.NewSource(seed)),
		noiseX: perlin.NewPerlin(alpha, beta, n, seed),
		noiseY: perlin.NewPerlin(alpha, beta, n, seed+1),
		logger: logger,
	}
}

// trajectory produces the intermediate move positions from a to b. The
// jitter amplitude fades to zero at both endpoints so the final event lands
// exactly on the target.
func trajectory(a, b Vector2D, steps int, noiseX, noiseY *perlin.Perlin) []Vector2D {
	if steps < 2 {
		steps = 2
	}
	points := make([]Vector2D, 0, steps)
	dist := math.Hypot(b.X-a.X, b.Y-a.Y)
	amplitude := math.Min(6.0, dist/20.0)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		// Smoothstep easing, fast in the middle of the gesture.
		eased := t * t * (3 - 2*t)
		fade := math.Sin(math.Pi * t)
		jx := noiseX.Noise1D(t*2.5) * amplitude * fade
		jy := noiseY.Noise1D(t*2.5) * amplitude * fade
		points = append(points, Vector2D{
			X: a.X + (b.X-a.X)*eased + jx,
			Y: a.Y + (b.Y-a.Y)*eased + jy,
		})
	}
	// Land exactly on the target.
	points[len(points)-1] = b
	return points
}

// ClickAt moves to the target along a jittered path and clicks. The ctx
// must be a ChromeDP tab context.
func (p *Pointer) ClickAt(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	from := p.pos
	steps := 8 + p.rng.Intn(8)
	p.mu.Unlock()

	target := Vector2D{X: x, Y: y}
	actions := make([]chromedp.Action, 0, steps+1)
	for _, pt := range trajectory(from, target, steps, p.noiseX, p.noiseY) {
		actions = append(actions, chromedp.MouseEvent(input.MouseMoved, pt.X, pt.Y))
	}
	actions = append(actions, chromedp.MouseClickXY(x, y))

	if err := chromedp.Run(ctx, actions...); err != nil {
		return err
	}

	p.mu.Lock()
	p.pos = target
	p.mu.Unlock()
	p.logger.Debug("Pointer click dispatched", zap.Float64("x", x), zap.Float64("y", y))
	return nil
}
