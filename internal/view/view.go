// Package view derives the mirror's display state from status records.
// Rendering is abstracted behind the Renderer interface so the state
// machine is independent of any rendering target.
package view

import (
	"sync"
	"time"

	"facemirror/internal/status"
)

// State is the top-level display state.
type State string

const (
	StateBooting  State = "booting"
	StateGuest    State = "guest"
	StateKnown    State = "known"
	StateSleeping State = "sleeping"
)

// OverlayPhase tracks the dimming overlay explicitly instead of inferring
// it from a rendered style value.
type OverlayPhase string

const (
	OverlayHidden    OverlayPhase = "hidden"
	OverlayFadingIn  OverlayPhase = "fadingIn"
	OverlayVisible   OverlayPhase = "visible"
	OverlayFadingOut OverlayPhase = "fadingOut"
)

// Scene describes what the user-facing part of the mirror should show.
type Scene struct {
	State     State  `json:"state"`
	User      string `json:"user,omitempty"`
	Known     bool   `json:"known"`
	Message   string `json:"message"`
	ImagePath string `json:"imagePath,omitempty"`
}

// Renderer receives display updates. Implementations must not block.
type Renderer interface {
	RenderScene(Scene)
	RenderOverlay(phase OverlayPhase, opacity float64)
}

// Config holds presentation settings.
type Config struct {
	GracePeriod  time.Duration // sleep signals suppressed for this long after start
	FadeDuration time.Duration // overlay fade in/out duration
	SleepOpacity float64       // overlay opacity while sleeping
	Dim          bool          // overlay enabled at all
	GuestPrompt  string        // message shown in guest state
}

// View is the presentation state machine. All methods are safe for
// concurrent use; updates are serialized internally.
type View struct {
	mu       sync.Mutex
	cfg      Config
	renderer Renderer

	startedAt time.Time
	now       func() time.Time
	afterFunc func(time.Duration, func())

	initialized bool
	sleeping    bool
	scene       Scene
	overlay     OverlayPhase
	fadeSeq     int // invalidates in-flight fade completion timers
}

// New creates a view. The renderer may be nil until Mount is called;
// updates before then are no-ops.
func New(cfg Config, renderer Renderer) *View {
	v := &View{
		cfg:       cfg,
		renderer:  renderer,
		now:       time.Now,
		overlay:   OverlayHidden,
		scene:     Scene{State: StateBooting},
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
	v.startedAt = v.now()
	return v
}

// Mount attaches the renderer. Until mounted, the view drops updates.
func (v *View) Mount(r Renderer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renderer = r
}

// Greeting formats the welcome message for a known user.
func Greeting(name string) string {
	return "Welcome back, " + name + "!"
}

// DeriveSleeping applies the startup grace period: sleep signals within
// the grace window are suppressed to tolerate the recognition process's
// own startup latency. Past the window the record's flag is tracked
// exactly.
func DeriveSleeping(recorded bool, elapsed, grace time.Duration) bool {
	if elapsed < grace {
		return false
	}
	return recorded
}

// Apply processes one status record with its resolved display image.
func (v *View) Apply(rec status.Record, imagePath string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.renderer == nil {
		// Not mounted yet.
		return
	}

	elapsed := v.now().Sub(v.startedAt)
	v.sleeping = DeriveSleeping(rec.Sleeping, elapsed, v.cfg.GracePeriod)

	// The known-user check is skipped entirely while sleeping; the last
	// scene stays behind the overlay.
	if !v.sleeping {
		scene := v.buildScene(rec, imagePath)
		if scene != v.scene || !v.initialized {
			v.scene = scene
			v.renderer.RenderScene(scene)
		}
	} else {
		v.scene.State = StateSleeping
	}

	v.initialized = true
	v.resyncLocked()
}

func (v *View) buildScene(rec status.Record, imagePath string) Scene {
	user := rec.UserName()
	if user != "" && user != "Guest" && rec.IsKnown {
		return Scene{
			State:     StateKnown,
			User:      user,
			Known:     true,
			Message:   Greeting(user),
			ImagePath: imagePath,
		}
	}
	return Scene{
		State:     StateGuest,
		Message:   v.cfg.GuestPrompt,
		ImagePath: imagePath,
	}
}

// Resync reconciles the overlay with the desired sleep state. It is
// idempotent: when the overlay already matches, nothing is rendered.
func (v *View) Resync() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.renderer == nil {
		return
	}
	v.resyncLocked()
}

func (v *View) resyncLocked() {
	desired := v.sleeping && v.cfg.Dim

	switch {
	case desired && (v.overlay == OverlayHidden || v.overlay == OverlayFadingOut):
		v.transitionLocked(OverlayFadingIn, OverlayVisible, v.cfg.SleepOpacity)
	case !desired && (v.overlay == OverlayVisible || v.overlay == OverlayFadingIn):
		v.transitionLocked(OverlayFadingOut, OverlayHidden, 0)
	}
}

// transitionLocked starts a fade and schedules its completion. A fade
// that is superseded before its timer fires is abandoned at fire time:
// the sequence check replaces the old opacity-guard heuristic.
func (v *View) transitionLocked(from, to OverlayPhase, opacity float64) {
	v.fadeSeq++
	seq := v.fadeSeq
	v.overlay = from
	v.renderer.RenderOverlay(from, opacity)

	v.afterFunc(v.cfg.FadeDuration, func() {
		v.completeFade(seq, from, to, opacity)
	})
}

func (v *View) completeFade(seq int, from, to OverlayPhase, opacity float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.fadeSeq != seq || v.overlay != from {
		// A newer transition took over mid-fade.
		return
	}
	v.overlay = to
	if v.renderer != nil {
		v.renderer.RenderOverlay(to, opacity)
	}
}

// Snapshot returns the current scene and overlay state for late joiners.
func (v *View) Snapshot() (Scene, OverlayPhase, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	opacity := 0.0
	if v.overlay == OverlayFadingIn || v.overlay == OverlayVisible {
		opacity = v.cfg.SleepOpacity
	}
	return v.scene, v.overlay, opacity
}

// Sleeping reports the derived sleep state.
func (v *View) Sleeping() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sleeping
}

// State returns the current top-level state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return StateBooting
	}
	if v.sleeping {
		return StateSleeping
	}
	return v.scene.State
}
