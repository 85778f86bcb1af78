package labels

import (
	"fmt"
	"math"

	"github.com/felixgeelhaar/statekit"

	"github.com/Lllllllleong/pdfmailmerge/internal/geometry"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// DragThreshold is the movement, in device pixels on either axis, that turns
// a press into a drag.
const DragThreshold = 3.0

// GestureState is the pointer gesture state of a label.
type GestureState string

const (
	GestureIdle     GestureState = "idle"
	GesturePressed  GestureState = "pressed"
	GestureDragging GestureState = "dragging"
)

const (
	eventPress   statekit.EventType = "PRESS"
	eventMove    statekit.EventType = "MOVE"
	eventRelease statekit.EventType = "RELEASE"
)

// Outcome is what a completed gesture amounted to.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeClick
	OutcomeDragEnd
)

// Pointer is a pointer position in device pixels relative to the render surface.
type Pointer struct {
	X, Y float64
}

type gestureContext struct {
	start     Pointer
	threshold float64
}

func guardBeyondThreshold(ctx *gestureContext, event statekit.Event) bool {
	p, ok := event.Payload.(Pointer)
	if !ok || ctx == nil {
		return false
	}
	return math.Abs(p.X-ctx.start.X) > ctx.threshold || math.Abs(p.Y-ctx.start.Y) > ctx.threshold
}

func newGestureMachine() (*statekit.MachineConfig[*gestureContext], error) {
	return statekit.NewMachine[*gestureContext]("label-gesture").
		WithInitial(statekit.StateID(GestureIdle)).
		WithContext(&gestureContext{}).
		WithGuard("beyondThreshold", guardBeyondThreshold).
		State(statekit.StateID(GestureIdle)).
			On(eventPress).Target(statekit.StateID(GesturePressed)).
			Done().
		State(statekit.StateID(GesturePressed)).
			On(eventMove).Target(statekit.StateID(GestureDragging)).Guard("beyondThreshold").
			On(eventRelease).Target(statekit.StateID(GestureIdle)).
			Done().
		State(statekit.StateID(GestureDragging)).
			On(eventRelease).Target(statekit.StateID(GestureIdle)).
			Done().
		Build()
}

// Gesture distinguishes a click from a drag on a label and applies the
// result to a Store. It is driven by synthetic pointer events so it does not
// depend on any input API.
type Gesture struct {
	store  *Store
	interp *statekit.Interpreter[*gestureContext]
	ctx    *gestureContext

	labelID string
	// offset between the pointer and the label's top-left corner at press time
	offset Pointer
	rc     *models.RenderContext
}

// NewGesture creates a gesture tracker bound to store.
func NewGesture(store *Store) (*Gesture, error) {
	machine, err := newGestureMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to build gesture machine: %w", err)
	}
	gctx := &gestureContext{threshold: DragThreshold}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **gestureContext) {
		*c = gctx
	})
	interp.Start()
	return &Gesture{store: store, interp: interp, ctx: gctx}, nil
}

// State returns the current gesture state.
func (g *Gesture) State() GestureState {
	return GestureState(g.interp.State().Value)
}

// Press starts a gesture on a label. rc is the render context of the page the
// label is displayed on. A press while another gesture is active is ignored.
func (g *Gesture) Press(labelID string, at Pointer, rc models.RenderContext) {
	if g.State() != GestureIdle {
		return
	}
	l, ok := g.store.Get(labelID)
	if !ok {
		return
	}
	lx, ly := geometry.ToDevicePixels(l.RelativeX, l.RelativeY, rc)

	g.labelID = labelID
	g.offset = Pointer{X: at.X - lx, Y: at.Y - ly}
	g.rc = &rc
	g.ctx.start = at
	g.interp.Send(statekit.Event{Type: eventPress, Payload: at})
}

// Move feeds a pointer movement. Once dragging, the label follows the pointer.
// It reports whether the gesture is a drag.
func (g *Gesture) Move(at Pointer) bool {
	switch g.State() {
	case GesturePressed:
		g.interp.Send(statekit.Event{Type: eventMove, Payload: at})
		if g.State() != GestureDragging {
			return false
		}
	case GestureDragging:
	default:
		return false
	}

	x := at.X - g.offset.X
	y := at.Y - g.offset.Y
	g.store.Update(g.labelID, Patch{X: &x, Y: &y}, g.rc)
	return true
}

// Release ends the gesture. A release without a drag toggles the label's
// selection.
func (g *Gesture) Release() Outcome {
	state := g.State()
	if state == GestureIdle {
		return OutcomeNone
	}
	g.interp.Send(statekit.Event{Type: eventRelease})

	id := g.labelID
	g.labelID = ""
	g.rc = nil

	if state == GesturePressed {
		g.store.SelectExclusiveOrToggle(id)
		return OutcomeClick
	}
	g.store.Select(id)
	return OutcomeDragEnd
}

// Cancel abandons the gesture without selecting, as when the page is left
// mid-drag.
func (g *Gesture) Cancel() {
	if g.State() == GestureIdle {
		return
	}
	g.interp.Send(statekit.Event{Type: eventRelease})
	g.labelID = ""
	g.rc = nil
}
