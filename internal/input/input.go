package input

import (
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// Action is a logical application action, not a physical key
type Action int

const (
	ActionQuit Action = iota
	ActionToggleStats
	ActionToggleVSync
	ActionToggleGrid
	ActionPause
	ActionMouseLeft
	ActionCount // Sentinel value for array sizing
)

// InputManager maps keys and mouse buttons to actions and tracks per-frame
// press/release edges
type InputManager struct {
	mu sync.RWMutex

	keyToActions         map[glfw.Key][]Action
	mouseButtonToActions map[glfw.MouseButton][]Action

	held         [ActionCount]bool
	justPressed  [ActionCount]bool
	justReleased [ActionCount]bool
}

// NewInputManager creates an InputManager with the default bindings
func NewInputManager() *InputManager {
	im := &InputManager{
		keyToActions:         make(map[glfw.Key][]Action),
		mouseButtonToActions: make(map[glfw.MouseButton][]Action),
	}

	im.BindKey(glfw.KeyEscape, ActionQuit)
	im.BindKey(glfw.KeyF3, ActionToggleStats)
	im.BindKey(glfw.KeyV, ActionToggleVSync)
	im.BindKey(glfw.KeyG, ActionToggleGrid)
	im.BindKey(glfw.KeySpace, ActionPause)
	im.BindMouseButton(glfw.MouseButtonLeft, ActionMouseLeft)

	return im
}

func valid(a Action) bool { return a >= 0 && a < ActionCount }

// BindKey binds a physical key to an action. A key may drive several actions
func (im *InputManager) BindKey(key glfw.Key, action Action) {
	if !valid(action) {
		return
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.keyToActions[key] = append(im.keyToActions[key], action)
}

func (im *InputManager) BindMouseButton(button glfw.MouseButton, action Action) {
	if !valid(action) {
		return
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.mouseButtonToActions[button] = append(im.mouseButtonToActions[button], action)
}

func (im *InputManager) apply(actions []Action, pressed bool) {
	for _, act := range actions {
		if pressed && !im.held[act] {
			im.justPressed[act] = true
		}
		if !pressed && im.held[act] {
			im.justReleased[act] = true
		}
		im.held[act] = pressed
	}
}

// HandleKeyEvent updates action state from a key event. Repeats count as held
func (im *InputManager) HandleKeyEvent(key glfw.Key, action glfw.Action) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.apply(im.keyToActions[key], action == glfw.Press || action == glfw.Repeat)
}

func (im *InputManager) HandleMouseButtonEvent(button glfw.MouseButton, action glfw.Action) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.apply(im.mouseButtonToActions[button], action == glfw.Press)
}

// Attach installs key and mouse button callbacks on window
func (im *InputManager) Attach(window *glfw.Window) {
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		im.HandleKeyEvent(key, action)
	})
	window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		im.HandleMouseButtonEvent(button, action)
	})
}

// PostUpdate clears edge flags. Call it once at the end of each frame
func (im *InputManager) PostUpdate() {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.justPressed = [ActionCount]bool{}
	im.justReleased = [ActionCount]bool{}
}

// IsActive reports whether the action is held down
func (im *InputManager) IsActive(action Action) bool {
	if !valid(action) {
		return false
	}
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.held[action]
}

// JustPressed reports whether the action was pressed during this frame
func (im *InputManager) JustPressed(action Action) bool {
	if !valid(action) {
		return false
	}
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.justPressed[action]
}

func (im *InputManager) JustReleased(action Action) bool {
	if !valid(action) {
		return false
	}
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.justReleased[action]
}
