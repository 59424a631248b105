package core

import (
	"sync"

	"github.com/prismrender/prism/engine/containers"
)

// Bounded so a stalled frame loop cannot grow the event queue without limit;
// once full the oldest event is dropped.
const inputQueueCapacity = 512

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_ENTER     KeyCode = 0x0D
	KEY_TAB       KeyCode = 0x09
	KEY_SHIFT     KeyCode = 0x10
	KEY_CONTROL   KeyCode = 0x11
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_A         KeyCode = 0x41
	KEY_D         KeyCode = 0x44
	KEY_E         KeyCode = 0x45
	KEY_Q         KeyCode = 0x51
	KEY_S         KeyCode = 0x53
	KEY_W         KeyCode = 0x57
	KEYS_MAX_KEYS KeyCode = 0x100
)

type InputEventKind uint8

const (
	InputEventKeyPressed InputEventKind = iota
	InputEventKeyReleased
	InputEventButtonPressed
	InputEventButtonReleased
	InputEventMouseMoved
	InputEventMouseWheel
)

// One queued keyboard/mouse event, drained by QueryInput.
type InputEvent struct {
	Kind   InputEventKind
	Key    KeyCode
	Button Button
	X, Y   int32
	Wheel  int8
}

// InputBatch is the drained event queue plus the held-key/button state at the
// time of the drain.
type InputBatch struct {
	Events      []InputEvent
	KeysDown    [KEYS_MAX_KEYS]bool
	ButtonsDown [BUTTON_MAX_BUTTONS]bool
	MouseX      int32
	MouseY      int32
}

type keyboardState struct {
	keys [KEYS_MAX_KEYS]bool
}

type mouseState struct {
	x, y    int32
	buttons [BUTTON_MAX_BUTTONS]bool
}

type inputState struct {
	mu       sync.Mutex
	keyboard keyboardState
	mouse    mouseState
	queue    *containers.RingQueue[InputEvent]
}

// push drops the oldest event when the queue is full. Caller holds mu.
func (s *inputState) push(event InputEvent) {
	if s.queue.IsFull() {
		_, _ = s.queue.Dequeue()
	}
	_ = s.queue.Enqueue(event)
}

var onceInput sync.Once
var inState *inputState

func InputInitialize() error {
	onceInput.Do(func() {
		inState = &inputState{
			queue: containers.NewRingQueue[InputEvent](inputQueueCapacity),
		}
	})
	return nil
}

func InputShutdown() error {
	return nil
}

func InputProcessKey(key KeyCode, pressed bool) {
	if key >= KEYS_MAX_KEYS {
		return
	}
	inState.mu.Lock()
	changed := inState.keyboard.keys[key] != pressed
	inState.keyboard.keys[key] = pressed
	if changed {
		kind := InputEventKeyReleased
		if pressed {
			kind = InputEventKeyPressed
		}
		inState.push(InputEvent{Kind: kind, Key: key})
	}
	inState.mu.Unlock()

	if changed {
		code := EVENT_CODE_KEY_RELEASED
		if pressed {
			code = EVENT_CODE_KEY_PRESSED
		}
		context := EventContext{}
		context.Data.U16[0] = uint16(key)
		EventFire(code, nil, context)
	}
}

func InputProcessButton(button Button, pressed bool) {
	if button >= BUTTON_MAX_BUTTONS {
		return
	}
	inState.mu.Lock()
	changed := inState.mouse.buttons[button] != pressed
	inState.mouse.buttons[button] = pressed
	if changed {
		kind := InputEventButtonReleased
		if pressed {
			kind = InputEventButtonPressed
		}
		inState.push(InputEvent{Kind: kind, Button: button})
	}
	inState.mu.Unlock()

	if changed {
		code := EVENT_CODE_BUTTON_RELEASED
		if pressed {
			code = EVENT_CODE_BUTTON_PRESSED
		}
		context := EventContext{}
		context.Data.U16[0] = uint16(button)
		EventFire(code, nil, context)
	}
}

func InputProcessMouseMove(x, y int32) {
	inState.mu.Lock()
	moved := inState.mouse.x != x || inState.mouse.y != y
	inState.mouse.x = x
	inState.mouse.y = y
	if moved {
		inState.push(InputEvent{Kind: InputEventMouseMoved, X: x, Y: y})
	}
	inState.mu.Unlock()
}

func InputProcessMouseWheel(zDelta int8) {
	inState.mu.Lock()
	inState.push(InputEvent{Kind: InputEventMouseWheel, Wheel: zDelta})
	inState.mu.Unlock()
}

func InputIsKeyDown(key KeyCode) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	inState.mu.Lock()
	defer inState.mu.Unlock()
	return inState.keyboard.keys[key]
}

func InputIsButtonDown(button Button) bool {
	if button >= BUTTON_MAX_BUTTONS {
		return false
	}
	inState.mu.Lock()
	defer inState.mu.Unlock()
	return inState.mouse.buttons[button]
}

func InputGetMousePosition() (int32, int32) {
	inState.mu.Lock()
	defer inState.mu.Unlock()
	return inState.mouse.x, inState.mouse.y
}

// QueryInput drains the queued events and snapshots the held state.
func QueryInput() InputBatch {
	inState.mu.Lock()
	defer inState.mu.Unlock()

	events := make([]InputEvent, 0, inState.queue.Len())
	for {
		event, err := inState.queue.Dequeue()
		if err != nil {
			break
		}
		events = append(events, event)
	}

	return InputBatch{
		Events:      events,
		KeysDown:    inState.keyboard.keys,
		ButtonsDown: inState.mouse.buttons,
		MouseX:      inState.mouse.x,
		MouseY:      inState.mouse.y,
	}
}
