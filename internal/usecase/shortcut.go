package usecase

import (
	"errors"
	"sync"
)

var ErrShortcutRegistered = errors.New("capture shortcut is already registered")

// ShortcutKey is the key that triggers the capture callback.
const ShortcutKey = " "

// ShortcutRegistrar holds the single global capture shortcut. Register and
// the returned unregister func must be paired.
type ShortcutRegistrar struct {
	mu       sync.Mutex
	callback func()
	token    *int
}

func NewShortcutRegistrar() *ShortcutRegistrar {
	return &ShortcutRegistrar{}
}

// Register installs callback. The returned func removes it and is safe to
// call more than once.
func (r *ShortcutRegistrar) Register(callback func()) (func(), error) {
	if callback == nil {
		return nil, errors.New("shortcut callback is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.callback != nil {
		return nil, ErrShortcutRegistered
	}

	token := new(int)
	r.callback = callback
	r.token = token

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.token == token {
				r.callback = nil
				r.token = nil
			}
		})
	}, nil
}

// HandleKey invokes the callback for the space bar when focus is outside a
// text input. It reports whether the key was consumed.
func (r *ShortcutRegistrar) HandleKey(key string, inTextInput bool) bool {
	if inTextInput || (key != ShortcutKey && key != "Space") {
		return false
	}

	r.mu.Lock()
	callback := r.callback
	r.mu.Unlock()

	if callback == nil {
		return false
	}
	callback()
	return true
}

// Registered reports whether a callback is installed.
func (r *ShortcutRegistrar) Registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callback != nil
}
