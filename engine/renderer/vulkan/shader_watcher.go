package vulkan

import (
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/prismrender/prism/engine/core"
)

// ShaderWatcher watches the shader directory and flags pipeline rebuilds
// when a .spv file changes on disk. The render loop polls ConsumeDirty
// between frames; pipelines are never torn down mid-frame.
type ShaderWatcher struct {
	watcher *fsnotify.Watcher
	dirty   atomic.Bool
	done    chan struct{}
}

func NewShaderWatcher(shadersPath string) (*ShaderWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(shadersPath); err != nil {
		watcher.Close()
		return nil, err
	}

	sw := &ShaderWatcher{
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go sw.run()

	core.LogInfo("watching shader directory %s", shadersPath)
	return sw, nil
}

func (sw *ShaderWatcher) run() {
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".spv") {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				core.LogInfo("shader changed on disk: %s", event.Name)
				sw.dirty.Store(true)
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher error: %s", err)
		case <-sw.done:
			return
		}
	}
}

// ConsumeDirty reports whether a shader changed since the last call and
// clears the flag.
func (sw *ShaderWatcher) ConsumeDirty() bool {
	return sw.dirty.Swap(false)
}

func (sw *ShaderWatcher) Close() {
	close(sw.done)
	sw.watcher.Close()
}
