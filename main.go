// Prism is a small deferred-rendering engine; this binary runs the test
// scene against the engine package.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prismrender/prism/engine"
	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/testbed"
)

const configPath = "prism.toml"

func main() {
	cfg, err := config.Load(configPath)
	if err != nil {
		core.LogWarn("config %s not usable (%s), falling back to defaults", configPath, err.Error())
		cfg = config.Default()
	}

	tb := testbed.NewTestGame(cfg)

	eng, err := engine.New(tb.Game)
	if err != nil {
		panic(err)
	}
	if err := eng.Initialize(); err != nil {
		panic(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		_ = eng.Shutdown()
	}()

	if err := eng.Run(); err != nil {
		panic(err)
	}
}
