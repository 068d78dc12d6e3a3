package runner

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

// Hooks run around the serving period. A failing OnStart aborts Run.
type Hooks struct {
	OnStart func() error
	OnStop  func()
}

// Drainer finishes in-flight sessions before shutdown.
type Drainer interface {
	Drain() error
}

const (
	AppName    = "MOCKVIEW"
	AppVersion = "dev"
)

// BannerOutput receives the startup banner; nil disables it.
var BannerOutput io.Writer = os.Stdout

func PrintBanner() {
	if BannerOutput == nil {
		return
	}
	tpl := "{{ .Title \"" + AppName + "\" \"\" 0 }}\nVersion: " + AppVersion + "\n"
	banner.Init(BannerOutput, true, false, bytes.NewBufferString(tpl))
}

// DrainerFunc adapts a function to Drainer.
type DrainerFunc func() error

func (f DrainerFunc) Drain() error { return f() }
