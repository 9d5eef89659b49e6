package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Prober is an open connection the supervisor can ping.
type Prober interface {
	probe()
}

// Supervisor pings every open connection on a fixed interval, whether or
// not it has authenticated. Connections that stop answering hit their read
// deadline and close themselves.
type Supervisor struct {
	interval time.Duration
	targets  func() []Prober

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewSupervisor(interval time.Duration, targets func() []Prober) *Supervisor {
	return &Supervisor{
		interval: interval,
		targets:  targets,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (sv *Supervisor) Start() {
	if !sv.started.CompareAndSwap(false, true) {
		return
	}
	go sv.run()
}

func (sv *Supervisor) run() {
	defer close(sv.done)

	ticker := time.NewTicker(sv.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sv.sweep()
		case <-sv.stop:
			return
		}
	}
}

// sweep probes each target on its own goroutine so a stalled peer cannot
// hold up the rest.
func (sv *Supervisor) sweep() {
	targets := sv.targets()

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t Prober) {
			defer wg.Done()
			t.probe()
		}(t)
	}
	wg.Wait()

	logrus.WithFields(logrus.Fields{
		"function":    "sweep",
		"connections": len(targets),
	}).Debug("Liveness sweep complete")
}

// Stop ends the sweep loop and waits for it to exit. Safe to call twice.
func (sv *Supervisor) Stop() {
	sv.stopOnce.Do(func() {
		close(sv.stop)
	})
	if sv.started.Load() {
		<-sv.done
	}
}
