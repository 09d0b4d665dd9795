// Expvar-based runtime counters: live session and channel counts, event
// throughput, fan-out totals. Updates are funneled through a buffered
// channel to a single updater goroutine so the hot paths never block on
// expvar internals.

package main

import (
	"expvar"
	"net/http"
	"runtime"
	"time"

	"github.com/chatter/relay/server/logs"
)

type varUpdate struct {
	// Name of the variable to update.
	varname string
	// Integer value to publish.
	count int64
	// When true the count is added to the current value instead of
	// replacing it.
	inc bool
}

// statsInit mounts the expvar handler and starts the updater goroutine.
// An empty or "-" path disables stats reporting entirely.
func statsInit(mux *http.ServeMux, path string) {
	if path == "" || path == "-" {
		return
	}

	mux.Handle(path, expvar.Handler())
	globals.statsUpdate = make(chan *varUpdate, 1024)

	start := time.Now()
	expvar.Publish("Uptime", expvar.Func(func() interface{} {
		return time.Since(start).Seconds()
	}))
	expvar.Publish("NumGoroutines", expvar.Func(func() interface{} {
		return runtime.NumGoroutine()
	}))

	go statsUpdater()

	logs.Info.Printf("stats: variables exposed at '%s'", path)
}

// statsRegisterInt publishes a new integer variable. Must be called before
// the first statsSet/statsInc for that name.
func statsRegisterInt(name string) {
	expvar.Publish(name, new(expvar.Int))
}

// statsSet replaces the value of an integer variable. Non-blocking: the
// update is dropped if the queue is full.
func statsSet(name string, val int64) {
	if globals.statsUpdate != nil {
		select {
		case globals.statsUpdate <- &varUpdate{name, val, false}:
		default:
		}
	}
}

// statsInc adds val (possibly negative) to an integer variable.
// Non-blocking, same as statsSet.
func statsInc(name string, val int) {
	if globals.statsUpdate != nil {
		select {
		case globals.statsUpdate <- &varUpdate{name, int64(val), true}:
		default:
		}
	}
}

// statsShutdown stops the updater goroutine.
func statsShutdown() {
	if globals.statsUpdate != nil {
		globals.statsUpdate <- nil
	}
}

func statsUpdater() {
	for upd := range globals.statsUpdate {
		if upd == nil {
			globals.statsUpdate = nil
			// The channel itself is left to the garbage collector.
			break
		}

		ev := expvar.Get(upd.varname)
		if ev == nil {
			// Update to a variable which was never registered.
			panic("stats: update to unknown variable " + upd.varname)
		}
		intvar := ev.(*expvar.Int)
		if upd.inc {
			intvar.Add(upd.count)
		} else {
			intvar.Set(upd.count)
		}
	}

	logs.Info.Println("stats: shutdown")
}
