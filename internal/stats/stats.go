package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// Counter names for the rooms this process is serving.
const (
	MetricActiveSessions  = "ActiveSessions"
	MetricActiveRooms     = "ActiveRooms"
	MetricEventsBroadcast = "EventsBroadcast"
)

var roomMetrics = []string{
	MetricActiveSessions,
	MetricActiveRooms,
	MetricEventsBroadcast,
}

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
}

// StatsUpdater maintains the room counters as expvars; deltas are
// funneled through a channel so callers never block on expvar locks.
type StatsUpdater struct {
	vars   *expvar.Map
	deltas chan counterDelta
}

type counterDelta struct {
	name  string
	delta int64
}

// NewStatsUpdater registers the room counter set and mounts the
// /debug/vars endpoint on mux.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:   expvar.NewMap("codepair-stats"),
		deltas: make(chan counterDelta, 512),
	}

	for _, name := range roomMetrics {
		su.vars.Set(name, new(expvar.Int))
	}

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

func (su *StatsUpdater) applyDeltas() {
	for d := range su.deltas {
		counter := su.vars.Get(d.name)
		if counter == nil {
			panic("unknown counter: " + d.name)
		}

		counter.(*expvar.Int).Add(d.delta)
	}
}

// Value reads the current value of a counter.
func (su *StatsUpdater) Value(name string) int64 {
	counter, ok := su.vars.Get(name).(*expvar.Int)
	if !ok {
		return 0
	}

	return counter.Value()
}

func (su *StatsUpdater) Incr(name string) {
	su.deltas <- counterDelta{name: name, delta: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.deltas <- counterDelta{name: name, delta: -1}
}

func (su *StatsUpdater) Run() {
	go su.applyDeltas()
}

func (su *StatsUpdater) Stop() {
	close(su.deltas)
}
