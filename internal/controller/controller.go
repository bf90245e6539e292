// Package controller implements the simulation controller: the public
// façade that loads a topology, owns its lifecycle, dispatches commands
// to live node runtimes, and exposes read APIs over the aggregated
// metrics and recent event log.
package controller

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dronemesh/meshsim/internal/config"
	"github.com/dronemesh/meshsim/internal/fabric"
	"github.com/dronemesh/meshsim/internal/metrics"
	"github.com/dronemesh/meshsim/internal/node"
	"github.com/dronemesh/meshsim/internal/runtime"
	"github.com/dronemesh/meshsim/internal/topology"
)

// Status is the lifecycle state machine's current state.
type Status int

const (
	StatusInit Status = iota
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	default:
		return "init"
	}
}

// HistoryStore is the dependency Start uses to persist a timestamped
// snapshot of the topology it is about to run. A nil HistoryStore
// disables snapshotting, useful in tests.
type HistoryStore interface {
	SaveSnapshot(cfg topology.Config) (string, error)
}

const defaultEventLogCapacity = 4096

// nodeTask tracks one spawned node runtime's cancellation handle and
// exit signal, so stop()/crash_drone can join it with a deadline.
type nodeTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller is the single process-wide simulation façade. Every public
// method takes the same coarse mutex for a bounded duration, matching
// the single-process shared-state discipline this simulator commits to.
type Controller struct {
	mu sync.Mutex

	status  Status
	topo    *topology.Topology
	hasConf bool

	registry *runtime.Registry
	history  HistoryStore
	rnd      runtime.RandSource

	joinDeadline      time.Duration
	discoverySchedule string
	serverEndpoint    string

	fab      *fabric.Fabric
	met      *metrics.Metrics
	eventLog *metrics.RecentEventLog

	listenerCtx    context.Context
	listenerCancel context.CancelFunc

	tasks map[node.ID]*nodeTask

	repeated *repeatedJob
}

// New returns an Init-status controller. registry must contain at least
// one registered drone factory before Start is called. history may be
// nil to disable snapshotting (tests commonly do this). discoverySchedule
// is a robfig/cron "@every" expression passed through to every spawned
// drone; "" disables periodic flood origination entirely. serverEndpoint
// is opaque identity text stamped on every spawned Server-kind host for
// logging only; "" omits it.
func New(registry *runtime.Registry, history HistoryStore, joinDeadline time.Duration, rnd runtime.RandSource, discoverySchedule, serverEndpoint string) *Controller {
	if rnd == nil {
		rnd = defaultRand{}
	}
	return &Controller{
		status:            StatusInit,
		topo:              topology.New(),
		registry:          registry,
		history:           history,
		rnd:               rnd,
		joinDeadline:      joinDeadline,
		discoverySchedule: discoverySchedule,
		serverEndpoint:    serverEndpoint,
		eventLog:          metrics.NewRecentEventLog(defaultEventLogCapacity),
	}
}

// defaultRand adapts math/rand/v2's package-level source to RandSource,
// the same nil-fallback runtime.StandardFactory uses for its own
// RandSource parameter.
type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }

// LoadConfig reads and strictly validates a topology file, storing it as
// the active topology. Allowed from Init or Stopped.
func (c *Controller) LoadConfig(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusRunning {
		return networkAlreadyRunning()
	}

	cfg, err := config.LoadTopologyFile(path)
	if err != nil {
		return configParse(err, path)
	}

	t := topology.New()
	if err := t.Load(cfg); err != nil {
		return validation(err)
	}
	c.topo = t
	c.hasConf = true
	return nil
}

// SetStrictMode toggles whether incremental mutations after load_config
// must also satisfy the drone-subgraph-connectivity invariant.
func (c *Controller) SetStrictMode(strict bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topo.SetStrictMode(strict)
	return nil
}

// Start builds the channel fabric, spawns one task per node, wires
// neighbor senders, starts the event listener, and persists a history
// snapshot. status must not already be Running and a config must have
// been loaded.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasConf {
		return noConfigLoaded()
	}
	if c.status == StatusRunning {
		return networkAlreadyRunning()
	}
	if c.registry == nil || c.registry.Len() == 0 {
		return invalidOperation("no drone factories registered")
	}

	c.met = metrics.New()
	c.fab = fabric.New()
	c.tasks = make(map[node.ID]*nodeTask)
	c.listenerCtx, c.listenerCancel = context.WithCancel(context.Background())

	ids := c.topo.Nodes()
	for _, id := range ids {
		c.fab.CreateNode(id)
	}
	for _, id := range ids {
		kind, _ := c.topo.Kind(id)
		switch kind {
		case node.KindDrone:
			c.met.RegisterDrone(id)
			attrs, _ := c.topo.DroneAttrs(id)
			factory, ok := c.registry.RoundRobin()
			if !ok {
				return invalidOperation("no drone factories registered")
			}
			c.spawnDrone(id, attrs.PDR, factory)
		case node.KindClient:
			c.met.RegisterHost(id)
			c.spawnHost(id, node.KindClient)
		case node.KindServer:
			c.met.RegisterHost(id)
			c.spawnHost(id, node.KindServer)
		}
	}

	for _, id := range ids {
		neighbors, _ := c.topo.Neighbors(id)
		for _, n := range neighbors {
			if n < id {
				continue // each undirected edge wired once, from its lower-id side
			}
			c.wireSenders(id, n)
		}
	}

	go metrics.NewEventListener(c.fab, c.met, c.eventLog, c.kindLookup).Run(c.listenerCtx)

	c.status = StatusRunning

	if c.history != nil {
		_, _ = c.history.SaveSnapshot(c.topo.Snapshot())
	}
	return nil
}

// kindLookup adapts Topology.Kind to metrics.NodeKindLookup under the
// controller's own lock-free read (Topology has its own internal lock).
func (c *Controller) kindLookup(id node.ID) (node.Kind, bool) {
	return c.topo.Kind(id)
}

func (c *Controller) spawnDrone(id node.ID, pdr node.Ratio, factory runtime.DroneFactory) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := runtime.DroneConfig{ID: id, PDR: pdr, Fabric: c.fab, RandSource: c.rnd, DiscoveryInterval: c.discoverySchedule}
	events, _ := c.fab.DroneEvents(id)
	cfg.Events = events
	rn := factory.NewDrone(cfg)
	done := make(chan struct{})
	c.tasks[id] = &nodeTask{cancel: cancel, done: done}
	go func() {
		defer close(done)
		rn.Run(ctx)
	}()
}

func (c *Controller) spawnHost(id node.ID, kind node.Kind) {
	ctx, cancel := context.WithCancel(context.Background())
	events, _ := c.fab.HostEvents(id)
	cfg := runtime.HostConfig{ID: id, Kind: kind, Fabric: c.fab, Events: events}
	var rn runtime.Runnable
	if kind == node.KindServer {
		cfg.PublicEndpoint = c.serverEndpoint
		rn = runtime.NewServer(cfg)
	} else {
		rn = runtime.NewClient(cfg)
	}
	done := make(chan struct{})
	c.tasks[id] = &nodeTask{cancel: cancel, done: done}
	go func() {
		defer close(done)
		rn.Run(ctx)
	}()
}

// wireSenders issues the paired AddSender command both directions for
// edge (a,b), used at Start and by AddEdge while Running.
func (c *Controller) wireSenders(a, b node.ID) {
	c.addSenderCommand(a, b)
	c.addSenderCommand(b, a)
}

func (c *Controller) addSenderCommand(holder, target node.ID) {
	ep, ok := c.fab.Endpoint(target)
	if !ok {
		return
	}
	kind, _ := c.topo.Kind(holder)
	if kind == node.KindDrone {
		if ch, ok := c.fab.DroneCommands(holder); ok {
			select {
			case ch <- node.DroneCommand{Kind: node.DroneAddSender, SenderID: target, SenderEnd: ep}:
			default:
			}
		}
		return
	}
	if ch, ok := c.fab.HostCommands(holder); ok {
		select {
		case ch <- node.HostCommand{Kind: node.HostAddSender, SenderID: target, SenderEnd: ep}:
		default:
		}
	}
}

func (c *Controller) removeSenderCommand(holder, target node.ID) {
	kind, ok := c.topo.Kind(holder)
	if !ok {
		return
	}
	if kind == node.KindDrone {
		if ch, ok := c.fab.DroneCommands(holder); ok {
			select {
			case ch <- node.DroneCommand{Kind: node.DroneRemoveSender, SenderID: target}:
			default:
			}
		}
		return
	}
	if ch, ok := c.fab.HostCommands(holder); ok {
		select {
		case ch <- node.HostCommand{Kind: node.HostRemoveSender, SenderID: target}:
		default:
		}
	}
}

// joinTask waits up to the configured deadline for id's task to exit,
// logging nothing itself (the caller decides whether a timeout is
// reported as ThreadJoin).
func (c *Controller) joinTask(id node.ID) bool {
	t, ok := c.tasks[id]
	if !ok {
		return true
	}
	select {
	case <-t.done:
		delete(c.tasks, id)
		return true
	case <-time.After(c.joinDeadline):
		delete(c.tasks, id)
		return false
	}
}

// Stop broadcasts terminators to every node, joins each task with the
// configured deadline, tears down the fabric and event listener, and
// returns to Stopped.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return networkNotRunning()
	}

	c.stopRepeatedLocked()

	ids := c.topo.Nodes()
	for _, id := range ids {
		neighbors, _ := c.topo.Neighbors(id)
		for _, n := range neighbors {
			if n < id {
				continue
			}
			c.removeSenderCommand(id, n)
			c.removeSenderCommand(n, id)
		}
	}

	var joinFailed []node.ID
	for _, id := range ids {
		kind, _ := c.topo.Kind(id)
		if kind == node.KindDrone {
			if ch, ok := c.fab.DroneCommands(id); ok {
				select {
				case ch <- node.DroneCommand{Kind: node.DroneCrash}:
				default:
				}
			}
		} else {
			if ch, ok := c.fab.HostCommands(id); ok {
				select {
				case ch <- node.HostCommand{Kind: node.HostStop}:
				default:
				}
			}
		}
	}
	for _, id := range ids {
		if !c.joinTask(id) {
			joinFailed = append(joinFailed, id)
		}
	}

	if c.listenerCancel != nil {
		c.listenerCancel()
	}
	c.fab = nil
	c.status = StatusStopped

	if len(joinFailed) > 0 {
		return threadJoin(joinFailed)
	}
	return nil
}
