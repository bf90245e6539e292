// Package runtime defines the polymorphic node-runtime contract and its
// reference implementations. A node's runtime is a Runnable bound to one
// node identity; it consumes commands and inbound packets and emits
// events and outbound packets, interacting with the rest of the
// simulation only through the channel fabric.
package runtime

import (
	"context"

	"github.com/dronemesh/meshsim/internal/fabric"
	"github.com/dronemesh/meshsim/internal/node"
)

// Runnable blocks the caller's goroutine until the node terminates:
// a Drone on DroneCrash, a Host on HostStop. Run must cooperatively
// multiplex its command queue, its inbound packet queue, and any
// internal timers without starving any source indefinitely.
type Runnable interface {
	Run(ctx context.Context)
}

// DroneFactory produces drone Runnables under a stable name. The
// simulation controller picks an implementation round-robin at initial
// start and uniformly at random for add_drone, never by reflecting on a
// concrete type.
type DroneFactory interface {
	Name() string
	NewDrone(cfg DroneConfig) Runnable
}

// DroneConfig bundles what a drone Runnable needs to operate. The
// factory receiving it does not retain a Topology or Fabric reference
// beyond what it stores here; it only ever touches its own channels.
type DroneConfig struct {
	ID                node.ID
	PDR               node.Ratio
	Fabric            *fabric.Fabric
	Events            chan<- node.DroneEvent
	DiscoveryInterval string // robfig/cron "@every" expression; "" disables
	RandSource        RandSource
}

// RandSource abstracts the randomness a drone needs (drop decisions),
// so tests can inject a deterministic source.
type RandSource interface {
	Float64() float64
}

// Registry is a name -> DroneFactory lookup the controller consults when
// spawning drones.
type Registry struct {
	factories []DroneFactory
	byName    map[string]DroneFactory
	next      int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]DroneFactory)}
}

// Register adds f to the registry. Registering a name twice replaces
// the previous factory under that name.
func (r *Registry) Register(f DroneFactory) {
	if _, exists := r.byName[f.Name()]; !exists {
		r.factories = append(r.factories, f)
	} else {
		for i, old := range r.factories {
			if old.Name() == f.Name() {
				r.factories[i] = f
			}
		}
	}
	r.byName[f.Name()] = f
}

// Len reports how many distinct factories are registered.
func (r *Registry) Len() int {
	return len(r.factories)
}

// ByName looks up a factory by its registered name.
func (r *Registry) ByName(name string) (DroneFactory, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// RoundRobin returns the next factory in registration order, wrapping
// around. Used at initial start to spread drone implementations evenly.
func (r *Registry) RoundRobin() (DroneFactory, bool) {
	if len(r.factories) == 0 {
		return nil, false
	}
	f := r.factories[r.next%len(r.factories)]
	r.next++
	return f, true
}

// Random returns a uniformly chosen factory using src. Used for
// add_drone.
func (r *Registry) Random(src RandSource) (DroneFactory, bool) {
	if len(r.factories) == 0 {
		return nil, false
	}
	idx := int(src.Float64() * float64(len(r.factories)))
	if idx >= len(r.factories) {
		idx = len(r.factories) - 1
	}
	return r.factories[idx], true
}

// HostKind distinguishes the two fixed (non-pluggable) host runtimes.
type HostKind int

const (
	HostKindClient HostKind = iota
	HostKindServer
)

// HostConfig bundles what a host Runnable needs. PublicEndpoint is opaque
// to this package: the controller fills it in for Server-kind hosts from
// env configuration (SERVER_IP/SERVER_PORT/SERVER_PUBLIC_PATH) purely for
// logging identity, never dialed or listened on since real-network
// transport is out of scope.
type HostConfig struct {
	ID             node.ID
	Kind           node.Kind
	Fabric         *fabric.Fabric
	Events         chan<- node.HostEvent
	PublicEndpoint string
}
