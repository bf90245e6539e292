// Command meshsimd boots the simulation controller, loads a declarative
// topology file, runs the network until terminated, and periodically
// reports the network overview to the log.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dronemesh/meshsim/internal/config"
	"github.com/dronemesh/meshsim/internal/controller"
	"github.com/dronemesh/meshsim/internal/historystore"
	"github.com/dronemesh/meshsim/internal/runtime"
)

func main() {
	topologyPath := flag.String("topology", "", "path to a declarative topology TOML file (required)")
	strict := flag.Bool("strict", false, "enforce drone-subgraph connectivity on every mutation after load")
	overviewInterval := flag.Duration("overview-interval", 10*time.Second, "how often to log the network overview")
	flag.Parse()

	if *topologyPath == "" {
		fatalf("missing required -topology flag")
	}

	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}

	store, err := historystore.Open(
		filepath.Join(envCfg.HistoryDir, "history.db"),
		envCfg.HistoryDir,
	)
	if err != nil {
		fatalf("history store open: %v", err)
	}
	defer store.Close()
	log.Println("History store opened")

	registry := runtime.NewRegistry()
	registry.Register(runtime.StandardFactory{})

	serverEndpoint := fmt.Sprintf("%s:%d%s", envCfg.ServerIP, envCfg.ServerPort, envCfg.ServerPublicPath)
	ctrl := controller.New(
		registry,
		store,
		envCfg.NodeJoinDeadline.Std(),
		nil,
		envCfg.DiscoverySchedule,
		serverEndpoint,
	)

	version, gitCommit, buildTime := ctrl.BuildInfo()
	log.Printf("meshsimd %s (commit %s, built %s)", version, gitCommit, buildTime)

	if err := ctrl.LoadConfig(*topologyPath); err != nil {
		fatalf("load topology: %v", err)
	}
	log.Printf("Loaded topology from %s", *topologyPath)
	if err := ctrl.SetStrictMode(*strict); err != nil {
		fatalf("set strict mode: %v", err)
	}

	if err := ctrl.Start(); err != nil {
		fatalf("start: %v", err)
	}
	log.Println("Simulation running")

	overviewTicker := time.NewTicker(*overviewInterval)
	defer overviewTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

loop:
	for {
		select {
		case sig := <-quit:
			log.Printf("Received signal %s, shutting down...", sig)
			break loop
		case <-overviewTicker.C:
			logOverview(ctrl)
		}
	}

	if err := ctrl.Stop(); err != nil {
		log.Printf("Stop: %v", err)
	}
	log.Println("Simulation stopped")
}

func logOverview(ctrl *controller.Controller) {
	snap := ctrl.GraphSnapshot()
	ov := ctrl.NetworkOverview()
	log.Printf(
		"overview: nodes=%d edges=%d messages=%d packets=%d heatmap_edges=%d",
		snap.NodeCount, snap.EdgeCount, ov.TotalMessages, ov.TotalPackets, len(ov.Heatmap),
	)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
