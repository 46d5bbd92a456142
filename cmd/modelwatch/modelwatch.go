// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/juju/python-libjuju-sub000/api"
	"github.com/juju/python-libjuju-sub000/api/connector"
	"github.com/juju/python-libjuju-sub000/cmd"
	"github.com/juju/python-libjuju-sub000/core/modelstate"
	"github.com/juju/python-libjuju-sub000/core/multiwatcher"
	"github.com/juju/python-libjuju-sub000/core/observer"
	"github.com/juju/python-libjuju-sub000/rpc"
	"github.com/juju/python-libjuju-sub000/worker/modelsync"
)

var logger = loggo.GetLogger("juju.cmd.modelwatch")

// PasswordEnvKey names the environment variable that overrides the
// password held in the config file.
const PasswordEnvKey = "JUJU_PASSWORD"

const modelWatchDoc = `
modelwatch connects to a controller, mirrors one model locally and prints
every change to it as it is applied.

The config file is YAML:

    controller-addresses: ["10.0.0.1:17070"]
    ca-cert: |
      -----BEGIN CERTIFICATE-----
      ...
    model-uuid: 2a2b3c4d-0000-4000-8000-000000000001
    username: admin
    password: secret

Examples:

    modelwatch --config controller.yaml
    modelwatch --config controller.yaml --kind unit --id 'mysql/.*'
    modelwatch --config controller.yaml --metrics-addr :9100 --format json
`

// change is what is printed for each applied delta.
type change struct {
	Kind   string         `json:"kind" yaml:"kind"`
	Action string         `json:"action" yaml:"action"`
	Id     string         `json:"id" yaml:"id"`
	Data   map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

type modelWatchCommand struct {
	log         cmd.Log
	out         cmd.Output
	configFile  cmd.FileVar
	metricsAddr string
	kind        string
	action      string
	idPattern   string

	// dialOptions are added to every connection; tests use them to
	// reach a fake controller.
	dialOptions []api.DialOption
}

func newModelWatchCommand(dialOptions ...api.DialOption) *modelWatchCommand {
	return &modelWatchCommand{
		log: cmd.Log{
			DefaultConfig: os.Getenv(cmd.LoggingConfigEnvKey),
		},
		dialOptions: dialOptions,
	}
}

// Info implements cmd.Command.
func (c *modelWatchCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "modelwatch",
		Purpose: "Print the changes made to a model.",
		Doc:     modelWatchDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *modelWatchCommand) SetFlags(f *gnuflag.FlagSet) {
	c.log.AddFlags(f)
	c.out.AddFlags(f, "yaml", cmd.DefaultFormatters)
	f.Var(&c.configFile, "config", "Path to the controller config file")
	f.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	f.StringVar(&c.kind, "kind", "", "Only print changes to entities of this kind")
	f.StringVar(&c.action, "action", "", "Only print changes with this action (add|change|remove)")
	f.StringVar(&c.idPattern, "id", "", "Only print changes to entities whose id matches this regexp")
}

// Init implements cmd.Command.
func (c *modelWatchCommand) Init(args []string) error {
	if c.configFile.Path == "" {
		return errors.New("--config is required")
	}
	if _, err := c.filter(); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args)
}

func (c *modelWatchCommand) filter() (observer.Filter, error) {
	filter := observer.Filter{
		Kind:   c.kind,
		Action: multiwatcher.Action(c.action),
	}
	if c.idPattern != "" {
		re, err := regexp.Compile("^(?:" + c.idPattern + ")$")
		if err != nil {
			return observer.Filter{}, errors.NotValidf("id pattern %q", c.idPattern)
		}
		filter.IDPattern = re
	}
	return filter, errors.Trace(filter.Validate())
}

func (c *modelWatchCommand) readConfig(ctx *cmd.Context) (connector.SimpleConfig, error) {
	var config connector.SimpleConfig
	data, err := c.configFile.Read(ctx)
	if err != nil {
		return config, errors.Trace(err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Annotatef(err, "parsing %s", c.configFile.Path)
	}
	if password := os.Getenv(PasswordEnvKey); password != "" {
		config.Password = password
	}
	return config, nil
}

// Run implements cmd.Command.
func (c *modelWatchCommand) Run(ctx *cmd.Context) error {
	if err := c.log.Start(ctx.Stderr); err != nil {
		return errors.Trace(err)
	}
	config, err := c.readConfig(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	filter, err := c.filter()
	if err != nil {
		return errors.Trace(err)
	}

	registry := prometheus.NewRegistry()
	rpcMetrics := rpc.NewMetricsCollector()
	syncMetrics := modelsync.NewMetricsCollector()
	registry.MustRegister(rpcMetrics, syncMetrics)
	if c.metricsAddr != "" {
		stop, err := serveMetrics(c.metricsAddr, registry)
		if err != nil {
			return errors.Trace(err)
		}
		defer stop()
	}

	dialOptions := append([]api.DialOption{api.WithRPCMetrics(rpcMetrics)}, c.dialOptions...)
	conn, err := connector.NewSimple(config, dialOptions...)
	if err != nil {
		return errors.Annotate(err, "invalid controller config")
	}
	apiConn, err := conn.Connect(ctx)
	if err != nil {
		return errors.Annotate(err, "cannot connect to controller")
	}
	defer apiConn.Close()
	serverVersion, _ := apiConn.ServerVersion()
	logger.Infof("connected to %s (controller version %s)", apiConn.Addr(), serverVersion)

	target, closeTarget, err := c.out.Writer(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closeTarget()

	store := modelstate.NewStore()
	observers := observer.NewRegistry(store)
	var mu sync.Mutex
	unregister, err := observers.Register(func(delta multiwatcher.Delta, _, new *modelstate.Entity, _ modelstate.Reader) error {
		out := change{
			Kind:   delta.Kind,
			Action: string(delta.Action),
			Id:     delta.EntityId().Id,
		}
		if new != nil {
			out.Data = new.Data
		}
		mu.Lock()
		defer mu.Unlock()
		return c.out.Write(target, out)
	}, filter)
	if err != nil {
		return errors.Trace(err)
	}
	defer unregister()

	w, err := modelsync.NewWorker(modelsync.Config{
		NewWatcher: func(ctx context.Context) (modelsync.Watcher, error) {
			watcher, err := apiConn.WatchAll(ctx)
			if err != nil {
				return nil, errors.Trace(err)
			}
			return watcher, nil
		},
		Store:    store,
		Notifier: observers,
		Clock:    clock.WallClock,
		Metrics:  syncMetrics,
	})
	if err != nil {
		return errors.Trace(err)
	}

	select {
	case <-ctx.Done():
		w.Kill()
		logger.Debugf("interrupted; %v", w.Report())
		return errors.Trace(w.Wait())
	case <-apiConn.Broken():
		w.Kill()
		_ = w.Wait()
		return errors.Errorf("connection to %s lost", apiConn.Addr())
	case <-waitDone(w):
		return errors.Trace(w.Wait())
	}
}

func waitDone(w *modelsync.Worker) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		_ = w.Wait()
		close(done)
	}()
	return done
}

// serveMetrics serves the registry's metrics over HTTP until the
// returned function is called.
func serveMetrics(addr string, registry *prometheus.Registry) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Annotate(err, "listening for metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server failed: %v", err)
		}
	}()
	logger.Infof("serving metrics on %s", listener.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
