/*
Copyright 2022 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package run

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-driver/cli/internal/commander"
	"github.com/thestormforge/optimize-driver/internal/config"
	"github.com/thestormforge/optimize-driver/internal/driver"
	"github.com/thestormforge/optimize-driver/internal/executor"
	"github.com/thestormforge/optimize-driver/internal/routine"
	"github.com/thestormforge/optimize-driver/internal/sampler"
	"github.com/thestormforge/optimize-driver/internal/sink"
	"github.com/thestormforge/optimize-driver/internal/trial"
	"golang.org/x/sync/errgroup"
)

// Options are the configuration options for running an experiment
type Options struct {
	// Config is the launch configuration
	Config *config.OptimizeConfig
	// IOStreams are used to access the standard process streams
	commander.IOStreams
	// Printer is used to render the final trial table
	Printer commander.ResourcePrinter
	// Log configures the driver logger
	Log commander.LogOptions

	// MetricsAddress is the listen address of the Prometheus metrics endpoint, blank to disable
	MetricsAddress string
	// SkipBaseline prevents the first trial from using the parameter baselines
	SkipBaseline bool
}

// NewCommand creates a new command for running an experiment
func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment",
		Long:  "Run an experiment, sampling trials from the search space and stopping unpromising trials early",

		Example: `# Run the experiment described in a launch configuration file
optimize run -c convnet.yaml

# Override the number of trials and expose metrics while running
optimize run -c convnet.yaml --num-trials 50 --metrics-addr :8080`,

		PreRun: commander.StreamsPreRun(&o.IOStreams),
		RunE:   commander.WithContextE(o.run),
	}

	ov := &o.Config.Overrides
	cmd.Flags().StringVar(&ov.Name, "name", "", "the experiment `name`")
	cmd.Flags().StringVar(&ov.Optimizer, "optimizer", "", "the `optimizer` used to sample trial assignments")
	cmd.Flags().StringVar(&ov.Direction, "direction", "", "the optimization `direction`")
	cmd.Flags().StringVar(&ov.NumTrials, "num-trials", "", "total `number` of trials to run")
	cmd.Flags().StringVar(&ov.HeartbeatInterval, "hb-interval", "", "`interval` between intermediate metric collections")
	cmd.Flags().StringVar(&ov.EarlyStopInterval, "es-interval", "", "`interval` between early stopping evaluations")
	cmd.Flags().StringVar(&ov.EarlyStopMin, "es-min", "", "`number` of completed trials required before early stopping")
	cmd.Flags().StringVar(&ov.Workers, "workers", "", "`number` of trials to run concurrently")
	cmd.Flags().StringVar(&ov.Seed, "seed", "", "optimizer random `seed`")
	cmd.Flags().StringVar(&ov.LaunchRate, "launch-rate", "", "maximum trials launched per `second`")
	cmd.Flags().StringVar(&ov.RoutineType, "routine", "", "the training routine `type`")
	cmd.Flags().StringVar(&ov.SinkFile, "sink-file", "", "`file` to write trial summaries to")
	cmd.Flags().StringVar(&o.MetricsAddress, "metrics-addr", "", "listen `address` of the metrics endpoint")
	cmd.Flags().BoolVar(&o.SkipBaseline, "skip-baseline", false, "do not use parameter baselines for the first trial")
	o.Log.AddFlags(cmd)

	_ = cmd.MarkFlagFilename("sink-file", "json", "yaml", "yml")
	commander.SetFlagValues(cmd, "optimizer", sampler.Names()...)
	commander.SetFlagValues(cmd, "direction", string(trial.Maximize), string(trial.Minimize))
	commander.SetFlagValues(cmd, "routine", config.RoutineSynthetic, config.RoutineCommand, config.RoutinePrometheus)
	commander.SetPrinter(&trialMeta{}, &o.Printer, cmd)

	return cmd
}

func (o *Options) run(ctx context.Context) error {
	l := o.Config.Launch()
	if err := l.Validate(); err != nil {
		return err
	}

	d, closeSink, err := o.newDriver(l, o.Log.NewLogger(o.ErrOut))
	if err != nil {
		return err
	}
	defer closeSink()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if d.Metrics, err = driver.NewMetrics(reg); err != nil {
		return err
	}

	substrate := executor.NewLocal(l.Workers)
	defer substrate.Close()
	d.Substrate = substrate

	result, err := o.execute(ctx, d, reg)
	if result != nil {
		if perr := o.Printer.PrintObj(newReport(result), o.Out); perr != nil && err == nil {
			err = perr
		}
		summarize(o.ErrOut, result, err)
	}
	return err
}

// newDriver builds a driver from the launch configuration
func (o *Options) newDriver(l *config.Launch, log logr.Logger) (*driver.Driver, func(), error) {
	space, err := l.NewSearchSpace()
	if err != nil {
		return nil, nil, err
	}

	s, err := sampler.New(l.Optimizer, l.Seed)
	if err != nil {
		return nil, nil, err
	}

	direction, err := trial.ParseDirection(l.Direction)
	if err != nil {
		return nil, nil, err
	}

	r, err := routine.New(l, space)
	if err != nil {
		return nil, nil, err
	}

	d := &driver.Driver{
		Experiment: driver.Experiment{
			Name:              l.Name,
			SearchSpace:       space,
			Sampler:           s,
			Direction:         direction,
			NumTrials:         l.NumTrials,
			HeartbeatInterval: l.HeartbeatInterval.Duration(),
			EarlyStopInterval: l.EarlyStopInterval.Duration(),
			EarlyStopMin:      *l.EarlyStopMin,
			LaunchRate:        l.LaunchRate,
			SkipBaseline:      o.SkipBaseline,
		},
		Routine: r,
		Log:     log,
	}

	var publishers sink.Multi
	closeSink := func() {}
	if !l.Sink.Quiet {
		publishers = append(publishers, &sink.Log{Log: log})
	}
	if l.Sink.File != "" {
		f, err := sink.NewFile(l.Sink.File, sink.Format(l.Sink.Format))
		if err != nil {
			return nil, nil, err
		}
		publishers = append(publishers, f)
		closeSink = func() { _ = f.Close() }
	}
	d.Sink = publishers

	return d, closeSink, nil
}

// execute runs the driver, serving metrics for the duration of the run when an address is configured
func (o *Options) execute(ctx context.Context, d *driver.Driver, reg *prometheus.Registry) (*driver.Result, error) {
	if o.MetricsAddress == "" {
		return d.Run(ctx)
	}

	lis, err := net.Listen("tcp", o.MetricsAddress)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux}
	d.Log.Info("Serving metrics", "address", lis.Addr().String())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var result *driver.Result
	g.Go(func() error {
		defer cancel()
		var err error
		result, err = d.Run(gctx)
		return err
	})
	g.Go(func() error {
		if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})

	err = g.Wait()
	return result, err
}
