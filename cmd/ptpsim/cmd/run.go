/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/facebook/ptpsim/sim"
	"github.com/facebook/ptpsim/stats"
)

// flags
var runConfigFlag string
var runSyncCountFlag int
var runMonitoringPortFlag int
var runFormulaFlag string
var runHistoryFlag int

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigFlag, "config", "c", "", "path to the yaml config, defaults apply when empty")
	runCmd.Flags().IntVarP(&runSyncCountFlag, "syncs", "n", 10000, "number of SYNC receptions to simulate")
	runCmd.Flags().IntVar(&runMonitoringPortFlag, "monitoringport", 0, "port to serve prometheus metrics on, 0 disables")
	runCmd.Flags().StringVar(&runFormulaFlag, "formula", stats.DefaultConvergence, "convergence score formula. "+stats.FormulaHelp)
	runCmd.Flags().IntVar(&runHistoryFlag, "history", stats.DefaultHistory, "number of samples the formula series keep")
}

func loadConfig(path string) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func runSimulation(cfg sim.Config, nSyncs int) error {
	formula := &stats.Formula{Expr: runFormulaFlag}
	if err := formula.Prepare(); err != nil {
		return err
	}
	s, err := sim.New(cfg)
	if err != nil {
		return err
	}
	recorder := stats.NewRecorder(runHistoryFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var exporter *stats.PrometheusExporter
	if runMonitoringPortFlag != 0 {
		exporter = stats.NewPrometheusExporter(runMonitoringPortFlag)
		g.Go(func() error {
			return exporter.Start(ctx)
		})
	}

	prevStage := s.Servo().Stage()
	g.Go(func() error {
		defer cancel()
		return s.Run(ctx, nSyncs, func(o sim.Output) {
			recorder.Observe(o)
			if exporter != nil {
				exporter.Observe(o)
			}
			if o.Stage != prevStage {
				fmt.Printf("%s %s -> %s at t_sim=%.6fs\n",
					color.CyanString("stage"), prevStage, color.GreenString("%s", o.Stage), o.TSim)
				prevStage = o.Stage
			}
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	printSummary(recorder)

	score, err := formula.Eval(recorder.Params())
	if err != nil {
		return fmt.Errorf("evaluating convergence score: %w", err)
	}
	fmt.Printf("convergence score: %s\n", color.BlueString("%.3f ns", score))
	if s.EmptySteps() > 0 {
		log.Warningf("driver fell back to fixed steps %d times", s.EmptySteps())
	}
	return nil
}

func printSummary(recorder *stats.Recorder) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"stage", "syncs", "err mean(ns)", "err stddev(ns)", "err min(ns)", "err max(ns)", "delay mean(ns)", "freq mean(ppb)",
	})
	for _, stage := range recorder.Stages() {
		st := recorder.Stage(stage)
		table.Append([]string{
			stage.String(),
			fmt.Sprintf("%d", st.Count()),
			fmt.Sprintf("%.3f", st.ErrorNs.Mean()),
			fmt.Sprintf("%.3f", st.ErrorNs.Stddev()),
			fmt.Sprintf("%.3f", st.ErrorNs.Min()),
			fmt.Sprintf("%.3f", st.ErrorNs.Max()),
			fmt.Sprintf("%.3f", st.DelayNs.Mean()),
			fmt.Sprintf("%.3f", st.FreqPPB.Mean()),
		})
	}
	table.Render()
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation and report per-stage statistics",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		cfg, err := loadConfig(runConfigFlag)
		if err != nil {
			log.Fatal(err)
		}
		if err := runSimulation(cfg, runSyncCountFlag); err != nil {
			log.Fatal(err)
		}
	},
}
