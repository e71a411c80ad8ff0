package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fumin/vmc"
	"github.com/fumin/vmc/mat"
)

const (
	fnameConfig = "config.yaml"
	fnameParams = "params.csv"
	fnameDB     = "run.db"
	fnameDone   = "done.txt"
)

var (
	runDir     string
	configFile string
	overrides  = vmc.DefaultConfig()
)

func main() {
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	rootCmd := &cobra.Command{
		Use:           "run",
		Short:         "variational Monte Carlo for trapped particles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&runDir, "dir", "d", filepath.Join("runs", "vmc"), "run directory")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "optimize the trial wavefunction and estimate the ground state energy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return errors.Wrap(err, "")
			}
			return solve(cmd.Context(), runDir, cfg)
		},
	}
	f := optimizeCmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.IntVar(&overrides.Particles, "particles", overrides.Particles, "number of particles")
	f.IntVar(&overrides.Dimensions, "dims", overrides.Dimensions, "number of dimensions")
	f.Float64Var(&overrides.Omega, "omega", overrides.Omega, "trap frequency")
	f.StringVar(&overrides.Hamiltonian, "hamiltonian", overrides.Hamiltonian, "harmonic or doublewell")
	f.BoolVar(&overrides.Interaction, "interaction", overrides.Interaction, "Coulomb interaction")
	f.StringSliceVar(&overrides.Components, "components", overrides.Components, "wavefunction components")
	f.StringVar(&overrides.Sampler, "sampler", overrides.Sampler, "bruteforce or importance")
	f.StringVar(&overrides.Optimizer, "optimizer", overrides.Optimizer, "sgd, asgd or adam")
	f.Float64Var(&overrides.LearningRate, "lr", overrides.LearningRate, "learning rate")
	f.IntVar(&overrides.Workers, "workers", overrides.Workers, "parallel random walkers")
	f.IntVar(&overrides.Steps, "steps", overrides.Steps, "measured steps per iteration")
	f.IntVar(&overrides.Iterations, "iterations", overrides.Iterations, "maximum iterations")
	f.Uint64Var(&overrides.Seed, "seed", overrides.Seed, "random seed")

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "plot the energy of every iteration of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return plot(cmd.Context(), runDir)
		},
	}

	rootCmd.AddCommand(optimizeCmd, plotCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("%+v", err)
	}
}

// loadConfig reads the config file if one is given, and applies the flags that were set on top of it.
func loadConfig(cmd *cobra.Command) (*vmc.Config, error) {
	cfg := vmc.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = vmc.LoadConfig(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
	}

	flags := cmd.Flags()
	set := map[string]func(){
		"particles":   func() { cfg.Particles = overrides.Particles },
		"dims":        func() { cfg.Dimensions = overrides.Dimensions },
		"omega":       func() { cfg.Omega = overrides.Omega },
		"hamiltonian": func() { cfg.Hamiltonian = overrides.Hamiltonian },
		"interaction": func() { cfg.Interaction = overrides.Interaction },
		"components":  func() { cfg.Components = overrides.Components },
		"sampler":     func() { cfg.Sampler = overrides.Sampler },
		"optimizer":   func() { cfg.Optimizer = overrides.Optimizer },
		"lr":          func() { cfg.LearningRate = overrides.LearningRate },
		"workers":     func() { cfg.Workers = overrides.Workers },
		"steps":       func() { cfg.Steps = overrides.Steps },
		"iterations":  func() { cfg.Iterations = overrides.Iterations },
		"seed":        func() { cfg.Seed = overrides.Seed },
	}
	for name, fn := range set {
		if flags.Changed(name) {
			fn()
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return cfg, nil
}

func solve(ctx context.Context, dir string, cfg *vmc.Config) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		log.Printf("%s already done", dir)
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	if err := cfg.Save(filepath.Join(dir, fnameConfig)); err != nil {
		return errors.Wrap(err, "")
	}

	disk, err := mat.OpenDisk(ctx, filepath.Join(dir, fnameDB))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer disk.Close()
	// A run that was interrupted before done.txt starts over.
	if err := disk.Reset(ctx); err != nil {
		return errors.Wrap(err, "")
	}

	run, err := vmc.New(*cfg, disk)
	if err != nil {
		return errors.Wrap(err, "")
	}
	res, err := run.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := mat.WriteParameters(filepath.Join(dir, fnameParams), res.Parameters); err != nil {
		return errors.Wrap(err, "")
	}

	final := res.Final()
	fmt.Printf("converged: %t after %d iterations\n", res.Converged, len(res.Iterations))
	fmt.Printf("energy: %f\n", final.Energy)
	fmt.Printf("kinetic: %f external: %f interaction: %f\n", final.Kinetic, final.External, final.Interaction)
	fmt.Printf("variance: %g std error: %g acceptance: %f\n", final.Variance, final.StdError, final.Acceptance)
	if final.Block != nil {
		fmt.Printf("blocking std error: %g\n", final.Block.StdError)
	}
	if ref, err := vmc.ReferenceEnergy(*cfg); err == nil {
		fmt.Printf("reference: %s\n", ref)
	}

	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func plot(ctx context.Context, dir string) error {
	disk, err := mat.OpenDisk(ctx, filepath.Join(dir, fnameDB))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer disk.Close()

	energies, err := disk.Scalars(ctx, "energy")
	if err != nil {
		return errors.Wrap(err, "")
	}
	if len(energies) == 0 {
		return errors.Errorf("no iterations in %s", dir)
	}
	fmt.Println(asciigraph.Plot(energies, asciigraph.Height(12), asciigraph.Width(80), asciigraph.Caption("Energy")))
	return nil
}
