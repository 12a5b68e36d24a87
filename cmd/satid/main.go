package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/rhartert/satid/internal/agg"
	"github.com/rhartert/satid/internal/coordinator"
	"github.com/rhartert/satid/internal/id"
	"github.com/rhartert/satid/internal/optimize"
	"github.com/rhartert/satid/internal/parse"
	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

var flagCPUProfile = flag.Bool(
	"cpuprof",
	false,
	"save pprof CPU profile in cpuprof",
)

var flagMemProfile = flag.Bool(
	"memprof",
	false,
	"save pprof memory profile in memprof",
)

var flagGzip = flag.Bool(
	"gzip",
	false,
	"the instance file is gzip-compressed",
)

var flagMinimize = flag.Int(
	"minimize",
	-1,
	"minimize the SUM aggregate with this id instead of just solving (-1 disables)",
)

func parseConfig() (*config, error) {
	flag.Parse()

	if flag.NArg() == 0 || flag.Arg(0) == "" {
		return nil, fmt.Errorf("missing instance file")
	}
	return &config{
		instanceFile: flag.Arg(0),
		memProfile:   *flagMemProfile,
		cpuProfile:   *flagCPUProfile,
		gzipped:      *flagGzip,
		minimizeAgg:  *flagMinimize,
	}, nil
}

type config struct {
	instanceFile string
	memProfile   bool
	cpuProfile   bool
	gzipped      bool
	minimizeAgg  int
}

// build wires a parsed problem.Problem into a fresh solver and coordinator,
// registering the aggregate and definition propagators only when the
// instance actually uses them, mirroring dimacs.Instantiate's plain-CNF
// wiring for the extended directives.
func build(p *problem.Problem) (*sat.Solver, *coordinator.Coordinator, *agg.Propagator, error) {
	s := sat.NewDefaultSolver()
	builder := parse.SolverBuilder{Solver: s}
	for i := 0; i < p.NumVars; i++ {
		builder.AddVariable()
	}
	for _, c := range p.Clauses {
		if err := builder.AddClause(c); err != nil {
			return nil, nil, nil, fmt.Errorf("could not add clause: %w", err)
		}
	}

	if len(p.Rules) > 0 {
		if err := id.EmitCompletion(s, p.Rules); err != nil {
			return nil, nil, nil, fmt.Errorf("could not emit completion: %w", err)
		}
	}

	c := coordinator.New(s)

	var aggProp *agg.Propagator
	if len(p.Aggregates) > 0 {
		var err error
		aggProp, err = agg.NewPropagator(s, p.Sets, p.Aggregates)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("could not build aggregate propagator: %w", err)
		}
		c.Register(aggProp, 0)
	}
	if len(p.Rules) > 0 {
		dg := id.BuildDependencyGraph(p.Rules)
		idProp := id.NewPropagator(s, dg, id.Always)
		c.Register(idProp, 1)
	}

	return s, c, aggProp, nil
}

func run(cfg *config) error {
	p, err := parse.Load(cfg.instanceFile, cfg.gzipped)
	if err != nil {
		return fmt.Errorf("could not parse instance: %w", err)
	}

	s, c, aggProp, err := build(p)
	if err != nil {
		return err
	}

	fmt.Printf("c variables:  %d\n", p.NumVars)
	fmt.Printf("c clauses:    %d\n", len(p.Clauses))
	fmt.Printf("c rules:      %d\n", len(p.Rules))
	fmt.Printf("c aggregates: %d\n", len(p.Aggregates))

	fmt.Println(sat.PrintSeparator())
	fmt.Println(sat.PrintHeader())
	fmt.Println(sat.PrintSeparator())

	var res coordinator.Result
	if cfg.minimizeAgg >= 0 {
		if aggProp == nil {
			return fmt.Errorf("-minimize requires at least one aggregate in the instance")
		}
		sr := optimize.MinimizeSum(c, aggProp, cfg.minimizeAgg, nil, coordinator.DefaultSolveOptions)
		res = sr.Best
		if sr.Found {
			fmt.Printf("c best sum:   %d\n", sr.Value)
		}
	} else {
		res = c.Solve(nil, coordinator.DefaultSolveOptions)
	}

	fmt.Println(s.Stats().String())
	fmt.Println(sat.PrintSeparator())
	fmt.Printf("c status:     %s\n", statusString(res.Status))

	switch res.Status {
	case coordinator.StatusSat:
		printModel(res.Model)
	case coordinator.StatusUnsat:
		if len(res.Core) > 0 {
			fmt.Printf("c core:       %v\n", res.Core)
		}
	}

	return nil
}

func statusString(st coordinator.Status) string {
	switch st {
	case coordinator.StatusSat:
		return "SATISFIABLE"
	case coordinator.StatusUnsat:
		return "UNSATISFIABLE"
	default:
		return "UNKNOWN"
	}
}

func printModel(model []bool) {
	fmt.Print("v ")
	for i, val := range model {
		if val {
			fmt.Printf("%d ", i+1)
		} else {
			fmt.Printf("%d ", -(i + 1))
		}
	}
	fmt.Println("0")
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.cpuProfile {
		f, err := os.Create("cpuprof")
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile {
		f, err := os.Create("memprof")
		if err != nil {
			log.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
		return
	}
}
