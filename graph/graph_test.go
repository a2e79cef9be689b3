package graph_test

import (
	"errors"
	"testing"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/encoder"
	"github.com/vitreousgfx/forge/graph"
	"github.com/vitreousgfx/forge/handle"
)

func TestBuildPrunesNonContributingPasses(t *testing.T) {
	reg := handle.NewRegistry()
	colorTarget := reg.InternResource("color", handle.Image, 0, 1, 0, nil)
	shadowMap := reg.InternResource("shadow", handle.Image, 0, 1, 0, nil)
	unused := reg.InternResource("unused", handle.Image, 0, 1, 0, nil)

	var order []string

	a := graph.NewPass("shadow-pass", graph.Graphics)
	a.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(shadowMap, graph.Write, driver.SFragment, 0)
		return true
	})
	a.SetExecuteCallback(func(p *graph.Pass, enc *encoder.Encoder) { order = append(order, p.Name) })

	b := graph.NewPass("main-pass", graph.Graphics)
	b.SetIsRoot(true)
	b.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(shadowMap, graph.Read, driver.SFragment, 0)
		p.UseResource(colorTarget, graph.Write, driver.SFragment, 0)
		return true
	})
	b.SetExecuteCallback(func(p *graph.Pass, enc *encoder.Encoder) { order = append(order, p.Name) })

	c := graph.NewPass("dead-pass", graph.Graphics)
	c.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(unused, graph.Write, driver.SFragment, 0)
		return true
	})
	c.SetExecuteCallback(func(p *graph.Pass, enc *encoder.Encoder) { order = append(order, p.Name) })

	mod := graph.NewModule()
	mod.AddPass(a)
	mod.AddPass(b)
	mod.AddPass(c)

	sched, err := graph.Build(mod, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sched.Passes) != 2 {
		t.Fatalf("expected 2 surviving passes, got %d: %v", len(sched.Passes), sched.Passes)
	}
	if sched.Passes[0].Name != "shadow-pass" || sched.Passes[1].Name != "main-pass" {
		t.Fatalf("expected shadow-pass before main-pass, got %v", sched.Passes)
	}

	graph.Execute(sched)
	if len(order) != 2 || order[0] != "shadow-pass" || order[1] != "main-pass" {
		t.Fatalf("execute order = %v, want [shadow-pass main-pass]", order)
	}
}

func TestBuildRejectsCycles(t *testing.T) {
	reg := handle.NewRegistry()
	x := reg.InternResource("x", handle.Image, 0, 1, 0, nil)
	y := reg.InternResource("y", handle.Image, 0, 1, 0, nil)

	a := graph.NewPass("a", graph.Graphics)
	a.SetIsRoot(true)
	a.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(x, graph.Read, driver.SFragment, 0)
		p.UseResource(y, graph.Write, driver.SFragment, 0)
		return true
	})

	b := graph.NewPass("b", graph.Graphics)
	b.SetIsRoot(true)
	b.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(y, graph.Read, driver.SFragment, 0)
		p.UseResource(x, graph.Write, driver.SFragment, 0)
		return true
	})

	mod := graph.NewModule()
	mod.AddPass(a)
	mod.AddPass(b)

	_, err := graph.Build(mod, 0)
	if err == nil {
		t.Fatal("expected a cycle error, got nil")
	}
	var cyc *graph.ErrCycle
	if !errors.As(err, &cyc) {
		t.Fatalf("expected *graph.ErrCycle, got %T: %v", err, err)
	}
}

func TestSetupVetoExcludesPassEntirely(t *testing.T) {
	reg := handle.NewRegistry()
	target := reg.InternResource("color", handle.Image, 0, 1, 0, nil)

	vetoed := graph.NewPass("optional-pass", graph.Graphics)
	vetoed.SetSetupCallback(func(p *graph.Pass) bool { return false })
	ran := false
	vetoed.SetExecuteCallback(func(p *graph.Pass, enc *encoder.Encoder) { ran = true })

	root := graph.NewPass("root", graph.Graphics)
	root.SetIsRoot(true)
	root.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(target, graph.Write, driver.SFragment, 0)
		return true
	})

	mod := graph.NewModule()
	mod.AddPass(vetoed)
	mod.AddPass(root)

	sched, err := graph.Build(mod, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sched.Passes) != 1 || sched.Passes[0].Name != "root" {
		t.Fatalf("expected only root to survive, got %v", sched.Passes)
	}
	graph.Execute(sched)
	if ran {
		t.Fatal("vetoed pass's execute callback ran despite returning false from setup")
	}
}

func TestBuildComputesFirstLastUseAndRootAffinity(t *testing.T) {
	reg := handle.NewRegistry()
	buf := reg.InternResource("particles", handle.Buffer, 0, 1, 0, nil)
	img := reg.InternResource("color", handle.Image, 0, 1, 0, nil)

	sim := graph.NewPass("sim", graph.Compute)
	sim.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(buf, graph.Write, driver.SCompute, 0)
		return true
	})

	draw := graph.NewPass("draw", graph.Graphics)
	draw.SetIsRoot(true)
	draw.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(buf, graph.Read, driver.SVertex, 0)
		p.UseResource(img, graph.Write, driver.SFragment, 0)
		return true
	})

	mod := graph.NewModule()
	mod.AddPass(sim)
	mod.AddPass(draw)

	sched, err := graph.Build(mod, 42)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sched.FirstUse[buf] != 0 || sched.LastUse[buf] != 1 {
		t.Fatalf("buf first/last use = %d/%d, want 0/1", sched.FirstUse[buf], sched.LastUse[buf])
	}
	if _, ok := sched.RootAffinity[draw]; !ok {
		t.Fatal("expected draw (a root pass) to have a RootAffinity entry")
	}
	if sched.RootAffinity[draw] != graph.AffinityDefault {
		t.Fatalf("expected default affinity for a pass that never overrides it, got %v", sched.RootAffinity[draw])
	}
}
