// animtool cooks animation projects and inspects or plays cooked buffers.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/config"
	"github.com/Faultbox/midgard-anim/internal/engine/animgraph"
	"github.com/Faultbox/midgard-anim/internal/engine/clip"
	"github.com/Faultbox/midgard-anim/internal/engine/debug"
	"github.com/Faultbox/midgard-anim/internal/engine/param"
	"github.com/Faultbox/midgard-anim/internal/engine/player"
	"github.com/Faultbox/midgard-anim/internal/engine/project"
	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "cook":
		err = cmdCook(cfg, args)
	case "info":
		err = cmdInfo(args)
	case "dump":
		err = cmdDump(args)
	case "play":
		err = cmdPlay(cfg, args)
	case "config":
		err = cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`animtool - skeletal animation cooker and player

Usage:
  animtool [-config file] [-debug] <command> [options]

Commands:
  cook <project.yaml> <out.anim>          Validate and cook a project
  info <file.anim>                        List cooked resources
  dump <file.anim> <name>                 Dump one cooked resource
  play [options] <file.anim> <graph>      Play a graph and print the final pose
  config [path]                           Write the effective config (default: user config dir)

Play options:
  -set name=value   Set a parameter (repeatable; value is true/false, int or float)
  -seconds N        Seconds to simulate (default from config)

Examples:
  animtool cook hero.yaml hero.anim
  animtool info hero.anim
  animtool play -set speed=2.5 -set moving=true -seconds 3 hero.anim locomotion`)
}

func cmdCook(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: animtool cook <project.yaml> <out.anim>")
		os.Exit(1)
	}

	p, err := project.Load(args[0])
	if err != nil {
		return err
	}
	scheme, err := clip.ParseScheme(cfg.Cook.DefaultScheme)
	if err != nil {
		return err
	}

	buf := make([]byte, cfg.Cook.BufferSize)
	n, err := p.Cook(buf, project.WithDefaultScheme(scheme))
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[1], buf[:n], 0o644); err != nil {
		return err
	}

	logger.Info("cooked project",
		zap.String("project", args[0]),
		zap.String("output", args[1]),
		zap.Int("resources", p.Len()),
		zap.Int("bytes", n))
	fmt.Printf("Cooked %d resources into %s (%d bytes)\n", p.Len(), args[1], n)
	return nil
}

func cmdConfig(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		if err := cfg.SaveTo(args[0]); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", args[0])
		return nil
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Printf("Wrote config to %s\n", config.ConfigDir())
	return nil
}

func loadCooked(path string) (*project.Cooked, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return project.LoadCooked(data)
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: animtool info <file.anim>")
		os.Exit(1)
	}

	c, err := loadCooked(args[0])
	if err != nil {
		return err
	}

	entries := c.Resources()
	fmt.Printf("File:      %s\n", args[0])
	fmt.Printf("Resources: %d\n", len(entries))
	fmt.Println()

	for _, e := range entries {
		fmt.Printf("  %-8s %s  %-20s %s\n", e.Kind, e.ID, e.Name, describe(c, e))
	}
	return nil
}

func describe(c *project.Cooked, e project.Entry) string {
	switch e.Kind {
	case resource.KindSkeleton:
		s, _ := c.Skeleton(e.ID)
		return fmt.Sprintf("%d joints", s.Len())
	case resource.KindMask:
		m, _ := c.Mask(e.ID)
		return fmt.Sprintf("skeleton %s", m.Skeleton)
	case resource.KindClip:
		cl, _ := c.Clip(e.ID)
		desc := fmt.Sprintf("%.3fs %s, %d keys, %d bytes", cl.Duration(), cl.Scheme(), cl.Keys(), cl.Size())
		if a := cl.Additive(); a != nil {
			desc += fmt.Sprintf(", additive on %s", name(c, a.Base))
		}
		return desc
	case resource.KindGraph:
		g, _ := c.Graph(e.ID)
		root := g.Node(g.Root())
		return fmt.Sprintf("%d nodes, root %d (%s)", g.Len(), root.ID, root.Kind)
	}
	return ""
}

func name(c *project.Cooked, id resource.ID) string {
	if e, ok := c.Entry(id); ok {
		return e.Name
	}
	return id.String()
}

func cmdDump(args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: animtool dump <file.anim> <name>")
		os.Exit(1)
	}

	c, err := loadCooked(args[0])
	if err != nil {
		return err
	}
	e, ok := c.Lookup(args[1])
	if !ok {
		return fmt.Errorf("no resource named %q", args[1])
	}

	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	switch e.Kind {
	case resource.KindSkeleton:
		s, _ := c.Skeleton(e.ID)
		cfg.Dump(s.Joints())
	case resource.KindMask:
		m, _ := c.Mask(e.ID)
		cfg.Dump(m)
	case resource.KindClip:
		cl, _ := c.Clip(e.ID)
		fmt.Printf("duration %v, scheme %s, channels t/r/s %d/%d/%d, %d keys\n",
			cl.Duration(), cl.Scheme(),
			cl.Channels(clip.Translation), cl.Channels(clip.Rotation), cl.Channels(clip.Scale),
			cl.Keys())
	case resource.KindGraph:
		g, _ := c.Graph(e.ID)
		for i := 0; i < g.Len(); i++ {
			fmt.Printf("[%d] ", i)
			cfg.Dump(g.Node(animgraph.Ref(i)))
		}
	}
	return nil
}

// setFlags collects repeated -set name=value options.
type setFlags []string

func (s *setFlags) String() string {
	return strings.Join(*s, ",")
}

func (s *setFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected name=value, got %q", v)
	}
	*s = append(*s, v)
	return nil
}

func cmdPlay(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	var sets setFlags
	fs.Var(&sets, "set", "Set a parameter, name=value (repeatable)")
	seconds := fs.Float64("seconds", float64(cfg.Playback.Duration), "Seconds to simulate")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: animtool play [-set name=value]... [-seconds N] <file.anim> <graph>")
		os.Exit(1)
	}

	c, err := loadCooked(fs.Arg(0))
	if err != nil {
		return err
	}
	g, ok := c.GraphByName(fs.Arg(1))
	if !ok {
		return fmt.Errorf("no graph named %q", fs.Arg(1))
	}
	skel, _ := c.Skeleton(g.Skeleton())

	params := param.NewMapStore()
	for _, s := range sets {
		k, text, _ := strings.Cut(s, "=")
		v, err := param.Infer(text)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", k, err)
		}
		params.Set(k, v)
	}

	pl, err := player.New(g, c, params, player.WithSeed(cfg.Playback.Seed))
	if err != nil {
		return err
	}

	dt := cfg.Playback.TickDelta()
	pose := skeleton.NewPose(skel)
	ticks := 0
	for elapsed := float32(0); elapsed < float32(*seconds) || ticks == 0; elapsed += dt {
		pl.Play(dt, pose)
		ticks++
	}

	fmt.Printf("Graph:  %s\n", fs.Arg(1))
	fmt.Printf("Ticks:  %d at %.0f Hz\n", ticks, cfg.Playback.TickRate)
	for _, n := range params.Names() {
		fmt.Printf("Param:  %s = %s\n", n, params.Get(n))
	}
	fmt.Println()

	for i := 0; i < g.Len(); i++ {
		ref := animgraph.Ref(i)
		n := g.Node(ref)
		if n.Kind != animgraph.KindStateMachine {
			continue
		}
		if s, ok := pl.CurrentState(ref); ok {
			fmt.Printf("Machine %d: state %s (fading %v)\n", n.ID, label(g.Node(s)), pl.Fading(ref))
		}
	}

	fmt.Println("Pose (world):")
	for j := 0; j < skel.Len(); j++ {
		w := pose.World(j)
		fmt.Printf("  %-16s t=(%.3f, %.3f, %.3f) r=(%.3f, %.3f, %.3f, %.3f)\n",
			skel.Joint(j).Name,
			w.Translation.X, w.Translation.Y, w.Translation.Z,
			w.Rotation.X, w.Rotation.Y, w.Rotation.Z, w.Rotation.W)
	}

	lo, hi := debug.PoseBounds(pose, 0)
	fmt.Printf("Bounds: (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f), %d bones\n",
		lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z,
		len(debug.BoneLines(pose))/(debug.BoneVertexCount*3))
	return nil
}

func label(n *animgraph.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("#%d", n.ID)
}
