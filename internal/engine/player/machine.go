package player

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/engine/animgraph"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
)

// machine evaluates a state machine.
//
// Without a fade in progress, the current state's transitions are tried in
// order and the first whose condition holds starts a fade. During a fade
// only the transition leading straight back to the source state may fire,
// and only if the running transition is reversible; it resumes from the
// mirrored point so the pose does not jump. The tick that starts a fade
// counts toward its duration, and a fade ends once its elapsed time
// reaches the duration.
func (p *Player) machine(i animgraph.Ref, n *animgraph.Node, dt float32, out *skeleton.Pose) {
	g := p.graph
	states := n.StateMachine.States

	if p.fade[i] == none {
		cur := states[p.child[i]]
		for _, tr := range g.Node(cur).State.Transitions {
			if p.condition(g.Node(tr).Transition.Condition, cur) {
				p.begin(i, n, tr, 0)
				break
			}
		}
	} else if running := g.Node(p.fade[i]).Transition; running.Reversible {
		src, dst := states[p.from[i]], states[p.child[i]]
		for _, tr := range g.Node(dst).State.Transitions {
			back := g.Node(tr).Transition
			if back.Target == src && p.condition(back.Condition, dst) {
				done := p.fraction(i)
				p.begin(i, n, tr, (1-done)*back.Duration)
				break
			}
		}
	}

	if p.fade[i] != none {
		p.time[i] += dt
		if p.time[i] >= g.Node(p.fade[i]).Transition.Duration {
			p.log.Debug("transition finished",
				zap.Int("machine", int(n.ID)),
				zap.String("state", g.Node(states[p.child[i]]).Name))
			p.fade[i] = none
			p.from[i] = none
		}
	}

	dst := states[p.child[i]]
	if p.fade[i] == none {
		p.weight[i] = 0
		p.pose(dst, dt, out)
	} else {
		w := p.fraction(i)
		p.weight[i] = w
		p.pose(states[p.from[i]], dt, out)
		next := p.acquire()
		p.pose(dst, dt, next)
		out.Blend(out, next, w)
		p.release()
	}
	p.phase[i] = p.phase[dst]
}

// fraction returns how far machine i is through its running fade.
func (p *Player) fraction(i animgraph.Ref) float32 {
	d := p.graph.Node(p.fade[i]).Transition.Duration
	if d <= 0 {
		return 1
	}
	return min(p.time[i]/d, 1)
}

// begin starts transition tr of machine i with the given elapsed time.
func (p *Player) begin(i animgraph.Ref, n *animgraph.Node, tr animgraph.Ref, elapsed float32) {
	g := p.graph
	target := g.Node(tr).Transition.Target
	pos := none
	for k, s := range n.StateMachine.States {
		if s == target {
			pos = k
			break
		}
	}
	if pos == none {
		panic("player: transition target outside its state machine")
	}

	reversed := p.fade[i] != none
	p.log.Debug("transition started",
		zap.Int("machine", int(n.ID)),
		zap.String("from", g.Node(n.StateMachine.States[p.child[i]]).Name),
		zap.String("to", g.Node(target).Name),
		zap.Bool("reversed", reversed))

	p.from[i] = p.child[i]
	p.child[i] = pos
	p.fade[i] = tr
	p.time[i] = elapsed
}
