// Package network simulates the message layer that connects ledger nodes.
//
// Nodes never share memory: every broadcast is encoded to its JSON wire shape and decoded
// again for each recipient. Delivery is delayed by a random number of ticks, optionally
// duplicated, and shuffled within a tick, so nodes see the reordering and duplication
// they must tolerate. The simulator drives every node's Tick once per round.
package network

import (
	"fmt"
	"log/slog"
	"math/rand"

	t "finality/types"
)

// Broadcaster is the only handle a node has on the network.
type Broadcaster interface {
	Broadcast(from string, unit t.Unit)
}

// Node is anything the simulator can schedule.
type Node interface {
	Pid() string
	OnReceive(unit t.Unit)
	Tick()
}

type envelope struct {
	to      string
	payload []byte
	due     int
}

type Sim struct {
	nodes    []Node
	byPid    map[string]Node
	queue    []envelope
	now      int
	rng      *rand.Rand
	maxDelay int
	dupRate  float64
	logger   *slog.Logger
	sent     int
}

func NewSim(opts ...Option) *Sim {
	s := &Sim{
		byPid:  make(map[string]Node),
		rng:    rand.New(rand.NewSource(1)),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect registers nodes. Pids must be unique.
func (s *Sim) Connect(nodes ...Node) error {
	for _, n := range nodes {
		if _, exists := s.byPid[n.Pid()]; exists {
			return fmt.Errorf("duplicate pid %q", n.Pid())
		}
		s.byPid[n.Pid()] = n
		s.nodes = append(s.nodes, n)
	}
	return nil
}

// Broadcast queues unit for every node except the sender. It never blocks.
func (s *Sim) Broadcast(from string, unit t.Unit) {
	payload, err := t.EncodeUnit(unit)
	if err != nil {
		s.logger.Warn("dropping unencodable message", "from", from, "err", err)
		return
	}
	for _, n := range s.nodes {
		if n.Pid() == from {
			continue
		}
		s.enqueue(n.Pid(), payload)
		if s.dupRate > 0 && s.rng.Float64() < s.dupRate {
			s.enqueue(n.Pid(), payload)
		}
	}
	s.sent++
}

func (s *Sim) enqueue(to string, payload []byte) {
	delay := 0
	if s.maxDelay > 0 {
		delay = s.rng.Intn(s.maxDelay + 1)
	}
	s.queue = append(s.queue, envelope{to: to, payload: payload, due: s.now + delay})
}

// Tick delivers every message due this round in random order, then ticks each node.
func (s *Sim) Tick() {
	var due, later []envelope
	for _, env := range s.queue {
		if env.due <= s.now {
			due = append(due, env)
		} else {
			later = append(later, env)
		}
	}
	s.queue = later
	s.rng.Shuffle(len(due), func(i, j int) { due[i], due[j] = due[j], due[i] })

	for _, env := range due {
		s.deliver(env)
	}
	for _, n := range s.nodes {
		n.Tick()
	}
	s.now++
}

func (s *Sim) deliver(env envelope) {
	n, exists := s.byPid[env.to]
	if !exists {
		return
	}
	unit, err := t.DecodeUnit(env.payload)
	if err != nil {
		s.logger.Warn("dropping undecodable message", "to", env.to, "err", err)
		return
	}
	n.OnReceive(unit)
}

// Run ticks the network n times.
func (s *Sim) Run(n int) {
	for range n {
		s.Tick()
	}
}

// Settle delivers everything in flight without ticking nodes, so no new work is produced.
func (s *Sim) Settle() {
	for len(s.queue) > 0 {
		queued := s.queue
		s.queue = nil
		s.rng.Shuffle(len(queued), func(i, j int) { queued[i], queued[j] = queued[j], queued[i] })
		for _, env := range queued {
			s.deliver(env)
		}
	}
}

func (s *Sim) Pending() int { return len(s.queue) }
func (s *Sim) Now() int     { return s.now }
func (s *Sim) Sent() int    { return s.sent }
func (s *Sim) Nodes() []Node {
	return append([]Node{}, s.nodes...)
}
