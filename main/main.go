package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pterm/pterm"

	b "finality/blockchain"
	"finality/config"
	"finality/consensus"
	"finality/ledger"
	"finality/network"
	t "finality/types"
)

const fundingAmount = 100

func main() {
	cfg := config.Default()
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfg.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] central|poa|pow\n", os.Args[0])
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		pterm.Error.Println(err)
		os.Exit(2)
	}

	plogger := pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)
	if cfg.Verbose {
		plogger = plogger.WithLevel(pterm.LogLevelDebug)
	}
	logger := slog.New(pterm.NewSlogHandler(plogger))

	var err error
	switch scenario := fs.Arg(0); scenario {
	case "central":
		err = runCentral(cfg, logger)
	case "poa":
		err = runPoA(cfg, logger)
	case "pow":
		err = runPoW(cfg, logger)
	default:
		err = fmt.Errorf("unknown scenario %q", scenario)
	}
	if err != nil {
		logger.Error("scenario failed", "err", err)
		os.Exit(1)
	}
}

func identities(n int) []*b.Identity {
	ids := make([]*b.Identity, n)
	for i := range ids {
		ids[i] = b.IdentityFromSeed(fmt.Sprintf("node-%d", i))
	}
	return ids
}

func addresses(ids []*b.Identity) []t.Address {
	addrs := make([]t.Address, len(ids))
	for i, id := range ids {
		addrs[i] = id.Address
	}
	return addrs
}

func newLedger(cfg config.Config, authority t.Address, logger *slog.Logger) *ledger.Ledger {
	return ledger.New(authority,
		ledger.WithGenesis(map[t.Address]uint64{authority: cfg.GenesisSupply}),
		ledger.WithFeePolicy(ledger.BasisPoints(cfg.CancelFeeBps)),
		ledger.WithLogger(logger),
	)
}

func newSim(cfg config.Config, logger *slog.Logger) *network.Sim {
	return network.NewSim(
		network.WithSeed(cfg.Seed),
		network.WithMaxDelay(cfg.MaxDelay),
		network.WithDuplication(cfg.Duplication),
		network.WithLogger(logger),
	)
}

// runCentral drives a single ledger directly: funding, an out-of-order payment, and a cancellation.
func runCentral(cfg config.Config, logger *slog.Logger) error {
	ids := identities(3)
	authority, alice, bob := ids[0], ids[1], ids[2]
	l := newLedger(cfg, authority.Address, logger)

	pterm.DefaultSection.Println("Central ledger")
	steps := []struct {
		label string
		txn   *t.Transaction
	}{
		{"authority pays alice", b.NewTx(authority, t.Send, alice.Address, 1000, 0)},
		{"alice pays bob (nonce 1, early)", b.NewTx(alice, t.Send, bob.Address, 50, 1)},
		{"alice pays bob (nonce 0)", b.NewTx(alice, t.Send, bob.Address, 200, 0)},
		{"alice cancels her nonce 1 payment", b.NewTx(alice, t.Cancel, bob.Address, 0, 1)},
		{"bob replays alice's payment", b.NewTx(alice, t.Send, bob.Address, 200, 0)},
		{"alice checks her balance", b.NewTx(alice, t.Check, alice.Address, 0, 2)},
	}

	rows := pterm.TableData{{"Step", "Outcome", "Error"}}
	for _, step := range steps {
		outcome, err := l.Process(step.txn)
		errText := ""
		if err != nil {
			errText = err.Error()
		}
		rows = append(rows, []string{step.label, outcome.String(), errText})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	return renderBalances(l, []string{"authority", "alice", "bob"}, ids)
}

func runPoA(cfg config.Config, logger *slog.Logger) error {
	ids := identities(cfg.Nodes)
	authority := ids[0]
	sim := newSim(cfg, logger)

	nodes := make([]*consensus.PoA, len(ids))
	for i, id := range ids {
		opts := []consensus.Option{consensus.WithPid(fmt.Sprintf("node-%d", i)), consensus.WithLogger(logger)}
		if i == 0 {
			opts = append(opts, consensus.WithAuthority(authority))
		}
		node, err := consensus.NewPoA(id, newLedger(cfg, authority.Address, logger), sim, opts...)
		if err != nil {
			return err
		}
		nodes[i] = node
	}

	spenders := make([]network.Node, len(nodes))
	for i, node := range nodes {
		spenders[i] = consensus.NewSpender(node, addresses(ids), cfg.Seed+int64(i))
	}
	if err := sim.Connect(spenders...); err != nil {
		return err
	}
	for _, id := range ids[1:] {
		if _, err := nodes[0].Send(id.Address, fundingAmount); err != nil {
			return err
		}
	}

	pterm.DefaultSection.Printfln("PoA: %d nodes, %d ticks", len(nodes), cfg.Ticks)
	sim.Run(cfg.Ticks)
	sim.Settle()

	rows := pterm.TableData{{"Node", "Role", "Address", "Order", "Buffered", "Balance", "Supply"}}
	for _, node := range nodes {
		role := "replica"
		if node.IsAuthority() {
			role = "authority"
		}
		rows = append(rows, []string{
			node.Pid(),
			role,
			node.Address().Short(),
			fmt.Sprint(node.OrderNonce()),
			fmt.Sprint(node.Buffered()),
			fmt.Sprint(node.Balance()),
			fmt.Sprint(node.Ledger().TotalSupply()),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	agree(ledgers(nodes), ids)
	return nil
}

func runPoW(cfg config.Config, logger *slog.Logger) error {
	ids := identities(cfg.Nodes)
	authority := ids[0]
	sim := newSim(cfg, logger)
	opts := func(i int) []consensus.Option {
		return []consensus.Option{
			consensus.WithPid(fmt.Sprintf("node-%d", i)),
			consensus.WithLogger(logger),
			consensus.WithDifficulty(cfg.Difficulty),
			consensus.WithHashRate(cfg.HashRate),
		}
	}

	clients := make([]*consensus.Client, len(ids))
	wallets := make([]consensus.Wallet, len(ids))
	var miners []*consensus.Miner
	for i, id := range ids {
		l := newLedger(cfg, authority.Address, logger)
		// The authority holds the genesis supply and never mines, so mining nodes are taken from the end.
		if i >= len(ids)-cfg.Miners && i > 0 {
			m := consensus.NewMiner(id, l, sim, opts(i)...)
			miners = append(miners, m)
			clients[i], wallets[i] = m.Client, m
			continue
		}
		c := consensus.NewClient(id, l, sim, opts(i)...)
		clients[i], wallets[i] = c, c
	}

	spenders := make([]network.Node, len(wallets))
	for i, w := range wallets {
		spenders[i] = consensus.NewSpender(w, addresses(ids), cfg.Seed+int64(i))
	}
	if err := sim.Connect(spenders...); err != nil {
		return err
	}
	for _, id := range ids[1:] {
		if _, err := clients[0].Send(id.Address, fundingAmount); err != nil {
			return err
		}
	}

	pterm.DefaultSection.Printfln("PoW: %d nodes, %d miners, difficulty %d, %d ticks", len(ids), len(miners), clients[0].Difficulty(), cfg.Ticks)
	sim.Run(cfg.Ticks)
	sim.Settle()
	for _, c := range clients {
		_ = c.SelectCanonical()
	}

	rows := pterm.TableData{{"Node", "Height", "Tip", "Blocks seen", "Queued", "Balance"}}
	for _, c := range clients {
		rows = append(rows, []string{
			c.Pid(),
			fmt.Sprint(c.Height()),
			b.BlockHash(c.Tip()).Short(),
			fmt.Sprint(len(c.AllBlocks())),
			fmt.Sprint(len(c.Queue())),
			fmt.Sprint(c.Balance()),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	for _, m := range miners {
		pterm.Info.Printfln("%s mined %d blocks at %d hashes per tick", m.Pid(), m.Mined(), m.HashRate())
	}
	agree(ledgers(clients), ids)
	return nil
}

func ledgers[N interface{ Ledger() *ledger.Ledger }](nodes []N) []*ledger.Ledger {
	ls := make([]*ledger.Ledger, len(nodes))
	for i, n := range nodes {
		ls[i] = n.Ledger()
	}
	return ls
}

// agree reports whether every ledger ended with the same balances. PoW nodes holding
// competing tips of equal height can legitimately disagree.
func agree(ls []*ledger.Ledger, ids []*b.Identity) {
	for _, l := range ls[1:] {
		for _, id := range ids {
			if l.Balance(id.Address) != ls[0].Balance(id.Address) {
				pterm.Warning.Printfln("nodes disagree on the balance of %s", id.Address.Short())
				return
			}
		}
	}
	pterm.Success.Println("all nodes agree on every balance")
}

func renderBalances(l *ledger.Ledger, names []string, ids []*b.Identity) error {
	rows := pterm.TableData{{"Account", "Address", "Balance", "Nonce"}}
	for i, id := range ids {
		account, _ := l.Account(id.Address)
		rows = append(rows, []string{names[i], id.Address.Short(), fmt.Sprint(account.Balance), fmt.Sprint(account.Nonce)})
	}
	if operator := l.Operator(); operator != ids[0].Address {
		rows = append(rows, []string{"operator", operator.Short(), fmt.Sprint(l.Balance(operator)), ""})
	}
	rows = append(rows, []string{"total", "", fmt.Sprint(l.TotalSupply()), ""})
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
