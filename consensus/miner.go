package consensus

import (
	b "finality/blockchain"
	"finality/ledger"
	"finality/network"
	t "finality/types"
)

// Miner is a Client that also searches for blocks. It works on one attempt at a time,
// built on the current tip with at most one queued transaction.
type Miner struct {
	*Client
	attempt *t.Block
	mined   int
}

func NewMiner(id *b.Identity, l *ledger.Ledger, net network.Broadcaster, opts ...Option) *Miner {
	m := &Miner{Client: NewClient(id, l, net, opts...)}
	m.startNewSearch()
	return m
}

func (m *Miner) HashRate() int     { return m.hashRate }
func (m *Miner) Mined() int        { return m.mined }
func (m *Miner) Attempt() *t.Block { return m.attempt }
func (m *Miner) String() string    { return "miner:" + m.id.Address.Short() }

// startNewSearch discards the current attempt. A transaction in it is still queued until a block
// carrying it is applied, so nothing is lost when the tip moves.
func (m *Miner) startNewSearch() {
	tip := m.Tip()
	txList := []*t.Transaction{}
	if len(m.transactions) > 0 {
		txList = append(txList, m.transactions[0])
	}
	m.attempt = &t.Block{
		Number:     tip.Number + 1,
		Coinbase:   m.id.Address,
		Difficulty: m.difficulty,
		ParentHash: b.BlockHash(tip),
		Timestamp:  m.clock(),
		Contents: t.BlockContents{
			Type:   t.BlockType,
			TxList: txList,
		},
	}
}

// stale reports whether the attempt no longer builds on the tip, or is empty while work is queued.
func (m *Miner) stale() bool {
	if m.attempt.ParentHash != b.BlockHash(m.Tip()) {
		return true
	}
	return len(m.attempt.Contents.TxList) == 0 && len(m.transactions) > 0
}

// Tick tries up to hashRate nonces. A hit is received like any other block, then mining restarts on the new tip.
func (m *Miner) Tick() {
	if m.stale() {
		m.startNewSearch()
	}
	for range m.hashRate {
		if b.IsValidBlockHash(m.attempt, m.difficulty) {
			block := m.attempt
			m.mined++
			m.logger.Info("mined block", "pid", m.pid, "number", block.Number, "nonce", block.Nonce, "txs", len(block.Contents.TxList))
			if err := m.ReceiveBlock(block); err != nil {
				m.logger.Warn("mined block rejected", "pid", m.pid, "err", err)
			}
			m.startNewSearch()
			return
		}
		m.attempt.Nonce++
	}
}

// ReceiveBlock restarts the search whenever the block moves the tip.
func (m *Miner) ReceiveBlock(block *t.Block) error {
	tip := m.Tip()
	if err := m.Client.ReceiveBlock(block); err != nil {
		return err
	}
	if m.Tip() != tip {
		m.startNewSearch()
	}
	return nil
}

func (m *Miner) OnReceive(unit t.Unit) {
	if err := m.ApplyUnit(unit); err != nil {
		m.logger.Warn("rejected message", "pid", m.pid, "type", unit.UnitType(), "err", err)
	}
}

func (m *Miner) ApplyUnit(unit t.Unit) error {
	if block, ok := unit.(*t.Block); ok {
		return m.ReceiveBlock(block)
	}
	return m.Client.ApplyUnit(unit)
}
