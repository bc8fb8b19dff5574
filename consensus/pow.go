package consensus

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	b "finality/blockchain"
	"finality/ledger"
	"finality/network"
	t "finality/types"
)

// Client follows the longest gap-free chain of valid blocks it has seen and keeps
// the transactions it has heard about queued until a block includes them.
type Client struct {
	settings
	id     *b.Identity
	ledger *ledger.Ledger
	net    network.Broadcaster

	blockchain   []*t.Block
	allBlocks    []*t.Block
	blocksByHash map[t.Hash]*t.Block
	transactions []*t.Transaction
	seenTx       map[t.Hash]struct{}
}

func NewClient(id *b.Identity, l *ledger.Ledger, net network.Broadcaster, opts ...Option) *Client {
	s := defaultSettings(id)
	for _, opt := range opts {
		opt(&s)
	}
	genesis := b.Genesis()
	return &Client{
		settings:     s,
		id:           id,
		ledger:       l,
		net:          net,
		blockchain:   []*t.Block{genesis},
		allBlocks:    []*t.Block{genesis},
		blocksByHash: map[t.Hash]*t.Block{b.BlockHash(genesis): genesis},
		seenTx:       make(map[t.Hash]struct{}),
	}
}

func (c *Client) Pid() string            { return c.pid }
func (c *Client) Address() t.Address     { return c.id.Address }
func (c *Client) Ledger() *ledger.Ledger { return c.ledger }
func (c *Client) Balance() uint64        { return c.ledger.Balance(c.id.Address) }
func (c *Client) Difficulty() uint64     { return c.difficulty }
func (c *Client) Tip() *t.Block          { return c.blockchain[len(c.blockchain)-1] }
func (c *Client) Height() uint64         { return c.Tip().Number }
func (c *Client) Tick()                  {}
func (c *Client) String() string         { return "pow:" + c.id.Address.Short() }

// Chain is the canonical chain from genesis to tip.
func (c *Client) Chain() []*t.Block {
	return append([]*t.Block{}, c.blockchain...)
}

// AllBlocks is every valid block received, in arrival order.
func (c *Client) AllBlocks() []*t.Block {
	return append([]*t.Block{}, c.allBlocks...)
}

// Queue is the transactions waiting for a block.
func (c *Client) Queue() []*t.Transaction {
	return append([]*t.Transaction{}, c.transactions...)
}

// GenerateTx builds a send signed by this node with its next free nonce.
func (c *Client) GenerateTx(to t.Address, amount uint64) *t.Transaction {
	return b.NewTx(c.id, t.Send, to, amount, c.nextNonce())
}

// nextNonce is the lowest nonce, starting at the account's, that none of this node's queued or
// buffered transactions holds. A send that a block rejected holds nothing, so its nonce is issued again.
func (c *Client) nextNonce() uint64 {
	held := make(map[uint64]struct{})
	for _, txn := range c.transactions {
		if txn.Contents.From == c.id.Address {
			held[txn.Contents.Nonce] = struct{}{}
		}
	}
	for _, txn := range c.ledger.Pending().Waiting(c.id.Address) {
		held[txn.Contents.Nonce] = struct{}{}
	}
	nonce := c.ledger.Nonce(c.id.Address)
	for {
		if _, taken := held[nonce]; !taken {
			return nonce
		}
		nonce++
	}
}

// Settled reports whether txn has left this node's queue and pending pool, applied or not.
func (c *Client) Settled(txn *t.Transaction) bool {
	id := b.TxID(txn)
	if c.ledger.Seen(id) {
		return true
	}
	for _, queued := range c.transactions {
		if b.TxID(queued) == id {
			return false
		}
	}
	waiting, ok := c.ledger.Pending().Peek(txn.Contents.From, txn.Contents.Nonce)
	return !ok || b.TxID(waiting) != id
}

// Send generates a transaction, queues it locally and gossips it to miners.
func (c *Client) Send(to t.Address, amount uint64) (*t.Transaction, error) {
	txn := c.GenerateTx(to, amount)
	if err := c.ReceiveTx(txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (c *Client) OnReceive(unit t.Unit) {
	if err := c.receive(unit); err != nil {
		c.logger.Warn("rejected message", "pid", c.pid, "type", unit.UnitType(), "err", err)
	}
}

func (c *Client) receive(unit t.Unit) error {
	switch u := unit.(type) {
	case *t.Transaction:
		return c.ReceiveTx(u)
	case *t.Block:
		return c.ReceiveBlock(u)
	}
	return fmt.Errorf("%w: %T", t.ErrInvalidBlockType, unit)
}

// ReceiveTx queues a transaction for mining and rebroadcasts it the first time it is seen.
func (c *Client) ReceiveTx(txn *t.Transaction) error {
	id := b.TxID(txn)
	if _, seen := c.seenTx[id]; seen {
		return nil
	}
	if err := b.CheckSig(txn); err != nil {
		return err
	}
	c.seenTx[id] = struct{}{}
	if c.ledger.Seen(id) {
		return nil
	}
	c.transactions = append(c.transactions, txn)
	c.net.Broadcast(c.pid, txn)
	return nil
}

func (c *Client) validateBlock(block *t.Block) error {
	if block.Contents.Type != t.BlockType {
		return fmt.Errorf("%w: %q", t.ErrInvalidBlockType, block.Contents.Type)
	}
	if block.Number == 0 {
		return fmt.Errorf("%w: only genesis has number 0", t.ErrInvalidBlockNumber)
	}
	if !b.IsValidBlockHash(block, c.difficulty) {
		return fmt.Errorf("%w: fewer than %d leading zero bits", t.ErrInvalidBlockHash, c.difficulty)
	}
	if parent, known := c.blocksByHash[block.ParentHash]; known && block.Number != parent.Number+1 {
		return fmt.Errorf("%w: block %d on parent %d", t.ErrInvalidBlockNumber, block.Number, parent.Number)
	}
	return nil
}

// ReceiveBlock stores a novel valid block, extends the chain if it builds on the tip, then
// reruns fork choice. Every stored block is rebroadcast.
func (c *Client) ReceiveBlock(block *t.Block) error {
	hash := b.BlockHash(block)
	if _, seen := c.blocksByHash[hash]; seen {
		return nil
	}
	if err := c.validateBlock(block); err != nil {
		return err
	}
	c.allBlocks = append(c.allBlocks, block)
	c.blocksByHash[hash] = block

	if block.ParentHash == b.BlockHash(c.Tip()) {
		c.blockchain = append(c.blockchain, block)
		c.ApplyBlock(block)
		c.logger.Debug("chain extended", "pid", c.pid, "number", block.Number, "block", hash.Short())
	}
	// A block that arrived before its parent may now be reachable, even after a direct extension.
	if err := c.UpdateState(); err != nil {
		c.logger.Debug("fork not adopted", "pid", c.pid, "number", block.Number, "err", err)
	}

	c.net.Broadcast(c.pid, block)
	return nil
}

// UpdateState switches to the chain ending at the highest block seen, if that chain can be
// traced back to genesis without gaps. A higher block that cannot be traced is passed over in
// favour of the next highest that can, so one orphan cannot pin the node to its current chain.
// On a switch the ledger is rebuilt from genesis.
func (c *Client) UpdateState() error {
	tip := c.Tip().Number
	var candidates []*t.Block
	for _, block := range c.allBlocks {
		if block.Number > tip {
			candidates = append(candidates, block)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	// Stable, so equal heights keep arrival order and the first seen wins.
	slices.SortStableFunc(candidates, func(x, y *t.Block) int {
		return cmp.Compare(y.Number, x.Number)
	})

	dead := make(map[t.Hash]struct{})
	for _, best := range candidates {
		if chain, ok := c.trace(best, dead); ok {
			c.switchTo(chain)
			return nil
		}
	}
	best := candidates[0]
	return fmt.Errorf("%w: cannot trace block %d (%s) back to genesis", t.ErrUnresolvedFork, best.Number, b.BlockHash(best).Short())
}

// trace follows parent links from head to genesis. Blocks on a failed trace go into dead so
// later traces through them stop early.
func (c *Client) trace(head *t.Block, dead map[t.Hash]struct{}) ([]*t.Block, bool) {
	chain := []*t.Block{head}
	for cur := head; cur.Number > 0; {
		parent, known := c.blocksByHash[cur.ParentHash]
		_, hopeless := dead[cur.ParentHash]
		if !known || hopeless || parent.Number != cur.Number-1 {
			for _, block := range chain {
				dead[b.BlockHash(block)] = struct{}{}
			}
			return nil, false
		}
		chain = append(chain, parent)
		cur = parent
	}
	slices.Reverse(chain)
	return chain, true
}

func (c *Client) switchTo(chain []*t.Block) {
	previous := c.blockchain
	c.blockchain = chain
	c.ledger.Reset()
	for _, block := range chain[1:] {
		c.ApplyBlock(block)
	}
	c.requeue(previous)

	c.logger.Info("switched chain", "pid", c.pid, "from", previous[len(previous)-1].Number, "to", chain[len(chain)-1].Number)
}

// requeue puts transactions from an abandoned chain back in the queue if the new chain did not apply them.
func (c *Client) requeue(abandoned []*t.Block) {
	queued := make(map[t.Hash]struct{}, len(c.transactions))
	for _, txn := range c.transactions {
		queued[b.TxID(txn)] = struct{}{}
	}
	for _, block := range abandoned {
		for _, txn := range block.Contents.TxList {
			id := b.TxID(txn)
			if _, exists := queued[id]; exists || c.ledger.Seen(id) {
				continue
			}
			queued[id] = struct{}{}
			c.transactions = append(c.transactions, txn)
		}
	}
}

// ApplyBlock runs every transaction in the block through the ledger and drops them from the queue.
func (c *Client) ApplyBlock(block *t.Block) {
	included := make(map[t.Hash]struct{}, len(block.Contents.TxList))
	for _, txn := range block.Contents.TxList {
		id := b.TxID(txn)
		included[id] = struct{}{}
		outcome, err := c.ledger.Process(txn)
		if err != nil {
			c.logger.Debug("block transaction not applied", "pid", c.pid, "block", block.Number, "err", err)
		}
		// A rejected transaction consumed nothing, so an identical resend must be accepted again.
		if outcome == ledger.Rejected {
			delete(c.seenTx, id)
		}
	}

	kept := c.transactions[:0]
	for _, txn := range c.transactions {
		id := b.TxID(txn)
		if _, done := included[id]; done || c.ledger.Seen(id) {
			continue
		}
		kept = append(kept, txn)
	}
	c.transactions = kept
}

func (c *Client) ValidateUnit(unit t.Unit) error {
	switch u := unit.(type) {
	case *t.Transaction:
		return b.CheckSig(u)
	case *t.Block:
		return c.validateBlock(u)
	}
	return fmt.Errorf("%w: %T", t.ErrInvalidBlockType, unit)
}

func (c *Client) ApplyUnit(unit t.Unit) error {
	return c.receive(unit)
}

func (c *Client) SelectCanonical() error {
	err := c.UpdateState()
	if errors.Is(err, t.ErrUnresolvedFork) {
		c.logger.Debug("keeping current chain", "pid", c.pid, "err", err)
	}
	return err
}
