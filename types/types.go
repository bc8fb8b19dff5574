package types

// Identities

type Address [20]byte
type Hash [32]byte

// Signature is a compact recoverable secp256k1 signature: one recovery byte followed by R and S.
type Signature [65]byte

// Transactions

type TxType string

const (
	Mint   TxType = "mint"
	Send   TxType = "send"
	Check  TxType = "check"
	Cancel TxType = "cancel"
	// BlockType is the contents type carried by every block.
	BlockType TxType = "block"
)

func (t TxType) IsTx() bool {
	switch t {
	case Mint, Send, Check, Cancel:
		return true
	}
	return false
}

type TxContents struct {
	Type       TxType  `json:"type"`
	Amount     uint64  `json:"amount"`
	From       Address `json:"from"`
	To         Address `json:"to"`
	Nonce      uint64  `json:"nonce"`
	OrderNonce *uint64 `json:"orderNonce,omitempty"`
}

type Transaction struct {
	Contents   TxContents  `json:"contents"`
	Signatures []Signature `json:"signatures"`
}

// Clone returns a deep copy. Signature lists are append-only, so copies are what get extended.
func (tx *Transaction) Clone() *Transaction {
	c := &Transaction{
		Contents:   tx.Contents,
		Signatures: append([]Signature{}, tx.Signatures...),
	}
	if tx.Contents.OrderNonce != nil {
		n := *tx.Contents.OrderNonce
		c.Contents.OrderNonce = &n
	}
	return c
}

func (tx *Transaction) UnitType() TxType { return tx.Contents.Type }

// Blockchain

type BlockContents struct {
	Type   TxType         `json:"type"`
	TxList []*Transaction `json:"txList"`
}

type Block struct {
	Nonce      uint64        `json:"nonce"`
	Number     uint64        `json:"number"`
	Coinbase   Address       `json:"coinbase"`
	Difficulty uint64        `json:"difficulty"`
	ParentHash Hash          `json:"parentHash"`
	Timestamp  int64         `json:"timestamp"`
	Contents   BlockContents `json:"contents"`
}

func (b *Block) UnitType() TxType { return b.Contents.Type }

// Unit is anything a node can receive from the network: a transaction or a block.
type Unit interface {
	UnitType() TxType
}

// State Management

type Account struct {
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type AccountSet = map[Address]*Account

type State struct {
	AccountSet AccountSet
}

func NewState() *State {
	return &State{AccountSet: make(AccountSet)}
}

// Materialize returns the account for addr, creating it at zero balance and nonce if absent.
func (s *State) Materialize(addr Address) *Account {
	account, exists := s.AccountSet[addr]
	if !exists {
		account = &Account{}
		s.AccountSet[addr] = account
	}
	return account
}

// Get returns a copy of the account for addr without creating it.
func (s *State) Get(addr Address) (Account, bool) {
	account, exists := s.AccountSet[addr]
	if !exists {
		return Account{}, false
	}
	return *account, true
}

func (s *State) Clone() *State {
	c := NewState()
	for addr, account := range s.AccountSet {
		copied := *account
		c.AccountSet[addr] = &copied
	}
	return c
}

func (s *State) TotalSupply() uint64 {
	var total uint64
	for _, account := range s.AccountSet {
		total += account.Balance
	}
	return total
}
