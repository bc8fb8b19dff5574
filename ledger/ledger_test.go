package ledger

import (
	"errors"
	"math/rand"
	"testing"

	b "finality/blockchain"
	"finality/types"
)

const genesisSupply = 1_000_000

type fixture struct {
	authority *b.Identity
	alice     *b.Identity
	bob       *b.Identity
	ledger    *Ledger
}

func newFixture(tb testing.TB, opts ...Option) fixture {
	tb.Helper()
	authority := b.IdentityFromSeed("authority")
	opts = append([]Option{WithGenesis(map[types.Address]uint64{authority.Address: genesisSupply})}, opts...)
	return fixture{
		authority: authority,
		alice:     b.IdentityFromSeed("alice"),
		bob:       b.IdentityFromSeed("bob"),
		ledger:    New(authority.Address, opts...),
	}
}

func mustProcess(tb testing.TB, l *Ledger, txn *types.Transaction, want Outcome) {
	tb.Helper()
	got, err := l.Process(txn)
	if err != nil {
		tb.Fatalf("expected %s, got error %v", want, err)
	}
	if got != want {
		tb.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSendMovesFunds(t *testing.T) {
	f := newFixture(t)
	mustProcess(t, f.ledger, b.NewTx(f.authority, types.Send, f.alice.Address, 100, 0), Applied)

	if got := f.ledger.Balance(f.authority.Address); got != 999_900 {
		t.Errorf("authority balance was incorrect, got %d wanted %d", got, 999_900)
	}
	if got := f.ledger.Balance(f.alice.Address); got != 100 {
		t.Errorf("alice balance was incorrect, got %d wanted %d", got, 100)
	}
	if got := f.ledger.Nonce(f.authority.Address); got != 1 {
		t.Errorf("authority nonce was incorrect, got %d wanted %d", got, 1)
	}
	if got := f.ledger.TotalSupply(); got != genesisSupply {
		t.Errorf("supply changed, got %d wanted %d", got, genesisSupply)
	}
}

func TestMint(t *testing.T) {
	f := newFixture(t)
	mustProcess(t, f.ledger, b.NewTx(f.authority, types.Mint, f.alice.Address, 500, 0), Applied)
	if got := f.ledger.Balance(f.alice.Address); got != 500 {
		t.Errorf("alice balance was incorrect, got %d wanted %d", got, 500)
	}
	if got := f.ledger.TotalSupply(); got != genesisSupply+500 {
		t.Errorf("supply was incorrect, got %d wanted %d", got, genesisSupply+500)
	}

	_, err := f.ledger.Process(b.NewTx(f.alice, types.Mint, f.alice.Address, 500, 0))
	if !errors.Is(err, types.ErrUnauthorizedMint) {
		t.Fatalf("expected ErrUnauthorizedMint, got %v", err)
	}
}

func TestValidationFailures(t *testing.T) {
	f := newFixture(t)
	mustProcess(t, f.ledger, b.NewTx(f.authority, types.Send, f.alice.Address, 10, 0), Applied)

	tampered := b.NewTx(f.authority, types.Send, f.alice.Address, 10, 1)
	tampered.Contents.Amount = 1000

	forged := b.NewTx(f.alice, types.Send, f.bob.Address, 5, 0)
	forged.Contents.From = f.authority.Address

	unsigned := b.NewTx(f.alice, types.Send, f.bob.Address, 5, 0)
	unsigned.Signatures = nil

	tests := []struct {
		name string
		txn  *types.Transaction
		want error
	}{
		{"tampered amount", tampered, types.ErrInvalidSignature},
		{"forged sender", forged, types.ErrInvalidSignature},
		{"no signature", unsigned, types.ErrInvalidSignature},
		{"overdraft", b.NewTx(f.alice, types.Send, f.bob.Address, 11, 0), types.ErrInsufficientFunds},
		{"replayed nonce", b.NewTx(f.authority, types.Send, f.bob.Address, 1, 0), types.ErrStaleNonce},
		{"unknown type", b.NewTx(f.alice, types.TxType("burn"), f.bob.Address, 1, 0), types.ErrInvalidTxType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.ledger.State()
			outcome, err := f.ledger.Process(tt.txn)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if outcome != Rejected {
				t.Fatalf("expected rejected, got %s", outcome)
			}
			for addr, account := range before.AccountSet {
				if got, _ := f.ledger.Account(addr); got != *account {
					t.Fatalf("account %s changed from %+v to %+v", addr.Short(), *account, got)
				}
			}
		})
	}
}

func TestCheckIsNotApplied(t *testing.T) {
	f := newFixture(t)
	mustProcess(t, f.ledger, b.NewTx(f.authority, types.Check, f.authority.Address, 0, 0), Skipped)
	if got := f.ledger.Nonce(f.authority.Address); got != 0 {
		t.Errorf("check advanced the nonce to %d", got)
	}
	if len(f.ledger.History()) != 0 {
		t.Errorf("check was recorded in history")
	}
}

func TestDuplicateIsNoop(t *testing.T) {
	f := newFixture(t)
	txn := b.NewTx(f.authority, types.Send, f.alice.Address, 100, 0)
	mustProcess(t, f.ledger, txn, Applied)
	mustProcess(t, f.ledger, txn.Clone(), Duplicate)

	if got := f.ledger.Balance(f.alice.Address); got != 100 {
		t.Errorf("duplicate was applied, alice has %d", got)
	}
	if got := len(f.ledger.History()); got != 1 {
		t.Errorf("expected 1 history entry, got %d", got)
	}
}

func TestPendingReplay(t *testing.T) {
	f := newFixture(t)
	l := f.ledger

	mustProcess(t, l, b.NewTx(f.authority, types.Send, f.alice.Address, 3, 2), Buffered)
	mustProcess(t, l, b.NewTx(f.authority, types.Send, f.alice.Address, 2, 1), Buffered)
	if got := l.Balance(f.alice.Address); got != 0 {
		t.Fatalf("buffered transactions were applied, alice has %d", got)
	}
	if got := l.Pending().Len(); got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}

	mustProcess(t, l, b.NewTx(f.authority, types.Send, f.alice.Address, 1, 0), Applied)

	if got := l.Balance(f.alice.Address); got != 6 {
		t.Errorf("alice balance was incorrect, got %d wanted %d", got, 6)
	}
	if got := l.Nonce(f.authority.Address); got != 3 {
		t.Errorf("authority nonce was incorrect, got %d wanted %d", got, 3)
	}
	if got := l.Pending().Len(); got != 0 {
		t.Errorf("expected empty pool, got %d", got)
	}
}

func TestPendingReplayStopsAtInvalid(t *testing.T) {
	f := newFixture(t)
	l := f.ledger
	mustProcess(t, l, b.NewTx(f.authority, types.Send, f.alice.Address, 10, 0), Applied)

	mustProcess(t, l, b.NewTx(f.alice, types.Send, f.bob.Address, 8, 1), Buffered)
	mustProcess(t, l, b.NewTx(f.alice, types.Send, f.bob.Address, 5, 0), Applied)

	if got := l.Balance(f.bob.Address); got != 5 {
		t.Errorf("bob balance was incorrect, got %d wanted %d", got, 5)
	}
	if got := l.Pending().Len(); got != 0 {
		t.Errorf("invalid buffered transaction was kept")
	}
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t)
	l := f.ledger

	mustProcess(t, l, b.NewTx(f.authority, types.Send, f.alice.Address, 100, 1), Buffered)
	mustProcess(t, l, b.NewTx(f.authority, types.Cancel, f.alice.Address, 0, 1), Applied)

	if got := l.Pending().Len(); got != 0 {
		t.Fatalf("pending transaction survived cancellation")
	}
	if got := l.Balance(f.authority.Address); got != genesisSupply {
		t.Errorf("free cancellation charged a fee, authority has %d", got)
	}
}

func TestCancelApplied(t *testing.T) {
	f := newFixture(t)
	operator := b.IdentityFromSeed("operator")
	l := New(f.authority.Address,
		WithGenesis(map[types.Address]uint64{f.alice.Address: 1000}),
		WithOperator(operator.Address),
	)

	mustProcess(t, l, b.NewTx(f.alice, types.Send, f.bob.Address, 1000, 0), Applied)
	mustProcess(t, l, b.NewTx(f.alice, types.Cancel, f.bob.Address, 1000, 0), Applied)

	if got := l.Balance(f.bob.Address); got != 0 {
		t.Errorf("bob balance was incorrect, got %d wanted %d", got, 0)
	}
	if got := l.Balance(f.alice.Address); got != 970 {
		t.Errorf("alice balance was incorrect, got %d wanted %d", got, 970)
	}
	if got := l.Balance(operator.Address); got != 30 {
		t.Errorf("operator fee was incorrect, got %d wanted %d", got, 30)
	}
	if got := l.TotalSupply(); got != 1000 {
		t.Errorf("cancellation changed supply to %d", got)
	}

	_, err := l.Process(b.NewTx(f.alice, types.Cancel, f.bob.Address, 1, 0))
	if !errors.Is(err, types.ErrNothingToCancel) {
		t.Fatalf("expected ErrNothingToCancel on second cancel, got %v", err)
	}
}

func TestCancelFailures(t *testing.T) {
	f := newFixture(t)
	l := f.ledger
	mustProcess(t, l, b.NewTx(f.authority, types.Send, f.alice.Address, 100, 0), Applied)
	mustProcess(t, l, b.NewTx(f.alice, types.Send, f.bob.Address, 100, 0), Applied)
	mustProcess(t, l, b.NewTx(f.bob, types.Send, f.authority.Address, 60, 0), Applied)

	if _, err := l.Process(b.NewTx(f.alice, types.Cancel, f.bob.Address, 0, 0)); !errors.Is(err, types.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds when bob spent the funds, got %v", err)
	}
	if _, err := l.Process(b.NewTx(f.alice, types.Cancel, f.bob.Address, 0, 7)); !errors.Is(err, types.ErrNothingToCancel) {
		t.Errorf("expected ErrNothingToCancel for unknown nonce, got %v", err)
	}
	if _, err := l.Process(b.NewTx(f.bob, types.Cancel, f.bob.Address, 0, 5)); !errors.Is(err, types.ErrNothingToCancel) {
		t.Errorf("expected ErrNothingToCancel for another sender, got %v", err)
	}
}

func TestResetRestoresGenesis(t *testing.T) {
	f := newFixture(t)
	l := f.ledger
	mustProcess(t, l, b.NewTx(f.authority, types.Send, f.alice.Address, 100, 0), Applied)
	mustProcess(t, l, b.NewTx(f.authority, types.Send, f.alice.Address, 100, 5), Buffered)

	l.Reset()

	if got := l.Balance(f.authority.Address); got != genesisSupply {
		t.Errorf("authority balance was incorrect, got %d wanted %d", got, genesisSupply)
	}
	if _, exists := l.Account(f.alice.Address); exists {
		t.Errorf("alice survived the reset")
	}
	if l.Pending().Len() != 0 || len(l.History()) != 0 {
		t.Errorf("reset kept pending or history entries")
	}
}

func TestSupplyConservedUnderRandomSends(t *testing.T) {
	f := newFixture(t)
	l := f.ledger
	ids := []*b.Identity{f.authority, f.alice, f.bob, b.IdentityFromSeed("carol")}
	nonces := map[types.Address]uint64{}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 300; i++ {
		sender := ids[rng.Intn(len(ids))]
		receiver := ids[rng.Intn(len(ids))]
		amount := uint64(rng.Intn(400_000))
		txn := b.NewTx(sender, types.Send, receiver.Address, amount, nonces[sender.Address])

		outcome, err := l.Process(txn)
		if outcome == Applied {
			nonces[sender.Address]++
		} else if !errors.Is(err, types.ErrInsufficientFunds) {
			t.Fatalf("unexpected outcome %s: %v", outcome, err)
		}

		if got := l.TotalSupply(); got != genesisSupply {
			t.Fatalf("supply drifted to %d after %d sends", got, i+1)
		}
		for addr, account := range l.State().AccountSet {
			if account.Balance > genesisSupply {
				t.Fatalf("account %s underflowed to %d", addr.Short(), account.Balance)
			}
		}
	}
}

func TestCommitIgnoresAccountNonce(t *testing.T) {
	f := newFixture(t)
	l := f.ledger

	ahead := b.NewTx(f.authority, types.Send, f.alice.Address, 100, 5)
	if err := l.Commit(ahead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Balance(f.alice.Address) != 100 || l.Nonce(f.authority.Address) != 1 {
		t.Fatalf("expected the transfer with nonce 1 after it, got %d and nonce %d", l.Balance(f.alice.Address), l.Nonce(f.authority.Address))
	}
	if !l.Seen(b.TxID(ahead)) || l.Pending().Len() != 0 {
		t.Fatalf("expected the commit to be recorded and nothing buffered")
	}

	broke := b.NewTx(f.bob, types.Send, f.alice.Address, 1, 0)
	if err := l.Commit(broke); !errors.Is(err, types.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if l.Nonce(f.bob.Address) != 0 || l.Seen(b.TxID(broke)) {
		t.Fatalf("expected a failed commit to leave the account untouched")
	}
}
