package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"github.com/qrnglabs/qrng/engine/pkg/entropy"
	"github.com/qrnglabs/qrng/engine/pkg/format"
	"github.com/qrnglabs/qrng/engine/pkg/ledger"
	"github.com/qrnglabs/qrng/engine/pkg/metrics"
)

type DispatcherConfig struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	ProgramID solana.PublicKey
	Store     ledger.Store

	// InitConfig is the config INITIALIZE_PROGRAM persists. The instruction
	// payload carries only the tag byte, so the treasury, mint, and price
	// are supplied by the operator at deployment time.
	InitConfig ledger.Config
}

func (cfg *DispatcherConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("ledger store is required")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Dispatcher is the program's single entry point. It decodes the
// instruction tag, validates the positional account set, and orchestrates
// payment, entropy generation, and return-data emission as one atomic
// unit. No side effect happens until every validation step has passed.
type Dispatcher struct {
	log        *slog.Logger
	cfg        DispatcherConfig
	mixer      *entropy.Mixer
	configAddr solana.PublicKey
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configAddr, _, err := ConfigAddress(cfg.ProgramID)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		log:        cfg.Logger,
		cfg:        cfg,
		mixer:      entropy.NewMixer(),
		configAddr: configAddr,
	}, nil
}

// ConfigAddress returns the derived config PDA this dispatcher validates
// against.
func (d *Dispatcher) ConfigAddress() solana.PublicKey {
	return d.configAddr
}

// Process executes one invocation and returns the transaction return data:
// 8 little-endian bytes for u64 and double outputs, 1 byte for boolean,
// nil for initialization. Any failure rolls the whole invocation back.
func (d *Dispatcher) Process(ctx context.Context, inv Invocation) (data []byte, err error) {
	start := d.cfg.Clock.Now()

	tag, err := ParseInstruction(inv.Data)
	if err != nil {
		metrics.RecordInstruction("unknown", d.cfg.Clock.Since(start), err)
		return nil, err
	}
	defer func() {
		metrics.RecordInstruction(tag.String(), d.cfg.Clock.Since(start), err)
	}()

	switch {
	case tag == TagInitializeProgram:
		return nil, d.initialize(ctx, inv)
	case tag.IsGenerate():
		return d.generate(ctx, tag, inv)
	}
	return nil, ErrUnknownInstruction
}

func (d *Dispatcher) initialize(ctx context.Context, inv Invocation) error {
	if len(inv.Accounts) != initAccountCount {
		return ErrWrongAccountCount
	}
	initializer := inv.Accounts[initAccountInitializer]
	configAccount := inv.Accounts[initAccountConfig]

	if !initializer.IsSigner {
		return ErrMissingSigner
	}
	if !configAccount.IsWritable {
		return ErrAccountNotWritable
	}
	if !configAccount.Pubkey.Equals(d.configAddr) {
		return ErrConfigAddressMismatch
	}

	if err := d.cfg.Store.InitializeConfig(ctx, d.cfg.InitConfig); err != nil {
		return err
	}

	d.log.Info("dispatcher: program initialized",
		"initializer", initializer.Pubkey.String(),
		"config", configAccount.Pubkey.String(),
		"treasury", d.cfg.InitConfig.TreasuryTokenAccount.String(),
		"mint", d.cfg.InitConfig.TokenMint.String(),
		"price", d.cfg.InitConfig.PricePerRequest)
	return nil
}

func (d *Dispatcher) generate(ctx context.Context, tag InstructionTag, inv Invocation) ([]byte, error) {
	if err := d.validateGenerateAccounts(inv); err != nil {
		return nil, err
	}

	cfg, err := d.cfg.Store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !inv.Accounts[genAccountTreasuryToken].Pubkey.Equals(cfg.TreasuryTokenAccount) {
		return nil, ErrTreasuryMismatch
	}

	// Entropy sources are gathered and validated before any payment: a
	// request with a missing source fails without being charged.
	sources := entropy.Sources{
		Slot:            inv.Slot,
		UnixTimeNs:      d.cfg.Clock.Now().UnixNano(),
		RecentBlockhash: inv.RecentBlockhash,
		Signature:       inv.Signature,
	}
	word, err := d.mixer.Word(sources)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch tag {
	case TagGenerateRandomU64:
		data = format.U64Bytes(word)
	case TagGenerateRandomDouble:
		data = format.DoubleBytes(word)
	case TagGenerateRandomBoolean:
		data = format.BooleanBytes(word)
	default:
		return nil, ErrUnknownInstruction
	}

	requester := inv.Accounts[genAccountRequester].Pubkey
	requesterToken := inv.Accounts[genAccountRequesterToken].Pubkey
	treasuryToken := inv.Accounts[genAccountTreasuryToken].Pubkey

	// Payment and emission commit together: either the requester is
	// charged and the output is recorded, or neither happens.
	err = d.cfg.Store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.Transfer(ctx, requesterToken, treasuryToken, cfg.TokenMint, cfg.PricePerRequest); err != nil {
			return fmt.Errorf("failed to take payment: %w", err)
		}
		return tx.RecordEmission(ctx, ledger.Emission{
			Signature:  inv.Signature,
			Tag:        uint8(tag),
			Requester:  requester,
			Slot:       inv.Slot,
			ReturnData: data,
			CreatedAt:  d.cfg.Clock.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordGeneration(cfg.PricePerRequest)
	d.log.Debug("dispatcher: entropy word emitted",
		"tag", tag.String(),
		"requester", requester.String(),
		"slot", inv.Slot,
		"bytes", len(data))
	return data, nil
}

func (d *Dispatcher) validateGenerateAccounts(inv Invocation) error {
	if len(inv.Accounts) != genAccountCount {
		return ErrWrongAccountCount
	}

	requester := inv.Accounts[genAccountRequester]
	if !requester.IsSigner {
		return ErrMissingSigner
	}
	if !requester.IsWritable {
		return ErrAccountNotWritable
	}
	if !inv.Accounts[genAccountRequesterToken].IsWritable {
		return ErrAccountNotWritable
	}
	if !inv.Accounts[genAccountTreasuryToken].IsWritable {
		return ErrAccountNotWritable
	}
	if !inv.Accounts[genAccountTokenProgram].Pubkey.Equals(solana.TokenProgramID) {
		return ErrTokenProgramMismatch
	}
	if !inv.Accounts[genAccountConfig].Pubkey.Equals(d.configAddr) {
		return ErrConfigAddressMismatch
	}
	if !inv.Accounts[genAccountClock].Pubkey.Equals(solana.SysVarClockPubkey) {
		return ErrClockSysvarMismatch
	}
	return nil
}
