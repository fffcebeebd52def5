package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SignatureInfo is one entry of getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time
	Failed    bool
}

// TransactionInfo is the subset of getTransaction the checks read.
// AccountKeys are the static keys; balances are indexed the same way.
type TransactionInfo struct {
	Signature    string
	Slot         uint64
	BlockTime    *time.Time
	Failed       bool
	AccountKeys  []string
	PreBalances  []uint64
	PostBalances []uint64
}

// SolanaRPC is the read-only slice of the Solana JSON-RPC API used by verification.
type SolanaRPC interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	RecentSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*TransactionInfo, error)
}

type solanaRPC struct {
	client     *rpc.Client
	maxRetries int
}

// NewSolanaRPC wraps a solana-go client. Transport failures are retried maxRetries times.
func NewSolanaRPC(endpoint string, maxRetries int) SolanaRPC {
	return &solanaRPC{client: rpc.New(endpoint), maxRetries: maxRetries}
}

func parseAddress(address string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return pk, nil
}

func (s *solanaRPC) GetBalance(ctx context.Context, address string) (uint64, error) {
	pk, err := parseAddress(address)
	if err != nil {
		return 0, err
	}
	var out *rpc.GetBalanceResult
	err = withRetry(ctx, s.maxRetries, func() error {
		var callErr error
		out, callErr = s.client.GetBalance(ctx, pk, rpc.CommitmentConfirmed)
		return callErr
	})
	if err != nil {
		return 0, fmt.Errorf("getBalance: %w", err)
	}
	return out.Value, nil
}

func (s *solanaRPC) RecentSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	pk, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	var out []*rpc.TransactionSignature
	err = withRetry(ctx, s.maxRetries, func() error {
		var callErr error
		out, callErr = s.client.GetSignaturesForAddressWithOpts(ctx, pk, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}

	sigs := make([]SignatureInfo, 0, len(out))
	for _, ts := range out {
		if ts == nil {
			continue
		}
		info := SignatureInfo{
			Signature: ts.Signature.String(),
			Slot:      ts.Slot,
			Failed:    ts.Err != nil,
		}
		if ts.BlockTime != nil {
			bt := ts.BlockTime.Time()
			info.BlockTime = &bt
		}
		sigs = append(sigs, info)
	}
	return sigs, nil
}

func (s *solanaRPC) GetTransaction(ctx context.Context, signature string) (*TransactionInfo, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	maxVersion := uint64(0)
	var out *rpc.GetTransactionResult
	err = withRetry(ctx, s.maxRetries, func() error {
		var callErr error
		out, callErr = s.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if errors.Is(callErr, rpc.ErrNotFound) {
			return backoff.Permanent(callErr)
		}
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("getTransaction %s: %w", signature, err)
	}
	if out == nil || out.Transaction == nil {
		return nil, fmt.Errorf("getTransaction %s: %w", signature, rpc.ErrNotFound)
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decoding transaction %s: %w", signature, err)
	}

	info := &TransactionInfo{
		Signature: signature,
		Slot:      out.Slot,
	}
	if out.BlockTime != nil {
		bt := out.BlockTime.Time()
		info.BlockTime = &bt
	}
	for _, key := range tx.Message.AccountKeys {
		info.AccountKeys = append(info.AccountKeys, key.String())
	}
	if out.Meta != nil {
		info.Failed = out.Meta.Err != nil
		info.PreBalances = out.Meta.PreBalances
		info.PostBalances = out.Meta.PostBalances
	}
	return info, nil
}
