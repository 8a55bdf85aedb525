// Package transfer sends native REEF or ERC20 tokens to another account.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"reef-swap/pkg/chain"
	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

// StatusSend is the status of a valid transfer
const StatusSend = "Send"

// ErrNativeDestination is returned when a transfer targets a chain-native
// account, which an EVM submission cannot reach.
var ErrNativeDestination = errors.New("transfers to native addresses are not supported by this client")

// IsNativeAddress reports whether address looks like a chain-native account
func IsNativeAddress(address string) bool {
	return len(address) == 48 && address[0] == '5'
}

// SendStatus validates a transfer in order and returns the first failing
// rule's message, or StatusSend.
func SendStatus(to string, token types.TokenWithAmount, signer chain.Signer, nativeBalance *big.Int, policy quantity.ExistentialPolicy) (bool, string) {
	toAddress := strings.TrimSpace(to)
	if toAddress == "" {
		return false, "Missing destination address"
	}
	if !(len(toAddress) == 42 && common.IsHexAddress(toAddress)) && !IsNativeAddress(toAddress) {
		return false, "Incorrect destination address"
	}
	if strings.HasPrefix(toAddress, "0x") && (signer == nil || !signer.IsEvmClaimed()) {
		return false, "Bind account"
	}

	amount, err := quantity.CalculateAmount(token)
	if err != nil || amount.Sign() <= 0 {
		return false, "Insert amount"
	}
	if amount.Cmp(token.BalanceOrZero()) > 0 {
		return false, fmt.Sprintf("Insufficient %s balance", token.Symbol)
	}
	if check := quantity.CheckMinExistentialReefAmount(token, nativeBalance, policy); !check.Valid {
		return false, check.Message
	}
	return true, StatusSend
}

// Sender submits transfers
type Sender struct {
	client chain.Client
	signer chain.Signer
	logger *slog.Logger
}

// NewSender creates a sender
func NewSender(client chain.Client, signer chain.Signer, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{client: client, signer: signer, logger: logger.With("component", "transfer")}
}

// Send transfers token.Amount of token to the destination and waits until
// the transfer is in a block. Failures are returned as *chain.TxError.
func (s *Sender) Send(ctx context.Context, to string, token types.TokenWithAmount) (string, error) {
	hash, err := s.send(ctx, strings.TrimSpace(to), token)
	if err != nil {
		s.logger.Error("transfer failed", "to", to, "token", token.Symbol, "error", err)
		return "", chain.ClassifyError(err)
	}
	s.logger.Info("transfer in block", "to", to, "token", token.Symbol, "amount", token.Amount, "tx", hash)
	return hash, nil
}

func (s *Sender) send(ctx context.Context, to string, token types.TokenWithAmount) (string, error) {
	if IsNativeAddress(to) {
		return "", ErrNativeDestination
	}
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address: %s", to)
	}
	if err := quantity.EnsureTokenAmount(token); err != nil {
		return "", err
	}
	amount, err := quantity.CalculateAmount(token)
	if err != nil {
		return "", err
	}
	recipient := common.HexToAddress(to)

	var (
		target common.Address
		data   []byte
		value  = new(big.Int)
	)
	if token.IsNative() {
		target = recipient
		value = amount
	} else {
		target = common.HexToAddress(token.Address)
		data, err = chain.PackTransfer(recipient, amount)
		if err != nil {
			return "", err
		}
	}

	res, err := s.client.EstimateResources(ctx, chain.CallRequest{
		From:  s.signer.EVMAddress(),
		To:    target,
		Data:  data,
		Value: value,
	})
	if err != nil {
		return "", fmt.Errorf("failed to estimate transfer: %w", err)
	}
	res = res.Clamped()

	call, err := s.client.BuildCall(target, data, value, res.Gas, res.Storage)
	if err != nil {
		return "", fmt.Errorf("failed to build transfer: %w", err)
	}
	updates, err := s.client.Submit(ctx, call, s.signer)
	if err != nil {
		return "", fmt.Errorf("failed to submit transfer: %w", err)
	}
	return awaitInBlock(ctx, updates)
}

func awaitInBlock(ctx context.Context, updates <-chan chain.StatusUpdate) (string, error) {
	var hash string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return "", chain.ErrStreamClosed
			}
			if u.TxHash != "" {
				hash = u.TxHash
			}
			if u.DispatchError != "" {
				return "", errors.New(u.DispatchError)
			}
			if msg := chain.CaptureError(u.Events); msg != "" {
				return "", errors.New(msg)
			}
			if u.Status.IsInBlock || u.Status.IsFinalized {
				return hash, nil
			}
		}
	}
}
