package contract

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrEncoding is returned when call arguments do not fit the ABI of the method.
var ErrEncoding = errors.New("abi encoding failed")

// Handle binds a deployed contract address to its ABI. It is immutable once created.
type Handle struct {
	name    string
	address common.Address
	abi     abi.ABI
}

func NewHandle(name string, address common.Address, contractABI abi.ABI) *Handle {
	return &Handle{name: name, address: address, abi: contractABI}
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Address() common.Address {
	return h.address
}

func (h *Handle) ABI() abi.ABI {
	return h.abi
}

// Pack encodes a call of method with args.
func (h *Handle) Pack(method string, args ...any) ([]byte, error) {
	data, err := h.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrEncoding, h.name, method, err)
	}
	return data, nil
}

// Unpack decodes the return data of method.
func (h *Handle) Unpack(method string, output []byte) ([]any, error) {
	out, err := h.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s.%s output: %w", h.name, method, err)
	}
	return out, nil
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s(%s)", h.name, h.address)
}
