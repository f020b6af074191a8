// Package chain provides read-only RPC access to the supported EVM
// chains. A Client wraps a single node connection; the Registry maps
// chain identifiers ("ethereum", "base") to dialed clients.
package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ImplementationSlot is the EIP-1967 implementation storage slot,
// keccak256("eip1967.proxy.implementation") - 1.
var ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")

// Client is a read-only connection to one chain.
type Client struct {
	name   string
	client *ethclient.Client
}

// Dial connects to an RPC endpoint for the named chain.
func Dial(name, rpcURL string) (*Client, error) {
	ec, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", name, err)
	}
	return &Client{name: name, client: ec}, nil
}

// Name returns the chain identifier this client serves.
func (c *Client) Name() string { return c.name }

// Close releases the underlying connection.
func (c *Client) Close() {
	c.client.Close()
}

// CodeAt returns the deployed code at an address. Implements the
// classifier's code reader.
func (c *Client) CodeAt(ctx context.Context, address string) ([]byte, error) {
	return c.client.CodeAt(ctx, common.HexToAddress(address), nil)
}

// BytecodeAt returns the deployed code as a 0x-prefixed lower-case hex
// string, "0x" when the address holds no code.
func (c *Client) BytecodeAt(ctx context.Context, address string) (string, error) {
	code, err := c.CodeAt(ctx, address)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(code), nil
}

// CallContract issues a read-only call against the latest block.
// Implements the classifier's caller.
func (c *Client) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	addr := common.HexToAddress(to)
	return c.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
}

// ImplementationAt reads the EIP-1967 implementation slot of a proxy.
// Returns the implementation address, or "" when the slot is unset.
func (c *Client) ImplementationAt(ctx context.Context, address string) (string, error) {
	word, err := c.client.StorageAt(ctx, common.HexToAddress(address), ImplementationSlot, nil)
	if err != nil {
		return "", err
	}
	return DecodeAddressWord(word), nil
}

// DecodeAddressWord extracts the address from a 32-byte storage or
// return word. All-zero input decodes to "".
func DecodeAddressWord(word []byte) string {
	if len(word) < 20 {
		return ""
	}
	addr := word[len(word)-20:]
	if bytes.Equal(addr, make([]byte, 20)) {
		return ""
	}
	return "0x" + hex.EncodeToString(addr)
}

// Registry maps chain identifiers to dialed clients. Safe for
// concurrent use; clients are added at startup and read by workers.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Add registers a client under its chain identifier.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strings.ToLower(c.Name())] = c
}

// Get returns the client for a chain identifier.
func (r *Registry) Get(name string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[strings.ToLower(name)]
	return c, ok
}

// Names returns the registered chain identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every registered connection.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		c.Close()
	}
}
