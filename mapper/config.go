package mapper

// DefaultConfig is the configuration for Ethereum mainnet.
var DefaultConfig = Config{
	ChainID:   1,
	ForkBlock: 4_370_000,
}

// Config contains optional parameters for the mapper.
type Config struct {
	// ChainID is used to recover the signature parity of EIP-155 legacy
	// transactions and as the chain id of typed ones.
	ChainID uint64
	// ForkBlock is the first block whose receipts carry a status flag
	// instead of an intermediate state root (Byzantium).
	ForkBlock uint64
}

// WithChainID sets the chain id of the network being archived.
func WithChainID(id uint64) func(*Config) {
	return func(cfg *Config) {
		cfg.ChainID = id
	}
}

// WithForkBlock sets the first block using post-Byzantium receipts.
func WithForkBlock(number uint64) func(*Config) {
	return func(cfg *Config) {
		cfg.ForkBlock = number
	}
}
