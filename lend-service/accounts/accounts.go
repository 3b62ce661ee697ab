package accounts

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	lendservice "github.com/lendlord/lendlord-sim/lend-service"
)

var (
	ErrUnknownRole     = errors.New("unknown account role")
	ErrAddressMismatch = errors.New("configured address does not match private key")
)

// Role names an account by what it does in the simulation.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleBorrowerA Role = "borrower-a"
	RoleBorrowerB Role = "borrower-b"
	RoleBorrowerC Role = "borrower-c"
)

// Roles lists every role a complete Book must hold.
var Roles = []Role{RoleAdmin, RoleBorrowerA, RoleBorrowerB, RoleBorrowerC}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// envName returns the env var infix of the role, e.g. BORROWER_A.
func (r Role) envName() string {
	return strings.ToUpper(strings.ReplaceAll(string(r), "-", "_"))
}

// Account is an address with the key that signs for it.
type Account struct {
	Role    Role
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// String never includes the key.
func (a Account) String() string {
	return fmt.Sprintf("%s(%s)", a.Role, a.Address)
}

// NewAccount derives the account from a hex encoded private key.
// If address is not empty it has to match the derived address.
func NewAccount(role Role, privateKey string, address string) (Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
	if err != nil {
		return Account{}, fmt.Errorf("invalid private key for %s: %w", role, err)
	}
	acc := Account{Role: role, Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}
	if address != "" {
		want, err := lendservice.ParseAddress(address)
		if err != nil {
			return Account{}, fmt.Errorf("invalid address for %s: %w", role, err)
		}
		if want != acc.Address {
			return Account{}, fmt.Errorf("%w: %s is %s, key is for %s", ErrAddressMismatch, role, want, acc.Address)
		}
	}
	return acc, nil
}

// Book holds the accounts of the simulation by role.
type Book struct {
	accounts map[Role]Account
}

func NewBook(accs ...Account) (*Book, error) {
	b := &Book{accounts: make(map[Role]Account, len(accs))}
	for _, a := range accs {
		if !a.Role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, a.Role)
		}
		if _, ok := b.accounts[a.Role]; ok {
			return nil, fmt.Errorf("duplicate account for role %s", a.Role)
		}
		b.accounts[a.Role] = a
	}
	return b, nil
}

func (b *Book) Get(role Role) (Account, error) {
	a, ok := b.accounts[role]
	if !ok {
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return a, nil
}

// Check verifies that every role has an account.
func (b *Book) Check() error {
	var missing []string
	for _, r := range Roles {
		if _, ok := b.accounts[r]; !ok {
			missing = append(missing, string(r))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing accounts for roles: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Accounts returns the accounts sorted by role.
func (b *Book) Accounts() []Account {
	out := make([]Account, 0, len(b.accounts))
	for _, a := range b.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

type fileEntry struct {
	PrivateKey string `yaml:"private_key" toml:"private_key"`
	Address    string `yaml:"address" toml:"address"`
}

type fileFormat struct {
	Accounts map[string]fileEntry `yaml:"accounts" toml:"accounts"`
}

type fileOptions struct {
	fs afero.Fs
}

type FileOption func(o *fileOptions)

// WithFS reads the accounts file from fs instead of the OS filesystem.
func WithFS(fs afero.Fs) FileOption {
	return func(o *fileOptions) {
		o.fs = fs
	}
}

// LoadFile reads an accounts file. The format is picked by extension: .yaml, .yml or .toml.
func LoadFile(path string, opts ...FileOption) (*Book, error) {
	o := fileOptions{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}
	data, err := afero.ReadFile(o.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	var f fileFormat
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		_, err = toml.Decode(string(data), &f)
	default:
		return nil, fmt.Errorf("unsupported accounts file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode accounts file %s: %w", path, err)
	}
	accs := make([]Account, 0, len(f.Accounts))
	for name, entry := range f.Accounts {
		role := Role(name)
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, name)
		}
		acc, err := NewAccount(role, entry.PrivateKey, entry.Address)
		if err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}
	return NewBook(accs...)
}

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnv reads <prefix>_<ROLE>_PRIVATE_KEY and the optional <prefix>_<ROLE>_ADDRESS for every role.
// Roles without a key are left out, Book.Check reports them.
func LoadEnv(prefix string, lookup LookupFunc) (*Book, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var accs []Account
	for _, role := range Roles {
		key, ok := lookup(prefix + "_" + role.envName() + "_PRIVATE_KEY")
		if !ok || key == "" {
			continue
		}
		addr, _ := lookup(prefix + "_" + role.envName() + "_ADDRESS")
		acc, err := NewAccount(role, key, addr)
		if err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}
	return NewBook(accs...)
}

// LoadEnvFile adds the variables of a dotenv file to the process environment.
// Variables that are already set are not overridden.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
