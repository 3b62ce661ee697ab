// Package artifacts loads compiled contract artifacts from disk.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/afero"
)

var ErrMissingBytecode = errors.New("artifact has no bytecode")

// Artifact is the ABI and creation code of a compiled contract.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// Deployable returns ErrMissingBytecode if the artifact cannot be used for deployment.
func (a *Artifact) Deployable() error {
	if len(a.Bytecode) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingBytecode, a.Name)
	}
	return nil
}

// bytecodeField accepts both the plain hex string of truffle and hardhat,
// and the {"object": "0x..."} form of foundry.
type bytecodeField []byte

func (b *bytecodeField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		s = obj.Object
	} else if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return nil
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	code, err := hexutil.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid bytecode: %w", err)
	}
	*b = code
	return nil
}

type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     bytecodeField   `json:"bytecode"`
}

// Parse decodes an artifact document. Only the abi field is required.
func Parse(name string, data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", name, err)
	}
	if len(raw.ABI) == 0 || bytes.Equal(raw.ABI, []byte("null")) {
		return nil, fmt.Errorf("artifact %s has no abi", name)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi of %s: %w", name, err)
	}
	if raw.ContractName != "" {
		name = raw.ContractName
	}
	return &Artifact{Name: name, ABI: parsed, Bytecode: raw.Bytecode}, nil
}

// Loader reads artifacts from a build directory.
type Loader struct {
	fs  afero.Fs
	dir string
}

type LoaderOption func(*Loader)

func WithFS(fs afero.Fs) LoaderOption {
	return func(l *Loader) {
		l.fs = fs
	}
}

func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{fs: afero.NewOsFs(), dir: dir}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads <dir>/<name>.json.
func (l *Loader) Load(name string) (*Artifact, error) {
	path := filepath.Join(l.dir, name+".json")
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return Parse(name, data)
}

// Load reads <dir>/<name>.json from disk.
func Load(dir, name string) (*Artifact, error) {
	return NewLoader(dir).Load(name)
}
