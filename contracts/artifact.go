package contracts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// hardhatArtifact is the subset of a Hardhat/Foundry artifact file we read.
type hardhatArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// ParseArtifact decodes a compiled artifact. The bytecode may be a hex string
// or a Foundry style {"object": "0x..."} object. When the artifact carries no
// contractName, fallbackName is used.
func ParseArtifact(data []byte, fallbackName string) (*interfaces.Artifact, error) {
	var raw hardhatArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: artifact is not valid JSON: %v", interfaces.ErrValidation, err)
	}

	name := raw.ContractName
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		return nil, fmt.Errorf("%w: artifact has no contract name", interfaces.ErrValidation)
	}

	parsed, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return nil, fmt.Errorf("%w: artifact %s has invalid ABI: %v", interfaces.ErrValidation, name, err)
	}

	code, err := decodeBytecode(raw.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%w: artifact %s: %v", interfaces.ErrValidation, name, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: artifact %s has empty bytecode (abstract contract or interface?)", interfaces.ErrValidation, name)
	}

	return &interfaces.Artifact{Name: name, ABI: parsed, Bytecode: code}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	var hexCode string
	if err := json.Unmarshal(raw, &hexCode); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("unsupported bytecode encoding")
		}
		hexCode = obj.Object
	}
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	if strings.Contains(hexCode, "__") {
		return nil, fmt.Errorf("bytecode has unlinked library placeholders")
	}
	return hexutil.Decode(hexCode)
}

// NewArtifact pairs bytecode with the embedded ABI of name.
func NewArtifact(name string, bytecode []byte) (*interfaces.Artifact, error) {
	parsed, err := ABI(name)
	if err != nil {
		return nil, err
	}
	return &interfaces.Artifact{Name: name, ABI: *parsed, Bytecode: bytecode}, nil
}

// ArtifactSet indexes artifacts by contract identifier.
type ArtifactSet struct {
	artifacts map[string]*interfaces.Artifact
	raw       map[string][]byte
}

// NewArtifactSet creates an empty set.
func NewArtifactSet() *ArtifactSet {
	return &ArtifactSet{
		artifacts: make(map[string]*interfaces.Artifact),
		raw:       make(map[string][]byte),
	}
}

// Add registers an artifact, replacing any earlier one with the same name.
// raw is the source document and may be nil.
func (s *ArtifactSet) Add(a *interfaces.Artifact, raw []byte) {
	s.artifacts[a.Name] = a
	if raw != nil {
		s.raw[a.Name] = raw
	}
}

// Get returns the artifact for name, or a precondition error.
func (s *ArtifactSet) Get(name string) (*interfaces.Artifact, error) {
	a, ok := s.artifacts[name]
	if !ok {
		return nil, fmt.Errorf("%w: artifact %s not loaded", interfaces.ErrPrecondition, name)
	}
	return a, nil
}

// Raw returns the source document of an artifact loaded from JSON.
func (s *ArtifactSet) Raw(name string) ([]byte, bool) {
	data, ok := s.raw[name]
	return data, ok
}

// Names returns the loaded identifiers in sorted order.
func (s *ArtifactSet) Names() []string {
	names := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Require checks that every listed artifact is loaded.
func (s *ArtifactSet) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := s.artifacts[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing artifacts: %s", interfaces.ErrPrecondition, strings.Join(missing, ", "))
	}
	return nil
}

// LoadArtifactsDir walks dir and parses every *.json artifact, skipping
// Hardhat debug files and documents without bytecode.
func LoadArtifactsDir(dir string) (*ArtifactSet, error) {
	set := NewArtifactSet()
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".json") || strings.HasSuffix(p, ".dbg.json") {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}

		a, err := ParseArtifact(data, strings.TrimSuffix(filepath.Base(p), ".json"))
		if err != nil {
			// Interfaces and abstract contracts compile to artifacts without code.
			return nil
		}
		set.Add(a, data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading artifacts from %s: %w", dir, err)
	}
	return set, nil
}
