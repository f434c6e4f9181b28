// Package events recovers contract addresses from transaction receipt logs.
//
// Factory deployments do not return the addresses they create; they emit
// them. The decoder tries every log of a receipt against one event of a
// known ABI and skips logs that do not decode, since those belong to other
// contracts touched by the same transaction.
package events

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// Suite components an event field can resolve to.
const (
	FieldToken                   = "token"
	FieldIdentityRegistry        = "identityRegistry"
	FieldIdentityRegistryStorage = "identityRegistryStorage"
	FieldTrustedIssuersRegistry  = "trustedIssuersRegistry"
	FieldClaimTopicsRegistry     = "claimTopicsRegistry"
	FieldCompliance              = "compliance"
)

// FieldRef locates a value in an event, by argument name or, when the name
// is not present, by position in the event's inputs.
type FieldRef struct {
	Name  string
	Index int
}

// FieldMap maps suite components to the event fields carrying them.
type FieldMap map[string]FieldRef

// DefaultSuiteFieldMap reads TREXSuiteDeployed.
var DefaultSuiteFieldMap = FieldMap{
	FieldToken:                   {Name: "_token", Index: 0},
	FieldIdentityRegistry:        {Name: "_ir", Index: 1},
	FieldIdentityRegistryStorage: {Name: "_irs", Index: 2},
	FieldTrustedIssuersRegistry:  {Name: "_tir", Index: 3},
	FieldClaimTopicsRegistry:     {Name: "_ctr", Index: 4},
	FieldCompliance:              {Name: "_mc", Index: 5},
}

// Decoded is one log successfully decoded against an event.
type Decoded struct {
	Log    *types.Log
	Values map[string]interface{}
	// Ordered holds the values in the order of the event inputs.
	Ordered []interface{}
}

// Decoder decodes logs against the events of one contract ABI.
type Decoder struct {
	abi *abi.ABI
	log *slog.Logger
}

func NewDecoder(contractABI *abi.ABI, log *slog.Logger) *Decoder {
	return &Decoder{abi: contractABI, log: log}
}

// Find returns the first log in receipt that decodes as eventName.
func (d *Decoder) Find(receipt *types.Receipt, eventName string) (*Decoded, error) {
	event, ok := d.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("%w: event %s is not in the contract ABI", interfaces.ErrValidation, eventName)
	}
	if receipt == nil {
		return nil, fmt.Errorf("%w: no receipt", interfaces.ErrEventNotFound)
	}

	for _, l := range receipt.Logs {
		decoded, ok := d.tryDecode(&event, l)
		if !ok {
			continue
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("%w: %s not emitted in transaction %s", interfaces.ErrEventNotFound, eventName, receipt.TxHash.Hex())
}

// tryDecode reports false for logs of other events or with undecodable payloads.
func (d *Decoder) tryDecode(event *abi.Event, l *types.Log) (*Decoded, bool) {
	if l == nil || len(l.Topics) == 0 || l.Topics[0] != event.ID {
		return nil, false
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(l.Topics)-1 != len(indexed) {
		return nil, false
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
		d.log.Debug("Skipping undecodable log", "event", event.Name, "err", err)
		return nil, false
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, l.Topics[1:]); err != nil {
		d.log.Debug("Skipping log with undecodable topics", "event", event.Name, "err", err)
		return nil, false
	}

	ordered := make([]interface{}, len(event.Inputs))
	for i, arg := range event.Inputs {
		ordered[i] = values[arg.Name]
	}
	return &Decoded{Log: l, Values: values, Ordered: ordered}, true
}

// Address extracts ref from the decoded event as a non-zero address.
func (d *Decoded) Address(ref FieldRef) (common.Address, error) {
	value, ok := d.Values[ref.Name]
	if !ok || ref.Name == "" {
		if ref.Index < 0 || ref.Index >= len(d.Ordered) {
			return common.Address{}, fmt.Errorf("%w: field %q not present", interfaces.ErrEventNotFound, ref.Name)
		}
		value = d.Ordered[ref.Index]
	}

	addr, ok := value.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: field %q is %T, not an address", interfaces.ErrValidation, ref.Name, value)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: field %q is the zero address", interfaces.ErrValidation, ref.Name)
	}
	return addr, nil
}

// ExtractSuiteAddresses decodes the first eventName log in receipt and
// resolves every component listed in fields. Any missing or zero field fails
// the whole extraction.
func (d *Decoder) ExtractSuiteAddresses(receipt *types.Receipt, eventName string, fields FieldMap) (interfaces.SuiteAddressSet, error) {
	var suite interfaces.SuiteAddressSet

	decoded, err := d.Find(receipt, eventName)
	if err != nil {
		return suite, err
	}

	targets := make([]string, 0, len(fields))
	for target := range fields {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		addr, err := decoded.Address(fields[target])
		if err != nil {
			return interfaces.SuiteAddressSet{}, fmt.Errorf("decoding %s.%s: %w", eventName, target, err)
		}
		if err := assign(&suite, target, addr); err != nil {
			return interfaces.SuiteAddressSet{}, err
		}
	}

	d.log.Debug("Decoded suite addresses", "event", eventName, "tx", receipt.TxHash.Hex(), "token", suite.Token.Hex())
	return suite, nil
}

func assign(suite *interfaces.SuiteAddressSet, target string, addr common.Address) error {
	switch target {
	case FieldToken:
		suite.Token = addr
	case FieldIdentityRegistry:
		suite.IdentityRegistry = addr
	case FieldIdentityRegistryStorage:
		suite.IdentityRegistryStorage = addr
	case FieldTrustedIssuersRegistry:
		suite.TrustedIssuersRegistry = addr
	case FieldClaimTopicsRegistry:
		suite.ClaimTopicsRegistry = addr
	case FieldCompliance:
		suite.Compliance = addr
	default:
		return fmt.Errorf("%w: unknown suite component %q", interfaces.ErrValidation, target)
	}
	return nil
}
