package deployer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// Step is one stage of suite linking.
type Step int

const (
	StepNone Step = iota
	StepBindStorage
	StepGrantAgents
	StepRegisterTopics
	StepTrustIssuer
	StepAgentManager
	StepUnpause
)

// LinkSteps lists the linking stages in execution order.
var LinkSteps = []Step{StepBindStorage, StepGrantAgents, StepRegisterTopics, StepTrustIssuer, StepAgentManager, StepUnpause}

func (s Step) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepBindStorage:
		return "bind-storage"
	case StepGrantAgents:
		return "grant-agents"
	case StepRegisterTopics:
		return "register-topics"
	case StepTrustIssuer:
		return "trust-issuer"
	case StepAgentManager:
		return "agent-manager"
	case StepUnpause:
		return "unpause"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// StepError reports a linking failure and the last step that was confirmed.
// The suite is left partially wired.
type StepError struct {
	Step          Step
	LastCompleted Step
	Err           error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("linking step %s failed (last completed: %s): %v", e.Step, e.LastCompleted, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// LinkPlan is the wiring to perform on a deployed suite.
type LinkPlan struct {
	Suite interfaces.SuiteAddressSet
	// Agent receives the agent role on the token and the identity registry.
	Agent common.Address
	// Topics are registered on the claim topics registry in order.
	Topics []*big.Int
	// ClaimIssuer is the ClaimIssuer contract trusted for every topic.
	ClaimIssuer common.Address
	// AgentManager is optional.
	AgentManager common.Address
	// AgentAdmin is granted admin rights on AgentManager when both are set.
	AgentAdmin common.Address
}

func (p *LinkPlan) validate() error {
	for name, addr := range map[string]common.Address{
		"token":                     p.Suite.Token,
		"identity registry":         p.Suite.IdentityRegistry,
		"identity registry storage": p.Suite.IdentityRegistryStorage,
		"trusted issuers registry":  p.Suite.TrustedIssuersRegistry,
		"claim topics registry":     p.Suite.ClaimTopicsRegistry,
		"agent":                     p.Agent,
		"claim issuer":              p.ClaimIssuer,
	} {
		if err := interfaces.RequireNonZero(name, addr); err != nil {
			return err
		}
	}
	if len(interfaces.UniqueTopics(p.Topics)) == 0 {
		return fmt.Errorf("%w: at least one claim topic is required", interfaces.ErrValidation)
	}
	return nil
}

// Linker performs the post-deployment wiring of a suite.
type Linker struct {
	rt *Runtime
}

func NewLinker(rt *Runtime) *Linker {
	return &Linker{rt: rt}
}

// Link runs every step of plan in order, each as its own confirmed
// transaction. owner owns the suite proxies; agent must be plan.Agent and
// also owns the agent manager. The token is unpaused last, by the agent.
func (l *Linker) Link(ctx context.Context, plan LinkPlan, owner, agent interfaces.Signer) error {
	if err := plan.validate(); err != nil {
		return err
	}
	if agent.Address() != plan.Agent {
		return fmt.Errorf("%w: agent signer %s does not match plan agent %s",
			interfaces.ErrPrecondition, agent.Address().Hex(), plan.Agent.Hex())
	}

	topics := interfaces.UniqueTopics(plan.Topics)
	suite := plan.Suite

	type call struct {
		contract common.Address
		abi      string
		method   string
		signer   interfaces.Signer
		args     []interface{}
	}
	stepCalls := map[Step][]call{
		StepBindStorage: {
			{suite.IdentityRegistryStorage, contracts.IdentityRegistryStorage, "bindIdentityRegistry", owner, []interface{}{suite.IdentityRegistry}},
		},
		StepGrantAgents: {
			{suite.Token, contracts.Token, "addAgent", owner, []interface{}{plan.Agent}},
			{suite.IdentityRegistry, contracts.IdentityRegistry, "addAgent", owner, []interface{}{plan.Agent}},
			{suite.IdentityRegistry, contracts.IdentityRegistry, "addAgent", owner, []interface{}{suite.Token}},
		},
		StepTrustIssuer: {
			{suite.TrustedIssuersRegistry, contracts.TrustedIssuersRegistry, "addTrustedIssuer", owner, []interface{}{plan.ClaimIssuer, topics}},
		},
		StepUnpause: {
			{suite.Token, contracts.Token, "unpause", agent, nil},
		},
	}
	for _, topic := range topics {
		stepCalls[StepRegisterTopics] = append(stepCalls[StepRegisterTopics],
			call{suite.ClaimTopicsRegistry, contracts.ClaimTopicsRegistry, "addClaimTopic", owner, []interface{}{topic}})
	}
	if plan.AgentManager != (common.Address{}) {
		if plan.AgentAdmin != (common.Address{}) {
			stepCalls[StepAgentManager] = append(stepCalls[StepAgentManager],
				call{plan.AgentManager, contracts.AgentManager, "addAgentAdmin", agent, []interface{}{plan.AgentAdmin}})
		}
		stepCalls[StepAgentManager] = append(stepCalls[StepAgentManager],
			call{suite.Token, contracts.Token, "addAgent", owner, []interface{}{plan.AgentManager}},
			call{suite.IdentityRegistry, contracts.IdentityRegistry, "addAgent", owner, []interface{}{plan.AgentManager}})
	}

	last := StepNone
	for _, step := range LinkSteps {
		calls, ok := stepCalls[step]
		if !ok {
			l.rt.Log.Debug("Skipping linking step", "step", step.String())
			continue
		}

		l.rt.Progress.Begin("link:" + step.String())
		for _, c := range calls {
			if _, err := l.rt.submit(ctx, c.contract, c.abi, c.method, c.signer, c.args...); err != nil {
				return &StepError{Step: step, LastCompleted: last, Err: err}
			}
		}
		l.rt.step("link:" + step.String())
		l.rt.Log.Info("Linking step completed", "step", step.String(), "transactions", len(calls))
		last = step
	}
	return nil
}
