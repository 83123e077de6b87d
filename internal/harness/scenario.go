package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chainledger/internal/acl"
	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/engine"
)

// Scenario is a scripted sequence of ledger operations with expectations.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Ledger configures the engine under test. An empty id defaults to
	// the scenario name.
	Ledger engine.LedgerConfig `yaml:"ledger"`

	// Setup steps must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps may carry an expect clause.
	Flow []Step `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions"`
}

// Step operation names.
const (
	OpAppend  = "append"
	OpBatch   = "batch"
	OpGrant   = "grant"
	OpRevoke  = "revoke"
	OpAdvance = "advance"
	OpVerify  = "verify"
)

// Step is one operation against the engine.
type Step struct {
	Op string `yaml:"op"`

	// As is the requester OID for append and batch.
	As string `yaml:"as,omitempty"`

	Record  *core.Record  `yaml:"record,omitempty"`
	Records []core.Record `yaml:"records,omitempty"`

	// Grant is used by grant and revoke. Revoke only reads the key.
	Grant *acl.Grant `yaml:"grant,omitempty"`

	// By is a Go duration for advance, e.g. "90s".
	By string `yaml:"by,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a flow step. An empty Error means the
// step must succeed.
type Expect struct {
	Error engine.ErrorKind `yaml:"error,omitempty"`
}

// LoadScenario reads a scenario file, rejecting unknown fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if s.Ledger.ID == "" {
		s.Ledger.ID = s.Name
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Discover lists *.yaml and *.yml scenario files under dir, sorted. A
// non-empty filter is matched against the base name with filepath.Match.
func Discover(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, filepath.Base(path))
			if err != nil {
				return fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpAppend:
		if step.Record == nil {
			return fmt.Errorf("record is required for append")
		}
	case OpBatch:
		if step.Records == nil {
			return fmt.Errorf("records is required for batch")
		}
	case OpGrant, OpRevoke:
		if step.Grant == nil {
			return fmt.Errorf("grant is required for %s", step.Op)
		}
	case OpAdvance:
		if _, err := time.ParseDuration(step.By); err != nil {
			return fmt.Errorf("by must be a duration: %w", err)
		}
	case OpVerify:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}
