// Package agents selects which build agents should run a try
// job, driven by a policy file kept at the checkout root.
package agents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// PolicyFile is the name of the policy file at the checkout
// root.
const PolicyFile = "tryagents.json"

// Policy mirrors the root-level tryagents.json file.
type Policy struct {
	// Default names the agents every job runs on.
	Default []string `json:"default"`

	// Paths adds agents for files under specific prefixes.
	Paths []PathRule `json:"paths"`
}

// PathRule routes files under Prefix to additional agents.
type PathRule struct {
	Prefix string   `json:"prefix"`
	Agents []string `json:"agents"`
}

// Load reads the policy file at root. A missing file is not an
// error and yields an empty policy.
func Load(root string) ([]byte, error) {
	const errCtx = "loading agent policy"

	data, err := os.ReadFile(
		filepath.Join(root, PolicyFile),
	) //nolint:gosec // checkout-root file by contract
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return data, nil
}

// Select returns the agent names for the given changed files.
// policy holds the raw content of the policy file; an empty
// policy selects nothing. The default set comes first, then
// path-rule agents in rule order, deduplicated.
func Select(
	files []string,
	policy []byte,
) ([]string, error) {
	const errCtx = "selecting agents"

	if len(policy) == 0 {
		return nil, nil
	}

	var p Policy
	if err := json.Unmarshal(policy, &p); err != nil {
		return nil, fmt.Errorf(
			"%s: parse policy: %w", errCtx, err,
		)
	}

	seen := make(map[string]struct{})

	var selected []string

	addAll := func(names []string) {
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}

			seen[n] = struct{}{}
			selected = append(selected, n)
		}
	}

	addAll(p.Default)

	for _, rule := range p.Paths {
		if rule.Prefix == "" {
			continue
		}

		for _, f := range files {
			if strings.HasPrefix(
				filepath.ToSlash(f), rule.Prefix,
			) {
				addAll(rule.Agents)

				break
			}
		}
	}

	return selected, nil
}
