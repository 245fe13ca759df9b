package fib

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/DuoChen-317/csds425-projs/internal/log"
)

// ConflictError reports two rules claiming the same prefix. Positions are
// 1-based record numbers in file order.
type ConflictError struct {
	First     Rule
	Second    Rule
	FirstPos  int
	SecondPos int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting rules for %s (prefix length %d): rule %d -> interface %d, rule %d -> interface %d",
		e.First.Prefix(), e.First.PrefixLen, e.FirstPos, e.First.Interface, e.SecondPos, e.Second.Interface)
}

type prefixKey struct {
	prefixLen uint16
	network   uint32
}

func keyOf(r Rule) prefixKey {
	return prefixKey{prefixLen: r.PrefixLen, network: r.Masked()}
}

// ValidateRules rejects prefix lengths above 32, reporting every offender.
func ValidateRules(rules []Rule) error {
	var result *multierror.Error
	for i, r := range rules {
		if r.PrefixLen > MaxPrefixLen {
			result = multierror.Append(result, fmt.Errorf("rule %d (%s): prefix length %d out of range 0-%d",
				i+1, r.Prefix(), r.PrefixLen, MaxPrefixLen))
		}
	}
	return result.ErrorOrNil()
}

// CheckConflicts returns a *ConflictError for the first pair of rules, in
// file order, that share a prefix length and masked network.
func CheckConflicts(rules []Rule) error {
	if err := ValidateRules(rules); err != nil {
		return err
	}

	seen := make(map[prefixKey]int, len(rules))
	for i, r := range rules {
		k := keyOf(r)
		if j, dup := seen[k]; dup {
			return &ConflictError{
				First:     rules[j],
				Second:    r,
				FirstPos:  j + 1,
				SecondPos: i + 1,
			}
		}
		seen[k] = i
	}
	return nil
}

// FindConflicts lists every duplicate, each paired with the first rule of
// its prefix. Rules with invalid prefix lengths are ignored.
func FindConflicts(rules []Rule) []ConflictError {
	var conflicts []ConflictError
	seen := make(map[prefixKey]int, len(rules))
	for i, r := range rules {
		if r.PrefixLen > MaxPrefixLen {
			continue
		}
		k := keyOf(r)
		if j, dup := seen[k]; dup {
			conflicts = append(conflicts, ConflictError{
				First:     rules[j],
				Second:    r,
				FirstPos:  j + 1,
				SecondPos: i + 1,
			})
			continue
		}
		seen[k] = i
	}
	return conflicts
}

// dropDuplicates keeps the first rule of every prefix and logs the rest.
func dropDuplicates(rules []Rule) []Rule {
	conflicts := FindConflicts(rules)
	if len(conflicts) == 0 {
		return rules
	}

	skip := make(map[int]bool, len(conflicts))
	for i := range conflicts {
		c := &conflicts[i]
		log.Get().WithField("kept", c.FirstPos).WithField("dropped", c.SecondPos).
			Warn(c.Error())
		skip[c.SecondPos-1] = true
	}

	kept := make([]Rule, 0, len(rules)-len(skip))
	for i, r := range rules {
		if !skip[i] {
			kept = append(kept, r)
		}
	}
	return kept
}
