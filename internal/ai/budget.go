package ai

import (
	"fmt"
	"sync"
)

// BudgetChecker checks and records token usage against per-owner budgets.
type BudgetChecker interface {
	// Check returns true if the owner has budget remaining.
	Check(owner string) (bool, error)
	// Record records token usage for an owner.
	Record(owner string, tokens int) error
	// Usage returns current usage and limit for an owner. A zero limit means unlimited.
	Usage(owner string) (used int64, budget int64, err error)
}

// InMemoryBudget tracks generation tokens per learner session.
type InMemoryBudget struct {
	mu            sync.RWMutex
	defaultBudget int64
	budgets       map[string]int64 // owner -> budget limit
	usage         map[string]int64 // owner -> tokens used
}

// NewInMemoryBudget creates a budget tracker. defaultBudget applies to owners without an
// explicit budget; zero means unlimited.
func NewInMemoryBudget(defaultBudget int64) *InMemoryBudget {
	return &InMemoryBudget{
		defaultBudget: defaultBudget,
		budgets:       make(map[string]int64),
		usage:         make(map[string]int64),
	}
}

// SetBudget sets the token budget for an owner.
func (b *InMemoryBudget) SetBudget(owner string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[owner] = tokens
}

func (b *InMemoryBudget) limit(owner string) int64 {
	if budget, ok := b.budgets[owner]; ok {
		return budget
	}
	return b.defaultBudget
}

func (b *InMemoryBudget) Check(owner string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	budget := b.limit(owner)
	if budget <= 0 {
		// No budget set means unlimited.
		return true, nil
	}
	return b.usage[owner] < budget, nil
}

func (b *InMemoryBudget) Record(owner string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[owner] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(owner string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[owner], b.limit(owner), nil
}

// Forget drops the usage and explicit budget of an owner.
func (b *InMemoryBudget) Forget(owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.budgets, owner)
	delete(b.usage, owner)
}
