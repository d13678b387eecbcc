package worker

import (
	"context"
	"fmt"

	"github.com/JNZader/codingrules/internal/rules"
)

// FuncTask wraps a function as a task.
type FuncTask struct {
	id string
	fn func(ctx context.Context) error
}

// NewFuncTask creates a task from a function.
func NewFuncTask(id string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{id: id, fn: fn}
}

// ID returns the task identifier.
func (f *FuncTask) ID() string { return f.id }

// Execute executes the function.
func (f *FuncTask) Execute(ctx context.Context) error { return f.fn(ctx) }

// DetailsFetcher loads the details of one rule.
type DetailsFetcher interface {
	GetRuleDetails(ctx context.Context, key string) (rules.ShowResponse, error)
}

// DetailsTask fetches the details and activations of a rule.
type DetailsTask struct {
	key     string
	fetcher DetailsFetcher
	result  rules.ShowResponse
}

// NewDetailsTask creates a task fetching the rule identified by key.
func NewDetailsTask(key string, fetcher DetailsFetcher) *DetailsTask {
	return &DetailsTask{key: key, fetcher: fetcher}
}

// ID returns the task identifier.
func (t *DetailsTask) ID() string { return "rule:" + t.key }

// Key returns the rule key.
func (t *DetailsTask) Key() string { return t.key }

// Execute runs the fetch.
func (t *DetailsTask) Execute(ctx context.Context) error {
	res, err := t.fetcher.GetRuleDetails(ctx, t.key)
	if err != nil {
		return err
	}
	t.result = res
	return nil
}

// Result returns the fetched response, valid after a successful Execute.
func (t *DetailsTask) Result() rules.ShowResponse { return t.result }

// FetchDetails loads several rules concurrently. Keys are deduplicated; the
// first error is returned along with whatever was fetched.
func FetchDetails(ctx context.Context, fetcher DetailsFetcher, keys []string, workers int) (map[string]rules.ShowResponse, error) {
	seen := make(map[string]bool, len(keys))
	fetches := make([]*DetailsTask, 0, len(keys))
	tasks := make([]Task, 0, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		t := NewDetailsTask(key, fetcher)
		fetches = append(fetches, t)
		tasks = append(tasks, t)
	}

	results := Run(ctx, Config{Workers: workers}, tasks...)

	out := make(map[string]rules.ShowResponse, len(fetches))
	for i, r := range results {
		if r.Error == nil {
			out[fetches[i].Key()] = fetches[i].Result()
		}
	}

	if err := FirstError(results); err != nil {
		return out, fmt.Errorf("fetching rule details: %w", err)
	}
	return out, nil
}
