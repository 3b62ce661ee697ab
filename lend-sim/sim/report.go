package sim

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/contract"
)

// StepResult is the outcome of one scripted step.
// Hash is zero for steps that sent no transaction, or when the transaction could not be signed.
type StepResult struct {
	Step     string
	Role     accounts.Role
	Method   string
	Hash     common.Hash
	Err      error
	Detached bool
}

func (s StepResult) Failed() bool {
	return s.Err != nil
}

func stepFromResult(step string, res contract.Result) StepResult {
	return StepResult{
		Step:   step,
		Role:   res.Role,
		Method: res.Method,
		Hash:   res.Hash,
		Err:    res.Err,
	}
}

// Report collects step results. Detached steps add theirs when they finish,
// so a Report is safe for concurrent use.
type Report struct {
	mu    sync.Mutex
	steps []StepResult
}

func (r *Report) Add(s StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s)
}

// Steps returns the results in the order they were added.
func (r *Report) Steps() []StepResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.steps)
}

// Step returns the first result with the given step name.
func (r *Report) Step(name string) (StepResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *Report) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.steps {
		if s.Failed() {
			n++
		}
	}
	return n
}

// Render writes the results as a table. Colors are only used when colored is set.
func (r *Report) Render(w io.Writer, colored bool) {
	ok := color.New(color.FgGreen)
	failed := color.New(color.FgRed, color.Bold)
	if !colored {
		ok.DisableColor()
		failed.DisableColor()
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Step", "Account", "Method", "Transaction", "Status"})
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	for _, s := range r.Steps() {
		step := s.Step
		if s.Detached {
			step += " (detached)"
		}
		tx := "-"
		if s.Hash != (common.Hash{}) {
			tx = s.Hash.Hex()
		}
		status := ok.Sprint("ok")
		if s.Failed() {
			status = failed.Sprint("failed: " + s.Err.Error())
		}
		table.Append([]string{step, string(s.Role), s.Method, tx, status})
	}
	table.Render()
	fmt.Fprintf(w, "%d steps, %d failed\n", len(r.Steps()), r.Failures())
}
