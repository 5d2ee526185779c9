// Package journal records conversion runs on disk so an interrupted run can
// be reconciled against the chain.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Journal provides high-level operations on runs and their legs
type Journal struct {
	storage *Storage
	now     func() time.Time
}

// Open opens or creates the journal at path
func Open(path string) (*Journal, error) {
	storage, err := NewStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Journal{
		storage: storage,
		now:     time.Now,
	}, nil
}

// Path returns the journal file
func (j *Journal) Path() string {
	return j.storage.GetFilePath()
}

// StartRun creates a new active run
func (j *Journal) StartRun(symbol, account string) (*Run, error) {
	now := j.now()
	run := &Run{
		ID:      uuid.New().String(),
		Symbol:  symbol,
		Account: account,
		Status:  RunActive,
		Started: now,
		Updated: now,
		Legs:    []Leg{},
	}

	if err := j.storage.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun retrieves a run by id. A unique id prefix is accepted.
func (j *Journal) GetRun(id string) (*Run, error) {
	if run, err := j.storage.Get(id); err == nil {
		return run, nil
	}

	var match *Run
	for _, run := range j.storage.List() {
		if strings.HasPrefix(run.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run id prefix '%s' is ambiguous", id)
			}
			match = run
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run '%s' not found", id)
	}
	return match, nil
}

// ListRuns returns all runs, oldest first
func (j *Journal) ListRuns() []*Run {
	return j.storage.List()
}

// Unresolved returns runs holding a leg that was signed but never resolved
func (j *Journal) Unresolved() []*Run {
	var runs []*Run
	for _, run := range j.storage.List() {
		if len(run.PendingLegs()) > 0 {
			runs = append(runs, run)
		}
	}
	return runs
}

// AddLeg appends a leg to a run and returns its id
func (j *Journal) AddLeg(runID string, leg Leg) (string, error) {
	leg.ID = uuid.New().String()
	leg.Created = j.now()
	if leg.Status == "" {
		leg.Status = LegNegotiated
	}

	_, err := j.storage.Modify(runID, func(run *Run) error {
		if run.IsFinished() {
			return fmt.Errorf("run '%s' is %s", runID, run.Status)
		}
		run.Legs = append(run.Legs, leg)
		run.Updated = leg.Created
		return nil
	})
	if err != nil {
		return "", err
	}
	return leg.ID, nil
}

// UpdateLeg applies fn to one leg of a run
func (j *Journal) UpdateLeg(runID, legID string, fn func(*Leg)) error {
	_, err := j.storage.Modify(runID, func(run *Run) error {
		for i := range run.Legs {
			if run.Legs[i].ID == legID {
				fn(&run.Legs[i])
				run.Updated = j.now()
				return nil
			}
		}
		return fmt.Errorf("leg '%s' not found in run '%s'", legID, runID)
	})
	return err
}

// UpdateExchangeStatus stores the latest deposit status reported by the exchange
func (j *Journal) UpdateExchangeStatus(runID, legID, status string) error {
	return j.UpdateLeg(runID, legID, func(leg *Leg) {
		leg.ExchangeStatus = status
	})
}

// FinishRun marks a run completed, or failed when runErr is non-nil
func (j *Journal) FinishRun(runID string, runErr error) error {
	_, err := j.storage.Modify(runID, func(run *Run) error {
		run.Status = RunCompleted
		if runErr != nil {
			run.Status = RunFailed
			run.Error = runErr.Error()
		}
		run.Updated = j.now()
		return nil
	})
	return err
}
