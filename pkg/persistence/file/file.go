// Package file provides file-based persistence for workflows. The whole store lives
// in a single JSON document that is rewritten atomically on every commit.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
)

const stateFile = "taskflow.json"

// Persistence implements the persistence.Persistence interface using the file system.
// Transactions are serialized by a mutex and work on a private copy of the state,
// so a failed transaction leaves nothing behind.
type Persistence struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	state *state
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(logger *slog.Logger, root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	err := os.MkdirAll(cleanRoot, 0o750)
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fp := &Persistence{root: cleanRoot, logger: logger}

	loaded, err := fp.load()
	if err != nil {
		return nil, err
	}

	fp.state = loaded

	return fp, nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// WithTx runs fn against a copy of the state and persists the copy when fn succeeds.
func (fp *Persistence) WithTx(ctx context.Context, fn func(tx persistence.Tx) error) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	working := fp.state.clone()

	err := fn(&tx{state: working})
	if err != nil {
		return err
	}

	err = ctx.Err()
	if err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	err = fp.save(working)
	if err != nil {
		return err
	}

	fp.state = working

	return nil
}

func (fp *Persistence) path() string {
	return filepath.Join(fp.root, stateFile)
}

func (fp *Persistence) load() (*state, error) {
	data, err := os.ReadFile(fp.path())
	if errors.Is(err, os.ErrNotExist) {
		return newState(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	loaded := newState()

	err = json.Unmarshal(data, loaded)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	loaded.ensure()

	return loaded, nil
}

func (fp *Persistence) save(s *state) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(fp.root, stateFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	_, err = tmp.Write(data)
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write state file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	err = os.Rename(tmp.Name(), fp.path())
	if err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	fp.logger.Debug("state saved", "path", fp.path(), "workflows", len(s.Workflows))

	return nil
}

type state struct {
	Workflows     map[string]*models.Workflow        `json:"workflows"`
	Snapshots     map[string]*snapshot               `json:"snapshots"`
	Audits        map[string][]*models.WorkflowAudit `json:"audits"`
	TemplateLinks map[string]string                  `json:"template_links"`
	Tasks         map[string]*models.TaskAssignment  `json:"tasks"`
}

func newState() *state {
	s := &state{}
	s.ensure()

	return s
}

func (s *state) ensure() {
	if s.Workflows == nil {
		s.Workflows = map[string]*models.Workflow{}
	}

	if s.Snapshots == nil {
		s.Snapshots = map[string]*snapshot{}
	}

	if s.Audits == nil {
		s.Audits = map[string][]*models.WorkflowAudit{}
	}

	if s.TemplateLinks == nil {
		s.TemplateLinks = map[string]string{}
	}

	if s.Tasks == nil {
		s.Tasks = map[string]*models.TaskAssignment{}
	}
}

func (s *state) clone() *state {
	c := newState()

	for id, w := range s.Workflows {
		c.Workflows[id] = w.Clone()
	}

	for key, snap := range s.Snapshots {
		copied := &snapshot{
			Statuses:    make([]*models.WorkflowStatus, 0, len(snap.Statuses)),
			Transitions: make([]*models.WorkflowTransition, 0, len(snap.Transitions)),
		}

		for _, status := range snap.Statuses {
			copied.Statuses = append(copied.Statuses, status.Clone())
		}

		for _, transition := range snap.Transitions {
			copied.Transitions = append(copied.Transitions, transition.Clone())
		}

		c.Snapshots[key] = copied
	}

	for id, audits := range s.Audits {
		copied := make([]*models.WorkflowAudit, 0, len(audits))
		for _, audit := range audits {
			copied = append(copied, audit.Clone())
		}

		c.Audits[id] = copied
	}

	for templateID, workflowID := range s.TemplateLinks {
		c.TemplateLinks[templateID] = workflowID
	}

	for taskID, assignment := range s.Tasks {
		a := *assignment
		c.Tasks[taskID] = &a
	}

	return c
}

func snapshotKey(workflowID string, version int) string {
	return fmt.Sprintf("%s@%d", workflowID, version)
}
