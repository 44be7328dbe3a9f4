package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rightsflow/supervisor-gateway/internal/metrics"
)

// Prompts is the set of system prompts used by the model-backed components.
// Entries missing from the file keep their built-in defaults.
type Prompts struct {
	ClassifierSystem string            `yaml:"classifier_system"`
	RewriteSystem    map[string]string `yaml:"rewrite_system"`
	RewriteDefault   string            `yaml:"rewrite_default"`
	SummarizerSystem string            `yaml:"summarizer_system"`
	ClarifierSystem  string            `yaml:"clarifier_system"`
}

func defaultPrompts() Prompts {
	return Prompts{
		ClassifierSystem: "You classify user requests for a music rights assistant. " +
			"Respond with only a JSON object {\"intent\": one of WORK_SEARCH, APRA_QA, AMBIGUOUS, OUT_OF_SCOPE, " +
			"\"confidence\": number between 0 and 1, \"reasoning\": short string}. No other text.",
		RewriteSystem: map[string]string{
			"WORK_SEARCH": "Rewrite the user's request as a concise search query for a musical works index. " +
				"Keep titles, writer names and identifiers verbatim. Output only the rewritten query.",
			"APRA_QA": "Rewrite the user's request as a clear standalone question for a music rights knowledge base. " +
				"Output only the rewritten question.",
		},
		RewriteDefault: "Rewrite the user's request as a clear, self-contained query. Output only the rewritten text.",
		SummarizerSystem: "You maintain a rolling summary of a conversation. Given the previous summary and the " +
			"turns being evicted, return an updated summary that preserves names, identifiers and open questions. " +
			"Output only the summary text.",
		ClarifierSystem: "The user's request is ambiguous between searching for a musical work and asking a question " +
			"about the rights organisation. Ask one short clarifying question. Output only the question.",
	}
}

// PromptTable serves the current prompt set and hot-reloads the backing file
// on change, in the spirit of the models.yaml watcher.
type PromptTable struct {
	mu      sync.RWMutex
	path    string
	log     *zap.Logger
	current Prompts
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// LoadPromptTable reads the prompt file at path. A missing file leaves the
// built-in defaults in place.
func LoadPromptTable(path string, logger *zap.Logger) (*PromptTable, error) {
	t := &PromptTable{
		path:    path,
		log:     logger,
		current: defaultPrompts(),
		done:    make(chan struct{}),
	}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the current prompt set.
func (t *PromptTable) Get() Prompts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// RewriteFor returns the rewrite system prompt for the given intent name,
// falling back to the default prompt when the intent is unmapped.
func (t *PromptTable) RewriteFor(intentName string) string {
	p := t.Get()
	if s, ok := p.RewriteSystem[intentName]; ok && s != "" {
		return s
	}
	return p.RewriteDefault
}

func (t *PromptTable) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.log.Info("Prompt file not found, using built-in prompts", zap.String("path", t.path))
			return nil
		}
		metrics.PromptReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("read prompts: %w", err)
	}

	loaded := defaultPrompts()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		metrics.PromptReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("unmarshal prompts: %w", err)
	}

	t.mu.Lock()
	t.current = loaded
	t.mu.Unlock()
	metrics.PromptReloads.WithLabelValues("ok").Inc()
	t.log.Info("Loaded prompt table", zap.String("path", t.path))
	return nil
}

// Watch reloads the prompt file whenever it is rewritten. Errors during a
// reload keep the previous prompt set.
func (t *PromptTable) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so editor rename-and-replace writes are seen.
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch prompts dir: %w", err)
	}
	t.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(t.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := t.reload(); err != nil {
					t.log.Warn("Prompt reload failed, keeping previous prompts", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				t.log.Warn("Prompt watcher error", zap.Error(err))
			case <-t.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (t *PromptTable) Close() {
	close(t.done)
	if t.watcher != nil {
		t.watcher.Close()
	}
}
