// Package commands holds the chat commands and the registry that resolves them.
package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/luckfunc/stockbot/internal/models"
)

// SnapshotName the command the passive symbol path runs
const SnapshotName = "snapshot"

var (
	// ErrMissingSnapshot boot cannot continue without the snapshot command
	ErrMissingSnapshot = errors.New(`command "snapshot" is not registered`)

	helpPrefix = regexp.MustCompile(`(?i)^help\b\s*`)
)

// Command a chat command
type Command interface {
	Name() string
	// Triggers is matched against the message text with any help prefix removed.
	Triggers() *regexp.Regexp
	Aliases() []string
	Run(ctx context.Context, msg *models.Message) ([]models.Response, error)
}

// Helper is implemented by commands with their own help text
type Helper interface {
	Help(ctx context.Context, self models.SelfInfo) (string, error)
}

// Registry commands in registration order
type Registry struct {
	mu    sync.RWMutex
	order []Command
	byKey map[string]Command
	log   zerolog.Logger
}

// NewRegistry ...
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		byKey: map[string]Command{},
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// Register adds cmd. A malformed or duplicate command is logged and rejected;
// callers may keep going.
func (r *Registry) Register(cmd Command) error {
	if err := validate(cmd); err != nil {
		r.log.Error().Err(err).Msg("skipping command")
		return err
	}

	key := strings.ToLower(cmd.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[key]; ok {
		err := fmt.Errorf("command %q registered twice", cmd.Name())
		r.log.Error().Err(err).Msg("skipping command")
		return err
	}
	r.byKey[key] = cmd
	r.order = append(r.order, cmd)
	r.log.Debug().Str("command", cmd.Name()).Strs("aliases", cmd.Aliases()).Msg("registered command")
	return nil
}

func validate(cmd Command) error {
	if cmd == nil {
		return errors.New("nil command")
	}
	if strings.TrimSpace(cmd.Name()) == "" {
		return errors.New("command has no name")
	}
	if cmd.Triggers() == nil {
		return fmt.Errorf("command %q has no triggers", cmd.Name())
	}
	return nil
}

// Validate fails when the snapshot command is missing
func (r *Registry) Validate() error {
	if _, ok := r.Get(SnapshotName); !ok {
		return ErrMissingSnapshot
	}
	return nil
}

// Get looks a command up by name
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byKey[strings.ToLower(name)]
	return cmd, ok
}

// Snapshot the mandatory snapshot command
func (r *Registry) Snapshot() (Command, bool) {
	return r.Get(SnapshotName)
}

// Resolve returns the first command whose triggers match text, or nil.
// A leading "help" token is ignored.
func (r *Registry) Resolve(text string) Command {
	text = StripHelp(text)
	if text == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cmd := range r.order {
		if cmd.Triggers().MatchString(text) {
			return cmd
		}
	}
	return nil
}

// ListForHelp commands with at least one alias, in registration order
func (r *Registry) ListForHelp() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.order))
	for _, cmd := range r.order {
		if len(cmd.Aliases()) > 0 {
			out = append(out, cmd)
		}
	}
	return out
}

// Names every registered command name, in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	for i, cmd := range r.order {
		out[i] = cmd.Name()
	}
	return out
}

// HelpListing one line per listed command with its aliases and an example
func (r *Registry) HelpListing(self models.SelfInfo) string {
	var b strings.Builder
	b.WriteString("Here is what I can do. Mention a symbol like $AAPL and I will post a snapshot, or try one of these:\n")
	for _, cmd := range r.ListForHelp() {
		aliases := cmd.Aliases()
		b.WriteString(fmt.Sprintf("*%s* [%s] `@%s %s`\n",
			cmd.Name(), strings.Join(aliases, ", "), self.Name, ExampleFor(cmd)))
	}
	b.WriteString(fmt.Sprintf("For details on a command, type `@%s help <command>`", self.Name))
	return b.String()
}

// StripHelp removes a leading "help" token
func StripHelp(text string) string {
	return strings.TrimSpace(helpPrefix.ReplaceAllString(strings.TrimSpace(text), ""))
}

type exampler interface {
	Example() string
}

// ExampleFor usage example shown in help
func ExampleFor(cmd Command) string {
	if e, ok := cmd.(exampler); ok {
		return e.Example()
	}
	return cmd.Aliases()[0] + " $AAPL"
}
