// Package handlers turns inbound chat messages into command runs and replies.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luckfunc/stockbot/internal/commands"
	"github.com/luckfunc/stockbot/internal/market"
	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
	"github.com/luckfunc/stockbot/pkg/logger"
)

// DefaultTimeout upper bound on a single command run
const DefaultTimeout = 20 * time.Second

// Dispatch paths, used as the "path" metric label
const (
	PathHelp      = "help"
	PathHelpTopic = "help_topic"
	PathPassive   = "passive"
	PathCommand   = "command"
	PathIgnored   = "ignored"
)

var helpTopic = regexp.MustCompile(`(?i)^help\s+(\S+)`)

// Transport the chat side the bot talks through
type Transport interface {
	Reply(ctx context.Context, msg *models.Message, resp models.Response) error
	SendDirect(ctx context.Context, userID string, resp models.Response) error
}

// DispatcherConfig ...
type DispatcherConfig struct {
	Registry  *commands.Registry
	Dedup     *DedupWindow
	Transport Transport
	Self      models.SelfInfo
	Log       zerolog.Logger
	Timeout   time.Duration
	// Counter counts handled messages by path; nil discards.
	Counter metrics.Counter
	Now     func() time.Time
}

// Dispatcher classifies messages and routes them to commands
type Dispatcher struct {
	registry  *commands.Registry
	dedup     *DedupWindow
	transport Transport
	log       zerolog.Logger
	timeout   time.Duration
	counter   metrics.Counter
	now       func() time.Time

	selfMu sync.RWMutex
	self   models.SelfInfo

	wg sync.WaitGroup
}

// NewDispatcher ...
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		registry:  cfg.Registry,
		dedup:     cfg.Dedup,
		transport: cfg.Transport,
		self:      cfg.Self,
		log:       logger.Component(cfg.Log, "dispatcher"),
		timeout:   cfg.Timeout,
		counter:   cfg.Counter,
		now:       cfg.Now,
	}
	if d.dedup == nil {
		d.dedup = NewDedupWindow(DefaultCooldown)
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.counter == nil {
		d.counter = discard.NewCounter()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// SetSelf updates the bot identity once the transport knows it
func (d *Dispatcher) SetSelf(self models.SelfInfo) {
	d.selfMu.Lock()
	defer d.selfMu.Unlock()
	d.self = self
}

// Self the current bot identity
func (d *Dispatcher) Self() models.SelfInfo {
	d.selfMu.RLock()
	defer d.selfMu.RUnlock()
	return d.self
}

// Dispatch handles msg in its own goroutine
func (d *Dispatcher) Dispatch(ctx context.Context, msg *models.Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Handle(ctx, msg)
	}()
}

// Wait blocks until every dispatched message is handled
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Handle runs one message through the state machine and returns the path taken
func (d *Dispatcher) Handle(ctx context.Context, msg *models.Message) string {
	log := d.log.With().
		Str("id", uuid.NewString()).
		Str("user", msg.User).
		Str("event", string(msg.Event)).
		Logger()

	path := d.route(ctx, log, msg)
	d.counter.With("path", path).Add(1)
	return path
}

func (d *Dispatcher) route(ctx context.Context, log zerolog.Logger, msg *models.Message) string {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return PathIgnored
	}

	if strings.EqualFold(text, "help") {
		log.Info().Msg("help listing")
		d.reply(ctx, log, msg, models.TextResponse(d.registry.HelpListing(d.Self())))
		return PathHelp
	}

	if m := helpTopic.FindStringSubmatch(text); m != nil {
		d.helpTopic(ctx, log, msg, text, m[1])
		return PathHelpTopic
	}

	// commands are only recognized when the bot is spoken to directly
	var cmd commands.Command
	if msg.Addressed() {
		cmd = d.registry.Resolve(text)
	}

	if msg.Type == models.TypeMessage && cmd == nil && services.ContainsSymbol(text) {
		if d.passive(ctx, log, msg, text) {
			return PathPassive
		}
		return PathIgnored
	}

	if cmd != nil {
		log.Info().Str("command", cmd.Name()).Msg("running command")
		d.invoke(ctx, log, msg, cmd.Name(), func(ctx context.Context) ([]models.Response, error) {
			return cmd.Run(ctx, msg)
		})
		return PathCommand
	}
	return PathIgnored
}

func (d *Dispatcher) helpTopic(ctx context.Context, log zerolog.Logger, msg *models.Message, text, token string) {
	cmd := d.registry.Resolve(text)
	if cmd == nil {
		d.reply(ctx, log, msg, models.TextResponse("could not find a matching command for "+token))
		return
	}
	helper, ok := cmd.(commands.Helper)
	if !ok {
		d.reply(ctx, log, msg, models.TextResponse("no help found for "+token))
		return
	}
	d.invoke(ctx, log, msg, cmd.Name(), func(ctx context.Context) ([]models.Response, error) {
		help, err := helper.Help(ctx, d.Self())
		if err != nil {
			return nil, err
		}
		return []models.Response{models.TextResponse(help)}, nil
	})
}

// passive looks up freshly mentioned symbols; false when all are cooling down
func (d *Dispatcher) passive(ctx context.Context, log zerolog.Logger, msg *models.Message, text string) bool {
	symbols := d.dedup.Admit(services.ExtractSymbols(text), d.now())
	if len(symbols) == 0 {
		log.Debug().Msg("symbols recently looked up")
		return false
	}

	cmd, ok := d.registry.Snapshot()
	if !ok {
		log.Error().Err(commands.ErrMissingSnapshot).Msg("passive lookup")
		return false
	}
	log.Info().Strs("symbols", symbols).Msg("found symbols")
	d.invoke(ctx, log, msg, cmd.Name(), func(ctx context.Context) ([]models.Response, error) {
		if runner, ok := cmd.(commands.SymbolRunner); ok {
			return runner.RunSymbols(ctx, msg, symbols)
		}
		return cmd.Run(ctx, msg)
	})
	return true
}

// invoke runs fn under the command timeout. An error becomes a single reply;
// a panic is logged and swallowed.
func (d *Dispatcher) invoke(ctx context.Context, log zerolog.Logger, msg *models.Message, name string, fn func(context.Context) ([]models.Response, error)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("command", name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("command panicked")
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	begin := time.Now()
	responses, err := fn(runCtx)
	if err != nil {
		event := log.Warn().Err(err).Str("command", name).Dur("elapsed", time.Since(begin))
		if cause := errors.Unwrap(err); cause != nil {
			event = event.AnErr("cause", cause)
		}
		event.Msg("command failed")
		d.reply(ctx, log, msg, models.TextResponse(userMessage(name, err)))
		return
	}
	log.Debug().Str("command", name).Int("responses", len(responses)).Dur("elapsed", time.Since(begin)).Msg("command done")
	for _, resp := range responses {
		d.reply(ctx, log, msg, resp)
	}
}

// userMessage reply text for a failed command run
func userMessage(command string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) && !market.IsProviderError(err) {
		return fmt.Sprintf("Sorry, %s timed out. Please try again.", command)
	}
	return err.Error()
}

func (d *Dispatcher) reply(ctx context.Context, log zerolog.Logger, msg *models.Message, resp models.Response) {
	if err := d.transport.Reply(ctx, msg, resp); err != nil {
		log.Error().Err(err).Msg("reply failed")
	}
}
