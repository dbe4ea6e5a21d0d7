package handlers

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockbot/internal/commands"
	"github.com/luckfunc/stockbot/internal/market"
	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/pkg/logger"
)

type recordingTransport struct {
	mu      sync.Mutex
	replies []models.Response
}

func (t *recordingTransport) Reply(_ context.Context, _ *models.Message, resp models.Response) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, resp)
	return nil
}

func (t *recordingTransport) SendDirect(context.Context, string, models.Response) error {
	return nil
}

func (t *recordingTransport) texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.replies))
	for i, r := range t.replies {
		out[i] = r.PlainText()
	}
	return out
}

type snapshotProvider struct {
	mu       sync.Mutex
	requests [][]string
	snaps    map[string]models.Snapshot
}

func (p *snapshotProvider) Snapshot(_ context.Context, symbols []string) ([]models.Snapshot, error) {
	p.mu.Lock()
	p.requests = append(p.requests, symbols)
	p.mu.Unlock()
	out := make([]models.Snapshot, len(symbols))
	for i, s := range symbols {
		snap, ok := p.snaps[s]
		if !ok {
			snap = models.Snapshot{Symbol: s}
		}
		out[i] = snap
	}
	return out, nil
}

func (p *snapshotProvider) Historical(context.Context, []string, time.Time, time.Time) (map[string][]models.HistoricalRow, error) {
	return nil, errors.New("no history")
}

type panicCommand struct{}

func (panicCommand) Name() string             { return "boom" }
func (panicCommand) Triggers() *regexp.Regexp { return regexp.MustCompile(`^boom\b`) }
func (panicCommand) Aliases() []string        { return nil }
func (panicCommand) Run(context.Context, *models.Message) ([]models.Response, error) {
	panic("kaboom")
}

type slowCommand struct{}

func (slowCommand) Name() string             { return "slow" }
func (slowCommand) Triggers() *regexp.Regexp { return regexp.MustCompile(`^slow\b`) }
func (slowCommand) Aliases() []string        { return nil }
func (slowCommand) Run(ctx context.Context, _ *models.Message) ([]models.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fixture struct {
	dispatcher *Dispatcher
	transport  *recordingTransport
	provider   *snapshotProvider
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		transport: &recordingTransport{},
		provider: &snapshotProvider{snaps: map[string]models.Snapshot{
			"AAPL": {Symbol: "AAPL", Name: "Apple Inc.", LastTradePriceOnly: 185.5, Change: 2.3, ChangeInPercent: 0.0125},
			"TSLA": {Symbol: "TSLA", Name: "Tesla, Inc.", LastTradePriceOnly: 240, Change: -4.8, ChangeInPercent: -0.0196},
		}},
		now: time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC),
	}

	registry := commands.NewRegistry(logger.Nop())
	for _, cmd := range commands.Builtin(commands.Deps{Provider: f.provider}) {
		require.NoError(t, registry.Register(cmd))
	}
	require.NoError(t, registry.Register(panicCommand{}))
	require.NoError(t, registry.Register(slowCommand{}))
	require.NoError(t, registry.Validate())

	f.dispatcher = NewDispatcher(DispatcherConfig{
		Registry:  registry,
		Transport: f.transport,
		Self:      models.SelfInfo{ID: "B1", Name: "stockbot"},
		Log:       logger.Nop(),
		Timeout:   50 * time.Millisecond,
		Now:       func() time.Time { return f.now },
	})
	return f
}

func msg(event models.EventKind, text string) *models.Message {
	return &models.Message{Type: models.TypeMessage, Event: event, Text: text, User: "U1", Channel: "C1"}
}

func TestQuoteAsDirectMention(t *testing.T) {
	f := newFixture(t)

	path := f.dispatcher.Handle(context.Background(), msg(models.EventDirectMention, "quote $AAPL"))
	assert.Equal(t, PathCommand, path)
	assert.Equal(t, [][]string{{"AAPL"}}, f.provider.requests)

	replies := f.transport.texts()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "AAPL")
	assert.Contains(t, replies[0], "$185.50")
	assert.Contains(t, replies[0], "(1.25%)")
}

func TestAmbientSymbolsTakePassivePath(t *testing.T) {
	f := newFixture(t)

	path := f.dispatcher.Handle(context.Background(), msg(models.EventAmbient, "$AAPL $TSLA"))
	assert.Equal(t, PathPassive, path)
	assert.Equal(t, [][]string{{"AAPL", "TSLA"}}, f.provider.requests)

	replies := f.transport.texts()
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "Apple Inc.")
	assert.Contains(t, replies[1], "Tesla, Inc.")
}

func TestPassivePathIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, PathPassive, f.dispatcher.Handle(ctx, msg(models.EventAmbient, "$AAPL looks strong")))
	f.now = f.now.Add(100 * time.Second)
	assert.Equal(t, PathIgnored, f.dispatcher.Handle(ctx, msg(models.EventAmbient, "$aapl again")))
	f.now = f.now.Add(300 * time.Second)
	assert.Equal(t, PathPassive, f.dispatcher.Handle(ctx, msg(models.EventAmbient, "$AAPL")))

	assert.Len(t, f.transport.texts(), 2)
	e, ok := f.dispatcher.dedup.Entry("AAPL")
	require.True(t, ok)
	assert.Equal(t, 2, e.RepeatCount)
}

func TestAmbientCommandsAreNotRun(t *testing.T) {
	f := newFixture(t)

	// an ambient "quote $AAPL" is only a symbol mention
	path := f.dispatcher.Handle(context.Background(), msg(models.EventAmbient, "quote $AAPL"))
	assert.Equal(t, PathPassive, path)

	path = f.dispatcher.Handle(context.Background(), msg(models.EventMention, "quote please"))
	assert.Equal(t, PathIgnored, path)
	assert.Len(t, f.transport.texts(), 1)
}

func TestReactionsSkipPassivePath(t *testing.T) {
	f := newFixture(t)
	m := msg(models.EventAmbient, "$AAPL")
	m.Type = models.TypeReaction

	assert.Equal(t, PathIgnored, f.dispatcher.Handle(context.Background(), m))
	assert.Empty(t, f.provider.requests)
}

func TestEmptyMessageIgnored(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, PathIgnored, f.dispatcher.Handle(context.Background(), msg(models.EventDirectMessage, "  ")))
	assert.Empty(t, f.transport.texts())
}

func TestHelp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, PathHelp, f.dispatcher.Handle(ctx, msg(models.EventDirectMessage, "HELP")))
	assert.Equal(t, PathHelpTopic, f.dispatcher.Handle(ctx, msg(models.EventDirectMessage, "help quote")))
	assert.Equal(t, PathHelpTopic, f.dispatcher.Handle(ctx, msg(models.EventDirectMessage, "help boom")))
	assert.Equal(t, PathHelpTopic, f.dispatcher.Handle(ctx, msg(models.EventDirectMessage, "help dance")))

	replies := f.transport.texts()
	require.Len(t, replies, 4)
	assert.Contains(t, replies[0], "*quote* [quote, q]")
	assert.Contains(t, replies[1], "`@stockbot quote $AAPL`")
	assert.Equal(t, "no help found for boom", replies[2])
	assert.Equal(t, "could not find a matching command for dance", replies[3])
}

func TestCommandErrorsBecomeReplies(t *testing.T) {
	f := newFixture(t)

	f.dispatcher.Handle(context.Background(), msg(models.EventDirectMessage, "quote nothing here"))
	f.dispatcher.Handle(context.Background(), msg(models.EventDirectMessage, "quote $ZZZZ"))

	assert.Equal(t, []string{
		"Sorry, I could not find any symbols",
		"Sorry, I could not find any valid symbols",
	}, f.transport.texts())
}

func TestCommandPanicIsRecovered(t *testing.T) {
	f := newFixture(t)

	assert.NotPanics(t, func() {
		path := f.dispatcher.Handle(context.Background(), msg(models.EventDirectMention, "boom"))
		assert.Equal(t, PathCommand, path)
	})
	assert.Empty(t, f.transport.texts())
}

func TestCommandTimeout(t *testing.T) {
	f := newFixture(t)

	f.dispatcher.Handle(context.Background(), msg(models.EventDirectMention, "slow"))
	assert.Equal(t, []string{"Sorry, slow timed out. Please try again."}, f.transport.texts())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Sorry, quote timed out. Please try again.",
		userMessage("quote", context.DeadlineExceeded))
	assert.Equal(t, "Sorry, market data is unavailable right now: history timed out",
		userMessage("chart", &market.ProviderError{Op: "history", Err: context.DeadlineExceeded}))
	assert.Equal(t, "Sorry, market data is unavailable right now: snapshot failed",
		userMessage("quote", &market.ProviderError{Op: "snapshot", Err: errors.New("dial tcp: refused")}))
	assert.Equal(t, "no history", userMessage("chart", errors.New("no history")))
}

func TestDispatchRunsConcurrently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.dispatcher.Dispatch(ctx, msg(models.EventDirectMention, "slow"))
	f.dispatcher.Dispatch(ctx, msg(models.EventDirectMention, "quote $AAPL"))
	f.dispatcher.Wait()

	assert.Len(t, f.transport.texts(), 2)
}
