package commands

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/pkg/logger"
)

type stubCommand struct {
	descriptor
}

func (stubCommand) Run(context.Context, *models.Message) ([]models.Response, error) {
	return nil, nil
}

func stub(name, pattern string, aliases ...string) stubCommand {
	var re *regexp.Regexp
	if pattern != "" {
		re = regexp.MustCompile(pattern)
	}
	return stubCommand{descriptor{name: name, triggers: re, aliases: aliases}}
}

func TestRegisterRejectsMalformed(t *testing.T) {
	r := NewRegistry(logger.Nop())

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(stub("", `^x`)))
	assert.Error(t, r.Register(stub("nop", "")))
	require.NoError(t, r.Register(stub("quote", `(?i)^\b(quote|q)\b`, "quote", "q")))
	assert.Error(t, r.Register(stub("Quote", `^y`)))

	assert.Equal(t, []string{"quote"}, r.Names())
}

func TestRegisterLogsRejectOnce(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(zerolog.New(&buf))

	require.NoError(t, r.Register(stub("quote", `^q`)))
	buf.Reset()
	assert.Error(t, r.Register(stub("quote", `^x`)))

	assert.Equal(t, 1, strings.Count(buf.String(), "skipping command"))
	assert.Contains(t, buf.String(), `registered twice`)
}

func TestValidateRequiresSnapshot(t *testing.T) {
	r := NewRegistry(logger.Nop())
	require.NoError(t, r.Register(stub("quote", `^q`, "q")))
	assert.ErrorIs(t, r.Validate(), ErrMissingSnapshot)

	require.NoError(t, r.Register(stub(SnapshotName, `^snapshot`)))
	assert.NoError(t, r.Validate())
	_, ok := r.Snapshot()
	assert.True(t, ok)
}

func TestResolve(t *testing.T) {
	r := NewRegistry(logger.Nop())
	for _, cmd := range Builtin(Deps{}) {
		require.NoError(t, r.Register(cmd))
	}

	cases := map[string]string{
		"quote $AAPL":      "quote",
		"Q $AAPL":          "quote",
		"h $AAPL 30d":      "historical",
		"analyze $TSLA":    "analysis",
		"variance $AAPL":   "variance",
		"wl add $AAPL":     "watchlist",
		"help quote":       "quote",
		"HELP  historical": "historical",
		"snapshot $AAPL":   "snapshot",
	}
	for text, want := range cases {
		cmd := r.Resolve(text)
		require.NotNil(t, cmd, text)
		assert.Equal(t, want, cmd.Name(), text)
	}

	assert.Nil(t, r.Resolve("quotes are fun"))
	assert.Nil(t, r.Resolve("help"))
	assert.Nil(t, r.Resolve("what about $AAPL"))

	// resolving twice gives the same answer
	assert.Same(t, r.Resolve("q $AAPL"), r.Resolve("q $AAPL"))
}

func TestResolveFirstMatchWins(t *testing.T) {
	r := NewRegistry(logger.Nop())
	require.NoError(t, r.Register(stub("first", `^a`, "a")))
	require.NoError(t, r.Register(stub("second", `^ab`, "ab")))

	assert.Equal(t, "first", r.Resolve("ab").Name())
}

func TestListForHelp(t *testing.T) {
	r := NewRegistry(logger.Nop())
	for _, cmd := range Builtin(Deps{}) {
		require.NoError(t, r.Register(cmd))
	}

	var names []string
	for _, cmd := range r.ListForHelp() {
		names = append(names, cmd.Name())
	}
	assert.Equal(t, []string{"quote", "historical", "analysis", "variance", "watchlist"}, names)

	listing := r.HelpListing(models.SelfInfo{Name: "stockbot"})
	assert.Contains(t, listing, "*quote* [quote, q] `@stockbot quote $AAPL`")
	assert.Contains(t, listing, "`@stockbot watchlist add $AAPL`")
	assert.NotContains(t, listing, "*snapshot*")
}
