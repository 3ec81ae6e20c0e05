package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/haggle/internal/dialogue"
	"github.com/sells-group/haggle/internal/model"
	"github.com/sells-group/haggle/internal/pricing"
)

// fakeModel records every prompt and answers with reply or err.
type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts [][]model.Message
}

func (f *fakeModel) Complete(_ context.Context, msgs []model.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, msgs)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakePrices struct {
	entries  []string
	subjects []string
}

func (f *fakePrices) Lookup(_ context.Context, subject string) model.PriceReport {
	f.subjects = append(f.subjects, subject)
	var findings []model.PriceFinding
	for _, e := range f.entries {
		label, price, _ := strings.Cut(e, ": ")
		findings = append(findings, model.PriceFinding{Label: label, PriceText: price})
	}
	return pricing.Aggregate(subject, findings)
}

func newTestService(m Model, prices *fakePrices) (*Service, *dialogue.Manager) {
	dm := dialogue.NewManager(dialogue.NewMemoryStore(), dialogue.Options{})
	if prices == nil {
		prices = &fakePrices{}
	}
	return NewService(dm, nil, prices, m), dm
}

func TestInitiateSession(t *testing.T) {
	s, dm := newTestService(&fakeModel{}, nil)

	g, err := s.InitiateSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, dialogue.Greeting, g)
	assert.Equal(t, []model.Message{model.Assistant(dialogue.Greeting)}, dm.History("s1"))
}

func TestGreetThenHello(t *testing.T) {
	m := &fakeModel{reply: "Hi! What are you negotiating today?"}
	s, dm := newTestService(m, nil)
	ctx := context.Background()

	_, err := s.InitiateSession(ctx, "s1")
	require.NoError(t, err)
	reply, err := s.SendMessage(ctx, "s1", "hello", false)
	require.NoError(t, err)
	assert.Equal(t, "Hi! What are you negotiating today?", reply)

	assert.Equal(t, []model.Message{
		model.Assistant(dialogue.Greeting),
		model.User("hello"),
		model.Assistant("Hi! What are you negotiating today?"),
	}, dm.History("s1"))

	require.Len(t, m.prompts, 1)
	assert.Equal(t, []model.Message{
		model.System(dialogue.SystemPrompt),
		model.Assistant(dialogue.Greeting),
		model.User("hello"),
	}, m.prompts[0])
}

func TestPriceQuery_AllSourcesFail(t *testing.T) {
	m := &fakeModel{reply: "Start low and compare local listings."}
	prices := &fakePrices{}
	s, dm := newTestService(m, prices)
	ctx := context.Background()

	_, err := s.InitiateSession(ctx, "s1")
	require.NoError(t, err)
	reply, err := s.SendMessage(ctx, "s1", "what's the price of a red bicycle?", true)
	require.NoError(t, err)

	notFound := model.NotFoundText("red bicycle")
	assert.Equal(t, notFound+"\n\nStart low and compare local listings.", reply)
	assert.Equal(t, []string{"red bicycle"}, prices.subjects)

	hist := dm.History("s1")
	require.Len(t, hist, 3)
	assert.Equal(t, model.User("what's the price of a red bicycle?"), hist[1])
	assert.Equal(t, model.Assistant(reply), hist[2])

	// The raw question is replaced by the injected context in the prompt.
	require.Len(t, m.prompts, 1)
	prompt := m.prompts[0]
	require.Len(t, prompt, 3)
	assert.Equal(t, model.User(dialogue.PriceContext("what's the price of a red bicycle?", notFound)), prompt[2])
}

func TestPriceQuery_WithFindings(t *testing.T) {
	m := &fakeModel{reply: "Offer $150."}
	prices := &fakePrices{entries: []string{"Amazon: $199", "Amazon: $199", "eBay: $120"}}
	s, _ := newTestService(m, prices)

	reply, err := s.SendMessage(context.Background(), "s1", "how much does a road bike cost?", true)
	require.NoError(t, err)
	assert.Equal(t, "Found prices for 'road bike':\nAmazon: $199\neBay: $120\n\nOffer $150.", reply)
}

func TestPriceQuery_ModelFailureReturnsReport(t *testing.T) {
	m := &fakeModel{err: errors.New("overloaded")}
	s, dm := newTestService(m, &fakePrices{entries: []string{"Etsy: $40"}})

	reply, err := s.SendMessage(context.Background(), "s1", "price of lamp", true)
	require.NoError(t, err)
	assert.Equal(t, "Found prices for 'lamp':\nEtsy: $40", reply)

	hist := dm.History("s1")
	require.Len(t, hist, 2)
	assert.Equal(t, model.Assistant(reply), hist[1])
}

func TestPriceQuery_NoModelReturnsReport(t *testing.T) {
	s, dm := newTestService(nil, &fakePrices{})

	reply, err := s.SendMessage(context.Background(), "s1", "price of lamp", true)
	require.NoError(t, err)
	assert.Equal(t, model.NotFoundText("lamp"), reply)
	assert.Len(t, dm.History("s1"), 2)
}

func TestPriceQuery_ComparisonDisabledGoesPlain(t *testing.T) {
	m := &fakeModel{reply: "I can talk strategy."}
	prices := &fakePrices{}
	s, _ := newTestService(m, prices)

	reply, err := s.SendMessage(context.Background(), "s1", "price of lamp", false)
	require.NoError(t, err)
	assert.Equal(t, "I can talk strategy.", reply)
	assert.Empty(t, prices.subjects)
}

func TestPlain_MissingCredential(t *testing.T) {
	s, dm := newTestService(nil, nil)

	_, err := s.SendMessage(context.Background(), "s1", "hello", false)
	require.ErrorIs(t, err, ErrConfigurationMissing)
	assert.Empty(t, dm.History("s1"))
}

func TestPlain_ModelFailureLeavesHistory(t *testing.T) {
	m := &fakeModel{err: errors.New("500 from upstream")}
	s, dm := newTestService(m, nil)
	_, err := s.InitiateSession(context.Background(), "s1")
	require.NoError(t, err)

	_, err = s.SendMessage(context.Background(), "s1", "hello", false)
	require.ErrorIs(t, err, ErrModelService)
	assert.Contains(t, err.Error(), "500 from upstream")
	assert.Equal(t, []model.Message{model.Assistant(dialogue.Greeting)}, dm.History("s1"))
}

func TestSentinel(t *testing.T) {
	m := &fakeModel{reply: "unused"}
	s, dm := newTestService(m, nil)
	ctx := context.Background()

	reply, err := s.SendMessage(ctx, "empty", dialogue.GreetingSentinel, false)
	require.NoError(t, err)
	assert.Equal(t, dialogue.FallbackReply, reply)

	_, err = s.InitiateSession(ctx, "s1")
	require.NoError(t, err)
	reply, err = s.SendMessage(ctx, "s1", "  "+dialogue.GreetingSentinel+" ", true)
	require.NoError(t, err)
	assert.Equal(t, dialogue.Greeting, reply)

	assert.Empty(t, m.prompts)
	assert.Len(t, dm.History("s1"), 1)
}

func TestStorageTrimmedAfterReply(t *testing.T) {
	m := &fakeModel{reply: "ok"}
	s, dm := newTestService(m, nil)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		_, err := s.SendMessage(ctx, "s1", "tell me more", false)
		require.NoError(t, err)
	}
	assert.Len(t, dm.History("s1"), dialogue.DefaultMaxTotalMessages)

	last := m.prompts[len(m.prompts)-1]
	assert.Len(t, last, 1+2*dialogue.DefaultMaxHistoryTurns)
}

func TestConcurrentSameSession(t *testing.T) {
	m := &fakeModel{reply: "ok"}
	s, dm := newTestService(m, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SendMessage(context.Background(), "s1", "hi", false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	hist := dm.History("s1")
	require.Len(t, hist, 20)
	for i := 0; i < len(hist); i += 2 {
		assert.Equal(t, model.RoleUser, hist[i].Role)
		assert.Equal(t, model.RoleAssistant, hist[i+1].Role)
	}
}
