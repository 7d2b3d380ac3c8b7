package state

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/famulus-ai/famulus/capability"
	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/logging"
)

// Sampling bounds for the persona fields drawn into each snapshot. Small
// fixed counts keep prompts varied across calls without growing unbounded.
const (
	maxBioSamples            = 3
	maxLoreSamples           = 10
	maxTopicSamples          = 5
	maxMessageExampleSamples = 5
	maxPostExampleSamples    = 7
	maxActionExampleSamples  = 5
	maxGoalsShown            = 10
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Intn is the random source for persona and example sampling. Defaults
	// to the shared math/rand source; tests inject a deterministic one.
	Intn func(n int) int
	// Logger receives structured diagnostics.
	Logger logging.Logger
}

// ComposeLogger is implemented by loggers that record composition summaries.
// *logging.RuntimeLogger satisfies it; plain loggers fall back to generic
// structured lines.
type ComposeLogger interface {
	LogStateComposition(roomID string, messages int, dur time.Duration, err error)
}

// Composer assembles core.State snapshots. Public methods are safe for
// concurrent use.
type Composer struct {
	dispatcher *capability.Dispatcher
	intn       func(n int) int
	logger     logging.Logger
}

// New constructs a Composer over the dispatcher whose registry supplies the
// capability catalogs, with optional overrides.
func New(dispatcher *capability.Dispatcher, optFns ...func(o *Options)) *Composer {
	opts := Options{
		Intn:   rand.IntN,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Composer{
		dispatcher: dispatcher,
		intn:       opts.Intn,
		logger:     opts.Logger,
	}
}

// Compose builds the snapshot for one inbound message.
//
// The independent reads (actors, recent messages, recent facts, goals,
// capability validation, provider context) are fanned out concurrently and
// joined before any formatting happens; a single failed branch aborts the
// whole composition. The relevant-facts search depends on the recent-facts
// page and runs after the join. Entries in extra override any computed field
// of the same name.
func (c *Composer) Compose(ctx context.Context, rt core.Runtime, message *core.Memory, extra map[string]any) (*core.State, error) {
	start := time.Now()

	snapshot, err := c.compose(ctx, rt, message, extra)
	messages := 0
	if snapshot != nil {
		messages = len(snapshot.RecentMessagesData)
	}
	c.logComposition(message.RoomID, messages, time.Since(start), err)
	return snapshot, err
}

func (c *Composer) compose(ctx context.Context, rt core.Runtime, message *core.Memory, extra map[string]any) (*core.State, error) {
	conversationLength := rt.ConversationLength()
	recentFactsCount := (conversationLength + 1) / 2

	snapshot := c.personaState(rt, message, extra)

	var (
		actors          []core.Actor
		recentMessages  []core.Memory
		recentFacts     []core.Memory
		goals           []core.Goal
		validActions    []core.Action
		validEvaluators []core.Evaluator
		providerText    string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		actors, err = c.actorsForRoom(gctx, rt, message.RoomID)
		if err != nil {
			return fmt.Errorf("fetch actors: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recentMessages, err = rt.Messages().GetMemories(gctx, core.MemoryQuery{
			RoomID: message.RoomID,
			Count:  conversationLength,
		})
		if err != nil {
			return fmt.Errorf("fetch recent messages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recentFacts, err = rt.Facts().GetMemories(gctx, core.MemoryQuery{
			RoomID: message.RoomID,
			Count:  recentFactsCount,
			Unique: true,
		})
		if err != nil {
			return fmt.Errorf("fetch recent facts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		goals, err = rt.Goals().GetGoals(gctx, core.GoalQuery{
			RoomID: message.RoomID,
			Count:  maxGoalsShown,
		})
		if err != nil {
			return fmt.Errorf("fetch goals: %w", err)
		}
		return nil
	})
	// Validation and provider branches see the persona-only snapshot; the
	// data blocks are still being fetched by the sibling branches.
	g.Go(func() error {
		var err error
		validActions, err = c.dispatcher.ValidActions(gctx, rt, message, snapshot)
		return err
	})
	g.Go(func() error {
		var err error
		validEvaluators, err = c.dispatcher.ValidEvaluators(gctx, rt, message, snapshot)
		return err
	})
	g.Go(func() error {
		var err error
		providerText, err = c.dispatcher.FetchProviderContext(gctx, rt, message, snapshot)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compose state: %w", err)
	}

	relevantFacts, err := c.relevantFacts(ctx, rt, message.RoomID, recentFacts, recentFactsCount)
	if err != nil {
		return nil, fmt.Errorf("compose state: %w", err)
	}

	recentMessages = RedactStaleAttachments(recentMessages)

	snapshot.SenderName = senderName(actors, message.UserID)
	snapshot.Actors = FormatActors(actors)
	snapshot.ActorsData = actors
	snapshot.RecentMessages = FormatMessages(recentMessages, actors)
	snapshot.RecentMessagesData = recentMessages
	snapshot.RecentFacts = FormatFacts(recentFacts)
	snapshot.RecentFactsData = recentFacts
	snapshot.RelevantFacts = FormatFacts(relevantFacts)
	snapshot.RelevantFactsData = relevantFacts
	snapshot.Goals = FormatGoals(goals)
	snapshot.GoalsData = goals
	snapshot.Attachments = FormatAttachments(recentMessages)

	snapshot.ActionNames = capability.FormatActionNames(validActions)
	snapshot.Actions = capability.FormatActions(validActions)
	snapshot.ActionExamples = capability.FormatActionExamples(validActions, maxActionExampleSamples, c.intn)
	snapshot.ActionsData = validActions
	snapshot.EvaluatorNames = capability.FormatEvaluatorNames(validEvaluators)
	snapshot.Evaluators = capability.FormatEvaluators(validEvaluators)
	snapshot.EvaluatorExamples = capability.FormatEvaluatorExamples(validEvaluators)
	snapshot.EvaluatorsData = validEvaluators
	snapshot.Providers = providerText

	return snapshot, nil
}

// UpdateRecentMessages refreshes only the recent-message slice (and the
// attachment block derived from it) of an existing snapshot, returning a new
// snapshot and leaving the original untouched.
func (c *Composer) UpdateRecentMessages(ctx context.Context, rt core.Runtime, snapshot *core.State) (*core.State, error) {
	recentMessages, err := rt.Messages().GetMemories(ctx, core.MemoryQuery{
		RoomID: snapshot.RoomID,
		Count:  rt.ConversationLength(),
	})
	if err != nil {
		return nil, fmt.Errorf("refresh recent messages: %w", err)
	}
	recentMessages = RedactStaleAttachments(recentMessages)

	cp := snapshot.Clone()
	cp.RecentMessages = FormatMessages(recentMessages, cp.ActorsData)
	cp.RecentMessagesData = recentMessages
	cp.Attachments = FormatAttachments(recentMessages)
	return cp, nil
}

// personaState seeds a snapshot with identity and the sampled persona
// fields.
func (c *Composer) personaState(rt core.Runtime, message *core.Memory, extra map[string]any) *core.State {
	ch := rt.Character()

	var extraCopy map[string]any
	if extra != nil {
		extraCopy = make(map[string]any, len(extra))
		for k, v := range extra {
			extraCopy[k] = v
		}
	}

	examples := sampleMessageExamples(ch.MessageExamples, maxMessageExampleSamples, c.intn)
	replace := func() *strings.Replacer { return capability.NewPlaceholderReplacer(c.intn) }

	return &core.State{
		AgentID:           rt.AgentID(),
		AgentName:         ch.Name,
		RoomID:            message.RoomID,
		Bio:               strings.Join(sampleStrings(ch.Bio, maxBioSamples, c.intn), " "),
		Lore:              strings.Join(sampleStrings(ch.Lore, maxLoreSamples, c.intn), "\n"),
		Topics:            strings.Join(sampleStrings(ch.Topics, maxTopicSamples, c.intn), ", "),
		Adjective:         sampleOne(ch.Adjectives, c.intn),
		MessageDirections: strings.Join(append(append([]string(nil), ch.Style.All...), ch.Style.Chat...), "\n"),
		PostDirections:    strings.Join(append(append([]string(nil), ch.Style.All...), ch.Style.Post...), "\n"),
		MessageExamples:   formatMessageExamples(examples, replace),
		PostExamples:      strings.Join(sampleStrings(ch.PostExamples, maxPostExampleSamples, c.intn), "\n"),
		Extra:             extraCopy,
	}
}

// relevantFacts searches for facts similar to the newest recent fact and
// subtracts any fact already shown in the recent page, so nothing appears
// under two headings. The search only runs when the recent page came back
// full, a cheap signal that older related facts may exist.
func (c *Composer) relevantFacts(ctx context.Context, rt core.Runtime, roomID string, recentFacts []core.Memory, recentFactsCount int) ([]core.Memory, error) {
	if recentFactsCount == 0 || len(recentFacts) < recentFactsCount {
		return nil, nil
	}
	query := recentFacts[0].Embedding // newest first
	if query == nil {
		return nil, nil
	}

	found, err := rt.Facts().SearchByEmbedding(ctx, query, core.SearchQuery{
		RoomID: roomID,
		Count:  recentFactsCount,
		Unique: true,
	})
	if err != nil {
		return nil, fmt.Errorf("search relevant facts: %w", err)
	}

	seen := make(map[string]bool, len(recentFacts))
	for _, f := range recentFacts {
		seen[f.ID] = true
	}
	var relevant []core.Memory
	for _, f := range found {
		if !seen[f.ID] {
			relevant = append(relevant, f)
		}
	}
	return relevant, nil
}

func (c *Composer) actorsForRoom(ctx context.Context, rt core.Runtime, roomID string) ([]core.Actor, error) {
	userIDs, err := rt.Relations().GetParticipantsForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	actors := make([]core.Actor, 0, len(userIDs))
	for _, id := range userIDs {
		account, err := rt.Relations().GetAccountByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if account == nil {
			continue // participant without an account record yet
		}
		actors = append(actors, core.Actor{
			ID:       account.ID,
			Name:     account.Name,
			Username: account.Username,
			Details:  account.Details,
		})
	}
	return actors, nil
}

func senderName(actors []core.Actor, userID string) string {
	for _, a := range actors {
		if a.ID == userID {
			return a.Name
		}
	}
	return "Unknown User"
}

func (c *Composer) logComposition(roomID string, messages int, dur time.Duration, err error) {
	if cl, ok := c.logger.(ComposeLogger); ok {
		cl.LogStateComposition(roomID, messages, dur, err)
		return
	}
	if err != nil {
		c.logger.Error("State composition failed", "room_id", roomID, "duration", dur, "error", err)
		return
	}
	c.logger.Debug("State composition completed", "room_id", roomID, "recent_messages", messages, "duration", dur)
}

// sampleMessageExamples draws up to count example conversations without
// replacement.
func sampleMessageExamples(examples [][]core.MessageExample, count int, intn func(n int) int) [][]core.MessageExample {
	if len(examples) == 0 || count <= 0 {
		return nil
	}
	if count > len(examples) {
		count = len(examples)
	}
	pool := append([][]core.MessageExample(nil), examples...)
	for i := 0; i < count; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}
