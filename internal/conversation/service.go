package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"schedbot/internal/dialog"
	"schedbot/internal/domain"
	"schedbot/internal/orchestrator"
)

type Store interface {
	GetConversation(ctx context.Context, userID string) (domain.Conversation, error)
	SaveConversation(ctx context.Context, c domain.Conversation) error
	FindConversationByPoll(ctx context.Context, pollID string) (domain.Conversation, error)
	ListExpiredPolls(ctx context.Context, openedBefore time.Time) ([]domain.Conversation, error)
}

type DecisionLog interface {
	AppendDecision(ctx context.Context, rec domain.DecisionRecord) error
}

type Publisher interface {
	PublishPollOpened(ctx context.Context, userID string, poll domain.Poll) error
	PublishEvent(ctx context.Context, ev domain.ConversationEvent) error
}

type Decider interface {
	Decide(ctx context.Context, req domain.DecideRequest) (domain.DecideResult, error)
}

type Service struct {
	store     Store
	decisions DecisionLog
	publisher Publisher
	decider   Decider
	logger    *slog.Logger
	now       func() time.Time
	locks     userLocks
}

// New builds the session layer. decisions and publisher are optional.
func New(store Store, decisions DecisionLog, publisher Publisher, decider Decider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		decisions: decisions,
		publisher: publisher,
		decider:   decider,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) Get(ctx context.Context, userID string) (domain.Conversation, error) {
	return s.store.GetConversation(ctx, userID)
}

// Start (re)opens a conversation in the initiated state and returns the
// greeting.
func (s *Service) Start(ctx context.Context, userID string) (domain.Conversation, domain.ResponseDecision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Conversation{}, domain.ResponseDecision{}, fmt.Errorf("user id is required")
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	prev := domain.StateReady
	if old, err := s.store.GetConversation(ctx, userID); err == nil {
		prev = old.State
	} else if !errors.Is(err, domain.ErrConversationNotFound) {
		return domain.Conversation{}, domain.ResponseDecision{}, err
	}

	conv := domain.Conversation{UserID: userID, State: domain.StateInitiated, UpdatedAt: s.now().UTC()}
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return domain.Conversation{}, domain.ResponseDecision{}, err
	}

	reply := domain.ResponseDecision{Text: orchestrator.Greeting, Provenance: domain.ProvenanceDialog, Confidence: 1}
	s.publish(ctx, domain.ConversationEvent{
		UserID:    userID,
		Action:    domain.ActionRestart,
		State:     prev,
		NextState: conv.State,
		Reply:     reply.Text,
		At:        conv.UpdatedAt,
	})
	return conv, reply, nil
}

// HandleMessage runs a user message through the orchestrator against the
// stored state and persists the outcome. A missing conversation counts as
// ready. Collaborator failures leave the stored state untouched.
func (s *Service) HandleMessage(ctx context.Context, userID, text string) (domain.DecideResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.DecideResult{}, fmt.Errorf("user id is required")
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	conv, err := s.store.GetConversation(ctx, userID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		conv = domain.Conversation{UserID: userID, State: domain.StateReady}
	} else if err != nil {
		return domain.DecideResult{}, err
	}

	res, err := s.decider.Decide(ctx, domain.DecideRequest{Text: text, State: string(conv.State)})
	if err != nil {
		return res, err
	}

	now := s.now().UTC()
	conv.State = res.NextState
	conv.UpdatedAt = now
	var opened *domain.Poll
	if res.Action == domain.ActionOpenPoll && res.Response != nil && res.Response.Poll != nil {
		poll := *res.Response.Poll
		poll.ID = uuid.NewString()
		res.Response.Poll = &poll
		conv.Poll = &poll
		conv.PollOpenedAt = now
		opened = &poll
	}
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return domain.DecideResult{}, err
	}

	s.appendDecision(ctx, userID, res, now)
	if opened != nil && s.publisher != nil {
		if err := s.publisher.PublishPollOpened(ctx, userID, *opened); err != nil {
			s.logger.Warn("publish poll opened failed", "user_id", userID, "poll_id", opened.ID, "error", err)
		}
	}
	if res.Handled {
		ev := domain.ConversationEvent{
			UserID:    userID,
			Action:    res.Action,
			State:     res.State,
			NextState: res.NextState,
			Poll:      opened,
			At:        now,
		}
		if res.Response != nil {
			ev.Reply = res.Response.Text
		}
		s.publish(ctx, ev)
	}
	return res, nil
}

// HandleEvent feeds an external input (poll result, confirmation) into the
// stored conversation. Inputs without a rule come back with Handled false
// and change nothing.
func (s *Service) HandleEvent(ctx context.Context, userID string, input domain.Input) (domain.TransitionResult, *domain.ResponseDecision, error) {
	return s.handleEvent(ctx, strings.TrimSpace(userID), input, "")
}

// HandlePollResult resolves the poll to its conversation and applies passes
// or fails. A result for a poll the conversation already moved past is
// ErrPollNotFound.
func (s *Service) HandlePollResult(ctx context.Context, pollID string, passed bool) (domain.TransitionResult, *domain.ResponseDecision, error) {
	conv, err := s.store.FindConversationByPoll(ctx, pollID)
	if err != nil {
		return domain.TransitionResult{}, nil, err
	}
	input := domain.InputFails
	if passed {
		input = domain.InputPasses
	}
	return s.handleEvent(ctx, conv.UserID, input, pollID)
}

// handleEvent reads, transitions and saves under the user lock. A non-empty
// pollID must still be the conversation's poll once the lock is held.
func (s *Service) handleEvent(ctx context.Context, userID string, input domain.Input, pollID string) (domain.TransitionResult, *domain.ResponseDecision, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	conv, err := s.store.GetConversation(ctx, userID)
	if err != nil {
		return domain.TransitionResult{}, nil, err
	}
	if pollID != "" && (conv.Poll == nil || conv.Poll.ID != pollID) {
		return domain.TransitionResult{}, nil, domain.ErrPollNotFound
	}

	tr := dialog.Transition(conv.State, input)
	if !tr.Handled {
		s.logger.Info("conversation event ignored", "user_id", conv.UserID, "error", dialog.Err(tr))
		return tr, nil, nil
	}

	reply := orchestrator.ActionReply(tr.Action, conv.Poll)
	now := s.now().UTC()
	conv.State = tr.NextState
	conv.UpdatedAt = now
	conv.PollOpenedAt = time.Time{}
	if tr.Action == domain.ActionRestart {
		conv.Poll = nil
	}
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return domain.TransitionResult{}, nil, err
	}

	ev := domain.ConversationEvent{
		UserID:    conv.UserID,
		Action:    tr.Action,
		State:     tr.State,
		NextState: tr.NextState,
		Poll:      conv.Poll,
		At:        now,
	}
	if reply != nil {
		ev.Reply = reply.Text
	}
	s.publish(ctx, ev)
	return tr, reply, nil
}

func (s *Service) appendDecision(ctx context.Context, userID string, res domain.DecideResult, at time.Time) {
	if s.decisions == nil {
		return
	}
	rec := domain.DecisionRecord{
		UserID:    userID,
		Text:      res.Text,
		Question:  res.Question,
		Intent:    res.Intent,
		Action:    res.Action,
		State:     res.State,
		NextState: res.NextState,
		CreatedAt: at,
	}
	if res.Response != nil {
		rec.Provenance = res.Response.Provenance
		rec.Confidence = res.Response.Confidence
	}
	if err := s.decisions.AppendDecision(ctx, rec); err != nil {
		s.logger.Warn("append decision failed", "user_id", userID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, ev domain.ConversationEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		s.logger.Warn("publish conversation event failed", "user_id", ev.UserID, "action", ev.Action, "error", err)
	}
}
