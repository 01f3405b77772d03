package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"schedbot/internal/domain"
)

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// EventHandler receives the inputs arriving from the bus.
type EventHandler interface {
	HandlePollResult(ctx context.Context, pollID string, passed bool) (domain.TransitionResult, *domain.ResponseDecision, error)
	HandleEvent(ctx context.Context, userID string, input domain.Input) (domain.TransitionResult, *domain.ResponseDecision, error)
}

// Hub bridges conversations and the scheduling channel: it announces polls
// and transitions and turns poll results and confirmations into dialog input.
type Hub struct {
	cfg     HubConfig
	client  paho.Client
	handler EventHandler
	logger  *slog.Logger
}

const publishTimeout = 5 * time.Second

func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	return &Hub{cfg: cfg, logger: logger}
}

func Connect(cfg HubConfig, logger *slog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Error("mqtt connection lost", "error", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// Start connects and subscribes. handler may be nil for publish-only use.
func (h *Hub) Start(ctx context.Context, handler EventHandler) error {
	client, err := Connect(h.cfg, h.logger)
	if err != nil {
		return err
	}
	h.client = client
	h.handler = handler

	if handler != nil {
		if err := h.subscribeHandlers(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(100)
	}()

	return nil
}

func (h *Hub) subscribeHandlers() error {
	if token := h.client.Subscribe(TopicPollResults(h.cfg.TopicPrefix), 1, h.handlePollResult); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := h.client.Subscribe(TopicConversationReplies(h.cfg.TopicPrefix), 1, h.handleReply); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (h *Hub) handlePollResult(_ paho.Client, msg paho.Message) {
	pollID, err := ParseID(msg.Topic(), h.cfg.TopicPrefix, "poll")
	if err != nil {
		h.logger.Warn("skip invalid poll result topic", "topic", msg.Topic(), "error", err)
		return
	}
	passed, err := ParsePollResult(msg.Payload())
	if err != nil {
		h.logger.Warn("invalid poll result payload", "poll_id", pollID, "error", err)
		return
	}

	tr, _, err := h.handler.HandlePollResult(context.Background(), pollID, passed)
	if err != nil {
		h.logger.Warn("apply poll result failed", "poll_id", pollID, "error", err)
		return
	}
	h.logger.Info("poll result applied", "poll_id", pollID, "passed", passed, "next_state", tr.NextState, "handled", tr.Handled)
}

func (h *Hub) handleReply(_ paho.Client, msg paho.Message) {
	userID, err := ParseID(msg.Topic(), h.cfg.TopicPrefix, "conversation")
	if err != nil {
		h.logger.Warn("skip invalid reply topic", "topic", msg.Topic(), "error", err)
		return
	}
	input, err := ParseReply(msg.Payload())
	if err != nil {
		h.logger.Warn("invalid reply payload", "user_id", userID, "error", err)
		return
	}

	tr, _, err := h.handler.HandleEvent(context.Background(), userID, input)
	if err != nil {
		h.logger.Warn("apply reply failed", "user_id", userID, "error", err)
		return
	}
	h.logger.Info("reply applied", "user_id", userID, "input", input, "next_state", tr.NextState, "handled", tr.Handled)
}

func (h *Hub) PublishPollOpened(ctx context.Context, userID string, poll domain.Poll) error {
	body, err := json.Marshal(map[string]any{
		"user_id": userID,
		"poll":    poll,
		"label":   poll.String(),
	})
	if err != nil {
		return err
	}
	return h.publish(ctx, TopicPollOpened(h.cfg.TopicPrefix, poll.ID), body)
}

func (h *Hub) PublishEvent(ctx context.Context, ev domain.ConversationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.publish(ctx, TopicConversationEvent(h.cfg.TopicPrefix, ev.UserID), body)
}

func (h *Hub) PublishPollResult(ctx context.Context, pollID string, passed bool) error {
	body, _ := json.Marshal(map[string]bool{"passed": passed})
	return h.publish(ctx, TopicPollResult(h.cfg.TopicPrefix, pollID), body)
}

func (h *Hub) PublishReply(ctx context.Context, userID, reply string) error {
	body, _ := json.Marshal(map[string]string{"reply": reply})
	return h.publish(ctx, TopicConversationReply(h.cfg.TopicPrefix, userID), body)
}

// Watch subscribes fn to every poll announcement and conversation event.
func (h *Hub) Watch(fn func(topic string, payload []byte)) error {
	cb := func(_ paho.Client, msg paho.Message) { fn(msg.Topic(), msg.Payload()) }
	if token := h.client.Subscribe(TopicPollsOpened(h.cfg.TopicPrefix), 1, cb); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := h.client.Subscribe(TopicConversationEvents(h.cfg.TopicPrefix), 1, cb); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (h *Hub) publish(ctx context.Context, topic string, body []byte) error {
	if h.client == nil {
		return fmt.Errorf("mqtt hub is not started")
	}
	token := h.client.Publish(topic, 1, false, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish timeout: %s", topic)
	}
}
