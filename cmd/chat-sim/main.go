package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"schedbot/internal/config"
	"schedbot/internal/domain"
	"schedbot/internal/logging"
	"schedbot/internal/mqtt"
)

const help = `commands:
  /start              greet and reset the conversation
  /state              show the stored state and open poll
  /pass, /fail        report the team poll result
  /confirm, /deny     answer the confirmation request
  /quit               exit
anything else is sent as a chat message`

func main() {
	config.LoadDotEnv()
	cfg, err := config.LoadChatSimConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New(config.LogConfig{Format: "console"})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := &simulator{
		api:    newAPIClient(cfg.ServerURL),
		userID: cfg.UserID,
		out:    os.Stdout,
	}

	if cfg.MQTT.Enabled() {
		hub := mqtt.NewHub(mqtt.HubConfig{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
		if err := hub.Start(ctx, nil); err != nil {
			logger.Error("start mqtt failed", "error", err)
			os.Exit(1)
		}
		if err := hub.Watch(sim.printEvent); err != nil {
			logger.Error("watch mqtt events failed", "error", err)
			os.Exit(1)
		}
		sim.bus = hub
	}

	fmt.Fprintf(sim.out, "chatting as %s with %s\n%s\n", cfg.UserID, cfg.ServerURL, help)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(sim.out, "> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := sim.handle(ctx, line); quit {
				return
			}
		}
	}
}

// bus publishes poll results and replies the way the team side would.
type bus interface {
	PublishPollResult(ctx context.Context, pollID string, passed bool) error
	PublishReply(ctx context.Context, userID, reply string) error
}

type simulator struct {
	api    *apiClient
	bus    bus
	userID string

	mu     sync.Mutex
	out    io.Writer
	pollID string
}

type command struct {
	name string
	text string
}

func parseLine(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{name: "say", text: line}
	}
	name, rest, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return command{name: strings.ToLower(name), text: strings.TrimSpace(rest)}
}

func (s *simulator) handle(ctx context.Context, line string) bool {
	cmd := parseLine(line)
	var err error
	switch cmd.name {
	case "say":
		if cmd.text == "" {
			return false
		}
		err = s.say(ctx, cmd.text)
	case "start":
		err = s.start(ctx)
	case "state":
		err = s.state(ctx)
	case "pass", "fail":
		err = s.pollResult(ctx, cmd.name == "pass")
	case "confirm", "deny":
		err = s.reply(ctx, cmd.name)
	case "quit", "exit":
		return true
	default:
		s.printf("%s\n", help)
	}
	if err != nil {
		s.printf("error: %v\n", err)
	}
	return false
}

func (s *simulator) say(ctx context.Context, text string) error {
	res, err := s.api.message(ctx, s.userID, text)
	if err != nil && res.Response == nil {
		return err
	}
	s.printDecision(res)
	return err
}

func (s *simulator) start(ctx context.Context) error {
	reply, err := s.api.start(ctx, s.userID)
	if err != nil {
		return err
	}
	s.setPoll("")
	s.printf("bot: %s\n", reply.Text)
	return nil
}

func (s *simulator) state(ctx context.Context) error {
	conv, err := s.api.conversation(ctx, s.userID)
	if err != nil {
		return err
	}
	if conv.Poll != nil {
		s.setPoll(conv.Poll.ID)
		s.printf("state=%s poll=%s (%s)\n", conv.State, conv.Poll, conv.Poll.ID)
		return nil
	}
	s.printf("state=%s\n", conv.State)
	return nil
}

// pollResult goes over MQTT when a broker is configured, so the server's
// bridge is exercised, and straight to the events endpoint otherwise.
func (s *simulator) pollResult(ctx context.Context, passed bool) error {
	input := domain.InputFails
	if passed {
		input = domain.InputPasses
	}
	pollID := s.currentPoll()
	if s.bus != nil && pollID != "" {
		return s.bus.PublishPollResult(ctx, pollID, passed)
	}
	return s.event(ctx, input)
}

func (s *simulator) reply(ctx context.Context, answer string) error {
	if s.bus != nil {
		return s.bus.PublishReply(ctx, s.userID, answer)
	}
	input := domain.InputConfirm
	if answer == "deny" {
		input = domain.InputDenied
	}
	return s.event(ctx, input)
}

func (s *simulator) event(ctx context.Context, input domain.Input) error {
	tr, reply, err := s.api.event(ctx, s.userID, input)
	if err != nil {
		return err
	}
	if !tr.Handled {
		s.printf("(%s ignored in state %s)\n", input, tr.State)
		return nil
	}
	if tr.Action == domain.ActionRestart {
		s.setPoll("")
	}
	if reply != nil {
		s.printf("bot: %s\n", reply.Text)
	}
	return nil
}

func (s *simulator) printDecision(res domain.DecideResult) {
	if res.Response != nil && res.Response.Poll != nil && res.Response.Poll.ID != "" {
		s.setPoll(res.Response.Poll.ID)
	}
	if res.Response == nil {
		s.printf("(intent=%s action=%s, no reply)\n", res.Intent, res.Action)
		return
	}
	s.printf("bot: %s\n", res.Response.Text)
	s.printf("    intent=%s action=%s %s->%s provenance=%s confidence=%.2f\n",
		res.Intent, res.Action, res.State, res.NextState, res.Response.Provenance, res.Response.Confidence)
	for word, fix := range res.UncorrectedWords {
		s.printf("    spelling: %s -> %s\n", word, fix)
	}
}

func (s *simulator) printEvent(topic string, payload []byte) {
	var ev domain.ConversationEvent
	if strings.HasSuffix(topic, "/event") && json.Unmarshal(payload, &ev) == nil {
		if ev.UserID != s.userID {
			return
		}
		if ev.Poll != nil && ev.Poll.ID != "" {
			s.setPoll(ev.Poll.ID)
		}
		if ev.Action == domain.ActionRestart {
			s.setPoll("")
		}
		s.printf("\n[event] %s %s->%s %s\n", ev.Action, ev.State, ev.NextState, ev.Reply)
		return
	}
	s.printf("\n[%s] %s\n", topic, payload)
}

func (s *simulator) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *simulator) setPoll(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollID = id
}

func (s *simulator) currentPoll() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollID
}
