// ABOUTME: Interactive chat loop for vox-chat: commands, sending and rendering
// ABOUTME: Prints timeline entries once each, as they arrive from sends or the stream

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/2389/vox-gateway/internal/apiclient"
	"github.com/2389/vox-gateway/internal/chatview"
)

// gateway is the part of the API client the session uses directly.
type gateway interface {
	ListAgents(ctx context.Context) ([]apiclient.Agent, error)
	ListConversations(ctx context.Context) ([]apiclient.Conversation, error)
}

type session struct {
	gw   gateway
	view *chatview.View
	out  io.Writer

	mu      sync.Mutex
	printed map[string]bool
	agents  []apiclient.Agent
}

func newSession(gw gateway, view *chatview.View, out io.Writer) *session {
	return &session{gw: gw, view: view, out: out, printed: make(map[string]bool)}
}

// start opens conversationID, or a new conversation with agent (an id or a
// name), or the first active agent.
func (s *session) start(ctx context.Context, agent, conversationID string) error {
	if conversationID != "" {
		return s.open(ctx, "", conversationID)
	}
	a, err := s.findAgent(ctx, agent)
	if err != nil {
		return err
	}
	return s.open(ctx, a.ID, "")
}

func (s *session) findAgent(ctx context.Context, ref string) (*apiclient.Agent, error) {
	agents, err := s.gw.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	s.mu.Lock()
	s.agents = agents
	s.mu.Unlock()

	for i := range agents {
		a := &agents[i]
		if ref == "" && a.Active {
			return a, nil
		}
		if ref != "" && (a.ID == ref || strings.EqualFold(a.Name, ref)) {
			return a, nil
		}
	}
	if ref == "" {
		return nil, errors.New("no active agents; create one first")
	}
	return nil, fmt.Errorf("no agent %q", ref)
}

func (s *session) open(ctx context.Context, agentID, conversationID string) error {
	if err := s.view.Switch(ctx, agentID, conversationID); err != nil {
		return err
	}
	s.mu.Lock()
	s.printed = make(map[string]bool)
	s.mu.Unlock()
	if conversationID == "" {
		fmt.Fprintln(s.out, color.HiBlackString("New conversation with %s", s.agentName(agentID)))
	}
	s.render()
	return nil
}

func (s *session) agentName(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.ID == id {
			return a.Name
		}
	}
	return id
}

func (s *session) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- io.EOF
	}()

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case <-ticker.C:
			s.render()
		case line := <-lines:
			if quit := s.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
			s.prompt()
		}
	}
}

func (s *session) prompt() {
	if s.view.Recording() {
		fmt.Fprint(s.out, color.RedString("● rec> "))
		return
	}
	fmt.Fprint(s.out, "> ")
}

// handle runs one input line and reports whether to quit.
func (s *session) handle(ctx context.Context, input string) bool {
	if input == "" {
		return false
	}
	if !strings.HasPrefix(input, "/") {
		s.view.SetInput(input)
		s.send(ctx)
		return false
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		printHelp(s.out)
	case "/agents":
		s.listAgents(ctx)
	case "/use", "/new":
		ref := arg
		if cmd == "/use" && ref == "" {
			s.printError(errors.New("usage: /use <agent>"))
			break
		}
		if ref == "" {
			ref = s.view.AgentID()
		}
		a, err := s.findAgent(ctx, ref)
		if err != nil {
			s.printError(err)
			break
		}
		if err := s.open(ctx, a.ID, ""); err != nil {
			s.printError(err)
		}
	case "/conversations":
		s.listConversations(ctx)
	case "/open":
		if err := s.open(ctx, "", arg); err != nil {
			s.printError(err)
		}
	case "/rec":
		s.toggleRecording(ctx)
	case "/play":
		s.play(arg)
	case "/stop":
		s.view.Player().PauseAll()
	case "/voice":
		on := arg != "off"
		s.view.SetVoiceReplies(on)
		fmt.Fprintf(s.out, "Voice replies %s\n", map[bool]string{true: "on", false: "off"}[on])
	default:
		s.printError(fmt.Errorf("unknown command %s", cmd))
	}
	return false
}

func (s *session) send(ctx context.Context) {
	stop := s.spinner()
	_, err := s.view.Send(ctx)
	stop()
	if err != nil {
		s.printError(err)
	}
	s.render()
}

// spinner prints a thinking indicator until stopped.
func (s *session) spinner() func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for i := 0; ; i++ {
			select {
			case <-done:
				fmt.Fprint(s.out, "\r   \r")
				return
			case <-t.C:
				fmt.Fprintf(s.out, "\r%s ", color.HiBlackString(frames[i%len(frames)]))
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (s *session) toggleRecording(ctx context.Context) {
	if !s.view.Recording() {
		if err := s.view.StartRecording(ctx); err == nil {
			fmt.Fprintln(s.out, color.RedString("Recording. /rec again to stop."))
		}
		s.render()
		return
	}
	text, err := s.view.StopRecording(ctx)
	if err != nil {
		s.render()
		return
	}
	fmt.Fprintf(s.out, "%s %s\n", color.HiBlackString("heard:"), text)
	s.send(ctx)
}

// play toggles the reply with the given id, or the latest voiced reply.
func (s *session) play(id string) {
	msgs := s.view.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.VoiceURL == "" {
			continue
		}
		if id == "" || strings.HasPrefix(m.ID, id) {
			s.view.Player().Toggle(m.ID, m.VoiceURL)
			return
		}
	}
	s.printError(errors.New("no audio for that message"))
}

func (s *session) listAgents(ctx context.Context) {
	agents, err := s.gw.ListAgents(ctx)
	if err != nil {
		s.printError(err)
		return
	}
	s.mu.Lock()
	s.agents = agents
	s.mu.Unlock()
	if len(agents) == 0 {
		fmt.Fprintln(s.out, "No agents.")
		return
	}
	for _, a := range agents {
		marker := " "
		if a.ID == s.view.AgentID() {
			marker = color.GreenString("*")
		}
		status := ""
		if !a.Active {
			status = color.HiBlackString(" (inactive)")
		}
		fmt.Fprintf(s.out, "%s %s  %s%s\n", marker, color.CyanString(a.Name), color.HiBlackString("%s %s", a.Type, a.ID), status)
	}
}

func (s *session) listConversations(ctx context.Context) {
	convs, err := s.gw.ListConversations(ctx)
	if err != nil {
		s.printError(err)
		return
	}
	if len(convs) == 0 {
		fmt.Fprintln(s.out, "No conversations.")
		return
	}
	for _, c := range convs {
		fmt.Fprintf(s.out, "%s  %s  %s\n", color.HiBlackString(c.ID), c.Title, color.HiBlackString(c.UpdatedAt.Local().Format("Jan 2 15:04")))
	}
}

// render prints timeline entries not shown yet, followed by notices.
func (s *session) render() {
	msgs := s.view.Messages()
	s.mu.Lock()
	var fresh []apiclient.Message
	for _, m := range msgs {
		if !s.printed[m.ID] {
			s.printed[m.ID] = true
			fresh = append(fresh, m)
		}
	}
	s.mu.Unlock()

	for _, m := range fresh {
		fmt.Fprintln(s.out, formatMessage(m))
	}
	for _, n := range s.view.Notices() {
		fmt.Fprintln(s.out, color.YellowString("! %s", n))
	}
}

func formatMessage(m apiclient.Message) string {
	var b strings.Builder
	if m.Role == apiclient.RoleUser {
		b.WriteString(color.GreenString("you"))
	} else {
		b.WriteString(color.CyanString("assistant"))
	}
	b.WriteString(color.HiBlackString(" %s", m.CreatedAt.Local().Format("15:04")))
	if m.VoiceURL != "" {
		b.WriteString(" ♪")
	}
	if m.IsFallback() {
		b.WriteString(color.YellowString(" (fallback)"))
	}
	b.WriteString(color.HiBlackString(" [%s]", shortID(m.ID)))
	b.WriteString("\n  ")
	b.WriteString(strings.ReplaceAll(m.Content, "\n", "\n  "))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *session) printError(err error) {
	fmt.Fprintln(s.out, color.RedString("[error] %v", err))
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  /agents          List agents")
	fmt.Fprintln(w, "  /use <agent>     Start a conversation with an agent (id or name)")
	fmt.Fprintln(w, "  /new             Start a new conversation with the current agent")
	fmt.Fprintln(w, "  /conversations   List conversations")
	fmt.Fprintln(w, "  /open <id>       Resume a conversation")
	fmt.Fprintln(w, "  /rec             Start or stop voice input")
	fmt.Fprintln(w, "  /play [id]       Play or pause a reply (latest by default)")
	fmt.Fprintln(w, "  /stop            Stop playback")
	fmt.Fprintln(w, "  /voice on|off    Ask for spoken replies")
	fmt.Fprintln(w, "  /quit            Exit")
}
