// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// slipstream - streaming chat client for the OpenAI API.
//
// Manages multiple conversation threads, streams assistant responses
// incrementally, and supports text, vision, text-to-speech, image
// generation and PDF-augmented messages from an interactive REPL.
//
// USABILITY: Markdown rendering and input history for a better CLI experience
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/jeranaias/slipstream/internal/config"
	"github.com/jeranaias/slipstream/internal/document"
	"github.com/jeranaias/slipstream/internal/images"
	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/openai"
	"github.com/jeranaias/slipstream/internal/router"
	"github.com/jeranaias/slipstream/internal/storage"
	"github.com/jeranaias/slipstream/internal/store"
	"github.com/jeranaias/slipstream/internal/stream"
	"github.com/jeranaias/slipstream/internal/title"
	"github.com/jeranaias/slipstream/internal/tokens"
	"github.com/jeranaias/slipstream/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22d3ee")).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a78bfa")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d399"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fbbf24"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fb7185")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22d3ee")).
			Bold(true)
)

// =============================================================================
// TTY / MARKDOWN
// =============================================================================

// isStdoutTTY reports whether stdout is a terminal.
func isStdoutTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// markdownRenderer is the global glamour renderer for markdown output.
var markdownRenderer *glamour.TermRenderer

func init() {
	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fallback to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// prepareMarkdown rewrites single newlines as markdown hard breaks so
// line-structured replies survive rendering. Fenced blocks are left alone.
func prepareMarkdown(content string) string {
	var out strings.Builder
	inFence := false
	for i, line := range strings.Split(content, "\n") {
		if i > 0 {
			out.WriteString("\n")
		}
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			out.WriteString(line)
			continue
		}
		if !inFence && line != "" {
			out.WriteString(line + "  ")
			continue
		}
		out.WriteString(line)
	}
	return out.String()
}

// renderResponse prints a reply, markdown-rendered on a TTY.
func renderResponse(content string) {
	if isStdoutTTY() && markdownRenderer != nil {
		if rendered, err := markdownRenderer.Render(prepareMarkdown(content)); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(content)
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputCLI provides input history and line editing for the REPL.
type inputCLI struct {
	line        *liner.State
	historyFile string
}

func newInputCLI() *inputCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &inputCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.loadHistory()
	return c
}

func (c *inputCLI) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

func (c *inputCLI) readInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

func (c *inputCLI) saveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

func (c *inputCLI) close() {
	c.saveHistory()
	c.line.Close()
}

// =============================================================================
// APP
// =============================================================================

// app wires the client core together for the REPL.
type app struct {
	cfg      *config.Config
	state    *storage.StateStore
	settings *storage.Settings
	store    *store.Store
	blobs    *storage.BlobStore
	ledger   *tokens.Ledger
	client   *openai.Client
	engine   *stream.Engine
	staging  *images.Staging
	titles   *title.Generator
	router   *router.Router
	input    *inputCLI

	// docText is a pending document blob consumed by the next send.
	docText string
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	statePath, err := storage.DefaultStatePath()
	if err != nil {
		return nil, err
	}
	state, err := storage.OpenStateStore(statePath)
	if err != nil {
		return nil, err
	}

	// The default system role is persisted so new conversations pick it
	// up even after a config change.
	defaultRole := cfg.Chat.SystemRole
	var persisted model.AssistantRole
	if err := state.Get(storage.KeyDefaultAssistantRole, &persisted); err == nil && persisted.Role != "" {
		defaultRole = persisted.Role
	}

	st, err := store.Open(state, defaultRole)
	if err != nil {
		return nil, err
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	blobs, err := storage.OpenBlobStore(filepath.Join(configDir, "audio.db"))
	if err != nil {
		return nil, err
	}

	ledger, err := tokens.NewLedger(st, state)
	if err != nil {
		return nil, err
	}

	// API key precedence: persisted credential, then config/env.
	apiKey := cfg.API.Key
	var storedKey string
	if err := state.Get(storage.KeyAPIKey, &storedKey); err == nil && storedKey != "" {
		apiKey = storedKey
	}

	client := openai.NewClient(apiKey).
		WithBaseURL(cfg.API.BaseURL).
		WithRateLimit(cfg.API.RateLimitRPS)

	settings := storage.LoadSettings(state)
	engine := stream.NewEngine(st, ledger, stream.ClientTransport{Client: client})
	staging := images.NewStaging()
	titles := title.NewGenerator(client, st, ledger, cfg.Chat.TitleModel)

	a := &app{
		cfg:      cfg,
		state:    state,
		settings: settings,
		store:    st,
		blobs:    blobs,
		ledger:   ledger,
		client:   client,
		engine:   engine,
		staging:  staging,
		titles:   titles,
		router:   router.New(st, engine, client, blobs, staging, settings, titles),
		input:    newInputCLI(),
	}
	return a, nil
}

func (a *app) close() {
	a.input.close()
	a.blobs.Close()
}

// watchConfig hot-reloads credential and base URL changes.
func (a *app) watchConfig() {
	path, err := config.ConfigPath()
	if err != nil {
		return
	}
	w, err := config.NewWatcher(path, 500*time.Millisecond, func(cfg *config.Config) {
		if cfg.API.Key != "" {
			a.client.SetAPIKey(cfg.API.Key)
		}
		log.Printf("config reloaded from %s", path)
	})
	if err != nil {
		log.Printf("config watcher unavailable: %v", err)
		return
	}
	if err := w.Watch(); err != nil {
		log.Printf("config watcher unavailable: %v", err)
	}
}

// =============================================================================
// MAIN / REPL
// =============================================================================

func main() {
	log.SetFlags(0)
	log.SetPrefix("slipstream: ")

	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		os.Exit(1)
	}
	defer a.close()

	a.watchConfig()
	a.printWelcome()

	// Ctrl+C cancels the active stream instead of killing the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigChan {
			if a.engine.Streaming() {
				a.engine.Cancel()
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := a.input.readInput(promptStyle.Render("slipstream> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF (Ctrl+D) exits gracefully.
			fmt.Println()
			fmt.Println(infoStyle.Render("Goodbye!"))
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := a.handleCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				fmt.Println(infoStyle.Render("Goodbye!"))
				return
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			fmt.Println(infoStyle.Render("Goodbye!"))
			return
		}

		if err := a.processMessage(input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}

// processMessage routes one user message and prints the reply.
func (a *app) processMessage(input string) error {
	if !a.client.IsConfigured() {
		return fmt.Errorf("no API key configured (set one with /key)")
	}

	docText := a.docText
	a.docText = ""

	fmt.Println()
	start := time.Now()

	err := a.router.Route(context.Background(), input, docText)
	if err != nil && err != stream.ErrStreamActive {
		// Stream errors already reconciled history; surface quietly.
		log.Printf("send failed: %v", err)
	}
	if err == stream.ErrStreamActive {
		return err
	}

	convID := a.store.Selected()
	conv, cerr := a.store.Conversation(convID)
	if cerr != nil {
		return cerr
	}
	if last, ok := conv.LastMessage(); ok && last.Role == model.RoleAssistant {
		renderResponse(last.Content.Display())
	}

	if a.settings.ShowTokens() {
		fmt.Fprintf(os.Stderr, "%s %.0f conversation | %.0f total | %s\n",
			infoStyle.Render("[Tokens]"),
			conv.ConversationTokens,
			a.ledger.Combined(),
			time.Since(start).Round(time.Millisecond))
	}
	fmt.Println()
	return err
}

// =============================================================================
// COMMANDS
// =============================================================================

// handleCommand processes slash commands.
// Returns (keepGoing, error) where keepGoing=false means exit.
func (a *app) handleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		a.printHelp()
		return true, nil

	case "/new", "/n":
		id, err := a.store.NewConversation(a.defaultRole())
		if err != nil {
			return true, err
		}
		fmt.Printf("%s Conversation %d\n", commandStyle.Render("[New]"), id+1)
		return true, nil

	case "/list", "/l":
		a.printConversations()
		return true, nil

	case "/switch", "/s":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /switch N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return true, fmt.Errorf("not a conversation number: %s", args[0])
		}
		if err := a.store.Select(n - 1); err != nil {
			return true, err
		}
		fmt.Printf("%s Conversation %d\n", commandStyle.Render("[Switched]"), n)
		return true, nil

	case "/delete", "/d":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /delete N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return true, fmt.Errorf("not a conversation number: %s", args[0])
		}
		if err := a.store.DeleteConversation(n-1, a.defaultRole()); err != nil {
			return true, err
		}
		fmt.Println(commandStyle.Render("[Deleted]"))
		return true, nil

	case "/delmsg":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /delmsg N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return true, fmt.Errorf("not a message number: %s", args[0])
		}
		if err := a.store.DeleteMessage(n - 1); err != nil {
			return true, err
		}
		fmt.Println(commandStyle.Render("[Message deleted]"))
		return true, nil

	case "/history":
		a.printHistory()
		return true, nil

	case "/copy":
		return true, a.copyLastReply()

	case "/model", "/m":
		if len(args) == 0 {
			fmt.Printf("%s %s\n", infoStyle.Render("[Model]"), commandStyle.Render(a.settings.Model()))
			return true, nil
		}
		if err := a.settings.SetModel(args[0]); err != nil {
			return true, err
		}
		fmt.Printf("%s %s\n", commandStyle.Render("[Model]"), args[0])
		return true, nil

	case "/voice":
		if len(args) == 0 {
			fmt.Printf("%s %s\n", infoStyle.Render("[Voice]"), commandStyle.Render(a.settings.Voice()))
			return true, nil
		}
		if err := a.settings.SetVoice(args[0]); err != nil {
			return true, err
		}
		fmt.Printf("%s %s\n", commandStyle.Render("[Voice]"), args[0])
		return true, nil

	case "/size":
		if len(args) == 0 {
			fmt.Printf("%s %s\n", infoStyle.Render("[Size]"), commandStyle.Render(a.settings.Size()))
			return true, nil
		}
		if err := a.settings.SetSize(args[0]); err != nil {
			return true, err
		}
		fmt.Printf("%s %s\n", commandStyle.Render("[Size]"), args[0])
		return true, nil

	case "/quality":
		if len(args) == 0 {
			fmt.Printf("%s %s\n", infoStyle.Render("[Quality]"), commandStyle.Render(a.settings.Quality()))
			return true, nil
		}
		if err := a.settings.SetQuality(args[0]); err != nil {
			return true, err
		}
		fmt.Printf("%s %s\n", commandStyle.Render("[Quality]"), args[0])
		return true, nil

	case "/role":
		return true, a.handleRole(args)

	case "/key":
		return true, a.handleKey(args)

	case "/tokens", "/t":
		show := !a.settings.ShowTokens()
		if err := a.settings.SetShowTokens(show); err != nil {
			return true, err
		}
		if show {
			fmt.Println(commandStyle.Render("[Token display on]"))
		} else {
			fmt.Println(commandStyle.Render("[Token display off]"))
		}
		return true, nil

	case "/image", "/i":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /image <path>")
		}
		return true, a.stageImage(args[0])

	case "/doc":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /doc <path>")
		}
		return true, a.loadDocument(args[0])

	case "/audio":
		if len(args) < 2 {
			return true, fmt.Errorf("usage: /audio <id> <path>")
		}
		return true, a.exportAudio(args[0], args[1])

	case "/cancel":
		a.engine.Cancel()
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

func (a *app) defaultRole() string {
	var persisted model.AssistantRole
	if err := a.state.Get(storage.KeyDefaultAssistantRole, &persisted); err == nil && persisted.Role != "" {
		return persisted.Role
	}
	return a.cfg.Chat.SystemRole
}

// handleRole shows or sets the active conversation's system role. With
// "default" as the first word, updates the persisted default instead.
func (a *app) handleRole(args []string) error {
	convID := a.store.Selected()
	if len(args) == 0 {
		conv, err := a.store.Conversation(convID)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", infoStyle.Render("[Role]"), conv.AssistantRole)
		return nil
	}

	if args[0] == "default" && len(args) > 1 {
		role := strings.Join(args[1:], " ")
		if err := a.state.Set(storage.KeyDefaultAssistantRole, model.AssistantRole{Role: role, Type: "system"}); err != nil {
			return err
		}
		fmt.Println(commandStyle.Render("[Default role updated]"))
		return nil
	}

	role := strings.Join(args, " ")
	if err := a.store.SetAssistantRole(convID, role); err != nil {
		return err
	}
	fmt.Println(commandStyle.Render("[Role updated]"))
	return nil
}

// handleKey shows key status or stores a new API key.
func (a *app) handleKey(args []string) error {
	if len(args) == 0 {
		if a.client.IsConfigured() {
			fmt.Printf("%s %s\n", infoStyle.Render("[Key]"), commandStyle.Render("Configured"))
		} else {
			fmt.Printf("%s %s\n", infoStyle.Render("[Key]"), warningStyle.Render("Not set"))
		}
		return nil
	}

	key := args[0]
	if err := a.state.Set(storage.KeyAPIKey, key); err != nil {
		return err
	}
	a.client.SetAPIKey(key)
	fmt.Println(commandStyle.Render("[Key stored]"))
	return nil
}

// stageImage base64-encodes a file into the vision staging area.
func (a *app) stageImage(path string) error {
	uri, err := util.FileToDataURI(path)
	if err != nil {
		return err
	}
	a.staging.Add(uri)
	fmt.Printf("%s %d staged\n", commandStyle.Render("[Image]"), a.staging.Len())
	return nil
}

// loadDocument extracts a file into the pending document blob.
func (a *app) loadDocument(path string) error {
	text, err := document.TextExtractor{}.Extract(path)
	if err != nil {
		return err
	}
	a.docText = text
	fmt.Printf("%s %s (%d words) attached to next message\n",
		commandStyle.Render("[Document]"),
		filepath.Base(path),
		document.CountWords(text))
	return nil
}

// exportAudio writes a stored audio blob to disk.
func (a *app) exportAudio(id, path string) error {
	data, err := a.blobs.Get(id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", commandStyle.Render("[Audio saved]"), path)
	return nil
}

// copyLastReply puts the last assistant message on the clipboard.
func (a *app) copyLastReply() error {
	conv, err := a.store.Conversation(a.store.Selected())
	if err != nil {
		return err
	}
	for i := len(conv.History) - 1; i >= 0; i-- {
		if conv.History[i].Role == model.RoleAssistant {
			if err := clipboard.WriteAll(conv.History[i].Content.Display()); err != nil {
				return fmt.Errorf("clipboard unavailable: %w", err)
			}
			fmt.Println(commandStyle.Render("[Copied]"))
			return nil
		}
	}
	return fmt.Errorf("no assistant reply to copy")
}

// =============================================================================
// DISPLAY
// =============================================================================

func (a *app) printWelcome() {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("slipstream chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n", infoStyle.Render("Model:"), commandStyle.Render(a.settings.Model()))
	fmt.Printf("%s %d\n", infoStyle.Render("Conversations:"), a.store.Count())
	if !a.client.IsConfigured() {
		fmt.Printf("%s %s\n", infoStyle.Render("Key:"), warningStyle.Render("Not set (/key <value>)"))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func (a *app) printHelp() {
	fmt.Println()
	fmt.Println(headerStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new, /n", "Start a new conversation"},
		{"/list, /l", "List conversations"},
		{"/switch N", "Switch to conversation N"},
		{"/delete N", "Delete conversation N"},
		{"/delmsg N", "Delete message N from this conversation"},
		{"/history", "Show conversation history"},
		{"/copy", "Copy last reply to clipboard"},
		{"/model [name]", "Show or switch model"},
		{"/voice [name]", "Show or switch speech voice"},
		{"/size [WxH]", "Show or set image size"},
		{"/quality [q]", "Show or set image quality"},
		{"/role [text]", "Show or set the system role"},
		{"/key [value]", "Show key status or store a key"},
		{"/tokens, /t", "Toggle token display"},
		{"/image <path>", "Stage an image for a vision message"},
		{"/doc <path>", "Attach a document to the next message"},
		{"/audio <id> <path>", "Export a synthesized audio blob"},
		{"/cancel", "Cancel the active stream"},
		{"/quit, /q", "Exit"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-20s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels the current generation, Ctrl+D exits"))
	fmt.Println()
}

func (a *app) printConversations() {
	convs := a.store.Conversations()
	selected := a.store.Selected()

	fmt.Println()
	fmt.Println(headerStyle.Render("Conversations"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))

	for i, c := range convs {
		title := runewidth.Truncate(c.DisplayTitle(), 40, "...")
		marker := "  "
		if i == selected {
			marker = commandStyle.Render("> ")
		}
		fmt.Printf("%s%d. %s %s\n",
			marker, i+1, title,
			infoStyle.Render(fmt.Sprintf("(%d messages, %.0f tokens)", len(c.History), c.ConversationTokens)))
	}
	fmt.Println()
}

func (a *app) printHistory() {
	conv, err := a.store.Conversation(a.store.Selected())
	if err != nil || len(conv.History) == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Conversation History"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range conv.History {
		role := string(msg.Role)
		switch msg.Role {
		case model.RoleUser:
			role = lipgloss.NewStyle().Foreground(lipgloss.Color("#22d3ee")).Render("You")
		case model.RoleAssistant:
			role = lipgloss.NewStyle().Foreground(lipgloss.Color("#a78bfa")).Render("AI")
		case model.RoleSystem:
			role = warningStyle.Render("System")
		}

		preview := util.TruncateString(util.CollapseNewlines(msg.Content.Display()), 100)
		fmt.Printf("  %d. %s: %s\n", i+1, role, preview)
	}
	fmt.Println()
}
