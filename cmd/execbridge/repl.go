package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/execbridge/internal/client"
	"github.com/michaelbrown/execbridge/internal/engine"
)

var (
	urlFlag string
	wsFlag  bool
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Send fragments to a running bridge interactively",
	Long: `Read fragments from a prompt and run them on a running bridge.

By default each fragment is POSTed and its result printed. With --ws the
fragments go over a WebSocket and anything the bridge pushes to this
connection is printed as it arrives.

End a line with \ to continue the fragment on the next line.

Examples:
  execbridge repl
  execbridge repl --ws
  execbridge repl --url http://localhost:2001`,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVar(&urlFlag, "url", "", "Bridge URL (default: from config)")
	replCmd.Flags().BoolVar(&wsFlag, "ws", false, "Stream over WebSocket and show pushed messages")
	rootCmd.AddCommand(replCmd)
}

// sender runs one fragment or signal.
type sender func(ctx context.Context, msg string) error

func runRepl(cmd *cobra.Command, args []string) error {
	baseURL := urlFlag
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	ctx := context.Background()
	c := client.New(baseURL)
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("bridge not reachable at %s: %w", baseURL, err)
	}

	// Set up readline for input with history
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mbridge>\033[0m ",
		HistoryFile:     filepath.Join(os.TempDir(), "execbridge_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprintf(out, "ExecBridge at %s\n", baseURL)

	var send sender
	if wsFlag {
		stream, err := client.Dial(ctx, baseURL)
		if err != nil {
			return err
		}
		defer stream.Close()
		go printStream(out, stream)

		fmt.Fprintln(out, "Mode: websocket (pushed messages are shown as they arrive)")
		send = func(_ context.Context, msg string) error { return stream.Send(msg) }
	} else {
		fmt.Fprintln(out, "Mode: http")
		send = func(ctx context.Context, msg string) error {
			res, err := c.Execute(ctx, msg)
			if err != nil {
				return err
			}
			printResult(out, res)
			return nil
		}
	}
	fmt.Fprintf(out, "Type /help for commands, /quit to exit\n\n")

	var pending []string
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if cont, ok := strings.CutSuffix(line, `\`); ok {
			pending = append(pending, cont)
			rl.SetPrompt("\033[36m   ...>\033[0m ")
			continue
		}
		pending = append(pending, line)
		input := strings.Join(pending, "\n")
		pending = pending[:0]
		rl.SetPrompt("\033[36mbridge>\033[0m ")

		if strings.TrimSpace(input) == "" {
			continue
		}

		// Handle slash commands
		if strings.HasPrefix(input, "/") {
			msg, quit := handleCommand(out, input, wsFlag)
			if quit {
				return nil
			}
			if msg == "" {
				continue
			}
			input = msg
		}

		if err := send(ctx, input); err != nil {
			fmt.Fprintf(out, "\033[31merror: %s\033[0m\n", err)
		}
	}
}

// handleCommand runs a slash command. It returns a message to send in place
// of the input, if any, and whether to quit. Signals are only understood on
// a WebSocket, so /ping and /docs need ws.
func handleCommand(out io.Writer, input string, ws bool) (string, bool) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	switch cmd {
	case "/quit", "/exit", "/q":
		fmt.Fprintln(out, "Goodbye!")
		return "", true
	case "/ping", "/docs":
		if !ws {
			fmt.Fprintf(out, "%s needs a WebSocket session (start with --ws)\n\n", cmd)
			return "", false
		}
		if cmd == "/ping" {
			return `{"type":"ping"}`, false
		}
		return `{"type":"document.list"}`, false
	case "/help":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  /help     - Show this help")
		fmt.Fprintln(out, "  /ping     - Send a ping signal (--ws only)")
		fmt.Fprintln(out, "  /docs     - List session documents (--ws only)")
		fmt.Fprintln(out, "  /quit     - Exit")
		fmt.Fprintln(out)
	default:
		fmt.Fprintf(out, "Unknown command: %s (try /help)\n\n", input)
	}
	return "", false
}

func printResult(out io.Writer, res engine.Result) {
	if res.Stdout != "" {
		fmt.Fprint(out, ensureNewline(res.Stdout))
	}
	if res.Stderr != "" {
		fmt.Fprintf(out, "\033[33m%s\033[0m", ensureNewline(res.Stderr))
	}
	if res.Return != "" {
		fmt.Fprintf(out, "\033[32m=> %s\033[0m\n", res.Return)
	}
	if res.Traceback != "" {
		fmt.Fprintf(out, "\033[31m%s\033[0m", ensureNewline(res.Traceback))
	}
}

func printStream(out io.Writer, stream *client.Stream) {
	for msg := range stream.Messages() {
		fmt.Fprintf(out, "\033[90m<<\033[0m %s\n", msg)
	}
	if err := stream.Err(); err != nil {
		fmt.Fprintf(out, "\033[31mconnection lost: %s\033[0m\n", err)
	}
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
