package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ashureev/memchat/internal/chat"
	"github.com/ashureev/memchat/internal/domain"
)

// maxInputLine bounds a single pasted line of terminal input.
const maxInputLine = 1 << 20

// conversation is the part of chat.Controller the terminal loop drives.
type conversation interface {
	Initialize(ctx context.Context, s *chat.State)
	Submit(ctx context.Context, s *chat.State, input string) domain.ChatMessage
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long: `Start a conversation on stdin/stdout.

The assistant greets the user who chatted last, from any channel, by name.
Type "exit" or press Ctrl-D to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := chat.WithChannel(cmd.Context(), chat.ChannelTerminal)

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil {
				logger.Error("Failed to close resources", "error", closeErr)
			}
		}()

		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		return runChat(ctx, a.ctrl, cmd.InOrStdin(), cmd.OutOrStdout(), interactive)
	},
}

// runChat greets the user and then answers one line of input at a time until
// in is exhausted, the user types exit, or ctx is cancelled.
func runChat(ctx context.Context, conv conversation, in io.Reader, out io.Writer, interactive bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := chat.NewState()
	conv.Initialize(ctx, state)
	for _, m := range state.Messages {
		printMessage(out, m, interactive)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if interactive {
			fmt.Fprint(out, "\u001b[94mYou\u001b[0m: ")
		}

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			return scanner.Err()
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		printMessage(out, conv.Submit(ctx, state, line), interactive)
	}
}

func printMessage(out io.Writer, m domain.ChatMessage, interactive bool) {
	if m.Role != domain.RoleAssistant {
		return
	}
	if interactive {
		fmt.Fprintf(out, "\u001b[93mAssistant\u001b[0m: %s\n", m.Content)
		return
	}
	fmt.Fprintln(out, m.Content)
}
