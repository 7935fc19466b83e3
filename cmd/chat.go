package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voiceiq/viq-cli/pkg/chat"
	"github.com/voiceiq/viq-cli/pkg/logging"
)

// NewChatCommand creates the chat command.
func NewChatCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	var voice string

	cmd := &cobra.Command{
		Use:   "chat <report-id> [prompt...]",
		Short: "Ask questions about a call report",
		Long: `Ask the backend questions about one call report.

With a prompt, sends it and prints the reply. Without one, starts an
interactive session: type a question per line, an empty line is ignored,
and "exit" or end of input ends the session.

--voice sends a recorded question instead; the backend transcribes it and
answers.

Examples:
  viq chat 42 "What did the caller ask for?"
  viq chat 42 --voice question.m4a
  viq chat 42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, deps, args[0], strings.Join(args[1:], " "), voice)
		},
	}

	cmd.Flags().StringVar(&voice, "voice", "", "Audio file to send as a voice prompt")
	return cmd
}

func runChat(cmd *cobra.Command, deps *Deps, reportID, prompt, voice string) error {
	e, err := deps.setup(cmd)
	if err != nil {
		return err
	}
	c, err := deps.client(e)
	if err != nil {
		return err
	}
	conv := chat.NewConversation(reportID, c, e.logger)
	printer := &chatPrinter{conv: conv, env: e}

	switch {
	case voice != "":
		return sendVoice(cmd, e, conv, printer, voice)
	case strings.TrimSpace(prompt) != "":
		ctx, cancel := commandContext(cmd, e.cfg.Timeout)
		defer cancel()
		_, err := conv.Send(ctx, prompt)
		printer.flush()
		return err
	}

	fmt.Fprintf(e.out, "Chatting about report %s. Type \"exit\" to quit.\n", reportID)
	in := bufio.NewReader(deps.In)
	for {
		fmt.Fprint(e.out, "> ")
		line, readErr := readLine(in)
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		if line != "" {
			ctx, cancel := commandContext(cmd, e.cfg.Timeout)
			if _, err := conv.Send(ctx, line); err != nil {
				e.logger.Debug("Chat turn failed", logging.Err(err))
			}
			cancel()
			printer.flush()
		}
		if readErr != nil {
			fmt.Fprintln(e.out)
			return nil
		}
	}
}

func sendVoice(cmd *cobra.Command, e *env, conv *chat.Conversation, printer *chatPrinter, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening voice prompt: %w", err)
	}
	defer f.Close()

	ctx, cancel := commandContext(cmd, e.cfg.Timeout)
	defer cancel()
	_, err = conv.SendVoice(ctx, filepath.Base(path), f)
	printer.flush()
	return err
}

// chatPrinter writes messages added since the last flush.
type chatPrinter struct {
	conv    *chat.Conversation
	env     *env
	printed int
}

func (p *chatPrinter) flush() {
	msgs := p.conv.Messages()
	for _, m := range msgs[p.printed:] {
		fmt.Fprintln(p.env.out, chat.Format(m))
	}
	p.printed = len(msgs)
}
