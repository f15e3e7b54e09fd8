package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
	"github.com/IRandonation/AutoTikTokSendComment/internal/presets"
	"github.com/IRandonation/AutoTikTokSendComment/internal/queue"
	"github.com/IRandonation/AutoTikTokSendComment/internal/scheduler"
)

// senderFlags are the per-invocation overrides of the sender config.
type senderFlags struct {
	minInterval  float64
	maxInterval  float64
	messages     []string
	messagesFile string
	preset       string
	sequential   bool
	random       bool
	assumeYes    bool
}

// resolveMessages picks the message list and names its source. Flags win
// over config; files and presets win over inline text.
func resolveMessages(cfg config.SenderConfig, f senderFlags) ([]string, string, error) {
	switch {
	case len(f.messages) > 0:
		return queue.ParseMessages(strings.Join(f.messages, "\n")), "flags", nil
	case f.messagesFile != "":
		return readMessagesFile(f.messagesFile)
	case f.preset != "":
		return loadPreset(cfg.PresetsFile, f.preset)
	case cfg.MessagesFile != "":
		return readMessagesFile(cfg.MessagesFile)
	case cfg.Preset != "":
		return loadPreset(cfg.PresetsFile, cfg.Preset)
	case strings.TrimSpace(cfg.MessagesText) != "":
		return queue.ParseMessages(cfg.MessagesText), "sender.messages_text", nil
	}
	return queue.ParseMessages(strings.Join(cfg.Messages, "\n")), "sender.messages", nil
}

func readMessagesFile(path string) ([]string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read messages file: %w", err)
	}
	return queue.ParseMessages(string(raw)), path, nil
}

func loadPreset(file, name string) ([]string, string, error) {
	set, err := presets.Load(file)
	if err != nil {
		return nil, "", err
	}
	msgs, err := set.Get(name)
	if err != nil {
		return nil, "", err
	}
	return msgs, "preset " + name, nil
}

// buildSettings merges the config snapshot with flag overrides.
func buildSettings(cfg config.SenderConfig, f senderFlags) (scheduler.Settings, string, error) {
	msgs, source, err := resolveMessages(cfg, f)
	if err != nil {
		return scheduler.Settings{}, "", err
	}
	s := scheduler.Settings{
		MinInterval: cfg.MinInterval,
		MaxInterval: cfg.MaxInterval,
		Messages:    msgs,
		Randomize:   cfg.Randomize,
	}
	if f.minInterval > 0 {
		s.MinInterval = f.minInterval
	}
	if f.maxInterval > 0 {
		s.MaxInterval = f.maxInterval
	}
	if f.random {
		s.Randomize = true
	}
	if f.sequential {
		s.Randomize = false
	}
	return s, source, nil
}

// confirmLongLine asks before running with a single over-long message, which
// usually means the operator forgot to put each message on its own line.
func confirmLongLine(messages []string, limit int, in io.Reader, out io.Writer) bool {
	if !queue.LooksUnsplit(messages, limit) {
		return true
	}
	fmt.Fprintf(out, "The only message is longer than %d characters.\n", limit)
	fmt.Fprintln(out, "Put each message on its own line to rotate through several.")
	fmt.Fprint(out, "Send it as one message anyway? [y/N] ")

	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
