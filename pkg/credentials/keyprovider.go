package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrMissingKey is returned when no API key could be obtained. It is
// reported before any network call is made.
var ErrMissingKey = errors.New("missing API key")

// KeyProvider resolves the API key for one provider. Sources are tried in
// order: the provider's environment variable, credentials.toml, the codex
// auth file (openai only), and finally an interactive prompt. A key obtained
// from the prompt is stored back into credentials.toml.
type KeyProvider struct {
	Provider string
	Manager  *Manager

	// In and Out are used for the prompt. They default to os.Stdin and
	// os.Stderr.
	In  *os.File
	Out io.Writer

	// Interactive disables the prompt when false.
	Interactive bool

	// CodexFallback enables reading ~/.codex/auth.json.
	CodexFallback bool
}

// NewKeyProvider returns an interactive KeyProvider for provider backed by mgr.
func NewKeyProvider(provider string, mgr *Manager) *KeyProvider {
	return &KeyProvider{
		Provider:      provider,
		Manager:       mgr,
		In:            os.Stdin,
		Out:           os.Stderr,
		Interactive:   true,
		CodexFallback: provider == "openai",
	}
}

// Key returns the API key or an error wrapping ErrMissingKey.
func (p *KeyProvider) Key() (string, error) {
	if env := EnvVarForProvider(p.Provider); env != "" {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			return key, nil
		}
	}

	if p.Manager != nil {
		key, err := p.Manager.GetKey(p.Provider)
		if err != nil {
			return "", err
		}
		if key = strings.TrimSpace(key); key != "" {
			return key, nil
		}
	}

	if p.CodexFallback {
		if data, _ := ReadCodexAuthFile(); data != nil {
			if key := CodexAPIKey(data); key != "" {
				return key, nil
			}
		}
	}

	if !p.Interactive || p.In == nil {
		return "", fmt.Errorf("%w for %s: set %s or run 'sketchtable auth %s'",
			ErrMissingKey, p.Provider, EnvVarForProvider(p.Provider), p.Provider)
	}

	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	key, err := ReadKey(p.In, out, p.Provider)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingKey, err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: no key entered", ErrMissingKey)
	}

	if p.Manager != nil {
		if err := p.Manager.SetKey(p.Provider, key); err != nil {
			return "", fmt.Errorf("storing API key: %w", err)
		}
	}

	return key, nil
}

// ReadKey reads an API key from in. If in is not a terminal, it reads the
// first line. Otherwise, it prompts on out with hidden input.
func ReadKey(in *os.File, out io.Writer, provider string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		scanner := bufio.NewScanner(in)
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return "", errors.New("no input received on stdin")
	}

	fmt.Fprintf(out, "Enter API key for %s (%s): ", provider, EnvVarForProvider(provider))

	keyBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(out) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}

	return string(keyBytes), nil
}
