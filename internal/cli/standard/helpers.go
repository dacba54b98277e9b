package standard

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ccheshirecat/swarmctl/internal/cli/client"
)

const commandTimeout = 60 * time.Second

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func encodeAsJSON(out io.Writer, payload any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// printResult writes JSON results indented and anything else verbatim.
func printResult(cmd *cobra.Command, res client.Result) error {
	out := cmd.OutOrStdout()
	if !res.IsJSON() {
		_, err := fmt.Fprintln(out, res.Body)
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, res.JSON, "", "  "); err != nil {
		_, err := fmt.Fprintln(out, res.Body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}

// printer adapts a call returning a Result into a RunE body.
func printer(cmd *cobra.Command) func(client.Result, error) error {
	return func(res client.Result, err error) error {
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	}
}

// readSecret prompts on stderr and reads a line without echo when stdin is a
// terminal. Piped input is read as a plain line.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// secretFromFlag returns the flag value, then the env var, then prompts.
func secretFromFlag(cmd *cobra.Command, flag, env, prompt string) (string, error) {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v, nil
	}
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	return readSecret(cmd, prompt)
}
