package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var completionFiles = map[string]string{
	"bash":       "loaded.bash",
	"zsh":        "_loaded",
	"fish":       "loaded.fish",
	"powershell": "loaded.ps1",
}

func newCompletionsCommand(root *cobra.Command, stdout io.Writer) *cobra.Command {
	var shell, outDir string

	cmd := &cobra.Command{
		Use:   "gen-completions",
		Short: "Generate shell completion scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			shell = strings.ToLower(strings.TrimSpace(shell))
			name, ok := completionFiles[shell]
			if !ok {
				return fmt.Errorf("unsupported shell %q (use bash, zsh, fish or powershell)", shell)
			}

			if outDir == "" {
				return writeCompletion(root, shell, stdout)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			path := filepath.Join(outDir, name)
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create completion file: %w", err)
			}
			if err := writeCompletion(root, shell, f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&shell, "shell", "", "Shell to generate completions for: bash, zsh, fish or powershell")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory to write the completion script to (default: stdout)")
	_ = cmd.MarkFlagRequired("shell")
	return cmd
}

func writeCompletion(root *cobra.Command, shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	default:
		return root.GenPowerShellCompletionWithDesc(w)
	}
}
