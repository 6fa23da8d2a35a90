package cli

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"cueloop.dev/internal/element"
)

// newFormatsCommand lists the audio formats the decoder registry can play
func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported audio formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := element.NewDefaultRegistry()
			formats := registry.SupportedFormats()

			slog.Debug("listing supported formats", "count", len(formats))

			cmd.Printf("Supported formats: %s\n", strings.Join(formats, ", "))
			return nil
		},
	}
}
