package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/avatar/internal/control"
	"github.com/vietddude/avatar/internal/core/display"
	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/core/engine"
	"github.com/vietddude/avatar/internal/resolver"
)

var (
	resolveFields  map[string]string
	resolveTimeout time.Duration
)

// flag name -> configuration field
var resolveFlags = []struct {
	flag, field, usage string
}{
	{"facebook-id", domain.FieldFacebookID, "Facebook user id"},
	{"google-id", domain.FieldGoogleID, "Google profile id"},
	{"instagram-id", domain.FieldInstagramID, "Instagram user name"},
	{"skype-id", domain.FieldSkypeID, "Skype user name"},
	{"gravatar-id", domain.FieldGravatarID, "Gravatar email or md5 hash"},
	{"github-id", domain.FieldGitHubID, "GitHub user name"},
	{"src", domain.FieldSrc, "custom image URL"},
	{"name", domain.FieldName, "name used for initials"},
	{"value", domain.FieldValue, "literal text value"},
	{"size", display.FieldSize, "avatar size in pixels"},
	{"initials-size", display.FieldInitialsSize, "maximum number of initials"},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one avatar and print the result as JSON",
	Example: `  avatar resolve --name "Marco Polo" --github-id octocat
  avatar resolve --gravatar-id user@example.com --set round=false`,
	Run: runResolve,
}

var resolveValues = map[string]*string{}

func init() {
	for _, f := range resolveFlags {
		resolveValues[f.field] = resolveCmd.Flags().String(f.flag, "", f.usage)
	}
	resolveCmd.Flags().StringToStringVar(&resolveFields, "set", nil, "additional field=value pairs")
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 15*time.Second, "resolution timeout")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	reg, err := control.OpenRegistry(ctx, cfg, false)
	if err != nil {
		slog.Error("Failed to open failure registry", "error", err)
		os.Exit(1)
	}
	defer reg.Close()

	view, err := control.NewResolver(cfg, reg, slog.Default()).Resolve(ctx, resolveChanges(resolveValues, resolveFields))
	if err != nil {
		slog.Error("Failed to resolve avatar", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(view)
}

// resolveChanges merges the per-field flags with --set pairs. --set wins on
// conflict.
func resolveChanges(values map[string]*string, set map[string]string) []engine.Change {
	fields := make(map[string]string, len(values)+len(set))
	for field, v := range values {
		if v != nil && *v != "" {
			fields[field] = *v
		}
	}
	maps.Copy(fields, set)
	return resolver.ChangesFromMap(fields)
}
