package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/profile"
)

// ProfileIssue is one validation problem, attributed to a profile when
// it could be compiled far enough to know which.
type ProfileIssue struct {
	Profile string `json:"profile,omitempty"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Profiles []string       `json:"profiles"`
	Errors   []ProfileIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <profiles>",
		Short: "Validate analysis profiles",
		Long: `Validate CUE analysis profiles without analyzing a fight.

Reports every compile error, field validation error (E1xx codes) and
module dependency problem, not just the first.

Examples:
  combatlog validate ./profiles
  combatlog validate ./profiles/retribution.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := profile.Load(path, profile.LoadModeCollectAll)

	// Nothing compiled at all: the path itself is the problem.
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *profile.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Message)
		}
		_ = formatter.Error(ErrCodeGeneric, loadErrors[0].Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load profiles", loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)

	result := ValidationResult{Profiles: loadResult.Names()}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, loadIssue(err))
	}
	for i := range loadResult.Profiles {
		p := &loadResult.Profiles[i]
		formatter.VerboseLog("Validating profile: %s", p.Name)
		result.Errors = append(result.Errors, validateProfile(p)...)
	}
	result.Valid = len(result.Errors) == 0

	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{Status: status(result.Valid), Data: result}); err != nil {
			return err
		}
	} else {
		printValidation(cmd, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
	}
	return nil
}

// validateProfile runs field validation and, when that passes, static
// analysis of the module graph the profile builds.
func validateProfile(p *profile.Profile) []ProfileIssue {
	var issues []ProfileIssue
	for _, ve := range profile.Validate(p) {
		issues = append(issues, ProfileIssue{
			Profile: p.Name,
			Code:    ve.Code,
			Field:   ve.Field,
			Message: ve.Message,
			Line:    ve.Line,
		})
	}
	if len(issues) > 0 {
		return issues
	}

	reg, _, err := profile.Build(p)
	if err != nil {
		return append(issues, ProfileIssue{Profile: p.Name, Code: ErrCodeGeneric, Message: err.Error()})
	}
	unknown, cycles := engine.AnalyzeRegistry(reg)
	for _, ce := range unknown {
		issues = append(issues, ProfileIssue{
			Profile: p.Name,
			Code:    string(ce.Code),
			Field:   "modules." + ce.Module,
			Message: ce.Message,
		})
	}
	for _, c := range cycles {
		issues = append(issues, ProfileIssue{
			Profile: p.Name,
			Code:    string(engine.ErrCodeCycleDetected),
			Field:   "modules",
			Message: c.Message,
		})
	}
	return issues
}

func loadIssue(err error) ProfileIssue {
	var loadErr *profile.LoadError
	if !errors.As(err, &loadErr) {
		return ProfileIssue{Code: ErrCodeGeneric, Message: err.Error()}
	}
	issue := ProfileIssue{Code: loadErr.Code, Message: loadErr.Message}
	if field, msg, ok := strings.Cut(loadErr.Message, ": "); ok {
		issue.Field, issue.Message = field, msg
	}
	if loadErr.Pos.IsValid() {
		issue.Line = loadErr.Pos.Line()
	}
	return issue
}

func printValidation(cmd *cobra.Command, result ValidationResult) {
	w := cmd.OutOrStdout()
	if result.Valid {
		fmt.Fprintf(w, "✓ %d profile(s) valid: %s\n", len(result.Profiles), strings.Join(result.Profiles, ", "))
		return
	}
	fmt.Fprintf(w, "✗ %d validation error(s)\n", len(result.Errors))
	for _, issue := range result.Errors {
		loc := issue.Profile
		if issue.Field != "" {
			if loc != "" {
				loc += "."
			}
			loc += issue.Field
		}
		if issue.Line > 0 {
			loc = fmt.Sprintf("%s (line %d)", loc, issue.Line)
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", issue.Code, loc, issue.Message)
	}
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
