package profile

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/combatlog/internal/analysis"
	"github.com/roach88/combatlog/internal/threshold"
	"github.com/roach88/combatlog/internal/tracker"
)

var (
	profileFields   = []string{"entity", "haste", "cooldowns", "pools", "buffs", "resets", "thresholds", "modules"}
	hasteFields     = []string{"base", "buffs"}
	hasteBuffFields = []string{"ability", "haste"}
	cooldownFields  = []string{"name", "ability", "duration", "charges", "hasted"}
	poolFields      = []string{"name", "type", "capacity", "initial"}
	buffFields      = []string{"name", "ability", "duration", "refresh", "max_stacks"}
	resetFields     = []string{"name", "trigger", "target", "reduce", "reset"}
	boundsFields    = []string{"comparison", "minor", "average", "major", "style"}
)

// CompileProfile parses a CUE value into a Profile.
//
// The value should be the profile struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`profile: ret: { ... }`)
//	p, err := CompileProfile(v.LookupPath(cue.ParsePath("profile.ret")))
func CompileProfile(v cue.Value) (*Profile, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Profile{Pos: v.Pos()}

	// Profile name from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = labels[len(labels)-1].String()
	}

	if err := checkFields(v, "", profileFields, nil); err != nil {
		return nil, err
	}

	if ev := v.LookupPath(cue.ParsePath("entity")); ev.Exists() {
		entity, err := ev.Int64()
		if err != nil {
			return nil, fieldError("entity", ev, err)
		}
		p.Entity = entity
	}

	var err error
	if p.Haste, err = compileHaste(v); err != nil {
		return nil, err
	}
	if p.Cooldowns, err = decodeList[tracker.CooldownConfig](v, "", "cooldowns", cooldownFields, []string{"name", "ability", "duration"}); err != nil {
		return nil, err
	}
	if p.Pools, err = decodeList[tracker.PoolConfig](v, "", "pools", poolFields, []string{"name", "type", "capacity"}); err != nil {
		return nil, err
	}
	if p.Buffs, err = decodeList[tracker.BuffConfig](v, "", "buffs", buffFields, []string{"name", "ability"}); err != nil {
		return nil, err
	}
	if p.Resets, err = decodeList[analysis.ResetRule](v, "", "resets", resetFields, []string{"name", "trigger", "target"}); err != nil {
		return nil, err
	}
	if p.Thresholds, err = compileThresholds(v); err != nil {
		return nil, err
	}

	if mv := v.LookupPath(cue.ParsePath("modules")); mv.Exists() {
		if err := mv.Decode(&p.Modules); err != nil {
			return nil, fieldError("modules", mv, err)
		}
	}

	return p, nil
}

// CompileString compiles every profile in src. filename is used for
// positions in errors.
func CompileString(src, filename string) ([]Profile, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileAll(v)
}

func compileAll(root cue.Value) ([]Profile, error) {
	pv := root.LookupPath(cue.ParsePath("profile"))
	if !pv.Exists() {
		return nil, nil
	}
	iter, err := pv.Fields()
	if err != nil {
		return nil, fieldError("profile", pv, err)
	}
	var out []Profile
	for iter.Next() {
		p, err := CompileProfile(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func compileHaste(v cue.Value) (*analysis.HasteConfig, error) {
	hv := v.LookupPath(cue.ParsePath("haste"))
	if !hv.Exists() {
		return nil, nil
	}
	if err := checkFields(hv, "haste", hasteFields, nil); err != nil {
		return nil, err
	}

	cfg := &analysis.HasteConfig{}
	if bv := hv.LookupPath(cue.ParsePath("base")); bv.Exists() {
		base, err := bv.Float64()
		if err != nil {
			return nil, fieldError("haste.base", bv, err)
		}
		cfg.Base = base
	}

	buffs, err := decodeList[analysis.HasteBuff](hv, "haste", "buffs", hasteBuffFields, hasteBuffFields)
	if err != nil {
		return nil, err
	}
	cfg.Buffs = buffs
	return cfg, nil
}

func compileThresholds(v cue.Value) (threshold.Set, error) {
	tv := v.LookupPath(cue.ParsePath("thresholds"))
	if !tv.Exists() {
		return nil, nil
	}
	iter, err := tv.Fields()
	if err != nil {
		return nil, fieldError("thresholds", tv, err)
	}

	set := threshold.Set{}
	for iter.Next() {
		metric := iter.Label()
		bv := iter.Value()
		path := "thresholds." + metric
		if err := checkFields(bv, path, boundsFields, []string{"comparison", "minor", "average", "major"}); err != nil {
			return nil, err
		}
		var b threshold.Bounds
		if err := bv.Decode(&b); err != nil {
			return nil, fieldError(path, bv, err)
		}
		set[metric] = b
	}
	return set, nil
}

// decodeList decodes the list under field into []T, rejecting unknown and
// missing element fields.
func decodeList[T any](v cue.Value, prefix, field string, allowed, required []string) ([]T, error) {
	path := join(prefix, field)
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: path, Message: "must be a list", Pos: lv.Pos()}
	}

	var out []T
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		if err := checkFields(elem, elemPath, allowed, required); err != nil {
			return nil, err
		}
		var item T
		if err := elem.Decode(&item); err != nil {
			return nil, fieldError(elemPath, elem, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func checkFields(v cue.Value, path string, allowed, required []string) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: fieldName(path), Message: "must be a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		if !slices.Contains(allowed, iter.Label()) {
			return &CompileError{
				Field:   join(path, iter.Label()),
				Message: "unknown field",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	for _, f := range required {
		if !v.LookupPath(cue.ParsePath(f)).Exists() {
			return &CompileError{
				Field:   join(path, f),
				Message: f + " is required",
				Pos:     v.Pos(),
			}
		}
	}
	return nil
}

func join(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func fieldName(path string) string {
	if path == "" {
		return "profile"
	}
	return path
}

// CompileError represents an error during profile compilation.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// fieldError reports a CUE error on a known field, keeping the CUE
// position when there is one.
func fieldError(field string, v cue.Value, err error) error {
	pos := v.Pos()
	if errs := errors.Errors(err); len(errs) > 0 {
		if positions := errors.Positions(errs[0]); len(positions) > 0 {
			pos = positions[0]
		}
	}
	return &CompileError{Field: field, Message: err.Error(), Pos: pos}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
