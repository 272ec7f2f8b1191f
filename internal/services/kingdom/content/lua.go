package content

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Shopify/go-lua"
	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/definition"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
)

// Script is the optional execute logic of a definition, written in Lua.
//
// The script sees a global check table:
//
//	check.id, check.definition, check.kingdom, check.outcome, check.skill
//	check.prepared   number of prepared commands
//	check.metadata   step answers as strings
//	check.rolls      dice totals by modifier key
//
// and these functions:
//
//	commit(i)        commit the i-th prepared command (1-based)
//	commit_all()     commit every prepared command
//	describe(i)      description of the i-th prepared command
//	output(k, v)     record an output value
//	message(text)    set the player-facing message
//	fail(text)       report an execution failure
type Script struct {
	name   string
	source string
}

// CompileScript checks source for syntax errors.
func CompileScript(name, source string) (*Script, error) {
	l := lua.NewState()
	if err := lua.LoadString(l, source); err != nil {
		return nil, apperrors.WrapWithMetadata(
			apperrors.CodeContentScriptInvalid,
			"execute script "+name,
			map[string]string{"definition_id": name},
			err,
		)
	}
	return &Script{name: name, source: source}, nil
}

// Func adapts the script to a definition execute function.
func (s *Script) Func() definition.ExecuteFunc {
	return s.Execute
}

// Execute runs the script against cc. Lua runtime errors are returned as
// errors; fail() reports an unsuccessful result instead.
func (s *Script) Execute(ctx context.Context, cc *resolution.Context) (definition.ExecuteResult, error) {
	run := &scriptRun{ctx: ctx, cc: cc, result: definition.ExecuteResult{Success: true}}
	l := lua.NewState()
	openSandbox(l)
	run.bind(l)
	if err := lua.LoadString(l, s.source); err != nil {
		return definition.ExecuteResult{}, fmt.Errorf("load execute script %s: %w", s.name, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return definition.ExecuteResult{}, fmt.Errorf("run execute script %s: %w", s.name, err)
	}
	return run.result, nil
}

func openSandbox(l *lua.State) {
	libs := []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "math", Function: lua.MathOpen},
	}
	for _, lib := range libs {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}
}

type scriptRun struct {
	ctx    context.Context
	cc     *resolution.Context
	result definition.ExecuteResult
}

func (r *scriptRun) bind(l *lua.State) {
	l.NewTable()
	setString(l, "id", r.cc.CheckID())
	setString(l, "definition", r.cc.DefinitionID())
	setString(l, "kingdom", r.cc.KingdomID())
	setString(l, "outcome", r.cc.Outcome().String())
	setString(l, "skill", r.cc.Skill())
	l.PushInteger(len(r.cc.Prepared()))
	l.SetField(-2, "prepared")

	metadata := r.cc.MetadataMap()
	l.NewTable()
	for _, key := range sortedKeys(metadata) {
		setString(l, key, fmt.Sprint(metadata[key]))
	}
	l.SetField(-2, "metadata")

	data := r.cc.Data()
	l.NewTable()
	for key, rolled := range data.Dice {
		l.PushInteger(rolled.Total)
		l.SetField(-2, key)
	}
	l.SetField(-2, "rolls")
	l.SetGlobal("check")

	l.Register("commit", r.commit)
	l.Register("commit_all", r.commitAll)
	l.Register("describe", r.describe)
	l.Register("output", r.output)
	l.Register("message", r.message)
	l.Register("fail", r.fail)
}

func (r *scriptRun) entry(l *lua.State) resolution.PreparedEntry {
	index := lua.CheckInteger(l, 1)
	prepared := r.cc.Prepared()
	if index < 1 || index > len(prepared) {
		lua.Errorf(l, "prepared command %d out of range (1..%d)", index, len(prepared))
	}
	return prepared[index-1]
}

func (r *scriptRun) commit(l *lua.State) int {
	entry := r.entry(l)
	if err := entry.Prepared.Commit(r.ctx); err != nil {
		lua.Errorf(l, "commit %s: %s", entry.Prepared.Type, err.Error())
	}
	return 0
}

func (r *scriptRun) commitAll(l *lua.State) int {
	for _, entry := range r.cc.Prepared() {
		if entry.Prepared.Committed() {
			continue
		}
		if err := entry.Prepared.Commit(r.ctx); err != nil {
			lua.Errorf(l, "commit %s: %s", entry.Prepared.Type, err.Error())
		}
	}
	return 0
}

func (r *scriptRun) describe(l *lua.State) int {
	l.PushString(r.entry(l).Prepared.Description)
	return 1
}

func (r *scriptRun) output(l *lua.State) int {
	key := strings.TrimSpace(lua.CheckString(l, 1))
	if key == "" {
		lua.ArgumentError(l, 1, "output key is empty")
	}
	r.cc.SetOutput(key, lua.CheckString(l, 2))
	return 0
}

func (r *scriptRun) message(l *lua.State) int {
	r.result.Message = lua.CheckString(l, 1)
	return 0
}

func (r *scriptRun) fail(l *lua.State) int {
	r.result.Success = false
	r.result.Error = lua.CheckString(l, 1)
	return 0
}

func setString(l *lua.State, key, value string) {
	l.PushString(value)
	l.SetField(-2, key)
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
