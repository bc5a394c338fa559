package script

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/atomic"
)

// DefaultScript is the Lua source written by `scriptlock init-script`.
//
//go:embed default.lua
var DefaultScript string

// DefaultScriptPath is the script run when no other path is configured.
const DefaultScriptPath = "./test.lua"

// State is the outcome of a protected load. Zero means the script completed.
type State int

const (
	StateOK State = iota
	StateRaised
)

// Options configures a new Engine.
type Options struct {
	// Stdout receives output from print, io.write and io.stdout.
	// Defaults to os.Stdout.
	Stdout io.Writer

	// LoadPath lists extra directories searched by require, ahead of the defaults.
	LoadPath []string
}

// Engine owns one embedded interpreter. See the package doc for thread-safety.
type Engine struct {
	L       *lua.LState
	stdout  io.Writer
	outFile *lua.LUserData
	errInfo *ScriptError
	entered atomic.Int32
}

// Setup creates the interpreter, opens the standard libraries and initializes the load path.
// Any failure is reported as an error wrapping ErrSetup.
func Setup(opts Options) (e *Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = fmt.Errorf("%w: %v", ErrSetup, r)
		}
	}()

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	L.OpenLibs()

	e = &Engine{L: L, stdout: stdout}
	if err := e.initLoadPath(opts.LoadPath); err != nil {
		L.Close()
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	if err := e.restrictOS(); err != nil {
		L.Close()
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	if err := e.redirectIO(); err != nil {
		L.Close()
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	L.SetGlobal("print", L.NewFunction(e.print))

	return e, nil
}

// restrictOS replaces os.exit with a function that raises a script error.
// A script must never end the process.
func (e *Engine) restrictOS() error {
	osTbl, ok := e.L.GetGlobal("os").(*lua.LTable)
	if !ok {
		return fmt.Errorf("os library not loaded")
	}
	e.L.SetField(osTbl, "exit", e.L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("os.exit is not allowed (status %d)", L.OptInt(1, 0))
		return 0
	}))
	return nil
}

// redirectIO points io.write, io.stdout and the default output file at the
// configured writer. Switching io.output to another file raises an error.
func (e *Engine) redirectIO() error {
	ioTbl, ok := e.L.GetGlobal("io").(*lua.LTable)
	if !ok {
		return fmt.Errorf("io library not loaded")
	}

	methods := e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"write": func(L *lua.LState) int { return e.write(L, 2) },
		"flush": func(L *lua.LState) int {
			L.Push(e.outFile)
			return 1
		},
		"setvbuf": func(L *lua.LState) int {
			L.Push(lua.LTrue)
			return 1
		},
		"close": func(L *lua.LState) int {
			L.Push(lua.LNil)
			L.Push(lua.LString("cannot close standard file"))
			return 2
		},
	})
	mt := e.L.NewTable()
	e.L.SetField(mt, "__index", methods)
	e.L.SetField(mt, "__tostring", e.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("file (stdout)"))
		return 1
	}))

	e.outFile = e.L.NewUserData()
	e.outFile.Value = e.stdout
	e.outFile.Metatable = mt

	e.L.SetField(ioTbl, "stdout", e.outFile)
	e.L.SetField(ioTbl, "write", e.L.NewFunction(func(L *lua.LState) int { return e.write(L, 1) }))
	e.L.SetField(ioTbl, "output", e.L.NewFunction(func(L *lua.LState) int {
		if L.GetTop() > 0 && L.Get(1) != e.outFile {
			L.RaiseError("io.output can only select io.stdout")
		}
		L.Push(e.outFile)
		return 1
	}))
	return nil
}

// write copies string and number arguments from index start onwards to the
// configured writer and returns the output file, like the builtin file:write.
func (e *Engine) write(L *lua.LState, start int) int {
	for i := start; i <= L.GetTop(); i++ {
		switch v := L.Get(i).(type) {
		case lua.LString, lua.LNumber:
			if _, err := io.WriteString(e.stdout, lua.LVAsString(v)); err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
		default:
			L.ArgError(i, "string expected, got "+v.Type().String())
		}
	}
	L.Push(e.outFile)
	return 1
}

// initLoadPath prepends dirs to package.path.
func (e *Engine) initLoadPath(dirs []string) error {
	pkg, ok := e.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return fmt.Errorf("package library not loaded")
	}
	if len(dirs) == 0 {
		return nil
	}

	patterns := make([]string, 0, len(dirs)+1)
	for _, dir := range dirs {
		patterns = append(patterns, filepath.Join(dir, "?.lua"))
	}
	patterns = append(patterns, lua.LVAsString(e.L.GetField(pkg, "path")))
	e.L.SetField(pkg, "path", lua.LString(strings.Join(patterns, ";")))
	return nil
}

// print replaces the Lua builtin so script output goes to the configured writer.
func (e *Engine) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, top)
	for i := 1; i <= top; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	fmt.Fprintln(e.stdout, strings.Join(parts, "\t"))
	return 0
}

// LoadProtected runs the script at path. The script sees its own path as arg[0].
//
// A raised error never escapes: it is stored as the pending error info and
// StateRaised is returned. Use ErrInfo to retrieve it. Cancelling ctx stops a
// script that is still running.
func (e *Engine) LoadProtected(ctx context.Context, path string) State {
	e.enter()
	defer e.leave()

	if e.L == nil {
		e.errInfo = &ScriptError{Kind: KindRuntime, Script: path, Message: ErrNotSetUp.Error(), Cause: ErrNotSetUp}
		return StateRaised
	}
	if ctx != nil {
		e.L.SetContext(ctx)
		defer e.L.RemoveContext()
	}

	argTbl := e.L.NewTable()
	argTbl.RawSetInt(0, lua.LString(path))
	e.L.SetGlobal("arg", argTbl)

	if err := e.L.DoFile(path); err != nil {
		e.errInfo = newScriptError(path, err)
		e.L.SetTop(0)
		return StateRaised
	}
	return StateOK
}

// ErrInfo returns the pending script error and clears it.
// It returns nil when the last load completed.
func (e *Engine) ErrInfo() *ScriptError {
	err := e.errInfo
	e.errInfo = nil
	return err
}

// Cleanup closes the interpreter. The engine cannot be used afterwards.
func (e *Engine) Cleanup() error {
	if e == nil || e.L == nil {
		return ErrNotSetUp
	}
	e.enter()
	defer e.leave()

	e.L.Close()
	e.L = nil
	return nil
}

func (e *Engine) enter() {
	if !e.entered.CompareAndSwap(0, 1) {
		panic("script: concurrent use of Engine")
	}
}

func (e *Engine) leave() {
	e.entered.Store(0)
}
