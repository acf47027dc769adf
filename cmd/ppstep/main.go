// The ppstep tool is an interactive macro-expansion tracker for a small
// C-preprocessor-like language. Run "ppstep -h" for usage.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppstep/ppstep/internal/cpp"
	"github.com/ppstep/ppstep/internal/interp"
	"github.com/ppstep/ppstep/internal/ppengine"
	"github.com/ppstep/ppstep/internal/pptok"
	"github.com/ppstep/ppstep/internal/recorder"
	"github.com/ppstep/ppstep/internal/stepper"
	"github.com/ppstep/ppstep/internal/tracker"

	"github.com/chzyer/readline"
)

func main() {
	var includeDirs, defines, undefs []string
	var debug bool

	root := &cobra.Command{
		Use:   "ppstep <file>",
		Short: "Step through C-preprocessor-style macro expansion interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], includeDirs, defines, undefs, debug)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringArrayVarP(&includeDirs, "include", "I", nil, "add a directory to the #include search path (repeatable)")
	root.Flags().StringArrayVarP(&defines, "define", "D", nil, "define NAME or NAME=VALUE before reading the input file (repeatable)")
	root.Flags().StringArrayVarP(&undefs, "undef", "U", nil, "undefine NAME before reading the input file (repeatable)")
	root.Flags().BoolVar(&debug, "debug", false, "bypass the interactive UI; print one compact line per hook")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ppstep:", err)
		os.Exit(1)
	}
}

func run(file string, includeDirs, defines, undefs []string, debug bool) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	searcher := newFSSearcher(includeDirs, file)

	if debug {
		return runDebug(file, string(data), searcher, defines, undefs)
	}
	return runInteractive(file, string(data), searcher, defines, undefs)
}

// runDebug drives the engine to completion with no tracker, stepper or
// prompt at all: one compact line per hook straight to stdout (spec
// §5/§6.2 --debug).
func runDebug(file, text string, searcher cpp.IncludeSearcher, defines, undefs []string) error {
	hooks := &debugHooks{}
	eng := cpp.New(hooks, file, text, searcher)
	if err := applyInitialMacros(eng, defines, undefs); err != nil {
		return err
	}
	if err := eng.Run(nil); err != nil {
		fmt.Fprintln(os.Stderr, "ppstep:", err)
		os.Exit(1)
	}
	return nil
}

// runInteractive wires the full session together: the engine through
// the adapter into the tracker, the tracker's notifier into the
// stepper, the stepper's blocking prompt into the interpreter, and the
// interpreter's engine-facing commands into the engine through the
// EngineOps capability. The circular Interpreter/Controller dependency
// (the controller needs a Prompter before the interpreter exists, the
// interpreter needs a Controller to construct) is resolved the way
// interp's own tests do it: construct a zero-valued *Interpreter first
// so the controller can capture its identity, then fill it in once the
// real dependencies are ready.
func runInteractive(file, text string, searcher cpp.IncludeSearcher, defines, undefs []string) error {
	rl, err := readline.New("pp> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	tr := tracker.New()
	rec := recorder.New()
	tr.AddObserver(rec)

	ip := &interp.Interpreter{}
	ctl := stepper.New(stepper.Free, ip)
	tr.SetNotifier(ctl)

	var exitCode int
	adapter := ppengine.New(tr, file, func(exc ppengine.Exception) {
		ip.Exception(exc.Description)
		exitCode = 1
	})
	eng := cpp.New(adapter, file, text, searcher)

	ops := &engineOps{eng: eng}
	*ip = *interp.New(tr, ctl, rec, ops, rl, rl.Stdout())

	if err := applyInitialMacros(eng, defines, undefs); err != nil {
		return err
	}

	// The recover here has two jobs, layered one on top of the other:
	// a QuitSignal means `quit` was typed and this is a clean exit, so
	// it is simply swallowed; anything else is a genuine crash, so it
	// gets a diagnostic dump (dumpCrash, the recover()-based analog of
	// crash_handler.hpp's signal handler) before being re-panicked so
	// the process still terminates the way an unhandled panic should.
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(interp.QuitSignal); ok {
					return
				}
				dumpCrash(r)
				panic(r)
			}
		}()
		ip.Started()
		if runErr := eng.Run(rl.Stdout()); runErr != nil {
			exitCode = 1
		}
		ip.Complete()
	}()

	rec.Stop()
	if exitCode != 0 {
		return fmt.Errorf("fatal error in %s", file)
	}
	return nil
}

func applyInitialMacros(eng *cpp.Engine, defines, undefs []string) error {
	for _, d := range defines {
		if err := eng.Define(d); err != nil {
			return fmt.Errorf("-D %s: %w", d, err)
		}
	}
	for _, u := range undefs {
		if err := eng.Undef(u); err != nil {
			return fmt.Errorf("-U %s: %w", u, err)
		}
	}
	return nil
}

// engineOps adapts a *cpp.Engine to the interp.EngineOps capability the
// interpreter's expand/#define/#undef/#include/macros commands use.
type engineOps struct {
	eng *cpp.Engine
}

func (o *engineOps) Expand(text string) (pptok.TokenSeq, error) {
	return o.eng.ExpandText(text)
}

func (o *engineOps) Define(decl string) error { return o.eng.Define(decl) }

func (o *engineOps) Undef(name string) error { return o.eng.Undef(name) }

func (o *engineOps) Include(spec string) error { return o.eng.Include(spec) }

func (o *engineOps) Macros() []interp.MacroInfo {
	snaps := o.eng.Macros()
	out := make([]interp.MacroInfo, len(snaps))
	for i, s := range snaps {
		out[i] = interp.MacroInfo{Name: s.Name, Params: s.Params, Body: s.Body}
	}
	return out
}
