// Package engine runs code fragments against the bridge's shared execution
// context.
//
// Fragments are Go source evaluated by an embedded yaegi interpreter in REPL
// mode: top-level declarations made by one fragment remain visible to every
// later fragment, and the standard library is pre-imported. Fragments reach
// the bridge through a pre-imported package named bridge:
//
//	bridge.Return(v)          set the value reported as "return"
//	bridge.Get(name)          read an execution context entry
//	bridge.Set(name, v)       write an execution context entry
//	bridge.Keys()             list execution context entries
//	bridge.Session()          the shared *session.Session
//	bridge.Show(v)            render v into the output directory
//	bridge.Push(v)            send v on the active WebSocket, if any
//	bridge.PushTarget()       the active WebSocket, or nil
//	bridge.Configure(k, v)    set a rendering option
//	bridge.Stdout, Stderr     the captured output streams
//	bridge.ErrNoPushTarget    returned by Push when nobody is listening
//
// fmt.Print and friends, os.Stdout and os.Stderr all write to the captured
// streams. The print and println builtins write to the captured standard
// output.
//
// A fragment may mix declarations and statements. They run in source order,
// so a function is callable from the statements after it. Function literals
// started with a go statement recover their own panics, which are logged and
// reported on standard error; a panic in a named function started with go
// still stops the process.
//
// Execute never fails: compile errors and panics are reported in
// Result.Traceback together with whatever output the fragment produced
// before it stopped.
package engine
