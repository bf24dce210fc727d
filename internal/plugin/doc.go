// Package plugin provides the extension host for orbit command plugins.
//
// Command plugins are WebAssembly modules dropped into the commands
// directory. At startup the Host scans that directory once and starts one
// independent load per file, so a slow or broken plugin never delays the
// others:
//
//	h, err := plugin.NewHost(ctx, plugin.Options{
//	    Dir:    cfg.Plugins.Dir,
//	    Grants: grants,
//	    Logger: log,
//	})
//	if err != nil {
//	    return err // the engine itself could not be built
//	}
//	defer h.Close(ctx)
//
// # Loads
//
// Each load compiles and instantiates the module, calls its init export to
// obtain the command's Metadata, and then turns into the mailbox loop that
// owns the instance for the rest of its life. The outcome is memoized:
// every waiter sees the same *Extension or the same *LoadError, and a file
// is never loaded twice.
//
// # Registry
//
// The Registry lists loads in discovery order (sorted file names):
//
//   - List returns what is ready now, without waiting
//   - ListAsync and ListMetadataAsync wait for every load
//   - FindAsync waits until the id is found
//   - RunAsync finds and runs a command
//
// RunAsync distinguishes a missing command (ErrCommandNotFound) from a
// command that failed while running (*CallError).
//
// # Execution
//
// An Extension is the only handle to a loaded plugin. Calls are queued in
// its mailbox and executed one at a time by the owning goroutine, so plugin
// state is never touched concurrently. Callers may stop waiting through
// their context; the queued call still runs.
//
// # Main thread
//
// Host functions that touch the window run on the main thread through the
// host's bridge. The goroutine that owns the UI drives it with
// PumpMainThread (from its event loop) or RunMainThread (headless).
package plugin
