// Package api implements the capability surface that plugins call into.
//
// A Surface is the only authority a plugin holds over the host. Every
// operation runs on the main thread through the bridge and returns to the
// plugin only after the main thread has executed it:
//
//   - is_open, open, close, toggle: query and drive the launcher window
//   - get_commands: list the metadata of every loaded command
//   - run_command: start another command without waiting for it
//   - get_app_data: look up an installed application
//
// The main thread owns a Context holding the window, the command registry
// and the application lookup. Plugins never see any of them directly.
//
// Only the lookup of the command registry happens on the main thread. The
// listing and the nested run are awaited on the calling plugin's goroutine,
// so the main thread never waits on a plugin.
package api
