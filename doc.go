// Package reflux provides a live-reloading configuration cache.
//
// A Session serves an immutable, parsed Snapshot of one configuration file to
// any number of concurrent readers, and picks up edits to that file without
// ever handing out a nil or half-built configuration.
//
//	File → Parser → Snapshot → atomic slot → readers
//
// # Staleness
//
// Every Config call compares the file's modification time with the last one
// the cache observed. When the file is newer the caller reloads it inline and
// then returns the freshest snapshot. A background Notifier watching the
// file through fsnotify does not reload anything itself; it only marks the
// cache stale so that the next read reloads even if the modification time
// did not move.
//
// There is no lock around check-then-reload. Readers that notice staleness
// at the same moment may both reload, which costs CPU but cannot publish a
// broken snapshot: a snapshot is swapped in with a single compare-and-swap, and
// a reload that loses the swap is dropped.
//
// # Failed reloads
//
// When a reload cannot read or parse the file, the previous snapshot stays in
// service, the cache enters StateDegraded and the failure is reported through
// LastError, ErrorHistory, the CacheReloadFailed signal and the metrics
// provider. The observed modification time still advances, so a broken edit
// is attempted once; touch or rewrite the file to try again.
//
// # Formats
//
// HOCON (the default), YAML and JSON parsers are built in and chosen from the
// file extension by ParserFor. pkg/viper adds TOML, INI, properties, HCL and
// dotenv. Any type implementing Parser can be supplied with WithParser.
//
// # Example
//
//	session, err := reflux.Open(ctx, "/etc/myapp/app.conf")
//	if err != nil {
//	    return err // missing or unparsable file
//	}
//	defer session.Close()
//
//	name, err := session.Config().GetString("app.name")
//
// # Observability
//
// Lifecycle events are emitted as capitan signals (CacheReloadSucceeded,
// CacheReloadFailed, WatchFailed, ...). Hook them to route events into a
// logger:
//
//	capitan.Hook(reflux.CacheReloadFailed, func(_ context.Context, e *capitan.Event) {
//	    msg, _ := reflux.KeyError.From(e)
//	    log.Printf("config reload failed: %s", msg)
//	})
package reflux
